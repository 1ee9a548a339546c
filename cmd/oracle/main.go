package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"FountainProtocol/internal/collector"
	"FountainProtocol/internal/config"
	"FountainProtocol/internal/logger"
	"FountainProtocol/internal/metrics"
	"FountainProtocol/internal/model"
	"FountainProtocol/internal/oracle"
	"FountainProtocol/internal/publisher"
	"FountainProtocol/internal/retry"
	"FountainProtocol/internal/scheduler"
	"FountainProtocol/internal/store"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configFlag := flag.String("config", "configs/config.yaml", "Path to the YAML config (or set CONFIG_PATH env var)")
	envFileFlag := flag.String("env-file", ".env", "Dotenv file loaded before the config")
	verboseFlag := flag.Bool("verbose", false, "Enable verbose (debug) logging")
	dateFlag := flag.String("date", "", "Compute the snapshot for one UTC day (YYYY-MM-DD) and exit")
	runNowFlag := flag.Bool("run-now", false, "Run the last closed day's snapshot at startup")
	reportFlag := flag.Int("report", 0, "Print the last N snapshots and exit")
	flag.Parse()

	log := logger.New(*verboseFlag)

	if err := godotenv.Load(*envFileFlag); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file: %w", err)
	}

	cfgPath := *configFlag
	if v := os.Getenv("CONFIG_PATH"); v != "" && !flag.CommandLine.Changed("config") {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	st, err := store.Open(log, cfg.Database.SQLitePath, cfg.Database.StateFile)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if *reportFlag > 0 {
		snaps, err := st.ListSnapshots(context.Background(), *reportFlag)
		if err != nil {
			return err
		}
		fmt.Print(publisher.FormatHistoryTable(snaps))
		return nil
	}

	clock := clockwork.NewRealClock()

	source, err := newSource(log, cfg, clock)
	if err != nil {
		return err
	}
	log.Info("count source", "name", source.Name())

	var (
		publishers []publisher.Publisher
		tn         *publisher.TelegramNotifier
	)
	if cfg.TopicEnabled() {
		tp, err := publisher.NewTopicPublisher(publisher.TopicConfig{
			BaseURL:  cfg.Publisher.BaseURL,
			TopicID:  cfg.Publisher.TopicID,
			APIKey:   cfg.Publisher.APIKey,
			Protocol: cfg.Oracle.Protocol,
			Params:   cfg.Params(),
			Proxy:    cfg.Proxy,
			Clock:    clock,
		})
		if err != nil {
			return fmt.Errorf("init topic publisher: %w", err)
		}
		publishers = append(publishers, tp)
	}
	if cfg.TelegramEnabled() {
		tn = publisher.NewTelegramNotifier(log, cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		publishers = append(publishers, tn)
	}
	if len(publishers) == 0 {
		log.Warn("no audit publisher configured, snapshots are only stored locally")
	}

	o, err := oracle.New(oracle.Config{
		Logger:    log,
		Clock:     clock,
		Params:    cfg.Params(),
		Source:    source,
		States:    st,
		Snapshots: st,
		Publisher: publisher.NewMulti(log, publishers...),
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *dateFlag != "" {
		res, err := o.Run(ctx, *dateFlag)
		if err != nil {
			return err
		}
		fmt.Print(publisher.FormatHistoryTable([]*model.DailySnapshot{res.Snapshot}))
		log.Info("snapshot done", "date", *dateFlag, "status", res.Status, "published", res.Published())
		if res.PublishErr != nil {
			log.Warn("publish warning", "error", res.PublishErr)
		}
		return nil
	}

	if cfg.Metrics.ListenAddr != "" {
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		go func() {
			listener, err := net.Listen("tcp", cfg.Metrics.ListenAddr)
			if err != nil {
				log.Error("failed to start prometheus metrics server listener", "error", err)
				return
			}
			log.Info("prometheus metrics server listening", "address", listener.Addr().String())
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.Serve(listener, mux); err != nil {
				log.Error("prometheus metrics server stopped", "error", err)
			}
		}()
	}

	var alerter scheduler.Alerter
	if tn != nil {
		alerter = tn
	}
	sched := scheduler.NewScheduler(ctx, log, o, alerter)
	if err := sched.Register(cfg.Schedule.DailyCron); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil && cfg.Telegram.Polling {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info("telegram polling started")
	}

	if *runNowFlag {
		log.Info("run-now enabled, executing the last closed day's snapshot")
		go sched.RunNow() //nolint:errcheck
	}

	log.Info("fountain oracle running", "version", version, "daily_cron", cfg.Schedule.DailyCron)
	<-ctx.Done()
	log.Info("shutdown signal received, stopping")
	return nil
}

func newSource(log *slog.Logger, cfg *config.Config, clock clockwork.Clock) (collector.CountSource, error) {
	if cfg.Source == config.SourceStatic {
		log.Warn("using static counts", "active_holders", cfg.Static.ActiveHolders, "new_donors", cfg.Static.NewDonors)
		return collector.NewStaticSource(cfg.Static.ActiveHolders, cfg.Static.NewDonors), nil
	}
	m, err := collector.NewMirrorSource(collector.MirrorConfig{
		Logger:            log,
		Clock:             clock,
		BaseURL:           cfg.Mirror.BaseURL,
		MembershipTokenID: cfg.Mirror.MembershipTokenID,
		DonorBadgeTokenID: cfg.Mirror.DonorBadgeTokenID,
		ExcludeAccounts:   cfg.Mirror.ExcludeAccounts,
		MinBalance:        cfg.Mirror.MinBalance,
		PageSize:          cfg.Mirror.PageSize,
		RequestsPerSecond: cfg.Mirror.RequestsPerSecond,
		Proxy:             cfg.Proxy,
		Retry:             retry.DefaultConfig(),
	})
	if err != nil {
		return nil, fmt.Errorf("init mirror source: %w", err)
	}
	return m, nil
}
