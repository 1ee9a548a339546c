package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"FountainProtocol/internal/model"
	"FountainProtocol/internal/oracle"
	"FountainProtocol/internal/publisher"
)

// historyDays is how many snapshots /history shows.
const historyDays = 7

// Oracle is the part of the daily oracle the scheduler drives.
type Oracle interface {
	ClosedDay() string
	RunClosedDay(ctx context.Context) (*oracle.Result, error)
	Snapshot(ctx context.Context, date string) (*model.DailySnapshot, error)
	LatestState(ctx context.Context) (*model.OracleState, error)
	History(ctx context.Context, limit int) ([]*model.DailySnapshot, error)
}

// Alerter delivers operator alerts. Optional.
type Alerter interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler runs the daily snapshot on a cron schedule and answers chat commands.
type Scheduler struct {
	Cron    *cron.Cron
	Oracle  Oracle
	Alerter Alerter
	Ctx     context.Context
	log     *slog.Logger
}

// NewScheduler creates a Scheduler. Cron expressions are evaluated in UTC so
// the daily run lines up with the snapshot day boundary.
func NewScheduler(ctx context.Context, log *slog.Logger, o Oracle, alerter Alerter) *Scheduler {
	cl := cronLogger{log: log}
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		Oracle:  o,
		Alerter: alerter,
		Ctx:     ctx,
		log:     log,
	}
}

// Register adds the daily snapshot task.
func (s *Scheduler) Register(dailyCron string) error {
	if _, err := s.Cron.AddFunc(dailyCron, s.dailyTask); err != nil {
		return fmt.Errorf("register daily task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info("scheduler started", "entries", len(s.Cron.Entries()))
}

// Stop stops the scheduler and waits for a running task to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// RunNow runs the snapshot for the last closed UTC day immediately.
func (s *Scheduler) RunNow() (*oracle.Result, error) {
	return s.runClosedDay()
}

func (s *Scheduler) dailyTask() {
	_, _ = s.runClosedDay()
}

// runClosedDay computes the day that ended before the tick, so its donor
// window and end-of-day balances are complete.
func (s *Scheduler) runClosedDay() (*oracle.Result, error) {
	date := s.Oracle.ClosedDay()
	s.log.Info("running daily snapshot", "date", date)

	res, err := s.Oracle.RunClosedDay(s.Ctx)
	if err != nil {
		s.log.Error("daily snapshot failed", "date", date, "error", err)
		s.trySend(fmt.Sprintf("❌ Daily snapshot for %s failed: %v\nIt will be retried on the next scheduled run.", date, err))
		return nil, err
	}
	if res.PublishErr != nil {
		s.log.Warn("daily snapshot not fully published", "date", date, "error", res.PublishErr)
	}
	return res, nil
}

// HandleCommand processes a chat command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	cmd, _, _ := strings.Cut(strings.TrimSpace(command), " ")
	cmd, _, _ = strings.Cut(cmd, "@") // /today@FountainBot
	switch cmd {
	case "/today":
		date := s.Oracle.ClosedDay()
		snap, err := s.Oracle.Snapshot(ctx, date)
		if err != nil {
			return fmt.Sprintf("❌ Could not load snapshot: %v", err)
		}
		if snap == nil {
			return fmt.Sprintf("📭 No snapshot for %s yet.", date)
		}
		return publisher.FormatDailyReport(snap)
	case "/state":
		st, err := s.Oracle.LatestState(ctx)
		if err != nil {
			return fmt.Sprintf("❌ Could not load state: %v", err)
		}
		return publisher.FormatState(st)
	case "/history":
		snaps, err := s.Oracle.History(ctx, historyDays)
		if err != nil {
			return fmt.Sprintf("❌ Could not load history: %v", err)
		}
		return publisher.FormatHistory(snaps)
	case "/run":
		res, err := s.runClosedDay()
		if err != nil {
			// runClosedDay already alerted
			return ""
		}
		return formatRunResult(res)
	default:
		return "Available commands:\n• /today  snapshot of the last closed day\n• /state  carried-forward state\n• /history  last 7 days\n• /run  compute the last closed day now"
	}
}

func formatRunResult(res *oracle.Result) string {
	snap := res.Snapshot
	switch {
	case res.Status == oracle.StatusAlreadyComputed:
		return fmt.Sprintf("ℹ️ Snapshot for %s was already computed: %d per holder.", snap.Date, snap.FinalEntitlement)
	case res.PublishErr != nil:
		return fmt.Sprintf("⚠️ Snapshot for %s computed (%d per holder) but publishing failed: %v",
			snap.Date, snap.FinalEntitlement, res.PublishErr)
	default:
		return fmt.Sprintf("✅ Snapshot for %s computed: %d per holder, %d total.",
			snap.Date, snap.FinalEntitlement, snap.TotalAllocated)
	}
}

func (s *Scheduler) trySend(text string) {
	if s.Alerter == nil {
		return
	}
	if err := s.Alerter.SendWithRetry(s.Ctx, text, 3); err != nil {
		s.log.Error("send alert failed", "error", err)
	}
}

// cronLogger adapts slog to cron's logger interface.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
