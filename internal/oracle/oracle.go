package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"FountainProtocol/internal/calculator"
	"FountainProtocol/internal/collector"
	"FountainProtocol/internal/metrics"
	"FountainProtocol/internal/model"
	"FountainProtocol/internal/publisher"
	"FountainProtocol/internal/store"
)

// Config wires the oracle's collaborators. Publisher is optional.
type Config struct {
	Logger    *slog.Logger
	Clock     clockwork.Clock
	Params    calculator.Params
	Source    collector.CountSource
	States    store.StateStore
	Snapshots store.SnapshotStore
	Publisher publisher.Publisher
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Source == nil {
		return errors.New("count source is required")
	}
	if cfg.States == nil || cfg.Snapshots == nil {
		return errors.New("state and snapshot stores are required")
	}
	if _, ok := cfg.Snapshots.(store.DayCommitter); !ok || !sameStore(cfg.States, cfg.Snapshots) {
		return fmt.Errorf("%w: state and snapshot stores must be the same store implementing CommitDay", ErrInvalidConfiguration)
	}
	if err := cfg.Params.Validate(); err != nil {
		return err
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Result is the outcome of a successful run. PublishErr is a warning only.
type Result struct {
	Status     Status
	Snapshot   *model.DailySnapshot
	Receipt    *model.PublishReceipt
	PublishErr error
}

// Published reports whether an audit record was accepted by any publisher.
func (r *Result) Published() bool { return r.Receipt != nil }

// Oracle computes and commits one snapshot per UTC day.
type Oracle struct {
	mu        sync.Mutex
	log       *slog.Logger
	clock     clockwork.Clock
	params    calculator.Params
	collector *collector.Collector
	states    store.StateStore
	snapshots store.SnapshotStore
	publisher publisher.Publisher
}

func New(cfg Config) (*Oracle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Oracle{
		log:       cfg.Logger,
		clock:     cfg.Clock,
		params:    cfg.Params,
		collector: collector.NewCollector(cfg.Logger, cfg.Source, cfg.Clock),
		states:    cfg.States,
		snapshots: cfg.Snapshots,
		publisher: cfg.Publisher,
	}, nil
}

// Params returns the formula parameters the oracle runs with.
func (o *Oracle) Params() calculator.Params { return o.params }

// ClosedDay returns the most recent UTC day that has fully ended. Donor badges
// are only complete for a day once its window has closed.
func (o *Oracle) ClosedDay() string { return model.DayOf(o.clock.Now().AddDate(0, 0, -1)) }

// RunClosedDay runs the snapshot for the most recent fully ended UTC day.
func (o *Oracle) RunClosedDay(ctx context.Context) (*Result, error) {
	return o.Run(ctx, o.ClosedDay())
}

// Run computes the snapshot for date. A date that already has a snapshot is
// returned unchanged with StatusAlreadyComputed and nothing is re-fetched or
// re-published. A count source failure returns ErrInputUnavailable with no
// state written.
func (o *Oracle) Run(ctx context.Context, date string) (*Result, error) {
	if _, err := model.ParseDay(date); err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	start := time.Now()
	defer func() { metrics.OracleRunDuration.Observe(time.Since(start).Seconds()) }()

	existing, err := o.snapshots.GetSnapshot(ctx, date)
	if err != nil {
		metrics.OracleRunsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("load snapshot %s: %w", date, err)
	}
	if existing != nil {
		metrics.OracleRunsTotal.WithLabelValues("already_computed").Inc()
		o.log.Info("snapshot already computed", "date", date, "final_entitlement", existing.FinalEntitlement)
		return &Result{Status: StatusAlreadyComputed, Snapshot: existing}, nil
	}

	counts, err := o.collector.Collect(ctx, date)
	if err != nil {
		metrics.OracleRunsTotal.WithLabelValues("input_unavailable").Inc()
		o.log.Error("counts unavailable", "date", date, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrInputUnavailable, err)
	}

	prior, err := o.states.GetPriorState(ctx, date)
	if err != nil {
		metrics.OracleRunsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("load prior state for %s: %w", date, err)
	}
	if prior == nil {
		st := model.InitialState()
		prior = &st
		o.log.Info("no prior state, starting from defaults", "date", date)
	}

	snap, next := Compute(o.params, date, *counts, *prior, o.clock.Now())

	if err := o.commit(ctx, &next, snap); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			// another writer committed this day first
			stored, gerr := o.snapshots.GetSnapshot(ctx, date)
			if gerr == nil && stored != nil {
				metrics.OracleRunsTotal.WithLabelValues("already_computed").Inc()
				o.log.Warn("snapshot committed concurrently", "date", date)
				return &Result{Status: StatusAlreadyComputed, Snapshot: stored}, nil
			}
		}
		metrics.OracleRunsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("commit day %s: %w", date, err)
	}

	metrics.OracleRunsTotal.WithLabelValues("computed").Inc()
	metrics.FinalEntitlement.Set(float64(snap.FinalEntitlement))
	metrics.ActiveHolders.Set(float64(snap.ActiveHolders))
	metrics.NewDonors.Set(float64(snap.NewDonors))
	metrics.CumulativeScore.Set(snap.CumulativeScore.InexactFloat64())

	o.log.Info("snapshot computed",
		"date", date,
		"active_holders", snap.ActiveHolders,
		"new_donors", snap.NewDonors,
		"growth_rate", snap.GrowthRate.StringFixed(4),
		"cumulative_score", snap.CumulativeScore.String(),
		"growth_multiplier", snap.GrowthMultiplier.String(),
		"donor_booster", snap.DonorBooster,
		"final_entitlement", snap.FinalEntitlement,
		"total_allocated", snap.TotalAllocated,
	)

	res := &Result{Status: StatusComputed, Snapshot: snap}
	if o.publisher != nil {
		receipt, err := o.publisher.Publish(ctx, snap)
		res.Receipt = receipt
		if err != nil {
			res.PublishErr = fmt.Errorf("%w: %w", ErrPublishFailed, err)
			o.log.Warn("audit publication failed, snapshot kept", "date", date, "error", err)
		}
	}
	return res, nil
}

// commit writes the day's state and snapshot in one step. New guarantees the
// snapshot store is a DayCommitter.
func (o *Oracle) commit(ctx context.Context, st *model.OracleState, snap *model.DailySnapshot) error {
	return o.snapshots.(store.DayCommitter).CommitDay(ctx, st, snap)
}

func sameStore(states store.StateStore, snapshots store.SnapshotStore) bool {
	s, ok := snapshots.(store.StateStore)
	return ok && s == states
}

// Snapshot returns the committed snapshot for date, or nil.
func (o *Oracle) Snapshot(ctx context.Context, date string) (*model.DailySnapshot, error) {
	if _, err := model.ParseDay(date); err != nil {
		return nil, err
	}
	return o.snapshots.GetSnapshot(ctx, date)
}

// LatestState returns the most recent committed state, or nil before the first run.
func (o *Oracle) LatestState(ctx context.Context) (*model.OracleState, error) {
	tomorrow := model.DayOf(o.clock.Now().AddDate(0, 0, 1))
	return o.states.GetPriorState(ctx, tomorrow)
}

// History returns up to limit snapshots, newest first.
func (o *Oracle) History(ctx context.Context, limit int) ([]*model.DailySnapshot, error) {
	lister, ok := o.snapshots.(store.SnapshotLister)
	if !ok {
		return nil, errors.New("snapshot store does not support listing")
	}
	return lister.ListSnapshots(ctx, limit)
}
