package daemon

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mousefad/klipper-timeout/internal/audit"
	"github.com/mousefad/klipper-timeout/internal/config"
	"github.com/mousefad/klipper-timeout/internal/filter"
	"github.com/mousefad/klipper-timeout/internal/fingerprint"
	"github.com/mousefad/klipper-timeout/internal/klipper"
	"github.com/mousefad/klipper-timeout/internal/store"
)

// Daemon owns the reconciliation loop: fetch live history, classify new
// entries, expire old ones, reconcile bookkeeping. All state (the expiry
// store, the compiled patterns) is owned by the single goroutine running
// Run; cron ticks and clipboard-update signals only request work through the
// kick channel.
type Daemon struct {
	cfg      *config.Config
	gateway  klipper.Gateway
	patterns *filter.Set
	tracked  *store.Store
	journal  *audit.Journal // optional, may be nil
	logger   *zap.Logger

	now     func() time.Time
	kicks   chan struct{}
	skipped atomic.Int64
}

func New(cfg *config.Config, gateway klipper.Gateway, patterns *filter.Set, journal *audit.Journal, logger *zap.Logger) *Daemon {
	return &Daemon{
		cfg:      cfg,
		gateway:  gateway,
		patterns: patterns,
		tracked:  store.New(),
		journal:  journal,
		logger:   logger,
		now:      time.Now,
		kicks:    make(chan struct{}, 1),
	}
}

// Run drives the loop until ctx is cancelled. Tick failures are transient:
// logged and retried on the next cycle.
func (d *Daemon) Run(ctx context.Context) error {
	d.logger.Info("starting clipboard expiry daemon",
		zap.Duration("expiry", d.cfg.Expiry),
		zap.Duration("interval", d.cfg.Interval))

	updates, err := d.gateway.SubscribeUpdates(ctx)
	if err != nil {
		d.logger.Warn("failed to subscribe to clipboard updates, falling back to polling only", zap.Error(err))
		updates = nil
	}

	schedule := cron.New()
	if _, err := schedule.AddFunc(fmt.Sprintf("@every %s", d.cfg.Interval), d.kick); err != nil {
		return fmt.Errorf("scheduling resync: %w", err)
	}
	schedule.Start()
	defer func() { <-schedule.Stop().Done() }()

	// first pass without waiting a full interval
	d.kick()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("shutting down", zap.Int64("skipped_ticks", d.skipped.Load()))
			return nil
		case _, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			d.kick()
		case <-d.kicks:
			if err := d.tick(ctx); err != nil {
				d.logger.Warn("tick failed, will retry on next cycle", zap.Error(err))
			}
		}
	}
}

// kick requests a tick. If one is already pending or running the request is
// dropped, so ticks never overlap.
func (d *Daemon) kick() {
	select {
	case d.kicks <- struct{}{}:
	default:
		skipped := d.skipped.Add(1)
		d.logger.Debug("tick already pending, skipping", zap.Int64("skipped_total", skipped))
	}
}

type removal struct {
	fp     fingerprint.Fingerprint
	reason audit.Reason
	age    time.Duration
}

// tick runs one fetch -> classify -> age-check -> reconcile cycle. The deny
// check precedes the age check, so a newly seen denied entry is removed
// without ever entering the store; the reconcile pass runs last. Store drops
// for removed entries commit only after the gateway rewrite succeeds, so an
// aborted tick leaves no partial state behind.
func (d *Daemon) tick(ctx context.Context) error {
	now := d.now()

	history, err := d.gateway.History(ctx)
	if err != nil {
		return err
	}

	live := make(map[fingerprint.Fingerprint]struct{}, len(history))
	var removals []removal
	var survivors []string

	for _, content := range history {
		fp := fingerprint.Of(content)
		if _, dup := live[fp]; dup {
			// Klipper deduplicates its history; tolerate repeats anyway
			continue
		}
		live[fp] = struct{}{}

		switch d.patterns.Classify(content) {
		case filter.Deny:
			d.logger.Info("removing denied entry", zap.String("fingerprint", fp.Short()))
			removals = append(removals, removal{fp: fp, reason: audit.ReasonDenied})
			continue
		case filter.Keep:
			if d.tracked.Observe(fp, now) {
				d.logger.Debug("tracking new protected entry", zap.String("fingerprint", fp.Short()))
			}
		case filter.Neutral:
			if d.tracked.Observe(fp, now) {
				d.logger.Debug("tracking new entry", zap.String("fingerprint", fp.Short()))
			}
			if age, ok := d.tracked.AgeOf(fp, now); ok && age >= d.cfg.Expiry {
				d.logger.Info("expiring entry",
					zap.String("fingerprint", fp.Short()),
					zap.Duration("age", age))
				removals = append(removals, removal{fp: fp, reason: audit.ReasonExpired, age: age})
				continue
			}
		}

		survivors = append(survivors, content)
	}

	if len(removals) > 0 {
		if err := d.removeEntries(ctx, survivors, removals); err != nil {
			return err
		}

		for _, r := range removals {
			d.tracked.Drop(r.fp)
			delete(live, r.fp)
		}
	}

	if dropped := d.tracked.Reconcile(live); dropped > 0 {
		d.logger.Debug("reconciled externally evicted entries", zap.Int("count", dropped))
	}

	return nil
}

// removeEntries performs one batched history rewrite covering every removal
// of this tick, then fixes up the selection and journals what was removed.
func (d *Daemon) removeEntries(ctx context.Context, survivors []string, removals []removal) error {
	selection, err := d.gateway.Selection(ctx)
	if err != nil {
		return fmt.Errorf("reading selection before rewrite: %w", err)
	}

	if err := d.gateway.Rewrite(ctx, survivors); err != nil {
		return err
	}

	if err := d.restoreSelection(ctx, selection, survivors, removals); err != nil {
		return err
	}

	if d.journal != nil {
		removedAt := d.now()
		for _, r := range removals {
			rec := audit.Record{
				Fingerprint: r.fp.Hex(),
				Reason:      r.reason,
				Age:         r.age,
				RemovedAt:   removedAt,
			}
			// a journal failure never blocks or undoes a removal
			if err := d.journal.Append(r.fp, rec); err != nil {
				d.logger.Warn("failed to journal removal", zap.Error(err))
			}
		}
	}

	return nil
}

// restoreSelection repairs the active clipboard value after a rewrite. The
// replay leaves the newest survivor selected; that is wrong when the user's
// selection survived but was not the newest entry, and when everything was
// removed the denied value must not linger as the active selection.
func (d *Daemon) restoreSelection(ctx context.Context, selection string, survivors []string, removals []removal) error {
	selFp := fingerprint.Of(selection)
	removed := false
	for _, r := range removals {
		if r.fp == selFp {
			removed = true
			break
		}
	}

	switch {
	case removed && len(survivors) == 0:
		if err := d.gateway.SetSelection(ctx, ""); err != nil {
			return fmt.Errorf("clearing selection after rewrite: %w", err)
		}
	case !removed && selection != "" && (len(survivors) == 0 || survivors[0] != selection):
		if err := d.gateway.SetSelection(ctx, selection); err != nil {
			return fmt.Errorf("restoring selection after rewrite: %w", err)
		}
	}

	return nil
}

// SkippedTicks reports how many tick requests were dropped because a tick
// was already pending or running.
func (d *Daemon) SkippedTicks() int64 {
	return d.skipped.Load()
}
