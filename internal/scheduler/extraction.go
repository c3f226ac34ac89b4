package scheduler

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/kjannette/brent-backend/internal/models"
	"github.com/kjannette/brent-backend/internal/store"
)

type PriceFetcher interface {
	FetchDailyPrices(ctx context.Context) ([]models.PriceRecord, error)
}

type PriceStore interface {
	Persist(records []models.PriceRecord) (store.PersistOutcome, error)
}

// Mirror receives every fetched batch the store accepted. Implementations must
// ignore dates they already hold, so a missed batch is caught up next cycle.
type Mirror interface {
	RecordBatch(ctx context.Context, records []models.PriceRecord) (int, error)
}

type Notifier interface {
	Send(msg string)
}

type ExtractionConfig struct {
	Interval  time.Duration // e.g. 10 * 24 * time.Hour
	MaxCycles int           // 0 runs until ctx is done
	Mirror    Mirror
	Notifier  Notifier
	Out       io.Writer

	// Clock hooks for tests.
	Now   func() time.Time
	After func(time.Duration) <-chan time.Time
}

// CycleReport describes one fetch -> persist cycle.
type CycleReport struct {
	ID        string
	StartedAt time.Time
	Fetched   int
	Outcome   store.PersistOutcome
	Mirrored  int
	FetchErr  error
	StoreErr  error
	MirrorErr error
}

func (r CycleReport) Failed() bool {
	return r.FetchErr != nil || r.StoreErr != nil
}

// ExtractionScheduler runs the pipeline on the calling goroutine: once
// immediately, then every Interval. Cycles never overlap.
type ExtractionScheduler struct {
	fetcher PriceFetcher
	store   PriceStore
	cfg     ExtractionConfig
}

func NewExtractionScheduler(fetcher PriceFetcher, st PriceStore, cfg ExtractionConfig) *ExtractionScheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * 24 * time.Hour
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.After == nil {
		cfg.After = time.After
	}
	return &ExtractionScheduler{fetcher: fetcher, store: st, cfg: cfg}
}

// Run blocks until ctx is done or MaxCycles cycles have run. Failed cycles
// do not stop the loop.
func (s *ExtractionScheduler) Run(ctx context.Context) error {
	for cycles := 1; ; cycles++ {
		s.RunOnce(ctx)

		if s.cfg.MaxCycles > 0 && cycles >= s.cfg.MaxCycles {
			return nil
		}

		next := s.cfg.Now().Add(s.cfg.Interval)
		s.logf("Next extraction scheduled for %s", next.Format(time.DateTime))

		select {
		case <-ctx.Done():
			s.logf("Stopped")
			return ctx.Err()
		case <-s.cfg.After(s.cfg.Interval):
		}
	}
}

// RunOnce fetches, persists and reports. Errors are recorded in the report
// and never returned.
func (s *ExtractionScheduler) RunOnce(ctx context.Context) CycleReport {
	report := CycleReport{ID: uuid.NewString()[:8], StartedAt: s.cfg.Now()}
	s.logf("Running extraction at %s (run %s)", report.StartedAt.Format(time.DateTime), report.ID)

	records, err := s.fetcher.FetchDailyPrices(ctx)
	if err != nil {
		report.FetchErr = err
		s.notify(fmt.Sprintf("Failed to retrieve daily prices: %v", err))
		return report
	}
	report.Fetched = len(records)
	if len(records) == 0 {
		s.notify("Failed to retrieve daily prices: response had no usable entries")
		return report
	}

	outcome, err := s.store.Persist(records)
	if err != nil {
		report.StoreErr = err
		s.notify(fmt.Sprintf("Failed to save daily prices: %v", err))
		return report
	}
	report.Outcome = outcome

	if outcome.Written == 0 {
		s.notify("No new daily data to save")
	} else {
		s.notify(fmt.Sprintf("Saved %d new daily entries", outcome.Written))
		if rows := outcome.Rows; len(rows) > 0 {
			s.logf("Appended dates %s .. %s", rows[0].Date, rows[len(rows)-1].Date)
		}
	}

	if s.cfg.Mirror != nil {
		n, err := s.cfg.Mirror.RecordBatch(ctx, records)
		if err != nil {
			report.MirrorErr = err
			s.logf("Mirror write failed: %v", err)
		} else {
			report.Mirrored = n
			s.logf("Mirrored %d new rows to Postgres", n)
		}
	}
	return report
}

func (s *ExtractionScheduler) notify(msg string) {
	if s.cfg.Notifier != nil {
		s.cfg.Notifier.Send(msg)
		return
	}
	s.logf("%s", msg)
}

func (s *ExtractionScheduler) logf(format string, args ...any) {
	fmt.Fprintf(s.cfg.Out, "[EXTRACT] "+format+"\n", args...)
}
