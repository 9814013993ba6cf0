// Package monitor implements one check cycle: gate, page drive, captcha,
// extraction, and the deduplicated publish tail.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/bidwatcher/internal/bid"
	"github.com/JakeFAU/bidwatcher/internal/dedup"
	"github.com/JakeFAU/bidwatcher/internal/metrics"
)

// DefaultCycleTimeout bounds a whole cycle including browser startup.
const DefaultCycleTimeout = 2 * time.Minute

// Gate decides whether a cycle may run now.
type Gate interface {
	ShouldRun(now time.Time) bool
	Reason(now time.Time) string
}

// CaptchaSolver answers the captcha modal.
type CaptchaSolver interface {
	Solve(ctx context.Context, page bid.CaptchaPage) (string, error)
}

// Deps groups the collaborators a Monitor needs.
type Deps struct {
	Clock     bid.Clock
	Gate      Gate
	Browser   bid.Browser
	Driver    *Driver
	Solver    CaptchaSolver
	Cache     *dedup.Cache
	Publisher bid.Publisher
	IDs       bid.IDGenerator
}

// Options tunes cycle behavior.
type Options struct {
	Strategy     dedup.Strategy
	CycleTimeout time.Duration
}

// Result summarizes one cycle.
type Result struct {
	CycleID    string `json:"cycle_id,omitempty"`
	Skipped    bool   `json:"skipped"`
	Found      int    `json:"found"`
	Duplicates int    `json:"duplicates"`
	Published  int    `json:"published"`
	Failed     int    `json:"failed"`
	// Pending counts new records left unattempted because the cycle context ended.
	Pending int `json:"pending"`
}

// Status is the outcome of the most recent cycle.
type Status struct {
	At     time.Time `json:"at"`
	Result Result    `json:"result"`
	Error  string    `json:"error,omitempty"`
}

// Monitor runs check cycles. Cycles must not overlap; the scheduler guarantees this.
type Monitor struct {
	deps   Deps
	opts   Options
	logger *zap.Logger

	mu      sync.Mutex
	last    Status
	hasLast bool
}

// New constructs a Monitor.
func New(deps Deps, opts Options, logger *zap.Logger) (*Monitor, error) {
	switch {
	case deps.Clock == nil:
		return nil, errors.New("monitor: clock is required")
	case deps.Gate == nil:
		return nil, errors.New("monitor: gate is required")
	case deps.Browser == nil:
		return nil, bid.ErrNoBrowser
	case deps.Driver == nil:
		return nil, errors.New("monitor: driver is required")
	case deps.Solver == nil:
		return nil, errors.New("monitor: captcha solver is required")
	case deps.Cache == nil:
		return nil, errors.New("monitor: dedup cache is required")
	case deps.Publisher == nil:
		return nil, errors.New("monitor: publisher is required")
	}
	if opts.Strategy == "" {
		opts.Strategy = dedup.MarkBeforePublish
	}
	if opts.CycleTimeout <= 0 {
		opts.CycleTimeout = DefaultCycleTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{deps: deps, opts: opts, logger: logger}, nil
}

// RunCycle executes one full check. A gated-out cycle returns a skipped Result
// and no error. The browser session is released on every exit path.
func (m *Monitor) RunCycle(ctx context.Context) (Result, error) {
	now := m.deps.Clock.Now()
	if !m.deps.Gate.ShouldRun(now) {
		m.logger.Info("skipping cycle", zap.String("reason", m.deps.Gate.Reason(now)), zap.Time("now", now))
		metrics.ObserveCycle(metrics.OutcomeSkipped, 0)
		m.remember(now, Result{Skipped: true}, nil)
		return Result{Skipped: true}, nil
	}

	res := Result{CycleID: m.newCycleID()}
	logger := m.logger.With(zap.String("cycle_id", res.CycleID))
	logger.Info("cycle started")

	ctx, cancel := context.WithTimeout(ctx, m.opts.CycleTimeout)
	defer cancel()

	start := time.Now()
	err := m.runSession(ctx, logger, now, &res)
	elapsed := time.Since(start)
	if err != nil {
		err = fmt.Errorf("cycle %s: %w", res.CycleID, err)
		metrics.ObserveCycle(metrics.OutcomeFailed, elapsed)
		m.remember(now, res, err)
		return res, err
	}
	metrics.ObserveCycle(metrics.OutcomeSuccess, elapsed)
	m.remember(now, res, nil)
	logger.Info("cycle finished",
		zap.Int("found", res.Found),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("published", res.Published),
		zap.Duration("elapsed", elapsed),
	)
	return res, nil
}

func (m *Monitor) runSession(ctx context.Context, logger *zap.Logger, now time.Time, res *Result) error {
	session, err := m.deps.Browser.Open(ctx)
	if err != nil {
		return fmt.Errorf("open browser: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			logger.Warn("browser close failed", zap.Error(cerr))
		}
	}()

	if err := m.deps.Driver.Prepare(ctx, session, now); err != nil {
		return err
	}
	if _, err := m.deps.Solver.Solve(ctx, session); err != nil {
		return err
	}

	records, err := Extract(ctx, session)
	if err != nil {
		return err
	}
	res.Found = len(records)
	metrics.ObserveRecordsFound(len(records))
	logger.Debug("records extracted", zap.Int("count", len(records)))

	return m.publishNew(ctx, logger, records, res)
}

// publishNew publishes records that are not in the cache, in extraction order.
// A failed publish does not stop the remaining records, but an expired or
// cancelled context does: records not yet attempted stay unmarked so the next
// cycle picks them up.
func (m *Monitor) publishNew(ctx context.Context, logger *zap.Logger, records []bid.Record, res *Result) error {
	var errs []error
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			for _, rest := range records[i:] {
				if !m.deps.Cache.Contains(rest) {
					res.Pending++
				}
			}
			logger.Warn("publishing stopped", zap.Int("pending", res.Pending), zap.Error(err))
			errs = append(errs, fmt.Errorf("publish remaining records: %w", err))
			break
		}
		if m.deps.Cache.Contains(rec) {
			res.Duplicates++
			logger.Debug("record already published", recordFields(rec)...)
			continue
		}
		logger.Info("new record found", recordFields(rec)...)

		if m.opts.Strategy == dedup.MarkBeforePublish {
			m.deps.Cache.Add(rec)
		}
		if err := m.deps.Publisher.Publish(ctx, rec); err != nil {
			res.Failed++
			metrics.ObservePublish(false)
			logger.Error("publish failed", append(recordFields(rec), zap.Error(err))...)
			errs = append(errs, fmt.Errorf("publish %q: %w", rec.Name, err))
			continue
		}
		if m.opts.Strategy == dedup.MarkAfterPublish {
			m.deps.Cache.Add(rec)
		}
		res.Published++
		metrics.ObservePublish(true)
		logger.Info("record published", recordFields(rec)...)
	}
	metrics.SetCacheSize(m.deps.Cache.Len())
	return errors.Join(errs...)
}

// ClearCache empties the dedup cache. It runs from the daily scheduler job.
func (m *Monitor) ClearCache(context.Context) error {
	n := m.deps.Cache.Clear()
	metrics.ObserveCacheClear()
	m.logger.Info("dedup cache cleared", zap.Int("dropped", n))
	return nil
}

// LastStatus returns the most recent cycle outcome, if any cycle has run.
func (m *Monitor) LastStatus() (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, m.hasLast
}

func (m *Monitor) remember(at time.Time, res Result, err error) {
	st := Status{At: at, Result: res}
	if err != nil {
		st.Error = err.Error()
	}
	m.mu.Lock()
	m.last, m.hasLast = st, true
	m.mu.Unlock()
}

// CacheSize reports the number of records currently considered published.
func (m *Monitor) CacheSize() int {
	return m.deps.Cache.Len()
}

func (m *Monitor) newCycleID() string {
	if m.deps.IDs == nil {
		return ""
	}
	id, err := m.deps.IDs.NewID()
	if err != nil {
		m.logger.Warn("cycle id generation failed", zap.Error(err))
		return ""
	}
	return id
}

func recordFields(rec bid.Record) []zap.Field {
	return []zap.Field{
		zap.String("name", rec.Name),
		zap.String("nickname", rec.Nickname),
		zap.String("timestamp", rec.Timestamp),
		zap.String("contract_type", rec.ContractType),
		zap.String("photo", rec.Photo),
	}
}
