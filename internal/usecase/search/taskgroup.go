package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/victortong-git/opensoc-sub009/internal/domain"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/result"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/strategy"
	"github.com/victortong-git/opensoc-sub009/internal/metrics"
)

// DefaultBranchTimeout bounds a single branch of a search.
const DefaultBranchTimeout = 10 * time.Second

// Task is one branch submitted to a TaskGroup.
type Task struct {
	Strategy strategy.Strategy
	Run      func(ctx context.Context) ([]result.Result, error)
}

// Outcome is the settled result of one branch. A failed branch carries Err
// and no results; a partially failed branch keeps its results and lists the
// failed sources in SourceErrs.
type Outcome struct {
	Strategy   strategy.Strategy
	Results    []result.Result
	Confidence float64
	Err        error
	SourceErrs []error
	Duration   time.Duration
}

// Failed reports whether the branch produced nothing usable.
func (o Outcome) Failed() bool { return o.Err != nil }

// TaskGroup runs branches on a shared worker pool with settle-all semantics:
// every branch yields an Outcome and no failure cancels a sibling.
type TaskGroup struct {
	pool    *ants.Pool
	timeout time.Duration
	logger  *zap.Logger
}

// NewTaskGroup creates a task group backed by a pool of size workers.
func NewTaskGroup(size int, timeout time.Duration, logger *zap.Logger) (*TaskGroup, error) {
	if size < 1 {
		size = 1
	}
	if timeout <= 0 {
		timeout = DefaultBranchTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	return &TaskGroup{pool: pool, timeout: timeout, logger: logger}, nil
}

// Release stops the worker pool.
func (g *TaskGroup) Release() {
	g.pool.Release()
}

// Run executes all tasks and returns their outcomes in task order. A branch
// that exceeds the timeout is reported as failed with domain.ErrBranchTimeout
// even if its function has not returned yet.
func (g *TaskGroup) Run(ctx context.Context, tasks []Task) []Outcome {
	type pending struct {
		ctx    context.Context
		cancel context.CancelFunc
		done   chan Outcome
		start  time.Time
	}

	ps := make([]pending, len(tasks))
	for i, t := range tasks {
		bctx, cancel := context.WithTimeout(ctx, g.timeout)
		p := pending{ctx: bctx, cancel: cancel, done: make(chan Outcome, 1), start: time.Now()}
		ps[i] = p

		err := g.pool.Submit(func() {
			p.done <- runTask(bctx, t)
		})
		if err != nil {
			p.done <- Outcome{Strategy: t.Strategy, Err: fmt.Errorf("submit branch: %w", err)}
		}
	}

	outcomes := make([]Outcome, len(tasks))
	for i, p := range ps {
		var o Outcome
		select {
		case o = <-p.done:
		case <-p.ctx.Done():
			select {
			case o = <-p.done:
			default:
				o = Outcome{Strategy: tasks[i].Strategy, Err: timeoutErr(p.ctx.Err())}
			}
		}
		p.cancel()
		o.Duration = time.Since(p.start)
		if o.Failed() {
			metrics.BranchFailuresTotal.WithLabelValues(string(o.Strategy)).Inc()
			g.logger.Warn("Search branch failed",
				zap.String("strategy", string(o.Strategy)),
				zap.Duration("duration", o.Duration),
				zap.Error(o.Err),
			)
		} else if len(o.SourceErrs) > 0 {
			g.logger.Warn("Search branch partially failed",
				zap.String("strategy", string(o.Strategy)),
				zap.Errors("sources", o.SourceErrs),
			)
		}
		outcomes[i] = o
	}
	return outcomes
}

func runTask(ctx context.Context, t Task) (o Outcome) {
	o.Strategy = t.Strategy
	defer func() {
		if r := recover(); r != nil {
			o = Outcome{Strategy: t.Strategy, Err: fmt.Errorf("branch panicked: %v", r)}
		}
	}()

	res, err := t.Run(ctx)
	var partial *PartialError
	switch {
	case errors.As(err, &partial):
		o.SourceErrs = partial.Errs
	case err != nil:
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = errors.Join(timeoutErr(ctxErr), err)
		}
		o.Err = err
		return o
	}
	o.Results = res
	o.Confidence = meanScore(res)
	return o
}

func timeoutErr(ctxErr error) error {
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		return domain.ErrBranchTimeout
	}
	return ctxErr
}

func meanScore(rs []result.Result) float64 {
	if len(rs) == 0 {
		return 0
	}
	var sum float64
	for _, r := range rs {
		sum += r.Score
	}
	return sum / float64(len(rs))
}
