package search

import (
	"context"
	"fmt"
	"math"
	"slices"

	"go.uber.org/zap"

	"github.com/victortong-git/opensoc-sub009/internal/domain"
	"github.com/victortong-git/opensoc-sub009/internal/domain/query"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/result"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/strategy"
)

// Budgets are the shares of maxResults each parallel branch may return, and
// the fraction of the target below which sequential mode walks its fallbacks.
type Budgets struct {
	Semantic       float64 `yaml:"semantic"`
	Specific       float64 `yaml:"specific"`
	Structured     float64 `yaml:"structured"`
	ShortfallRatio float64 `yaml:"shortfall_ratio"`
}

// DefaultBudgets returns the stock shares.
func DefaultBudgets() Budgets {
	return Budgets{Semantic: 0.6, Specific: 0.2, Structured: 0.3, ShortfallRatio: 0.5}
}

// Combiner dispatches one or more executors through a TaskGroup.
type Combiner struct {
	group     *TaskGroup
	executors map[strategy.Strategy]Executor
	budgets   Budgets
	logger    *zap.Logger
}

// NewCombiner creates a combiner over the given executors.
func NewCombiner(group *TaskGroup, budgets Budgets, logger *zap.Logger, executors ...Executor) *Combiner {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := make(map[strategy.Strategy]Executor, len(executors))
	for _, e := range executors {
		m[e.Strategy()] = e
	}
	return &Combiner{group: group, executors: m, budgets: budgets, logger: logger}
}

// Single runs one executor at the full budget.
func (c *Combiner) Single(ctx context.Context, s strategy.Strategy, in Input) ([]Outcome, error) {
	t, err := c.task(s, in)
	if err != nil {
		return nil, err
	}
	return c.group.Run(ctx, []Task{t}), nil
}

// Parallel runs semantic search always, specific-record search when ids were
// extracted and structured search when criteria exist, all at once.
func (c *Combiner) Parallel(ctx context.Context, in Input) ([]Outcome, error) {
	type branch struct {
		s     strategy.Strategy
		share float64
		on    bool
	}
	branches := []branch{
		{strategy.SemanticSearch, c.budgets.Semantic, true},
		{strategy.SpecificRecord, c.budgets.Specific, in.Fields.HasIDs()},
		{strategy.StructuredFilter, c.budgets.Structured, in.Fields.HasStructured()},
	}

	var tasks []Task
	for _, b := range branches {
		if !b.on {
			continue
		}
		t, err := c.task(b.s, in.WithLimit(share(in.Limit, b.share)))
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return c.group.Run(ctx, tasks), nil
}

// Sequential runs the top suggested strategy at the full budget. When it
// returns fewer than ShortfallRatio of the target it walks the fallbacks in
// order, each asking only for the remaining shortfall, until the target is met.
func (c *Combiner) Sequential(ctx context.Context, in Input, cl query.Classification) ([]Outcome, error) {
	first := strategy.SemanticSearch
	if len(cl.Suggested) > 0 {
		first = cl.Suggested[0]
	}
	target := in.Limit

	outcomes, err := c.Single(ctx, first, in)
	if err != nil {
		return nil, err
	}
	found := countFound(outcomes)
	if float64(found) >= float64(target)*c.budgets.ShortfallRatio {
		return outcomes, nil
	}

	ran := []strategy.Strategy{first}
	for _, s := range cl.Fallback {
		if found >= target {
			break
		}
		if slices.Contains(ran, s) {
			continue
		}
		ran = append(ran, s)
		step, err := c.Single(ctx, s, in.WithLimit(target-found))
		if err != nil {
			return nil, err
		}
		c.logger.Debug("Sequential fallback step",
			zap.String("strategy", string(s)),
			zap.Int("requested", target-found),
			zap.Int("found", countFound(step)),
		)
		outcomes = append(outcomes, step...)
		found += countFound(step)
	}
	return outcomes, nil
}

func (c *Combiner) task(s strategy.Strategy, in Input) (Task, error) {
	e, ok := c.executors[s]
	if !ok {
		return Task{}, fmt.Errorf("%w: %s", domain.ErrNoExecutor, s)
	}
	return Task{
		Strategy: s,
		Run: func(ctx context.Context) ([]result.Result, error) {
			return e.Search(ctx, in)
		},
	}, nil
}

// share returns ceil(total*frac), at least 1. The epsilon absorbs float
// error so that 20*0.3 is 6, not 7.
func share(total int, frac float64) int {
	return max(1, int(math.Ceil(float64(total)*frac-1e-9)))
}

func countFound(os []Outcome) int {
	n := 0
	for _, o := range os {
		if !o.Failed() {
			n += len(o.Results)
		}
	}
	return n
}
