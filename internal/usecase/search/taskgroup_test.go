package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/victortong-git/opensoc-sub009/internal/domain"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/result"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/strategy"
)

func newTestGroup(t *testing.T, timeout time.Duration) *TaskGroup {
	t.Helper()
	g, err := NewTaskGroup(4, timeout, nil)
	if err != nil {
		t.Fatalf("NewTaskGroup: %v", err)
	}
	t.Cleanup(g.Release)
	return g
}

func TestTaskGroup_SettleAll(t *testing.T) {
	g := newTestGroup(t, time.Second)
	boom := errors.New("boom")

	outcomes := g.Run(context.Background(), []Task{
		{Strategy: strategy.SemanticSearch, Run: func(context.Context) ([]result.Result, error) {
			return hits("s", 2, strategy.SemanticSearch, 0.6), nil
		}},
		{Strategy: strategy.StructuredFilter, Run: func(context.Context) ([]result.Result, error) {
			return nil, boom
		}},
		{Strategy: strategy.SpecificRecord, Run: func(context.Context) ([]result.Result, error) {
			panic("executor bug")
		}},
	})

	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].Failed() || len(outcomes[0].Results) != 2 {
		t.Errorf("semantic outcome = %+v", outcomes[0])
	}
	if outcomes[0].Confidence < 0.6-1e-9 || outcomes[0].Confidence > 0.6+1e-9 {
		t.Errorf("confidence = %f, want mean score 0.6", outcomes[0].Confidence)
	}
	if !errors.Is(outcomes[1].Err, boom) {
		t.Errorf("structured err = %v", outcomes[1].Err)
	}
	if !outcomes[2].Failed() {
		t.Error("panicking branch should be reported as failed")
	}
	for i, o := range outcomes {
		if o.Failed() && len(o.Results) != 0 {
			t.Errorf("outcome %d: failed branch kept results", i)
		}
	}
}

func TestTaskGroup_Timeout(t *testing.T) {
	g := newTestGroup(t, 50*time.Millisecond)
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	outcomes := g.Run(context.Background(), []Task{
		{Strategy: strategy.SemanticSearch, Run: func(context.Context) ([]result.Result, error) {
			<-release // ignores its context
			return nil, nil
		}},
		{Strategy: strategy.StructuredFilter, Run: func(context.Context) ([]result.Result, error) {
			return hits("f", 1, strategy.StructuredFilter, 0.8), nil
		}},
	})
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Run took %v, branch timeout not enforced", elapsed)
	}
	if !errors.Is(outcomes[0].Err, domain.ErrBranchTimeout) {
		t.Errorf("slow branch err = %v, want ErrBranchTimeout", outcomes[0].Err)
	}
	if outcomes[1].Failed() || len(outcomes[1].Results) != 1 {
		t.Errorf("fast branch = %+v", outcomes[1])
	}
}

func TestTaskGroup_PartialKeepsResults(t *testing.T) {
	g := newTestGroup(t, time.Second)
	outcomes := g.Run(context.Background(), []Task{
		{Strategy: strategy.SemanticSearch, Run: func(context.Context) ([]result.Result, error) {
			return hits("p", 1, strategy.SemanticSearch, 0.5), &PartialError{Errs: []error{errors.New("playbooks down")}}
		}},
	})
	o := outcomes[0]
	if o.Failed() || len(o.Results) != 1 || len(o.SourceErrs) != 1 {
		t.Errorf("outcome = %+v", o)
	}
}

func TestTaskGroup_Empty(t *testing.T) {
	g := newTestGroup(t, time.Second)
	if got := g.Run(context.Background(), nil); len(got) != 0 {
		t.Errorf("expected no outcomes, got %d", len(got))
	}
}
