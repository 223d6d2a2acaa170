package search

import (
	"errors"
	"math/rand/v2"
	"reflect"
	"testing"
	"time"

	"github.com/victortong-git/opensoc-sub009/internal/domain/record"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/method"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/result"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/strategy"
)

func outcome(s strategy.Strategy, conf float64, rs ...result.Result) Outcome {
	return Outcome{Strategy: s, Results: rs, Confidence: conf}
}

func TestConsolidate_MergeDropsDuplicates(t *testing.T) {
	outcomes := []Outcome{
		outcome(strategy.SemanticSearch, 0.5, hit("a", strategy.SemanticSearch, 0.5), hit("b", strategy.SemanticSearch, 0.4)),
		outcome(strategy.StructuredFilter, 0.8, hit("b", strategy.StructuredFilter, 0.8), hit("c", strategy.StructuredFilter, 0.8)),
	}
	c := Consolidate(outcomes, method.Merge, 20, testNow)
	if got := ids(c.Results); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("merge ids = %v", got)
	}
	if c.Results[1].Strategy != strategy.SemanticSearch {
		t.Error("merge should keep the first occurrence")
	}
}

func TestConsolidate_RankOrdering(t *testing.T) {
	outcomes := []Outcome{
		outcome(strategy.SemanticSearch, 0.6, hit("sem1", strategy.SemanticSearch, 0.7), hit("sem2", strategy.SemanticSearch, 0.5)),
		outcome(strategy.StructuredFilter, 0.8, hit("str1", strategy.StructuredFilter, 0.8)),
		outcome(strategy.SpecificRecord, 0.7, hit("spec1", strategy.SpecificRecord, 0.7)),
	}
	c := Consolidate(outcomes, method.Rank, 20, testNow)
	want := []string{"spec1", "str1", "sem1", "sem2"}
	if got := ids(c.Results); !reflect.DeepEqual(got, want) {
		t.Errorf("rank ids = %v, want %v", got, want)
	}
}

func TestConsolidate_RankSpecificFirstProperty(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	all := []strategy.Strategy{strategy.SemanticSearch, strategy.StructuredFilter, strategy.SpecificRecord}

	for i := range 200 {
		var outcomes []Outcome
		for j, s := range all {
			n := r.IntN(5)
			var rs []result.Result
			for k := range n {
				id := string(rune('a'+j)) + string(rune('a'+k))
				if r.IntN(4) == 0 {
					id = "shared"
				}
				rs = append(rs, hit(id, s, r.Float64()))
			}
			outcomes = append(outcomes, outcome(s, r.Float64(), rs...))
		}

		c := Consolidate(outcomes, method.Rank, 50, testNow)
		seenOther := false
		seen := map[string]bool{}
		for _, res := range c.Results {
			if seen[res.ID] {
				t.Fatalf("iteration %d: duplicate id %s", i, res.ID)
			}
			seen[res.ID] = true
			if res.Strategy == strategy.SpecificRecord && seenOther {
				t.Fatalf("iteration %d: specific result after non-specific: %v", i, ids(c.Results))
			}
			if res.Strategy != strategy.SpecificRecord {
				seenOther = true
			}
		}
	}
}

func TestConsolidate_FallbackPicksBestBranch(t *testing.T) {
	outcomes := []Outcome{
		// 0.9 * ln(2) ≈ 0.62
		outcome(strategy.SpecificRecord, 0.9, hit("x", strategy.SpecificRecord, 0.9)),
		// 0.5 * ln(5) ≈ 0.80
		outcome(strategy.SemanticSearch, 0.5, hits("s", 4, strategy.SemanticSearch, 0.5)...),
	}
	c := Consolidate(outcomes, method.Fallback, 20, testNow)
	if got := ids(c.Results); !reflect.DeepEqual(got, []string{"sa", "sb", "sc", "sd"}) {
		t.Errorf("fallback ids = %v", got)
	}
	if len(c.Breakdown) != 2 {
		t.Errorf("breakdown should list every branch, got %d", len(c.Breakdown))
	}
}

func TestConsolidate_FallbackTieGoesToFirst(t *testing.T) {
	outcomes := []Outcome{
		outcome(strategy.StructuredFilter, 0.8, hit("first", strategy.StructuredFilter, 0.8)),
		outcome(strategy.SpecificRecord, 0.8, hit("second", strategy.SpecificRecord, 0.8)),
	}
	c := Consolidate(outcomes, method.Fallback, 20, testNow)
	if got := ids(c.Results); !reflect.DeepEqual(got, []string{"first"}) {
		t.Errorf("fallback ids = %v", got)
	}
}

func TestConsolidate_Weighted(t *testing.T) {
	old := record.Record{ID: "old", Type: record.Alert, CreatedAt: testNow.Add(-30 * 24 * time.Hour)}
	fresh := record.Record{ID: "fresh", Type: record.Alert, CreatedAt: testNow}

	outcomes := []Outcome{
		outcome(strategy.SemanticSearch, 0.5, result.NewSimilar(&old, 0.7)),
		outcome(strategy.StructuredFilter, 0.8, result.New(&fresh, 0.75, strategy.StructuredFilter)),
		outcome(strategy.SpecificRecord, 0.7, hit("exact", strategy.SpecificRecord, 0.6)),
	}
	// old:   0.7 + 0.2*0.7            = 0.84
	// fresh: 0.75 + 0.1               = 0.85
	// exact: 0.6 + 0.3 + (0.1 - 0.01/24) ≈ 0.9996
	c := Consolidate(outcomes, method.Weighted, 20, testNow)
	want := []string{"exact", "fresh", "old"}
	if got := ids(c.Results); !reflect.DeepEqual(got, want) {
		t.Errorf("weighted ids = %v, want %v", got, want)
	}
}

func TestWeightedScore_FutureRecordGetsFullRecencyBonus(t *testing.T) {
	future := record.Record{ID: "f", Type: record.Alert, CreatedAt: testNow.Add(48 * time.Hour)}
	got := weightedScore(result.New(&future, 0.5, strategy.StructuredFilter), testNow)
	if got < 0.6-1e-9 || got > 0.6+1e-9 {
		t.Errorf("weightedScore = %f, want 0.6", got)
	}
}

func TestConsolidate_TruncatesAndCounts(t *testing.T) {
	outcomes := []Outcome{outcome(strategy.SemanticSearch, 0.5, hits("s", 8, strategy.SemanticSearch, 0.5)...)}
	for _, m := range []method.Method{method.Merge, method.Rank, method.Fallback, method.Weighted} {
		c := Consolidate(outcomes, m, 3, testNow)
		if len(c.Results) != 3 || c.TotalFound != 8 {
			t.Errorf("%s: len=%d total=%d, want 3/8", m, len(c.Results), c.TotalFound)
		}
	}
}

func TestConsolidate_FailedBranchesOnlyInBreakdown(t *testing.T) {
	outcomes := []Outcome{
		outcome(strategy.SemanticSearch, 0.5, hit("a", strategy.SemanticSearch, 0.5)),
		{Strategy: strategy.StructuredFilter, Err: errors.New("db down")},
		{
			Strategy:   strategy.SpecificRecord,
			Results:    []result.Result{hit("b", strategy.SpecificRecord, 0.95)},
			Confidence: 0.95,
			SourceErrs: []error{errors.New("assets: timeout")},
		},
	}
	c := Consolidate(outcomes, method.Rank, 20, testNow)
	if got := ids(c.Results); !reflect.DeepEqual(got, []string{"b", "a"}) {
		t.Errorf("ids = %v", got)
	}
	if len(c.Breakdown) != 3 {
		t.Fatalf("breakdown len = %d, want 3", len(c.Breakdown))
	}
	if st := c.Breakdown[1]; st.Error != "db down" || st.FoundCount != 0 {
		t.Errorf("failed stat = %+v", st)
	}
	if st := c.Breakdown[2]; st.FoundCount != 1 || len(st.SourceErrors) != 1 {
		t.Errorf("partial stat = %+v", st)
	}
}

func TestConsolidate_Empty(t *testing.T) {
	c := Consolidate(nil, method.Fallback, 20, testNow)
	if len(c.Results) != 0 || c.TotalFound != 0 || len(c.Breakdown) != 0 {
		t.Errorf("expected empty consolidation, got %+v", c)
	}
}
