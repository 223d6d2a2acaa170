package search

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/victortong-git/opensoc-sub009/internal/domain/search/method"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/response"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/result"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/strategy"
)

// Weighted-method bonuses.
const (
	specificOriginBonus = 0.3
	similarityBonus     = 0.2
	recencyBonusMax     = 0.1
	recencyDecayPerDay  = 0.01
)

// Consolidated is the output of Consolidate.
type Consolidated struct {
	Results    []result.Result
	TotalFound int
	Breakdown  []response.StrategyStat
}

// Consolidate merges per-branch outcomes into one bounded, ordered list.
// Failed branches appear only in the breakdown. Every method drops duplicate
// ids, truncates to maxResults and reports the pre-truncation count.
func Consolidate(outcomes []Outcome, m method.Method, maxResults int, now time.Time) Consolidated {
	c := Consolidated{Breakdown: breakdown(outcomes)}

	var ok []Outcome
	for _, o := range outcomes {
		if !o.Failed() {
			ok = append(ok, o)
		}
	}

	var rs []result.Result
	switch m {
	case method.Merge:
		rs = dedupByID(flatten(ok))
	case method.Fallback:
		rs = pickBest(ok)
	case method.Weighted:
		rs = byWeightedScore(ok, now)
	default:
		rs = byRank(ok)
	}

	c.TotalFound = len(rs)
	if len(rs) > maxResults {
		rs = rs[:maxResults]
	}
	c.Results = rs
	return c
}

func breakdown(outcomes []Outcome) []response.StrategyStat {
	stats := make([]response.StrategyStat, 0, len(outcomes))
	for _, o := range outcomes {
		st := response.StrategyStat{Strategy: o.Strategy}
		if o.Failed() {
			st.Error = o.Err.Error()
		} else {
			st.FoundCount = len(o.Results)
			st.Confidence = o.Confidence
		}
		for _, err := range o.SourceErrs {
			st.SourceErrors = append(st.SourceErrors, err.Error())
		}
		stats = append(stats, st)
	}
	return stats
}

func flatten(os []Outcome) []result.Result {
	var out []result.Result
	for _, o := range os {
		out = append(out, o.Results...)
	}
	return out
}

// byRank orders specific-record hits first, then by the originating
// strategy's confidence, the result score and recency.
func byRank(os []Outcome) []result.Result {
	type ranked struct {
		r    result.Result
		conf float64
	}
	var all []ranked
	for _, o := range os {
		for _, r := range o.Results {
			all = append(all, ranked{r: r, conf: o.Confidence})
		}
	}
	slices.SortStableFunc(all, func(a, b ranked) int {
		if c := cmp.Compare(specificFirst(a.r), specificFirst(b.r)); c != 0 {
			return c
		}
		if c := cmp.Compare(b.conf, a.conf); c != 0 {
			return c
		}
		if c := cmp.Compare(b.r.Score, a.r.Score); c != 0 {
			return c
		}
		return b.r.CreatedAt.Compare(a.r.CreatedAt)
	})
	out := make([]result.Result, len(all))
	for i, a := range all {
		out[i] = a.r
	}
	return dedupByID(out)
}

func specificFirst(r result.Result) int {
	if r.Strategy == strategy.SpecificRecord {
		return 0
	}
	return 1
}

// pickBest returns the results of the single branch maximizing
// confidence * ln(count+1). Ties go to the earlier branch.
func pickBest(os []Outcome) []result.Result {
	best, bestScore := -1, -1.0
	for i, o := range os {
		s := o.Confidence * math.Log(float64(len(o.Results))+1)
		if s > bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 {
		return nil
	}
	return dedupByID(os[best].Results)
}

// byWeightedScore sorts by score + specific bonus + similarity bonus + a
// recency bonus decaying to zero over ten days.
func byWeightedScore(os []Outcome, now time.Time) []result.Result {
	type weighted struct {
		r     result.Result
		score float64
	}
	var all []weighted
	for _, r := range flatten(os) {
		all = append(all, weighted{r: r, score: weightedScore(r, now)})
	}
	slices.SortStableFunc(all, func(a, b weighted) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return b.r.CreatedAt.Compare(a.r.CreatedAt)
	})
	out := make([]result.Result, len(all))
	for i, a := range all {
		out[i] = a.r
	}
	return dedupByID(out)
}

func weightedScore(r result.Result, now time.Time) float64 {
	s := r.Score
	if r.Strategy == strategy.SpecificRecord {
		s += specificOriginBonus
	}
	if r.HasSimilarity() {
		s += similarityBonus * *r.Similarity
	}
	if !r.CreatedAt.IsZero() {
		ageDays := max(0, now.Sub(r.CreatedAt).Hours()/24)
		s += max(0, recencyBonusMax-ageDays*recencyDecayPerDay)
	}
	return s
}
