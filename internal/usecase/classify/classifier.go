// Package classify turns free-text analyst queries into a classification
// using a fixed rule table and field extractors. No model is involved.
package classify

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/victortong-git/opensoc-sub009/internal/domain/query"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/result"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/strategy"
	"github.com/victortong-git/opensoc-sub009/internal/metrics"
)

var suggestedStrategies = map[query.Type][]strategy.Strategy{
	query.SpecificRecord:   {strategy.SpecificRecord, strategy.StructuredFilter},
	query.StructuredFilter: {strategy.StructuredFilter, strategy.SemanticSearch},
	query.SemanticSearch:   {strategy.SemanticSearch, strategy.StructuredFilter},
	query.Hybrid:           {strategy.SemanticSearch, strategy.StructuredFilter, strategy.SpecificRecord},
}

var fallbackStrategies = map[query.Type][]strategy.Strategy{
	query.SpecificRecord:   {strategy.StructuredFilter, strategy.SemanticSearch},
	query.StructuredFilter: {strategy.SemanticSearch},
	query.SemanticSearch:   {strategy.StructuredFilter},
	query.Hybrid:           {strategy.SemanticSearch, strategy.StructuredFilter},
}

// Classifier scores queries against a rule table. Safe for concurrent use.
type Classifier struct {
	params Params
	rules  []Rule
	logger *zap.Logger
}

// New creates a classifier. A nil rules slice selects DefaultRules.
func New(params Params, rules []Rule, logger *zap.Logger) *Classifier {
	if rules == nil {
		rules = DefaultRules()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{params: params, rules: rules, logger: logger}
}

// Classify never fails: any internal fault yields query.Default.
func (c *Classifier) Classify(text, scope string) (cl query.Classification) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Classification failed, using default",
				zap.String("scope", scope),
				zap.Any("panic", r),
			)
			cl = query.Default()
		}
		metrics.ClassificationsTotal.WithLabelValues(string(cl.QueryType)).Inc()
	}()
	return c.classify(text)
}

func (c *Classifier) classify(text string) query.Classification {
	fields := extractFields(text)
	raw, matched := c.score(text)
	complexity := estimateComplexity(text, fields)

	if fields.HasIDs() {
		return c.build(query.SpecificRecord, c.params.IDOverrideConfidence, fields, complexity, matched)
	}

	weighted := make(map[query.Type]float64, len(raw))
	for t, s := range raw {
		weighted[t] = s * c.params.weight(t)
	}
	if fields.HasFilterFields() {
		weighted[query.StructuredFilter] += c.params.StructuredBoost
	}

	best, bestScore := query.SemanticSearch, 0.0
	for _, t := range query.Types() {
		if weighted[t] > bestScore {
			best, bestScore = t, weighted[t]
		}
	}

	conf := min(bestScore/c.params.ScoreDivisor, c.params.ScoreCap) +
		c.params.FieldBonus*float64(len(fields.Categories()))
	return c.build(best, conf, fields, complexity, matched)
}

func (c *Classifier) build(
	t query.Type, conf float64, fields query.Fields, complexity query.Complexity, matched []string,
) query.Classification {
	return query.Classification{
		QueryType:    t,
		Confidence:   result.Clamp01(conf),
		Fields:       fields,
		Suggested:    append([]strategy.Strategy(nil), suggestedStrategies[t]...),
		Fallback:     append([]strategy.Strategy(nil), fallbackStrategies[t]...),
		Complexity:   complexity,
		MatchedRules: matched,
	}
}

// score returns raw per-category scores and the names of matching rules
// as "category/name".
func (c *Classifier) score(text string) (map[query.Type]float64, []string) {
	raw := make(map[query.Type]float64, 4)
	var matched []string
	for _, r := range c.rules {
		if r.Pattern == nil {
			panic(fmt.Sprintf("rule %s/%s has no pattern", r.Category, r.Name))
		}
		if r.Pattern.MatchString(text) {
			raw[r.Category] += r.Weight
			matched = append(matched, string(r.Category)+"/"+r.Name)
		}
	}
	return raw, matched
}

func estimateComplexity(text string, fields query.Fields) query.Complexity {
	words := len(strings.Fields(text))
	cats := len(fields.Categories())
	switch {
	case words > 15 || cats >= 3:
		return query.Complex
	case words >= 7 || cats >= 2:
		return query.Medium
	}
	return query.Simple
}
