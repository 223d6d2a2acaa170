package search

import (
	"context"
	"errors"
	"regexp"
	"slices"
	"strings"

	"github.com/victortong-git/opensoc-sub009/internal/domain"
	"github.com/victortong-git/opensoc-sub009/internal/domain/record"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/criteria"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/result"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/strategy"
)

// Fixed confidences of the three lookup stages.
const (
	uuidHitConfidence     = 0.95
	recordIDHitConfidence = 0.85
	textHitConfidence     = 0.7
)

var recordIDPrefixes = map[string]record.Type{
	"ALT": record.Alert,
	"INC": record.Incident,
	"AST": record.Asset,
	"IOC": record.Indicator,
	"PB":  record.Playbook,
}

// command words stripped before the free-text lookup
var fillerRe = regexp.MustCompile(`(?i)\b(?:show|get|open|display|view|find|me|the|a|an|details?|of|for|about|` +
	`alerts?|incidents?|assets?|indicators?|iocs?|playbooks?|id|record)\b|[#:]`)

// SpecificSearcher resolves queries that name a single record.
type SpecificSearcher struct {
	store RecordStore
}

// NewSpecificSearcher creates a specific-record searcher.
func NewSpecificSearcher(store RecordStore) *SpecificSearcher {
	return &SpecificSearcher{store: store}
}

// Strategy implements Executor.
func (s *SpecificSearcher) Strategy() strategy.Strategy { return strategy.SpecificRecord }

// Search tries UUID lookups, then prefixed record ids, then, only when no id
// matched, a free-text lookup. No match anywhere is an empty result.
func (s *SpecificSearcher) Search(ctx context.Context, in Input) ([]result.Result, error) {
	var (
		out     []result.Result
		errs    []error
		attempt int
	)
	for _, id := range in.Fields.UUIDs() {
		hits, failed := fanOut(ctx, in.DataSources, func(ctx context.Context, t record.Type) (*record.Record, error) {
			return s.lookup(ctx, in.Scope, t, id)
		})
		out = appendHits(out, hits, uuidHitConfidence)
		errs = append(errs, failed...)
		attempt += len(in.DataSources)
	}

	for _, id := range in.Fields.RecordIDs() {
		t, ok := recordTypeForID(id)
		if !ok || !slices.Contains(in.DataSources, t) {
			continue
		}
		attempt++
		rec, err := s.lookup(ctx, in.Scope, t, id)
		if err != nil {
			errs = append(errs, &domain.SourceError{Source: string(t), Err: err})
			continue
		}
		out = appendHits(out, []*record.Record{rec}, recordIDHitConfidence)
	}

	if len(out) == 0 {
		if text := residualText(in); text != "" {
			hits, failed := fanOut(ctx, in.DataSources, func(ctx context.Context, t record.Type) (record.Page, error) {
				return s.store.FindByCriteria(ctx, in.Scope, t, criteria.Criteria{TextContains: text}, in.Limit, 0)
			})
			for _, page := range hits {
				for i := range page.Records {
					out = append(out, result.New(&page.Records[i], textHitConfidence, strategy.SpecificRecord))
				}
			}
			errs = append(errs, failed...)
			attempt += len(in.DataSources)
		}
	}

	out = dedupByID(out)
	if len(out) > in.Limit {
		out = out[:in.Limit]
	}
	return settle(out, errs, attempt)
}

// lookup returns nil, nil on a miss.
func (s *SpecificSearcher) lookup(ctx context.Context, scope string, t record.Type, id string) (*record.Record, error) {
	rec, err := s.store.FindByID(ctx, scope, t, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func appendHits(out []result.Result, hits []*record.Record, conf float64) []result.Result {
	for _, rec := range hits {
		if rec != nil {
			out = append(out, result.New(rec, conf, strategy.SpecificRecord))
		}
	}
	return out
}

func recordTypeForID(id string) (record.Type, bool) {
	prefix, _, ok := strings.Cut(id, "-")
	if !ok {
		return "", false
	}
	t, ok := recordIDPrefixes[strings.ToUpper(prefix)]
	return t, ok
}

// residualText strips extracted ids and command words from the query.
func residualText(in Input) string {
	text := in.Text
	for _, id := range in.Fields.IDs {
		for _, v := range []string{id.UUID, id.RecordID} {
			if v != "" {
				text = replaceFold(text, v)
			}
		}
	}
	text = fillerRe.ReplaceAllString(text, " ")
	return strings.Join(strings.Fields(text), " ")
}

func replaceFold(s, old string) string {
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(old))
	return re.ReplaceAllString(s, " ")
}

func dedupByID(in []result.Result) []result.Result {
	seen := make(map[string]struct{}, len(in))
	out := make([]result.Result, 0, len(in))
	for _, r := range in {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}
