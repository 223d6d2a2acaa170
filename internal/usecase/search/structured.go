package search

import (
	"context"
	"slices"
	"time"

	"github.com/victortong-git/opensoc-sub009/internal/domain/query"
	"github.com/victortong-git/opensoc-sub009/internal/domain/record"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/criteria"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/result"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/strategy"
)

// Per-type confidences of structured hits.
const (
	eventHitConfidence = 0.8
	assetHitConfidence = 0.75
)

// StructuredSearcher filters alerts, incidents and, when network fields are
// present, assets by criteria derived from the extracted fields.
type StructuredSearcher struct {
	store RecordStore
}

// NewStructuredSearcher creates a structured-filter searcher.
func NewStructuredSearcher(store RecordStore) *StructuredSearcher {
	return &StructuredSearcher{store: store}
}

// Strategy implements Executor.
func (s *StructuredSearcher) Strategy() strategy.Strategy { return strategy.StructuredFilter }

// Search issues the criteria against each applicable type concurrently.
// Results are ordered most recent first.
func (s *StructuredSearcher) Search(ctx context.Context, in Input) ([]result.Result, error) {
	crit := BuildCriteria(in.Fields, in.Text, in.Now)

	types := []record.Type{record.Alert, record.Incident}
	if crit.HasNetwork() {
		types = append(types, record.Asset)
	}
	types = slices.DeleteFunc(types, func(t record.Type) bool {
		return !slices.Contains(in.DataSources, t)
	})

	pages, failed := fanOut(ctx, types, func(ctx context.Context, t record.Type) ([]result.Result, error) {
		c, conf := crit, eventHitConfidence
		if t == record.Asset {
			c, conf = assetCriteria(crit), assetHitConfidence
		}
		page, err := s.store.FindByCriteria(ctx, in.Scope, t, c, in.Limit, 0)
		if err != nil {
			return nil, err
		}
		out := make([]result.Result, 0, len(page.Records))
		for i := range page.Records {
			out = append(out, result.New(&page.Records[i], conf, strategy.StructuredFilter))
		}
		return out, nil
	})

	var out []result.Result
	for _, p := range pages {
		out = append(out, p...)
	}
	slices.SortStableFunc(out, func(a, b result.Result) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if len(out) > in.Limit {
		out = out[:in.Limit]
	}
	return settle(out, failed, len(types))
}

// assetCriteria keeps only the attributes assets carry.
func assetCriteria(c criteria.Criteria) criteria.Criteria {
	return criteria.Criteria{IPAddresses: c.IPAddresses, Domains: c.Domains}
}

// BuildCriteria derives a record filter from extracted fields. When nothing
// can be derived it falls back to a "contains" filter on the raw text.
// Only the first time range is used.
func BuildCriteria(f query.Fields, rawText string, now time.Time) criteria.Criteria {
	var c criteria.Criteria

	if len(f.TimeRanges) > 0 {
		c.Since, c.Until = timeWindow(f.TimeRanges[0], now)
	}

	for _, sv := range f.Severity {
		v := sv.Value
		if sv.Level != "" {
			lv, ok := record.SeverityLevel(sv.Level)
			if !ok {
				continue
			}
			v = lv
		}
		if sv.AtLeast {
			if c.Severity.Min == 0 || v < c.Severity.Min {
				c.Severity.Min = v
			}
			continue
		}
		if !slices.Contains(c.Severity.Values, v) {
			c.Severity.Values = append(c.Severity.Values, v)
		}
	}

	c.Statuses = append(c.Statuses, f.Status...)
	for _, n := range f.Network {
		if n.IP != "" {
			c.IPAddresses = append(c.IPAddresses, n.IP)
		}
		if n.Domain != "" {
			c.Domains = append(c.Domains, n.Domain)
		}
	}

	if c.IsEmpty() {
		c.TextContains = rawText
	}
	return c
}

func timeWindow(tr query.TimeRange, now time.Time) (since, until *time.Time) {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var from, to time.Time
	switch {
	case tr.Unit != "":
		from = subtract(now, tr.Value, tr.Unit)
	case tr.Preset == query.PresetToday:
		from = day
	case tr.Preset == query.PresetYesterday:
		from, to = day.AddDate(0, 0, -1), day
	case tr.Preset == query.PresetThisWeek:
		offset := (int(day.Weekday()) + 6) % 7 // weeks start on Monday
		from = day.AddDate(0, 0, -offset)
	case tr.Preset == query.PresetThisMonth:
		from = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	case tr.Date != "":
		d, err := time.Parse(time.DateOnly, tr.Date)
		if err != nil {
			return nil, nil
		}
		from = d
		if !tr.Since {
			to = d.AddDate(0, 0, 1)
		}
	default:
		return nil, nil
	}

	since = &from
	if !to.IsZero() {
		until = &to
	}
	return since, until
}

func subtract(now time.Time, v int, unit string) time.Time {
	switch unit {
	case query.UnitMinute:
		return now.Add(-time.Duration(v) * time.Minute)
	case query.UnitHour:
		return now.Add(-time.Duration(v) * time.Hour)
	case query.UnitWeek:
		return now.AddDate(0, 0, -7*v)
	case query.UnitMonth:
		return now.AddDate(0, -v, 0)
	}
	return now.AddDate(0, 0, -v)
}
