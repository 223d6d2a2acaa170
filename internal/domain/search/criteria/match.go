package criteria

import (
	"slices"
	"strings"

	"github.com/victortong-git/opensoc-sub009/internal/domain/record"
)

// Matches evaluates the criteria against a record in memory. Since is
// inclusive, Until exclusive; text matching is case-insensitive over title
// and description.
func (c Criteria) Matches(r *record.Record) bool {
	if c.Since != nil && r.CreatedAt.Before(*c.Since) {
		return false
	}
	if c.Until != nil && !r.CreatedAt.Before(*c.Until) {
		return false
	}
	switch {
	case c.Severity.Min > 0:
		if r.Severity < c.Severity.Min {
			return false
		}
	case len(c.Severity.Values) > 0:
		if !slices.Contains(c.Severity.Values, r.Severity) {
			return false
		}
	}
	if len(c.Statuses) > 0 && !containsFold(c.Statuses, r.Status) {
		return false
	}
	if c.HasNetwork() && !slices.Contains(c.IPAddresses, r.IPAddress) && !containsFold(c.Domains, r.Domain) {
		return false
	}
	if c.TextContains != "" {
		needle := strings.ToLower(c.TextContains)
		if !strings.Contains(strings.ToLower(r.Title), needle) &&
			!strings.Contains(strings.ToLower(r.Description), needle) {
			return false
		}
	}
	return true
}

func containsFold(vals []string, v string) bool {
	if v == "" {
		return false
	}
	for _, s := range vals {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
