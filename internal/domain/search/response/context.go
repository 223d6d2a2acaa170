package response

import (
	"fmt"
	"sort"
	"strings"
)

// payload keys rendered first, in this order; the rest follow alphabetically.
var leadingKeys = []string{"title", "severity_level", "status", "category", "description"}

// ContextText renders the results as the plain-text context block handed to
// a generation provider. Returns "" when there are no results.
func (r *Response) ContextText() string {
	if r == nil || len(r.Results) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Retrieved %d of %d matching records (strategy: %s).\n",
		len(r.Results), r.TotalFound, r.StrategyUsed)
	for i, res := range r.Results {
		fmt.Fprintf(&b, "\n[%d] %s %s (score %.2f, via %s)\n", i+1, res.RecordType, res.ID, res.Score, res.Strategy)
		seen := make(map[string]bool, len(res.Payload))
		for _, k := range leadingKeys {
			if v, ok := res.Payload[k]; ok && v != "" {
				fmt.Fprintf(&b, "  %s: %v\n", k, v)
				seen[k] = true
			}
		}
		rest := make([]string, 0, len(res.Payload))
		for k := range res.Payload {
			if !seen[k] {
				rest = append(rest, k)
			}
		}
		sort.Strings(rest)
		for _, k := range rest {
			if v := res.Payload[k]; v != "" {
				fmt.Fprintf(&b, "  %s: %v\n", k, v)
			}
		}
	}
	return b.String()
}
