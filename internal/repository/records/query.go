package records

import (
	"strings"

	"github.com/victortong-git/opensoc-sub009/internal/domain/record"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/criteria"
)

// where accumulates AND-ed SQL conditions with their positional args.
type where struct {
	conds []string
	args  []any
}

func newWhere(t record.Type, scope string) *where {
	w := &where{}
	w.add("type = ?", string(t))
	if scope != "" {
		w.add("organization_id = ?", scope)
	}
	return w
}

func (w *where) add(cond string, args ...any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) sql() string {
	return strings.Join(w.conds, " AND ")
}

// applyCriteria mirrors criteria.Matches in SQL: Since inclusive, Until
// exclusive, case-insensitive status, domain and text.
func applyCriteria(w *where, c criteria.Criteria) {
	if c.Since != nil {
		w.add("created_at >= ?", c.Since.UTC().UnixNano())
	}
	if c.Until != nil {
		w.add("created_at < ?", c.Until.UTC().UnixNano())
	}

	switch {
	case c.Severity.Min > 0:
		w.add("severity >= ?", c.Severity.Min)
	case len(c.Severity.Values) > 0:
		w.add("severity IN ("+placeholders(len(c.Severity.Values))+")", toArgs(c.Severity.Values)...)
	}

	if len(c.Statuses) > 0 {
		w.add("status <> '' AND status COLLATE NOCASE IN ("+placeholders(len(c.Statuses))+")",
			toArgs(c.Statuses)...)
	}

	if c.HasNetwork() {
		var ors []string
		var args []any
		if len(c.IPAddresses) > 0 {
			ors = append(ors, "ip_address IN ("+placeholders(len(c.IPAddresses))+")")
			args = append(args, toArgs(c.IPAddresses)...)
		}
		if len(c.Domains) > 0 {
			ors = append(ors, "(domain <> '' AND domain COLLATE NOCASE IN ("+placeholders(len(c.Domains))+"))")
			args = append(args, toArgs(c.Domains)...)
		}
		w.add("("+strings.Join(ors, " OR ")+")", args...)
	}

	if c.TextContains != "" {
		needle := strings.ToLower(c.TextContains)
		w.add("(instr(lower(title), ?) > 0 OR instr(lower(description), ?) > 0)", needle, needle)
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func toArgs[T any](vs []T) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}
