package classify

import (
	"regexp"

	"github.com/victortong-git/opensoc-sub009/internal/domain/query"
)

// Rule is one trigger pattern. A matching rule adds Weight to its category's
// raw score once, however many times the pattern occurs.
type Rule struct {
	Category query.Type
	Name     string
	Pattern  *regexp.Regexp
	Weight   float64
}

const (
	uuidPattern     = `[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`
	recordIDPattern = `(?:alt|inc|ast|ioc|pb)-\d{3,}`
	recordTypeWords = `(?:alert|incident|asset|indicator|ioc|playbook)`
	timeUnits       = `(?:minute|min|hour|hr|day|week|month)s?`
	timePresets     = `today|yesterday|this\s+week|this\s+month`
)

func rule(category query.Type, name, pattern string, weight float64) Rule {
	return Rule{Category: category, Name: name, Pattern: regexp.MustCompile(`(?i)` + pattern), Weight: weight}
}

// DefaultRules returns the stock rule table.
func DefaultRules() []Rule {
	return []Rule{
		rule(query.SpecificRecord, "uuid", `\b`+uuidPattern+`\b`, 3),
		rule(query.SpecificRecord, "record_id", `\b`+recordIDPattern+`\b`, 2),
		rule(query.SpecificRecord, "show_record",
			`\b(?:show|get|open|display|view|find)\s+(?:me\s+)?(?:the\s+)?`+recordTypeWords+`\s+#?\d+`, 1),
		rule(query.SpecificRecord, "record_reference", `\b`+recordTypeWords+`\s+(?:id\s*[:#]?|#)\s*[\w-]+`, 1),

		rule(query.StructuredFilter, "time_window", `\b(?:last|past|previous|within)\s+(?:\d+\s+)?`+timeUnits+`\b`, 1),
		rule(query.StructuredFilter, "time_preset", `\b(?:`+timePresets+`)\b`, 1),
		rule(query.StructuredFilter, "date", `\b\d{4}-\d{2}-\d{2}\b`, 1),
		rule(query.StructuredFilter, "severity_keyword", `\b(?:critical|high|medium|low|severity|priority)\b`, 1),
		rule(query.StructuredFilter, "status_keyword",
			`\b(?:open|closed|resolved|investigating|in[\s_-]progress|false[\s_-]positives?|escalated|contained)\b`, 1),
		rule(query.StructuredFilter, "ip_address", `\b(?:\d{1,3}\.){3}\d{1,3}\b`, 1),
		rule(query.StructuredFilter, "record_type_plural", `\b(?:alerts|incidents|assets|indicators|iocs|playbooks)\b`, 0.5),
		rule(query.StructuredFilter, "list_or_count", `^\s*(?:list|count|how\s+many|show\s+(?:me\s+)?all)\b`, 0.5),

		rule(query.SemanticSearch, "question_word", `^\s*(?:what|why|how|which|explain|describe)\b`, 1),
		rule(query.SemanticSearch, "concept",
			`\b(?:techniques?|tactics?|ttps?|behaviou?rs?|patterns?|ransomware|phishing|malware|`+
				`lateral\s+movement|exfiltration|persistence|privilege\s+escalation|attackers?|`+
				`threat\s+actors?|campaigns?)\b`, 1),
		rule(query.SemanticSearch, "similarity", `\b(?:similar|like|related|resembl\w*|comparable)\b`, 1),

		rule(query.Hybrid, "similar_within_time",
			`\b(?:similar|related)\b.*\b(?:last|past|`+timePresets+`)\b`, 1),
		rule(query.Hybrid, "similar_with_severity", `\b(?:similar|related)\b.*\b(?:critical|high|severity)\b`, 1),
		rule(query.Hybrid, "correlation", `\b(?:correlat\w*|connected\s+to|linked\s+to)\b`, 1),
	}
}
