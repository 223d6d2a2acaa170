package record

// Severity levels as stored on records. The scale has no level for 3:
// the historical data set maps "high" to 4, so exact matches on 3 only hit
// records that carried a numeric severity.
const (
	SeverityLow      = 1
	SeverityMedium   = 2
	SeverityHigh     = 4
	SeverityCritical = 5
)

var severityLevels = map[string]int{
	"low":      SeverityLow,
	"medium":   SeverityMedium,
	"high":     SeverityHigh,
	"critical": SeverityCritical,
}

// SeverityLevel maps a severity keyword to its numeric value.
func SeverityLevel(level string) (int, bool) {
	v, ok := severityLevels[normalizeSource(level)]
	return v, ok
}

// SeverityName maps a numeric severity back to its keyword, or "" when the
// value has no keyword.
func SeverityName(v int) string {
	for name, n := range severityLevels {
		if n == v {
			return name
		}
	}
	return ""
}
