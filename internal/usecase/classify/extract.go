package classify

import (
	"net/netip"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/victortong-git/opensoc-sub009/internal/domain/query"
	"github.com/victortong-git/opensoc-sub009/internal/domain/record"
)

var (
	relativeTimeRe = regexp.MustCompile(
		`(?i)\b(?:last|past|previous|within(?:\s+the\s+(?:last|past))?)\s+(\d+)\s+(minute|min|hour|hr|day|week|month)s?\b`)
	singleUnitRe = regexp.MustCompile(`(?i)\b(?:last|past|previous)\s+(minute|hour|day|week|month)\b`)
	presetRe     = regexp.MustCompile(`(?i)\b(today|yesterday|this\s+week|this\s+month)\b`)
	dateRe       = regexp.MustCompile(`(?i)\b(?:(since|after|from)\s+)?(\d{4}-\d{2}-\d{2})\b`)

	severityWordRe = regexp.MustCompile(
		`(?i)\b(at\s+least\s+)?(critical|high|medium|low)\b(\s*\+|\s+(?:or|and)\s+(?:above|higher|more))?`)
	severityNumRe = regexp.MustCompile(`(?i)\bseverity\s*(>=|>|=|:|of|is)?\s*([1-5])\b`)

	statusRe = regexp.MustCompile(
		`(?i)\b(open|closed|resolved|investigating|in[\s_-]progress|false[\s_-]positives?|escalated|contained)\b`)

	ipv4Re   = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	domainRe = regexp.MustCompile(`(?i)\b((?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+` +
		`(?:com|net|org|io|ru|cn|info|biz|xyz|top|co|us|uk|de|gov|edu|onion|local|internal))\b`)

	uuidRe     = regexp.MustCompile(`(?i)\b` + uuidPattern + `\b`)
	recordIDRe = regexp.MustCompile(`(?i)\b` + recordIDPattern + `\b`)
)

var unitAliases = map[string]string{
	"minute": query.UnitMinute,
	"min":    query.UnitMinute,
	"hour":   query.UnitHour,
	"hr":     query.UnitHour,
	"day":    query.UnitDay,
	"week":   query.UnitWeek,
	"month":  query.UnitMonth,
}

// extractFields runs every extractor independently of rule scoring.
func extractFields(text string) query.Fields {
	return query.Fields{
		TimeRanges: extractTimeRanges(text),
		Severity:   extractSeverity(text),
		Status:     extractStatus(text),
		Network:    extractNetwork(text),
		IDs:        extractIDs(text),
	}
}

func extractTimeRanges(text string) []query.TimeRange {
	var out []query.TimeRange
	for _, m := range relativeTimeRe.FindAllStringSubmatch(text, -1) {
		v, err := strconv.Atoi(m[1])
		if err != nil || v <= 0 {
			continue
		}
		out = appendUnique(out, query.TimeRange{Value: v, Unit: unitAliases[strings.ToLower(m[2])]})
	}
	for _, m := range singleUnitRe.FindAllStringSubmatch(text, -1) {
		out = appendUnique(out, query.TimeRange{Value: 1, Unit: unitAliases[strings.ToLower(m[1])]})
	}
	for _, m := range presetRe.FindAllStringSubmatch(text, -1) {
		preset := strings.Join(strings.Fields(strings.ToLower(m[1])), "_")
		out = appendUnique(out, query.TimeRange{Preset: preset})
	}
	for _, m := range dateRe.FindAllStringSubmatch(text, -1) {
		if _, err := time.Parse(time.DateOnly, m[2]); err != nil {
			continue
		}
		out = appendUnique(out, query.TimeRange{Date: m[2], Since: m[1] != ""})
	}
	return out
}

func extractSeverity(text string) []query.SeverityValue {
	var out []query.SeverityValue
	for _, m := range severityWordRe.FindAllStringSubmatch(text, -1) {
		out = appendUnique(out, query.SeverityValue{
			Level:   strings.ToLower(m[2]),
			AtLeast: m[1] != "" || m[3] != "",
		})
	}
	for _, m := range severityNumRe.FindAllStringSubmatch(text, -1) {
		v, _ := strconv.Atoi(m[2])
		sv := query.SeverityValue{Value: v}
		switch m[1] {
		case ">=":
			sv.AtLeast = true
		case ">":
			sv.AtLeast = true
			sv.Value = min(v+1, record.SeverityCritical)
		}
		out = appendUnique(out, sv)
	}
	return out
}

func extractStatus(text string) []string {
	var out []string
	for _, m := range statusRe.FindAllStringSubmatch(text, -1) {
		s := strings.ToLower(m[1])
		switch {
		case s != "investigating" && strings.HasPrefix(s, "in"):
			s = "in_progress"
		case strings.HasPrefix(s, "false"):
			s = "false_positive"
		}
		out = appendUnique(out, s)
	}
	return out
}

func extractNetwork(text string) []query.NetworkValue {
	var out []query.NetworkValue
	for _, m := range ipv4Re.FindAllString(text, -1) {
		addr, err := netip.ParseAddr(m)
		if err != nil || !addr.Is4() {
			continue
		}
		out = appendUnique(out, query.NetworkValue{IP: addr.String()})
	}
	for _, m := range domainRe.FindAllStringSubmatch(text, -1) {
		out = appendUnique(out, query.NetworkValue{Domain: strings.ToLower(m[1])})
	}
	return out
}

func extractIDs(text string) []query.IDValue {
	var out []query.IDValue
	for _, m := range uuidRe.FindAllString(text, -1) {
		id, err := uuid.Parse(m)
		if err != nil {
			continue
		}
		out = appendUnique(out, query.IDValue{UUID: id.String()})
	}
	for _, m := range recordIDRe.FindAllString(text, -1) {
		out = appendUnique(out, query.IDValue{RecordID: strings.ToUpper(m)})
	}
	return out
}

func appendUnique[T comparable](s []T, v T) []T {
	for _, e := range s {
		if e == v {
			return s
		}
	}
	return append(s, v)
}
