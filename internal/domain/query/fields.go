package query

// FieldCategory names one group of extracted fields.
type FieldCategory string

// Field category constants.
const (
	TimeRanges FieldCategory = "time_ranges"
	Severity   FieldCategory = "severity"
	Status     FieldCategory = "status"
	Network    FieldCategory = "network"
	IDs        FieldCategory = "ids"
)

// Time units understood by TimeRange.
const (
	UnitMinute = "minute"
	UnitHour   = "hour"
	UnitDay    = "day"
	UnitWeek   = "week"
	UnitMonth  = "month"
)

// Time presets understood by TimeRange.
const (
	PresetToday     = "today"
	PresetYesterday = "yesterday"
	PresetThisWeek  = "this_week"
	PresetThisMonth = "this_month"
)

// TimeRange is exactly one of: a relative offset (Value+Unit), a Preset,
// or a calendar Date (YYYY-MM-DD). Since widens a Date to "from that day on".
type TimeRange struct {
	Value  int    `json:"value,omitempty"`
	Unit   string `json:"unit,omitempty"`
	Preset string `json:"preset,omitempty"`
	Date   string `json:"date,omitempty"`
	Since  bool   `json:"since,omitempty"`
}

// SeverityValue is either a keyword Level or a numeric Value.
// AtLeast turns it into a minimum threshold.
type SeverityValue struct {
	Level   string `json:"level,omitempty"`
	Value   int    `json:"value,omitempty"`
	AtLeast bool   `json:"at_least,omitempty"`
}

// NetworkValue is either an IP or a Domain.
type NetworkValue struct {
	IP     string `json:"ip,omitempty"`
	Domain string `json:"domain,omitempty"`
}

// IDValue is either a UUID or a prefixed RecordID such as ALT-00123.
type IDValue struct {
	UUID     string `json:"uuid,omitempty"`
	RecordID string `json:"record_id,omitempty"`
}

// Fields holds everything the extractors pulled out of the query text.
type Fields struct {
	TimeRanges []TimeRange     `json:"time_ranges,omitempty"`
	Severity   []SeverityValue `json:"severity,omitempty"`
	Status     []string        `json:"status,omitempty"`
	Network    []NetworkValue  `json:"network,omitempty"`
	IDs        []IDValue       `json:"ids,omitempty"`
}

// Categories returns the categories that have at least one value.
func (f Fields) Categories() []FieldCategory {
	var out []FieldCategory
	if len(f.TimeRanges) > 0 {
		out = append(out, TimeRanges)
	}
	if len(f.Severity) > 0 {
		out = append(out, Severity)
	}
	if len(f.Status) > 0 {
		out = append(out, Status)
	}
	if len(f.Network) > 0 {
		out = append(out, Network)
	}
	if len(f.IDs) > 0 {
		out = append(out, IDs)
	}
	return out
}

// HasIDs reports whether any identifier was extracted.
func (f Fields) HasIDs() bool { return len(f.IDs) > 0 }

// HasFilterFields reports whether time, severity or status values were extracted.
func (f Fields) HasFilterFields() bool {
	return len(f.TimeRanges) > 0 || len(f.Severity) > 0 || len(f.Status) > 0
}

// HasStructured reports whether any structured criteria can be built,
// network attributes included.
func (f Fields) HasStructured() bool {
	return f.HasFilterFields() || len(f.Network) > 0
}

// UUIDs returns the extracted UUIDs in order.
func (f Fields) UUIDs() []string {
	var out []string
	for _, id := range f.IDs {
		if id.UUID != "" {
			out = append(out, id.UUID)
		}
	}
	return out
}

// RecordIDs returns the extracted prefixed record ids in order.
func (f Fields) RecordIDs() []string {
	var out []string
	for _, id := range f.IDs {
		if id.RecordID != "" {
			out = append(out, id.RecordID)
		}
	}
	return out
}
