package criteria

import (
	"fmt"
	"time"
)

// MaxValuesPerField is the maximum number of values accepted per multi-valued field.
const MaxValuesPerField = 32

// Severity is either an exact set of values or a minimum threshold.
// A non-zero Min takes precedence over Values.
type Severity struct {
	Values []int
	Min    int
}

// IsEmpty reports whether no severity constraint is set.
func (s Severity) IsEmpty() bool { return len(s.Values) == 0 && s.Min == 0 }

// Criteria is a structured record filter issued against the record store.
// All set constraints are combined with AND; values inside one field with OR.
type Criteria struct {
	Since        *time.Time
	Until        *time.Time
	Severity     Severity
	Statuses     []string
	IPAddresses  []string
	Domains      []string
	TextContains string
}

// IsEmpty reports whether the criteria has no constraints at all.
func (c Criteria) IsEmpty() bool {
	return c.Since == nil && c.Until == nil && c.Severity.IsEmpty() &&
		len(c.Statuses) == 0 && !c.HasNetwork() && c.TextContains == ""
}

// HasNetwork reports whether ip or domain constraints are present.
func (c Criteria) HasNetwork() bool {
	return len(c.IPAddresses) > 0 || len(c.Domains) > 0
}

// Validate checks value bounds.
func (c Criteria) Validate() error {
	if c.Since != nil && c.Until != nil && c.Until.Before(*c.Since) {
		return fmt.Errorf("time window ends before it starts")
	}
	if c.Severity.Min < 0 || c.Severity.Min > 5 {
		return fmt.Errorf("minimum severity must be between 0 and 5, got %d", c.Severity.Min)
	}
	for _, v := range c.Severity.Values {
		if v < 1 || v > 5 {
			return fmt.Errorf("severity must be between 1 and 5, got %d", v)
		}
	}
	groups := map[string]int{
		"severity":     len(c.Severity.Values),
		"status":       len(c.Statuses),
		"ip_addresses": len(c.IPAddresses),
		"domains":      len(c.Domains),
	}
	for name, n := range groups {
		if n > MaxValuesPerField {
			return fmt.Errorf("too many %s values (max %d)", name, MaxValuesPerField)
		}
	}
	return nil
}
