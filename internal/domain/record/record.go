// Package record models the security records the retrieval core searches over.
package record

import (
	"fmt"
	"strings"
	"time"

	"github.com/victortong-git/opensoc-sub009/internal/domain"
)

// Type is a category of security data.
type Type string

// Record type constants.
const (
	Alert     Type = "alert"
	Incident  Type = "incident"
	Asset     Type = "asset"
	Indicator Type = "indicator"
	Playbook  Type = "playbook"
)

// AllTypes returns every known record type in a stable order.
func AllTypes() []Type {
	return []Type{Alert, Incident, Asset, Indicator, Playbook}
}

// IsValid checks if the type is one of the known record types.
func (t Type) IsValid() bool {
	switch t {
	case Alert, Incident, Asset, Indicator, Playbook:
		return true
	}
	return false
}

// ParseType normalizes a data source name ("alerts", "Incident") into a Type.
func ParseType(s string) (Type, error) {
	switch normalizeSource(s) {
	case "alert", "alerts":
		return Alert, nil
	case "incident", "incidents":
		return Incident, nil
	case "asset", "assets":
		return Asset, nil
	case "indicator", "indicators", "ioc", "iocs", "threat_intel":
		return Indicator, nil
	case "playbook", "playbooks":
		return Playbook, nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnknownRecordType, s)
}

func normalizeSource(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// Record is a single security record as held by the record store.
// Severity uses the 1..5 scale (see SeverityLevel); zero means unset.
type Record struct {
	ID             string    `json:"id"`
	Type           Type      `json:"type"`
	OrganizationID string    `json:"organization_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Severity       int       `json:"severity,omitempty"`
	Status         string    `json:"status,omitempty"`
	Category       string    `json:"category,omitempty"`
	IPAddress      string    `json:"ip_address,omitempty"`
	Domain         string    `json:"domain,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	Embedding      []float32 `json:"embedding,omitempty"`
}

// EmbeddingText is the text a record's vector is computed from: title,
// category and description, skipping empty parts.
func (r *Record) EmbeddingText() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{r.Title, r.Category, r.Description} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ". ")
}

// HasEmbedding reports whether a vector is stored with the record.
func (r *Record) HasEmbedding() bool { return len(r.Embedding) > 0 }

// Page is one page of records matched by criteria.
type Page struct {
	Records    []Record
	TotalCount int
}
