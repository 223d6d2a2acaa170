package record

import "time"

// Project returns the type-specific payload exposed in search results.
// Embeddings are never projected.
func Project(r *Record) map[string]any {
	p := map[string]any{
		"title":      r.Title,
		"created_at": r.CreatedAt.UTC().Format(time.RFC3339),
	}
	switch r.Type {
	case Alert, Incident:
		p["severity"] = r.Severity
		if name := SeverityName(r.Severity); name != "" {
			p["severity_level"] = name
		}
		p["status"] = r.Status
		if r.IPAddress != "" {
			p["ip_address"] = r.IPAddress
		}
		if r.Description != "" {
			p["description"] = r.Description
		}
	case Asset:
		p["ip_address"] = r.IPAddress
		p["hostname"] = r.Domain
		p["status"] = r.Status
	case Indicator:
		p["category"] = r.Category
		if r.IPAddress != "" {
			p["ip_address"] = r.IPAddress
		}
		if r.Domain != "" {
			p["domain"] = r.Domain
		}
	case Playbook:
		p["category"] = r.Category
		if r.Description != "" {
			p["description"] = r.Description
		}
	}
	return p
}
