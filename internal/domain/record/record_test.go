package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/victortong-git/opensoc-sub009/internal/domain"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		in      string
		want    Type
		wantErr bool
	}{
		{"alert", Alert, false},
		{"Alerts", Alert, false},
		{"incidents", Incident, false},
		{"assets", Asset, false},
		{"iocs", Indicator, false},
		{"threat_intel", Indicator, false},
		{"playbook", Playbook, false},
		{"tickets", "", true},
		{"", "", true},
	}
	for _, tc := range tests {
		got, err := ParseType(tc.in)
		if tc.wantErr {
			assert.Error(t, err, "ParseType(%q)", tc.in)
			continue
		}
		if assert.NoError(t, err, "ParseType(%q)", tc.in) {
			assert.Equal(t, tc.want, got, "ParseType(%q)", tc.in)
		}
	}
}

func TestAllTypes_Valid(t *testing.T) {
	for _, ty := range AllTypes() {
		assert.True(t, ty.IsValid(), ty)
	}
	assert.False(t, Type("ticket").IsValid(), "unknown type should be invalid")
}

func TestSeverityLevel_KeepsGapAtThree(t *testing.T) {
	want := map[string]int{"low": 1, "medium": 2, "high": 4, "critical": 5}
	for name, v := range want {
		got, ok := SeverityLevel(name)
		assert.True(t, ok, name)
		assert.Equal(t, v, got, name)
	}
	assert.Empty(t, SeverityName(3), "severity 3 should have no keyword")

	_, ok := SeverityLevel("urgent")
	assert.False(t, ok, "unknown keyword should not map")
}

func TestProject_AlertOmitsEmbedding(t *testing.T) {
	r := &Record{
		ID: "ALT-1", Type: Alert, Title: "Brute force", Severity: 5, Status: "open",
		IPAddress: "10.0.0.5", CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Embedding: []float32{0.1},
	}
	p := Project(r)
	assert.Equal(t, "critical", p["severity_level"])
	assert.Equal(t, "2026-01-02T03:04:05Z", p["created_at"])
	assert.NotContains(t, p, "embedding", "embedding must not be projected")
}

func TestProject_Asset(t *testing.T) {
	p := Project(&Record{ID: "AST-1", Type: Asset, Title: "web-01", IPAddress: "10.1.1.1", Domain: "web-01.corp.local"})
	assert.Equal(t, "web-01.corp.local", p["hostname"])
	assert.Equal(t, "10.1.1.1", p["ip_address"])
}

func TestParseType_WrapsSentinel(t *testing.T) {
	_, err := ParseType("ticket")
	assert.ErrorIs(t, err, domain.ErrUnknownRecordType)
}

func TestEmbeddingText(t *testing.T) {
	r := Record{Title: " Mimikatz detected ", Category: "credential-access", Description: ""}
	assert.Equal(t, "Mimikatz detected. credential-access", r.EmbeddingText())
	assert.Empty(t, (&Record{}).EmbeddingText())
}
