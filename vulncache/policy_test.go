package vulncache

import (
	"testing"
	"time"

	"github.com/google/osv-scanner/pkg/models"
	"github.com/stretchr/testify/assert"

	"github.com/ortelius/pdvd-depscan/model"
)

func vuln(id, topSeverity, affectedSeverity string) model.Vulnerability {
	v := model.Vulnerability{ID: id}
	if topSeverity != "" {
		v.Severity = []models.Severity{{Type: models.SeverityType(topSeverity), Score: "9.0"}}
	}
	aff := models.Affected{Package: models.Package{Name: "foo", Ecosystem: "PyPI"}}
	if affectedSeverity != "" {
		aff.Severity = []models.Severity{{Type: models.SeverityType(affectedSeverity), Score: "8.0"}}
	}
	v.Affected = []models.Affected{aff}
	return v
}

func TestDeriveKey(t *testing.T) {
	assert.Equal(t, "django@3.2.12", DeriveKey(model.Identity{Name: "Django", Version: "3.2.12"}))
	assert.Equal(t, "foo@1.0.0RC1", DeriveKey(model.Identity{Name: "FOO", Version: "1.0.0RC1"}))
}

func TestTTLFor(t *testing.T) {
	tests := []struct {
		name  string
		vulns []model.Vulnerability
		want  time.Duration
	}{
		{name: "no vulnerabilities", vulns: nil, want: TTLNone},
		{name: "critical top level", vulns: []model.Vulnerability{vuln("V1", "CRITICAL", "")}, want: time.Hour},
		{name: "high top level", vulns: []model.Vulnerability{vuln("V1", "HIGH", "")}, want: 4 * time.Hour},
		{name: "moderate affected level", vulns: []model.Vulnerability{vuln("V1", "", "MODERATE")}, want: 12 * time.Hour},
		{name: "low", vulns: []model.Vulnerability{vuln("V1", "LOW", "")}, want: 24 * time.Hour},
		{name: "no severity at all counts as low", vulns: []model.Vulnerability{vuln("V1", "", "")}, want: TTLLow},
		{name: "only unrecognized label", vulns: []model.Vulnerability{vuln("V1", "BOGUS", "")}, want: TTLDefault},
		{name: "lowercase label", vulns: []model.Vulnerability{vuln("V1", "critical", "")}, want: TTLCritical},
		{
			name:  "critical affected beats high top level",
			vulns: []model.Vulnerability{vuln("V1", "HIGH", ""), vuln("V2", "", "CRITICAL")},
			want:  TTLCritical,
		},
		{
			name:  "unknown ranks below low",
			vulns: []model.Vulnerability{vuln("V1", "BOGUS", "LOW")},
			want:  TTLLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TTLFor(tt.vulns))
		})
	}
}

func TestHighestSeverityCVSSVector(t *testing.T) {
	v := model.Vulnerability{
		ID: "GHSA-xxxx",
		Severity: []models.Severity{{
			Type:  "CVSS_V3",
			Score: "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H",
		}},
	}
	assert.Equal(t, SeverityCritical, HighestSeverity([]model.Vulnerability{v}))

	v.Severity[0].Score = "garbage"
	assert.Equal(t, SeverityUnknown, HighestSeverity([]model.Vulnerability{v}))
}

func TestHighestSeverityEmpty(t *testing.T) {
	assert.Equal(t, SeverityLow, HighestSeverity(nil))
	assert.Equal(t, "LOW", HighestSeverity(nil).String())
}

func TestHighestSeverityMonotonic(t *testing.T) {
	labels := []string{"BOGUS", "LOW", "MODERATE", "HIGH", "CRITICAL"}

	for _, start := range labels {
		for _, added := range labels {
			base := []model.Vulnerability{vuln("V1", start, "")}
			before := HighestSeverity(base)
			after := HighestSeverity(append(base, vuln("V2", "", added)))
			assert.GreaterOrEqual(t, int(after), int(before), "adding %s to %s lowered the rank", added, start)
			if rank := ParseSeverity(added, ""); rank > before {
				assert.Equal(t, rank, after)
			}
		}
	}
}
