package vulncache

import (
	"strings"
	"time"

	"github.com/ortelius/pdvd-depscan/model"
	"github.com/ortelius/pdvd-depscan/util"
)

// Severity is the worst-case category of a vulnerability set
type Severity int

// Severities ordered by rank; the zero value is the lowest.
const (
	SeverityUnknown Severity = iota
	SeverityLow
	SeverityModerate
	SeverityHigh
	SeverityCritical
)

// TTLs per severity
const (
	TTLNone     = 24 * time.Hour
	TTLLow      = 24 * time.Hour
	TTLModerate = 12 * time.Hour
	TTLHigh     = 4 * time.Hour
	TTLCritical = 1 * time.Hour
	TTLDefault  = 1 * time.Hour
)

var severityLabels = map[Severity]string{
	SeverityUnknown:  "UNKNOWN",
	SeverityLow:      "LOW",
	SeverityModerate: "MODERATE",
	SeverityHigh:     "HIGH",
	SeverityCritical: "CRITICAL",
}

func (s Severity) String() string {
	if label, ok := severityLabels[s]; ok {
		return label
	}
	return "UNKNOWN"
}

// ParseSeverity maps a severity rating to its category. Labels are matched
// case-insensitively. CVSS vector types are scored and bucketed; anything else is unknown.
func ParseSeverity(sevType, score string) Severity {
	switch strings.ToUpper(strings.TrimSpace(sevType)) {
	case "CRITICAL":
		return SeverityCritical
	case "HIGH":
		return SeverityHigh
	case "MODERATE":
		return SeverityModerate
	case "LOW":
		return SeverityLow
	case "CVSS_V3", "CVSS_V4":
		if base, ok := util.CalculateCVSSScore(score); ok {
			return ParseSeverity(util.GetSeverityRating(base), "")
		}
	}
	return SeverityUnknown
}

// HighestSeverity returns the most severe category across every top-level and
// affected-package severity. It returns LOW when nothing is rated at all.
func HighestSeverity(vulns []model.Vulnerability) Severity {
	highest := SeverityUnknown
	rated := false

	for _, vuln := range vulns {
		for _, sev := range vuln.Severity {
			rated = true
			if s := ParseSeverity(string(sev.Type), sev.Score); s > highest {
				highest = s
			}
		}
		for _, aff := range vuln.Affected {
			for _, sev := range aff.Severity {
				rated = true
				if s := ParseSeverity(string(sev.Type), sev.Score); s > highest {
					highest = s
				}
			}
		}
	}

	if !rated {
		return SeverityLow
	}
	return highest
}

// TTLFor returns how long a result may be served before it is refreshed.
// Critical findings are rechecked most often.
func TTLFor(vulns []model.Vulnerability) time.Duration {
	if len(vulns) == 0 {
		return TTLNone
	}

	switch HighestSeverity(vulns) {
	case SeverityCritical:
		return TTLCritical
	case SeverityHigh:
		return TTLHigh
	case SeverityModerate:
		return TTLModerate
	case SeverityLow:
		return TTLLow
	default:
		return TTLDefault
	}
}
