// Package model - Scan events published after each dependency scan
package model

import "time"

// ScanCompletedEvent is published once per completed scan
type ScanCompletedEvent struct {
	EventType     string              `json:"event_type"`
	EventID       string              `json:"event_id"`
	EventTime     time.Time           `json:"event_time"`
	SchemaVersion string              `json:"schema_version"`
	Summary       ScanSummary         `json:"summary"`
	Dependencies  []DependencyOutcome `json:"dependencies"`
}

// DependencyOutcome is the scan result for one identity
type DependencyOutcome struct {
	Name             string   `json:"name"`
	Version          string   `json:"version"`
	IsVulnerable     bool     `json:"is_vulnerable"`
	VulnerabilityIDs []string `json:"vulnerability_ids"`
	Severity         string   `json:"severity,omitempty"`
}
