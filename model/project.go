// Package model - Project and Dependency records tracked by the service
package model

import "time"

// Project is a named set of pinned dependencies
type Project struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Dependency is one pinned requirement of one project, with the latest known
// vulnerability state for its identity
type Dependency struct {
	ID               int       `json:"id"`
	ProjectID        int       `json:"project_id"`
	Name             string    `json:"name"`
	Version          string    `json:"version"`
	IsVulnerable     bool      `json:"is_vulnerable"`
	VulnerabilityIDs []string  `json:"vulnerability_ids"`
	QueriedAt        time.Time `json:"queried_at"`
}

// Identity returns the (name, version) pair of the dependency
func (d Dependency) Identity() Identity {
	return Identity{Name: d.Name, Version: d.Version}
}

// DependencyDetail aggregates every record of one identity across projects
type DependencyDetail struct {
	Name             string    `json:"name"`
	Version          string    `json:"version"`
	IsVulnerable     bool      `json:"is_vulnerable"`
	VulnerabilityIDs []string  `json:"vulnerability_ids"`
	Projects         []string  `json:"projects"`
	QueriedAt        time.Time `json:"queried_at"`
}
