// Package model - API types for combining models in API requests/responses
package model

// ProjectWithDependencies combines a Project and its dependency records for API responses
type ProjectWithDependencies struct {
	Project
	Dependencies []Dependency `json:"dependencies"`
}

// DependencyWithVulns is a dependency record together with the cached OSV data behind it
type DependencyWithVulns struct {
	DependencyDetail
	Vulns []Vulnerability `json:"vulns"`
}

// ScanSummary reports the outcome of one scan over all tracked dependencies
type ScanSummary struct {
	Scanned    int `json:"scanned"`
	Vulnerable int `json:"vulnerable"`
	Updated    int `json:"updated"`
}
