// Package model - OSV querybatch request and response types
package model

import (
	"github.com/google/osv-scanner/pkg/models"
)

// Vulnerability is a single OSV record. Severity ratings may appear at the top level
// and on each affected package entry.
type Vulnerability = models.Vulnerability

// QueryResult holds the vulnerabilities OSV reported for one queried package.
// An empty list means no known vulnerabilities.
type QueryResult struct {
	Vulns []Vulnerability `json:"vulns"`
}

// IDs returns the vulnerability identifiers in response order
func (r QueryResult) IDs() []string {
	ids := make([]string, 0, len(r.Vulns))
	for _, v := range r.Vulns {
		ids = append(ids, v.ID)
	}
	return ids
}

// IsVulnerable reports whether at least one vulnerability was returned
func (r QueryResult) IsVulnerable() bool {
	return len(r.Vulns) > 0
}

// BatchQuery is the body of POST /v1/querybatch
type BatchQuery struct {
	Queries []Query `json:"queries"`
}

// Query asks OSV about a single package coordinate
type Query struct {
	Package QueryPackage `json:"package"`
}

// QueryPackage identifies the package by PURL (ecosystem, name and version in one string)
type QueryPackage struct {
	PURL string `json:"purl"`
}

// BatchResponse is positionally aligned with BatchQuery.Queries
type BatchResponse struct {
	Results []QueryResult `json:"results"`
}
