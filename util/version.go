// Package util provides utility functions for the backend.
//
//revive:disable-next-line:var-naming
package util

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	npm "github.com/aquasecurity/go-npm-version/pkg"
	pep440 "github.com/aquasecurity/go-pep440-version"
)

// ValidateVersion checks that version is a concrete version in the ecosystem's own
// version scheme. PyPI uses PEP 440, npm uses node-semver and everything else is
// coerced through Masterminds/semver.
func ValidateVersion(ecosystem, version string) error {
	if strings.TrimSpace(version) == "" {
		return fmt.Errorf("version is empty")
	}

	switch strings.ToLower(ecosystem) {
	case "pypi":
		if _, err := pep440.Parse(version); err != nil {
			return fmt.Errorf("invalid PEP 440 version %q: %w", version, err)
		}
	case "npm":
		if _, err := npm.NewVersion(version); err != nil {
			return fmt.Errorf("invalid npm version %q: %w", version, err)
		}
	default:
		// FIX: Strip "go" prefix for Go stdlib versions (e.g., "go1.22.2")
		if _, err := semver.NewVersion(strings.TrimPrefix(version, "go")); err != nil {
			return fmt.Errorf("invalid version %q: %w", version, err)
		}
	}
	return nil
}
