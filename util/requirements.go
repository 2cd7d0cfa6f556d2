// Package util provides utility functions for the backend.
//
//revive:disable-next-line:var-naming
package util

import (
	"bufio"
	"fmt"
	"regexp"
	"strings"

	"github.com/ortelius/pdvd-depscan/model"
)

// InvalidRequirementError reports the first line of a requirements file that could not be used
type InvalidRequirementError struct {
	Line   int
	Text   string
	Reason string
}

func (e *InvalidRequirementError) Error() string {
	return fmt.Sprintf("Invalid requirement on line %d: %s (%s)", e.Line, e.Text, e.Reason)
}

var requirementNamePattern = regexp.MustCompile(`(?i)^([a-z0-9]|[a-z0-9][a-z0-9._-]*[a-z0-9])$`)

// option lines that reference other files or editable installs carry no pinned package
var skippedRequirementPrefixes = []string{
	"-r", "--requirement",
	"-c", "--constraint",
	"-e", "--editable",
	"-i", "--index-url", "--extra-index-url",
}

// ParseRequirements reads requirements.txt content and returns one identity per pinned line,
// in file order. Every requirement must pin exactly one version with "==".
func ParseRequirements(content string, ecosystem string) ([]model.Identity, error) {
	var identities []model.Identity

	scanner := bufio.NewScanner(strings.NewReader(content))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		line := strings.TrimSpace(raw)

		if line == "" || strings.HasPrefix(line, "#") || hasSkippedPrefix(line) {
			continue
		}

		// inline comments and environment markers
		if idx := strings.Index(line, " #"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}
		if idx := strings.Index(line, ";"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}

		identity, reason := parseRequirementLine(line, ecosystem)
		if reason != "" {
			return nil, &InvalidRequirementError{Line: lineNo, Text: strings.TrimSpace(raw), Reason: reason}
		}
		identities = append(identities, identity)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read requirements: %w", err)
	}

	return identities, nil
}

func hasSkippedPrefix(line string) bool {
	for _, prefix := range skippedRequirementPrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

func parseRequirementLine(line, ecosystem string) (model.Identity, string) {
	name, version, found := strings.Cut(line, "==")
	if !found {
		return model.Identity{}, "version must be pinned with =="
	}

	name = strings.TrimSpace(name)
	version = strings.TrimSpace(version)

	// extras do not change the resolved package
	if idx := strings.Index(name, "["); idx >= 0 {
		if !strings.HasSuffix(name, "]") {
			return model.Identity{}, "unterminated extras"
		}
		name = strings.TrimSpace(name[:idx])
	}

	if !requirementNamePattern.MatchString(name) {
		return model.Identity{}, "invalid package name"
	}
	if strings.ContainsAny(version, "<>=!~,* ") {
		return model.Identity{}, "exactly one pinned version is required"
	}
	if err := ValidateVersion(ecosystem, version); err != nil {
		return model.Identity{}, err.Error()
	}

	return model.Identity{Name: name, Version: version}, ""
}
