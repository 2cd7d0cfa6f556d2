// Package model - Identity is the (name, exact version) pair that names one resolved package.
package model

import (
	"fmt"
	"strings"
)

// Identity identifies a dependency by name and pinned version.
// Names compare case-insensitively; versions compare exactly.
type Identity struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
}

// Key returns the cache key for the identity, "<lowercase name>@<version>".
func (i Identity) Key() string {
	return fmt.Sprintf("%s@%s", strings.ToLower(i.Name), i.Version)
}

// String renders the identity as a pinned requirement
func (i Identity) String() string {
	return i.Name + "==" + i.Version
}
