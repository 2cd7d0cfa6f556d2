// Package util provides utility functions for working with Package URLs (PURLs),
// ecosystem-specific version validation and requirements files.
//
//revive:disable-next-line:var-naming
package util

import (
	"strings"

	"github.com/package-url/packageurl-go"
)

// EcosystemToPurlType converts OSV ecosystem to PURL type
func EcosystemToPurlType(ecosystem string) string {
	mapping := map[string]string{
		"npm":       packageurl.TypeNPM,
		"PyPI":      packageurl.TypePyPi,
		"Maven":     packageurl.TypeMaven,
		"Go":        packageurl.TypeGolang,
		"NuGet":     packageurl.TypeNuget,
		"RubyGems":  packageurl.TypeGem,
		"crates.io": packageurl.TypeCargo,
		"Packagist": packageurl.TypeComposer,
		"Hex":       packageurl.TypeHex,
		"Pub":       "pub",
	}

	// Try exact match first
	if purlType, exists := mapping[ecosystem]; exists {
		return purlType
	}

	// Fallback: try case-insensitive
	for key, value := range mapping {
		if strings.EqualFold(key, ecosystem) {
			return value
		}
	}

	// Last resort: return lowercase ecosystem
	return strings.ToLower(ecosystem)
}

// BuildPURL constructs the versioned PURL OSV expects for one package coordinate.
// Example: ("PyPI", "Django", "3.2.12") -> "pkg:pypi/django@3.2.12"
func BuildPURL(ecosystem, name, version string) string {
	purlType := EcosystemToPurlType(ecosystem)

	namespace := ""
	pkgName := strings.ToLower(strings.TrimSpace(name))

	// Scoped npm packages and Maven coordinates carry a namespace
	if idx := strings.LastIndex(pkgName, "/"); idx > 0 && (purlType == packageurl.TypeNPM || purlType == packageurl.TypeGolang) {
		namespace, pkgName = pkgName[:idx], pkgName[idx+1:]
	} else if idx := strings.Index(pkgName, ":"); idx > 0 && purlType == packageurl.TypeMaven {
		namespace, pkgName = pkgName[:idx], pkgName[idx+1:]
	}

	purl := packageurl.NewPackageURL(purlType, namespace, pkgName, version, nil, "")
	return purl.ToString()
}

// ParsePURL parses a PURL string and returns the parsed PackageURL
func ParsePURL(purlStr string) (*packageurl.PackageURL, error) {
	parsed, err := packageurl.FromString(purlStr)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
