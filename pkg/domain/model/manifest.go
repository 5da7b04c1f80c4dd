package model

import (
	"regexp"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/slipway/pkg/domain/types"
	"github.com/pelletier/go-toml/v2"
)

// PackageManifest is the package identity declared by the project itself
// (Cargo.toml). The registry version comes from here, never from the
// release tag.
type PackageManifest struct {
	Name        string
	Version     string
	Description string
}

type cargoManifest struct {
	Package struct {
		Name        string `toml:"name"`
		Version     string `toml:"version"`
		Description string `toml:"description"`
	} `toml:"package"`
}

var semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+(?:-[0-9A-Za-z.-]+)?(?:\+[0-9A-Za-z.-]+)?$`)

// ParseManifest parses and validates a Cargo.toml package manifest
func ParseManifest(data []byte) (*PackageManifest, error) {
	var raw cargoManifest
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, goerr.Wrap(err, "failed to parse package manifest", goerr.T(types.ErrTagRegistry))
	}

	manifest := &PackageManifest{
		Name:        raw.Package.Name,
		Version:     raw.Package.Version,
		Description: raw.Package.Description,
	}
	if err := manifest.Validate(); err != nil {
		return nil, err
	}
	return manifest, nil
}

// Validate checks the manifest is self-consistent enough to publish
func (m *PackageManifest) Validate() error {
	if m.Name == "" {
		return goerr.New("package manifest has no name", goerr.T(types.ErrTagRegistry))
	}
	if !semverPattern.MatchString(m.Version) {
		return goerr.New("package manifest has an invalid version",
			goerr.V("name", m.Name),
			goerr.V("version", m.Version),
			goerr.T(types.ErrTagRegistry))
	}
	return nil
}

// RegistryPackage is the published package version visible to registry
// consumers. Publishing the same version twice fails; the registry enforces
// immutability.
type RegistryPackage struct {
	Name    string
	Version string
}
