package model

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/slipway/pkg/domain/types"
	"gopkg.in/yaml.v3"
)

// DefaultContentType is the content type used for compiled binaries when a
// target does not declare its own.
const DefaultContentType = "application/octet-stream"

// PlatformTarget describes one (OS, architecture) pair the project is
// compiled for. Targets are enumerated at configuration time and immutable
// during a run.
type PlatformTarget struct {
	Triple      string `yaml:"triple"`
	AssetName   string `yaml:"asset_name"`
	ContentType string `yaml:"content_type"`
}

// IsWindows reports whether the target triple is a Windows target
func (t *PlatformTarget) IsWindows() bool {
	return strings.Contains(t.Triple, "windows")
}

// BinaryName returns the file name the build toolchain emits for the given
// binary on this target. Windows targets carry the executable suffix.
func (t *PlatformTarget) BinaryName(binary string) string {
	if t.IsWindows() {
		return binary + ".exe"
	}
	return binary
}

// Validate checks a single target configuration
func (t *PlatformTarget) Validate() error {
	if t.Triple == "" {
		return goerr.New("platform target has no triple", goerr.T(types.ErrTagConfig))
	}
	if t.AssetName == "" {
		return goerr.New("platform target has no asset name",
			goerr.V("triple", t.Triple), goerr.T(types.ErrTagConfig))
	}
	if t.ContentType == "" {
		return goerr.New("platform target has no content type",
			goerr.V("triple", t.Triple), goerr.T(types.ErrTagConfig))
	}
	return nil
}

// DefaultTargets returns the built-in target list for a project whose main
// binary has the given name: a Linux build and a Windows build.
func DefaultTargets(binary string) []PlatformTarget {
	return []PlatformTarget{
		{
			Triple:      "x86_64-unknown-linux-gnu",
			AssetName:   binary,
			ContentType: DefaultContentType,
		},
		{
			Triple:      "x86_64-pc-windows-msvc",
			AssetName:   binary + ".exe",
			ContentType: DefaultContentType,
		},
	}
}

// ValidateTargets validates each target and rejects asset name collisions.
// Asset names partition the release's upload namespace between jobs, so two
// targets must never share one.
func ValidateTargets(targets []PlatformTarget) error {
	if len(targets) == 0 {
		return goerr.New("no platform targets configured", goerr.T(types.ErrTagConfig))
	}

	seen := make(map[string]string, len(targets))
	for i := range targets {
		t := &targets[i]
		if err := t.Validate(); err != nil {
			return err
		}
		if prev, ok := seen[t.AssetName]; ok {
			return goerr.New("asset name collision between platform targets",
				goerr.V("asset_name", t.AssetName),
				goerr.V("targets", []string{prev, t.Triple}),
				goerr.T(types.ErrTagConfig))
		}
		seen[t.AssetName] = t.Triple
	}
	return nil
}

// LoadTargets parses a YAML target list of the form:
//
//	targets:
//	  - triple: x86_64-unknown-linux-gnu
//	    asset_name: dotter
//	    content_type: application/octet-stream
func LoadTargets(data []byte) ([]PlatformTarget, error) {
	var doc struct {
		Targets []PlatformTarget `yaml:"targets"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, goerr.Wrap(err, "failed to parse platform targets", goerr.T(types.ErrTagConfig))
	}

	for i := range doc.Targets {
		if doc.Targets[i].ContentType == "" {
			doc.Targets[i].ContentType = DefaultContentType
		}
	}

	if err := ValidateTargets(doc.Targets); err != nil {
		return nil, err
	}
	return doc.Targets, nil
}
