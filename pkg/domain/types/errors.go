package types

import "github.com/m-mizutani/goerr/v2"

// Error tags classify pipeline job failures. Each tag corresponds to one
// failure class; a job carries at most one of them.
var (
	// ErrTagEnvironment marks checkout and toolchain installation failures
	ErrTagEnvironment = goerr.NewTag("environment")

	// ErrTagBuild marks compilation and lock-manifest failures
	ErrTagBuild = goerr.NewTag("build")

	// ErrTagUpload marks release asset upload failures
	ErrTagUpload = goerr.NewTag("upload")

	// ErrTagRegistry marks registry authentication and publish failures
	ErrTagRegistry = goerr.NewTag("registry")

	// ErrTagGated marks a registry publish skipped by the publish gate
	ErrTagGated = goerr.NewTag("gated")

	// ErrTagConfig marks invalid pipeline configuration
	ErrTagConfig = goerr.NewTag("config")
)

// ErrVersionExists is returned when the registry already holds the package
// version being published. Registries enforce version immutability, so this
// is terminal.
var ErrVersionExists = goerr.New("package version already exists in registry", goerr.T(ErrTagRegistry))
