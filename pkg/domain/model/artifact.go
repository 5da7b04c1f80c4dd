package model

// BuildArtifact is the compiled binary produced for one PlatformTarget. It
// lives in the owning job's private work directory and is consumed by the
// asset upload within the same job.
type BuildArtifact struct {
	Target      PlatformTarget
	Path        string
	Size        int64
	ContentType string
}
