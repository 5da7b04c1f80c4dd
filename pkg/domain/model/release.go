package model

import (
	"github.com/m-mizutani/goerr/v2"
)

// ReleaseEvent identifies a published release that triggers one pipeline run.
// It is created from the external event source and read-only afterwards.
type ReleaseEvent struct {
	Owner     string // Repository owner
	Repo      string // Repository name
	ReleaseID int64  // Upload handle for attaching assets to the release
	TagName   string // Release tag (e.g. "v1.2.0")
	CommitSHA string // Commit the release points at
}

// Validate checks that the event carries everything a pipeline run needs
func (e *ReleaseEvent) Validate() error {
	if e.Owner == "" || e.Repo == "" {
		return goerr.New("release event is missing repository identity",
			goerr.V("owner", e.Owner), goerr.V("repo", e.Repo))
	}
	if e.ReleaseID <= 0 {
		return goerr.New("release event is missing upload handle",
			goerr.V("release_id", e.ReleaseID))
	}
	if e.CommitSHA == "" {
		return goerr.New("release event is missing commit SHA",
			goerr.V("tag", e.TagName))
	}
	return nil
}

// ReleaseAsset is a downloadable file attached to a release. Once created it
// is immutable; uploading the same name twice is rejected by the hosting
// service, not overwritten.
type ReleaseAsset struct {
	ID          int64
	Name        string
	ContentType string
	Size        int64
}
