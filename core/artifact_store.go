package core

import "strings"

// InaccessibleMimeType is the sentinel MIME type of the marker version the
// rewind engine writes for artifacts created after the rewind target. The
// artifact is not deleted; its latest version becomes an empty payload with
// this type, making it unreadable as of the rewind point.
const InaccessibleMimeType = "application/x-agentstate-inaccessible"

// UserArtifactPrefix scopes a filename to the owning user instead of the
// session, mirroring the "user:" state prefix.
const UserArtifactPrefix = "user:"

// IsUserArtifact reports whether filename addresses user-scoped storage.
func IsUserArtifact(filename string) bool {
	return strings.HasPrefix(filename, UserArtifactPrefix)
}

// Artifact is one immutable version of a named blob.
type Artifact struct {
	Data     []byte `json:"data"`
	MimeType string `json:"mime_type,omitempty"`
}

// IsInaccessible reports whether this version is a rewind sentinel.
func (a Artifact) IsInaccessible() bool { return a.MimeType == InaccessibleMimeType }

// ArtifactScope addresses the storage namespace of a filename. Session-scoped
// filenames use all three fields; "user:" prefixed filenames are keyed by
// AppName+UserID only, so they survive across sessions.
type ArtifactScope struct {
	AppName   string
	UserID    string
	SessionID string
}

// ArtifactStore persists named, versioned artifacts. Each Save appends a new
// version; versions for one filename are strictly increasing and gapless
// starting at 0. Implementations must be safe for concurrent use.
type ArtifactStore interface {
	// Save appends a new version and returns its number (prior max + 1, or 0
	// for the first version).
	Save(scope ArtifactScope, filename string, artifact Artifact) (int, error)

	// Get returns the latest version.
	Get(scope ArtifactScope, filename string) (Artifact, error)

	// GetVersion returns one specific version.
	GetVersion(scope ArtifactScope, filename string, version int) (Artifact, error)

	// Versions returns all version numbers for a filename in ascending order.
	Versions(scope ArtifactScope, filename string) ([]int, error)

	// List returns the sorted filenames visible in the scope (session files
	// plus the scope's user files).
	List(scope ArtifactScope) ([]string, error)

	// Delete removes a filename with all its versions.
	Delete(scope ArtifactScope, filename string) error
}
