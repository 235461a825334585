// Package artifact provides core.ArtifactStore implementations. Artifacts are
// named, versioned blobs: every save appends a new version (strictly
// increasing, gapless, starting at 0) and versions are never mutated in
// place. Filenames with the "user:" prefix are scoped to the owning app+user
// and shared across that user's sessions; all other filenames are
// session-scoped.
package artifact
