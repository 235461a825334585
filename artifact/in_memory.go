package artifact

import (
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/agentstate/core"
)

// InMemoryStore is an in-process core.ArtifactStore keeping every version of
// every artifact in a map guarded by an RWMutex. Data is copied on save and
// retrieval to avoid accidental external mutation of internal buffers.
//
// Layout: storage key (scope + filename) -> append-only version slice, so
// version numbers are slice indices and gapless by construction.
//
// This implementation does not enforce retention limits or size quotas. For
// production, prefer a durable implementation (object storage, database) that
// can scale and survive process restarts.
type InMemoryStore struct {
	mu    sync.RWMutex
	files map[string][]core.Artifact
}

// NewInMemoryStore returns an empty in-memory artifact store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{files: make(map[string][]core.Artifact)}
}

// storageKey namespaces a filename by scope. "user:" filenames ignore the
// session id so they are shared across the user's sessions.
func storageKey(scope core.ArtifactScope, filename string) string {
	if core.IsUserArtifact(filename) {
		return strings.Join([]string{"user", scope.AppName, scope.UserID, filename}, "/")
	}
	return strings.Join([]string{"session", scope.AppName, scope.UserID, scope.SessionID, filename}, "/")
}

// Save appends a new version of the artifact and returns its version number.
// The input bytes are copied before storage.
func (a *InMemoryStore) Save(scope core.ArtifactScope, filename string, art core.Artifact) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cp := core.Artifact{Data: make([]byte, len(art.Data)), MimeType: art.MimeType}
	copy(cp.Data, art.Data)

	key := storageKey(scope, filename)
	a.files[key] = append(a.files[key], cp)

	return len(a.files[key]) - 1, nil
}

// Get returns a copy of the latest version or ErrNotFound.
func (a *InMemoryStore) Get(scope core.ArtifactScope, filename string) (core.Artifact, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	versions, ok := a.files[storageKey(scope, filename)]
	if !ok || len(versions) == 0 {
		return core.Artifact{}, ErrNotFound
	}

	return copyArtifact(versions[len(versions)-1]), nil
}

// GetVersion returns a copy of one specific version or ErrNotFound.
func (a *InMemoryStore) GetVersion(scope core.ArtifactScope, filename string, version int) (core.Artifact, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	versions, ok := a.files[storageKey(scope, filename)]
	if !ok || version < 0 || version >= len(versions) {
		return core.Artifact{}, ErrNotFound
	}

	return copyArtifact(versions[version]), nil
}

// Versions returns all version numbers for a filename in ascending order. A
// missing filename yields an empty slice, not an error.
func (a *InMemoryStore) Versions(scope core.ArtifactScope, filename string) ([]int, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	versions := a.files[storageKey(scope, filename)]
	out := make([]int, len(versions))
	for i := range versions {
		out[i] = i
	}
	return out, nil
}

// List returns the sorted filenames visible in the scope: the scope's session
// files plus the owning user's "user:" files.
func (a *InMemoryStore) List(scope core.ArtifactScope) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	sessionPrefix := strings.Join([]string{"session", scope.AppName, scope.UserID, scope.SessionID, ""}, "/")
	userPrefix := strings.Join([]string{"user", scope.AppName, scope.UserID, ""}, "/")

	names := make([]string, 0)
	for key, versions := range a.files {
		if len(versions) == 0 {
			continue
		}
		switch {
		case strings.HasPrefix(key, sessionPrefix):
			names = append(names, strings.TrimPrefix(key, sessionPrefix))
		case strings.HasPrefix(key, userPrefix):
			names = append(names, strings.TrimPrefix(key, userPrefix))
		}
	}

	sort.Strings(names)
	return names, nil
}

// Delete removes a filename with all its versions or returns ErrNotFound.
func (a *InMemoryStore) Delete(scope core.ArtifactScope, filename string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := storageKey(scope, filename)
	if _, ok := a.files[key]; !ok {
		return ErrNotFound
	}
	delete(a.files, key)
	return nil
}

func copyArtifact(a core.Artifact) core.Artifact {
	cp := core.Artifact{Data: make([]byte, len(a.Data)), MimeType: a.MimeType}
	copy(cp.Data, a.Data)
	return cp
}
