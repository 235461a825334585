package artifact

import (
	"errors"
	"testing"

	"github.com/hupe1980/agentstate/core"
)

func testScope() core.ArtifactScope {
	return core.ArtifactScope{AppName: "app", UserID: "u1", SessionID: "s1"}
}

func TestInMemoryStore_VersionsAreGapless(t *testing.T) {
	store := NewInMemoryStore()
	scope := testScope()

	for i, data := range []string{"v0", "v1", "v2"} {
		v, err := store.Save(scope, "f.txt", core.Artifact{Data: []byte(data), MimeType: "text/plain"})
		if err != nil {
			t.Fatalf("save: %v", err)
		}
		if v != i {
			t.Errorf("expected version %d, got %d", i, v)
		}
	}

	versions, err := store.Versions(scope, "f.txt")
	if err != nil {
		t.Fatalf("versions: %v", err)
	}
	if len(versions) != 3 || versions[0] != 0 || versions[2] != 2 {
		t.Errorf("unexpected versions: %v", versions)
	}
}

func TestInMemoryStore_GetLatestAndSpecific(t *testing.T) {
	store := NewInMemoryStore()
	scope := testScope()

	store.Save(scope, "f.txt", core.Artifact{Data: []byte("old")})
	store.Save(scope, "f.txt", core.Artifact{Data: []byte("new")})

	latest, err := store.Get(scope, "f.txt")
	if err != nil || string(latest.Data) != "new" {
		t.Errorf("latest = %q, err = %v", latest.Data, err)
	}

	old, err := store.GetVersion(scope, "f.txt", 0)
	if err != nil || string(old.Data) != "old" {
		t.Errorf("version 0 = %q, err = %v", old.Data, err)
	}

	if _, err := store.GetVersion(scope, "f.txt", 99); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing version, got %v", err)
	}
	if _, err := store.Get(scope, "missing.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing file, got %v", err)
	}
}

func TestInMemoryStore_SaveCopiesData(t *testing.T) {
	store := NewInMemoryStore()
	scope := testScope()

	buf := []byte("original")
	store.Save(scope, "f.txt", core.Artifact{Data: buf})
	buf[0] = 'X'

	got, _ := store.Get(scope, "f.txt")
	if string(got.Data) != "original" {
		t.Error("store shares caller's buffer")
	}
}

func TestInMemoryStore_UserArtifactsSpanSessions(t *testing.T) {
	store := NewInMemoryStore()
	s1 := core.ArtifactScope{AppName: "app", UserID: "u1", SessionID: "sess-1"}
	s2 := core.ArtifactScope{AppName: "app", UserID: "u1", SessionID: "sess-2"}
	other := core.ArtifactScope{AppName: "app", UserID: "u2", SessionID: "sess-3"}

	store.Save(s1, "user:prefs.json", core.Artifact{Data: []byte("{}")})

	if _, err := store.Get(s2, "user:prefs.json"); err != nil {
		t.Error("user: artifact not visible from the user's other session")
	}
	if _, err := store.Get(other, "user:prefs.json"); !errors.Is(err, ErrNotFound) {
		t.Error("user: artifact leaked across users")
	}
}

func TestInMemoryStore_SessionArtifactsIsolated(t *testing.T) {
	store := NewInMemoryStore()
	s1 := core.ArtifactScope{AppName: "app", UserID: "u1", SessionID: "sess-1"}
	s2 := core.ArtifactScope{AppName: "app", UserID: "u1", SessionID: "sess-2"}

	store.Save(s1, "notes.txt", core.Artifact{Data: []byte("private")})

	if _, err := store.Get(s2, "notes.txt"); !errors.Is(err, ErrNotFound) {
		t.Error("session artifact visible from another session")
	}
}

func TestInMemoryStore_ListMergesSessionAndUserFiles(t *testing.T) {
	store := NewInMemoryStore()
	scope := testScope()

	store.Save(scope, "b.txt", core.Artifact{Data: []byte("b")})
	store.Save(scope, "a.txt", core.Artifact{Data: []byte("a")})
	store.Save(scope, "user:prefs.json", core.Artifact{Data: []byte("{}")})

	names, err := store.List(scope)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"a.txt", "b.txt", "user:prefs.json"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, names)
		}
	}
}

func TestInMemoryStore_Delete(t *testing.T) {
	store := NewInMemoryStore()
	scope := testScope()

	store.Save(scope, "f.txt", core.Artifact{Data: []byte("x")})
	if err := store.Delete(scope, "f.txt"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(scope, "f.txt"); !errors.Is(err, ErrNotFound) {
		t.Error("file survived delete")
	}
	if err := store.Delete(scope, "f.txt"); !errors.Is(err, ErrNotFound) {
		t.Error("second delete should report ErrNotFound")
	}
}

func TestInaccessibleSentinel(t *testing.T) {
	a := core.Artifact{MimeType: core.InaccessibleMimeType}
	if !a.IsInaccessible() {
		t.Error("sentinel not detected")
	}
	if (core.Artifact{MimeType: "text/plain"}).IsInaccessible() {
		t.Error("regular artifact flagged inaccessible")
	}
}
