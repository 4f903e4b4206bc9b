package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

const sample = `[project]
name = "calc"
version = "0.2.0"

[source]
dirs = ["scripts"]
entry = "scripts/main.pyr"

[cache]
enabled = true
path = "build/cache.db"
`

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, sample)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Project.Name != "calc" || m.Project.Version != "0.2.0" {
		t.Errorf("project = %+v", m.Project)
	}
	if m.Source.Entry != "scripts/main.pyr" {
		t.Errorf("entry = %q", m.Source.Entry)
	}
	if !m.Cache.Enabled || m.Cache.Path != "build/cache.db" {
		t.Errorf("cache = %+v", m.Cache)
	}
	if m.Dir != dir {
		t.Errorf("dir = %q, want %q", m.Dir, dir)
	}
	if m.EntryPath() != filepath.Join(dir, "scripts/main.pyr") {
		t.Errorf("entry path = %q", m.EntryPath())
	}
}

func TestLoadDefaultsCachePath(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[project]\nname = \"x\"\n")
	m, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if m.Cache.Path != ".pyrite-cache.db" {
		t.Errorf("cache path = %q", m.Cache.Path)
	}
	if m.Cache.Enabled {
		t.Error("cache should default to disabled")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatal("expected an error for a missing manifest")
	}
}

func TestLoadBadToml(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[project\nname =")
	if _, err := Load(dir); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestFindWalksUpward(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, sample)
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	m, err := Find(nested)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if m == nil {
		t.Fatal("manifest not found from nested directory")
	}
	if m.Project.Name != "calc" {
		t.Errorf("name = %q", m.Project.Name)
	}
}

func TestFindReturnsNilWithoutManifest(t *testing.T) {
	m, err := Find(t.TempDir())
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if m != nil {
		t.Fatalf("unexpected manifest: %+v", m)
	}
}
