package cache

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/phobologic/codecounter/internal/model"
)

func sampleResult() *model.FileResult {
	return &model.FileResult{
		Path:     "App/Program.cs",
		Language: "cs",
		Project:  "App/App.csproj",
		Counts:   model.LineCounts{Lines: 12, Code: 8, Blank: 2, CommentText: 2, Classes: 1, Methods: 1, Chars: 240},
		Classes:  []model.CodeClass{{Name: "Program", Methods: []string{"Main(string[] args)"}}},
		Directives: []model.Directive{
			{Kind: model.Using, Arg: "App.Core;", Line: 1},
			{Kind: model.Namespace, Arg: "App", Line: 3},
		},
		Errors: []string{"No close quote (at line 9)"},
	}
}

func TestKey(t *testing.T) {
	t.Parallel()

	mtime := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	base, err := Key("a.cs", 100, mtime, "1.0")
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	if len(base) != 64 {
		t.Errorf("key length = %d, want 64 hex chars", len(base))
	}
	if again, _ := Key("a.cs", 100, mtime, "1.0"); again != base {
		t.Error("same inputs should give the same key")
	}

	variants := []struct {
		name    string
		path    string
		size    int64
		mtime   time.Time
		version string
	}{
		{"path", "b.cs", 100, mtime, "1.0"},
		{"size", "a.cs", 101, mtime, "1.0"},
		{"mtime", "a.cs", 100, mtime.Add(time.Second), "1.0"},
		{"version", "a.cs", 100, mtime, "1.1"},
	}
	for _, v := range variants {
		k, err := Key(v.path, v.size, v.mtime, v.version)
		if err != nil {
			t.Fatalf("Key(%s): %v", v.name, err)
		}
		if k == base {
			t.Errorf("changing %s should change the key", v.name)
		}
	}

	if _, err := Key("a.cs", -1, mtime, "1.0"); err == nil {
		t.Error("negative size should be rejected")
	}
}

func TestPutGet(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	key, _ := Key("App/Program.cs", 240, time.Unix(1700000000, 0), "test")

	if _, ok, err := c.Get(key); ok || err != nil {
		t.Fatalf("Get on empty cache = %v, %v", ok, err)
	}

	want := sampleResult()
	if err := c.Put(key, want); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// A second cache over the same dir reads from disk.
	c2, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, ok, err := c2.Get(key)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Get = %+v, want %+v", got, want)
	}

	// No temp files are left behind.
	matches, _ := filepath.Glob(filepath.Join(dir, "*", "tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestGetCorrupt(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	key, _ := Key("a.cs", 1, time.Unix(0, 0), "test")
	path := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte{0xc1}, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, ok, err := c.Get(key); ok || err == nil {
		t.Errorf("Get on a corrupt entry = %v, %v, want an error", ok, err)
	}
}

func TestGetOldSchema(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	key, _ := Key("a.cs", 1, time.Unix(0, 0), "test")
	path := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	data, err := msgpack.Marshal(&entry{Schema: schemaVersion + 1, Result: *sampleResult()})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, ok, err := c.Get(key); ok || err != nil {
		t.Errorf("Get on another schema = %v, %v, want a plain miss", ok, err)
	}
}

func TestDisabled(t *testing.T) {
	t.Parallel()

	c, err := Open("")
	if err != nil || c != nil {
		t.Fatalf("Open(\"\") = %v, %v, want nil cache", c, err)
	}
	if err := c.Put("k", sampleResult()); err != nil {
		t.Errorf("Put on nil cache: %v", err)
	}
	if _, ok, err := c.Get("k"); ok || err != nil {
		t.Errorf("Get on nil cache = %v, %v", ok, err)
	}
}
