package home

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HUDDLE_HOME", dir)

	if BaseDir() != dir {
		t.Errorf("BaseDir = %q, want %q", BaseDir(), dir)
	}
	if got, want := DBPath(), filepath.Join(dir, "data", "huddle.db"); got != want {
		t.Errorf("DBPath = %q, want %q", got, want)
	}
}

func TestEnsureDirs(t *testing.T) {
	t.Setenv("HUDDLE_HOME", t.TempDir())

	if err := EnsureDirs(); err != nil {
		t.Fatal(err)
	}
	for _, d := range []string{DataDir(), LogDir(), CacheDir()} {
		info, err := os.Stat(d)
		if err != nil {
			t.Fatal(err)
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", d)
		}
	}
}
