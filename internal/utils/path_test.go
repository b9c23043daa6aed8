package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolvePath(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantError bool
	}{
		{
			name:      "empty path",
			input:     "",
			wantError: true,
		},
		{
			name:      "relative path",
			input:     "./test",
			wantError: false,
		},
		{
			name:      "absolute path",
			input:     "/tmp/test",
			wantError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ResolvePath(tt.input)
			if (err != nil) != tt.wantError {
				t.Errorf("ResolvePath(%q) error = %v, wantError %v", tt.input, err, tt.wantError)
			}
			if !tt.wantError && !filepath.IsAbs(result) {
				t.Errorf("ResolvePath(%q) = %q, want absolute path", tt.input, result)
			}
		})
	}
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")
	if err := EnsureDir(dir); err != nil {
		t.Fatalf("EnsureDir(%q) error = %v", dir, err)
	}
	if !DirExists(dir) {
		t.Fatalf("EnsureDir(%q) did not create the directory", dir)
	}

	// idempotent
	if err := EnsureDir(dir); err != nil {
		t.Fatalf("EnsureDir(%q) second call error = %v", dir, err)
	}
}

func TestEnsureParent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "file.txt")
	if err := EnsureParent(path); err != nil {
		t.Fatalf("EnsureParent(%q) error = %v", path, err)
	}
	if !DirExists(filepath.Dir(path)) {
		t.Fatalf("EnsureParent(%q) did not create the parent", path)
	}
}

func TestFileExists(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "file.txt")

	if FileExists(path) {
		t.Errorf("FileExists(%q) = true for missing file", path)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !FileExists(path) {
		t.Errorf("FileExists(%q) = false for existing file", path)
	}
	if FileExists(tmp) {
		t.Errorf("FileExists(%q) = true for a directory", tmp)
	}
}
