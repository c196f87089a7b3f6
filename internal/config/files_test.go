package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestResolveFilesRecursiveWithExclude(t *testing.T) {
	root := t.TempDir()
	core := filepath.Join(root, "rtl", "core.yaml")
	alu := filepath.Join(root, "rtl", "alu", "alu.json")
	skip := filepath.Join(root, "rtl", "old", "legacy.yaml")
	notes := filepath.Join(root, "rtl", "notes.txt")
	writeFile(t, core, "top: core\n")
	writeFile(t, alu, "{}")
	writeFile(t, skip, "top: legacy\n")
	writeFile(t, notes, "not a design")
	writeFile(t, filepath.Join(root, "hdlsym.json"), "{}")

	cfg := DefaultConfig()
	cfg.Design.Files = []string{"rtl/**/*.yaml", "rtl/**/*.json", "rtl/**/*.txt", "*.json"}
	cfg.Design.Exclude = append(cfg.Design.Exclude, "rtl/old/*")

	files, err := cfg.ResolveFiles(root)
	if err != nil {
		t.Fatalf("ResolveFiles: %v", err)
	}

	if !containsPath(files, core) || !containsPath(files, alu) {
		t.Fatalf("expected %s and %s, got %v", core, alu, files)
	}
	if containsPath(files, skip) {
		t.Fatalf("expected %s to be excluded, got %v", skip, files)
	}
	if containsPath(files, notes) {
		t.Fatalf("expected non-design file to be dropped, got %v", files)
	}
	if containsPath(files, filepath.Join(root, "hdlsym.json")) {
		t.Fatalf("expected config file to be excluded, got %v", files)
	}
	for i := 1; i < len(files); i++ {
		if files[i-1] > files[i] {
			t.Fatalf("expected sorted output, got %v", files)
		}
	}
}

func TestExpandArgs(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a.yaml")
	b := filepath.Join(root, "b.yaml")
	sub := filepath.Join(root, "sub", "c.json")
	writeFile(t, a, "top: a\n")
	writeFile(t, b, "top: b\n")
	writeFile(t, sub, "{}")

	cfg := DefaultConfig()
	missing := filepath.Join(root, "missing.yaml")
	files, err := cfg.ExpandArgs([]string{
		a,
		filepath.Join(root, "*.yaml"),
		filepath.Join(root, "sub"),
		missing,
	})
	if err != nil {
		t.Fatalf("ExpandArgs: %v", err)
	}

	want := []string{a, b, sub, missing}
	if len(files) != len(want) {
		t.Fatalf("expected %v, got %v", want, files)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, files)
		}
	}
}

func TestMatchSuffix(t *testing.T) {
	cases := []struct {
		path    string
		pattern string
		want    bool
	}{
		{"a/b/top.yaml", "*.yaml", true},
		{"a/b/top.yaml", "/*.yaml", true},
		{"a/b/top.json", "*.yaml", false},
		{filepath.Join("a", "b", "top.yaml"), filepath.Join("b", "*.yaml"), true},
		{filepath.Join("b", "top.yaml"), filepath.Join("b", "*.yaml"), true},
		{filepath.Join("a", "bb", "top.yaml"), filepath.Join("b", "*.yaml"), false},
		{filepath.Join("a", "b", "c", "top.yaml"), filepath.Join("a", "b", "*.yaml"), false},
		{"top.yaml", filepath.Join("b", "*.yaml"), false},
	}
	for _, tc := range cases {
		if got := matchSuffix(tc.path, tc.pattern); got != tc.want {
			t.Fatalf("matchSuffix(%q, %q) = %v, want %v", tc.path, tc.pattern, got, tc.want)
		}
	}
}

func containsPath(files []string, target string) bool {
	for _, f := range files {
		if filepath.Clean(f) == filepath.Clean(target) {
			return true
		}
	}
	return false
}
