package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeBook(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"SUMMARY.md": "# Summary\n\n- [Arrays](arrays.md)\n- [Slices](slices.md)\n",
		"arrays.md":  "# Arrays\n\nAn array is a fixed-size sequence.\n",
		"slices.md":  "# Slices\n\nA slice is a view into an array.\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestBuildValidateSearchInspect(t *testing.T) {
	out := t.TempDir()
	stdout, err := run(t, "build", "--src", writeBook(t), "--out", out, "--format", "js,json,cbor", "--title", "Reference")
	if err != nil {
		t.Fatalf("build error: %v\n%s", err, stdout)
	}
	if !strings.Contains(stdout, `indexed "Reference": 2 docs`) {
		t.Errorf("build output = %s", stdout)
	}
	index := filepath.Join(out, "searchindex.json")

	for _, f := range []string{index, filepath.Join(out, "searchindex.js"), filepath.Join(out, "searchindex.cbor")} {
		if stdout, err := run(t, "validate", f); err != nil || !strings.HasPrefix(stdout, "ok: 2 docs") {
			t.Errorf("validate %s = %q, %v", f, stdout, err)
		}
	}

	stdout, err = run(t, "search", index, "array", "--teaser")
	if err != nil {
		t.Fatalf("search error: %v", err)
	}
	if !strings.Contains(stdout, "arrays.html#arrays") || !strings.Contains(stdout, "2 of 2 hits") {
		t.Errorf("search output = %s", stdout)
	}
	if strings.Contains(stdout, "<em>") {
		t.Error("teaser markup not stripped")
	}

	stdout, err = run(t, "inspect", index, "--top", "3")
	if err != nil {
		t.Fatalf("inspect error: %v", err)
	}
	for _, want := range []string{"docs         2", "top body terms", "FIELD"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("inspect output missing %q:\n%s", want, stdout)
		}
	}
}

func TestValidateCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "searchindex.json")
	os.WriteFile(path, []byte(`{"doc_urls":[],"index":{}}`), 0o644)
	if _, err := run(t, "validate", path); err == nil {
		t.Error("expected validation failure")
	}
}

func TestPreprocessSupports(t *testing.T) {
	if _, err := run(t, "preprocess", "supports", "html"); err != nil {
		t.Errorf("supports html: %v", err)
	}
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	writeTable(&buf, []string{"A", "B"}, [][]string{{"日本", "x"}, {"abc", "y"}})
	want := "A     B\n日本  x\nabc   y\n"
	if buf.String() != want {
		t.Errorf("table =\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestStripTags(t *testing.T) {
	if got := stripTags("a <em>b</em> &amp; c"); got != "a b & c" {
		t.Errorf("stripTags() = %q", got)
	}
}
