package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cityhex/cityhex/internal/config"
)

func TestRootCommand_Version(t *testing.T) {
	cmd := newRootCommand(config.FromEnv())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.HasPrefix(out.String(), "cityhex version dev") {
		t.Fatalf("unexpected version output %q", out.String())
	}
}

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := newRootCommand(config.FromEnv())
	for _, name := range []string{"map", "cells", "validate", "inspect", "serve"} {
		if sub, _, err := cmd.Find([]string{name}); err != nil || sub.Name() != name {
			t.Fatalf("subcommand %q not registered", name)
		}
	}
}

func TestCellsAndValidateCommands(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "krasnodar.geojson")
	src := `{"type":"Feature","properties":{"name":"Краснодар"},"geometry":{"type":"Polygon","coordinates":[[[38.9,45.0],[39.05,45.0],[39.05,45.1],[38.9,45.1],[38.9,45.0]]]}}`
	if err := os.WriteFile(in, []byte(src), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	out := filepath.Join(dir, "cells.html")
	pq := filepath.Join(dir, "cells.parquet")

	root := newRootCommand(config.FromEnv())
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs([]string{"cells", "--in", in, "--out", out, "--res", "7", "--label", "Краснодар", "--parquet", pq})
	if err := root.Execute(); err != nil {
		t.Fatalf("cells: %v\n%s", err, buf.String())
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("map not written: %v", err)
	}

	root = newRootCommand(config.FromEnv())
	buf.Reset()
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs([]string{"inspect", "--in", pq})
	if err := root.Execute(); err != nil {
		t.Fatalf("inspect: %v\n%s", err, buf.String())
	}
	if !strings.Contains(buf.String(), "Краснодар") || !strings.Contains(buf.String(), "r7:") {
		t.Fatalf("inspect output missing place or resolution:\n%s", buf.String())
	}

	root = newRootCommand(config.FromEnv())
	buf.Reset()
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs([]string{"validate", "--in", in})
	if err := root.Execute(); err != nil {
		t.Fatalf("validate: %v\n%s", err, buf.String())
	}
	if !strings.Contains(buf.String(), "closed in source: true") {
		t.Fatalf("validate output:\n%s", buf.String())
	}
}
