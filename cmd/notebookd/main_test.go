package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/txn2/ai-notebook/internal/server"
)

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"-config", "notebook.yaml", "-address", ":9090"})
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}
	if opts.configPath != "notebook.yaml" {
		t.Errorf("configPath = %q, want notebook.yaml", opts.configPath)
	}
	if opts.address != ":9090" {
		t.Errorf("address = %q, want :9090", opts.address)
	}
	if opts.showVersion {
		t.Error("showVersion should default to false")
	}
}

func TestParseFlags_Unknown(t *testing.T) {
	if _, err := parseFlags([]string{"-transport", "stdio"}); err == nil {
		t.Error("expected error for unknown flag")
	}
}

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), []string{"-version"}, &out); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	want := "notebookd version " + server.Version
	if !strings.Contains(out.String(), want) {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestRun_MissingConfig(t *testing.T) {
	err := run(context.Background(), []string{"-config", filepath.Join(t.TempDir(), "missing.yaml")}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "loading config") {
		t.Errorf("run() error = %v, want loading config error", err)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notebook.yaml")
	if err := os.WriteFile(path, []byte("persistence:\n  mode: floppy\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	err := run(context.Background(), []string{"-config", path}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "creating server") {
		t.Errorf("run() error = %v, want creating server error", err)
	}
}

func TestLoadConfig_AddressOverride(t *testing.T) {
	cfg, err := loadConfig(serverOptions{address: "127.0.0.1:7000"})
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Server.Address != "127.0.0.1:7000" {
		t.Errorf("Address = %q", cfg.Server.Address)
	}
}
