package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunCLIHelp(t *testing.T) {
	if err := runCLI([]string{"vibemeta", "help"}); err != nil {
		t.Fatalf("runCLI help failed: %v", err)
	}
}

func TestRunCLIInvalidCommand(t *testing.T) {
	err := runCLI([]string{"vibemeta", "unknown"})
	if err == nil {
		t.Fatalf("expected invalid command error")
	}
	if !strings.Contains(err.Error(), "invalid command") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunCLIWithoutCommand(t *testing.T) {
	err := runCLI([]string{"vibemeta"})
	if err == nil {
		t.Fatalf("expected invalid command error")
	}
	if !strings.Contains(err.Error(), "invalid command") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunCommandPrintsQueries(t *testing.T) {
	scriptPath := writeScript(t, `module Named
class Widget
include Widget Named
ancestors Widget
`)

	out, err := captureStdout(t, func() error {
		return runCommand([]string{scriptPath})
	})
	if err != nil {
		t.Fatalf("runCommand failed: %v", err)
	}
	if got := strings.TrimSpace(out); got != "[Widget, Named, Object, Kernel, BasicObject]" {
		t.Fatalf("unexpected stdout: %q", got)
	}
}

func TestRunCommandReportsFailingStatement(t *testing.T) {
	scriptPath := writeScript(t, "class Widget\ninclude Widget Widget\n")

	_, err := captureStdout(t, func() error {
		return runCommand([]string{scriptPath})
	})
	if err == nil {
		t.Fatalf("expected execution failure")
	}
	if !strings.Contains(err.Error(), "execution failed: TypeError") || !strings.Contains(err.Error(), "(2:1)") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunCommandRequiresScriptPath(t *testing.T) {
	err := runCommand(nil)
	if err == nil {
		t.Fatalf("expected script path error")
	}
	if !strings.Contains(err.Error(), "script path required") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunCommandUsesConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "vibemeta.toml")
	if err := os.WriteFile(configPath, []byte("[runtime]\nhash_buckets = 3\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	scriptPath := writeScript(t, "module A\n")

	err := runCommand([]string{"-config", configPath, scriptPath})
	if err == nil {
		t.Fatalf("expected config validation error")
	}
	if !strings.Contains(err.Error(), "power of two") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func writeScript(t *testing.T, source string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script"+scriptExt)
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	orig := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w

	runErr := fn()
	_ = w.Close()
	os.Stdout = orig

	var buf bytes.Buffer
	if _, copyErr := io.Copy(&buf, r); copyErr != nil {
		t.Fatalf("read stdout: %v", copyErr)
	}
	_ = r.Close()
	return buf.String(), runErr
}
