package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func executeCommand(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	SetVersion("test-version")
	out, err := executeCommand("version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "test-version") {
		t.Errorf("expected version output to contain 'test-version', got: %s", out)
	}
}

func TestRootHelp(t *testing.T) {
	out, err := executeCommand("--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expectedSubcommands := []string{
		"run", "check", "config", "history", "version",
	}
	for _, sub := range expectedSubcommands {
		if !strings.Contains(out, sub) {
			t.Errorf("help output missing subcommand %q", sub)
		}
	}
}

func TestHistorySubcommands(t *testing.T) {
	subcmds := []string{"show", "stats"}
	for _, sub := range subcmds {
		out, err := executeCommand("history", sub, "--help")
		if err != nil {
			t.Errorf("history %s --help failed: %v", sub, err)
		}
		if out == "" {
			t.Errorf("history %s --help produced no output", sub)
		}
	}
}

func TestUnknownCommand(t *testing.T) {
	_, err := executeCommand("nonexistent")
	if err == nil {
		t.Error("expected error for unknown command, got nil")
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixfactory.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConfigValidateValid(t *testing.T) {
	path := writeTempConfig(t, `
checks:
  - name: lint
    command: "true"
agents:
  - name: fixer
    command: "true"
    kinds: [formatting]
`)
	out, err := executeCommand("config", "validate", path)
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	if !strings.Contains(out, "valid") {
		t.Errorf("expected valid message, got: %s", out)
	}
}

func TestConfigValidateInvalid(t *testing.T) {
	path := writeTempConfig(t, `
checks:
  - name: lint
agents:
  - name: fixer
    command: "true"
    kinds: [nonsense]
`)
	out, err := executeCommand("config", "validate", path)
	if err == nil {
		t.Fatal("expected validation failure")
	}
	if !strings.Contains(out, "checks[0].command") {
		t.Errorf("expected missing-command error, got: %s", out)
	}
	if !strings.Contains(out, "agents[0].kinds") {
		t.Errorf("expected bad-kind error, got: %s", out)
	}
}

func TestConfigShowAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
checks:
  - name: lint
    command: "true"
`)
	out, err := executeCommand("config", "show", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "max_iterations: 5") {
		t.Errorf("expected defaulted max_iterations in output, got: %s", out)
	}
	if !strings.Contains(out, "parser: generic") {
		t.Errorf("expected defaulted parser in output, got: %s", out)
	}
}

func TestCheckUnknownName(t *testing.T) {
	path := writeTempConfig(t, `
checks:
  - name: lint
    command: "true"
`)
	_, err := executeCommand("check", "--config", path, "--dir", t.TempDir(), "no-such-check")
	if err == nil || !strings.Contains(err.Error(), "no-such-check") {
		t.Errorf("expected unknown-check error, got: %v", err)
	}
}
