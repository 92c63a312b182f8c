package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kbukum/scribe/transcription"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scribe.yml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(writeConfig(t, "name: scribe\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 8090 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Router.CloudProvider != "openai" {
		t.Errorf("cloud provider = %q", cfg.Router.CloudProvider)
	}
	if cfg.Enhance.LocalModel != "llama3.2" {
		t.Errorf("local model = %q", cfg.Enhance.LocalModel)
	}
	if cfg.Router.capabilities() != nil {
		t.Error("empty capabilities should allow every backend")
	}
	if cfg.Observability.ServiceName != "scribe" {
		t.Errorf("observability service = %q", cfg.Observability.ServiceName)
	}
}

func TestLoadConfig_Sections(t *testing.T) {
	cfg, err := loadConfig(writeConfig(t, `
name: scribe
environment: production
server:
  port: 9000
router:
  capabilities: [heavy_server, in_process]
  default_model: small
backends:
  whisper:
    url: http://gpu-box:8387
    compute_type: int8
enhance:
  local_model: none
  max_chars: 4000
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	caps := cfg.Router.capabilities()
	if !caps[transcription.KindHeavy] || !caps[transcription.KindLocal] || caps[transcription.KindCloud] {
		t.Errorf("capabilities = %v", caps)
	}
	if cfg.Backends.Whisper.URL != "http://gpu-box:8387" || cfg.Backends.Whisper.ComputeType != "int8" {
		t.Errorf("whisper = %+v", cfg.Backends.Whisper)
	}
	if cfg.Enhance.MaxChars != 4000 || cfg.Enhance.LocalModel != "none" {
		t.Errorf("enhance = %+v", cfg.Enhance)
	}
	if cfg.Debug {
		t.Error("production should not enable debug")
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "unknown backend", body: "name: scribe\nrouter:\n  capabilities: [mainframe]\n"},
		{name: "bad environment", body: "name: scribe\nenvironment: moon\n"},
		{name: "cache without addr", body: "name: scribe\ncache:\n  enabled: true\n"},
		{name: "bad port", body: "name: scribe\nserver:\n  port: 70000\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := loadConfig(writeConfig(t, tt.body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestFormatSegment(t *testing.T) {
	tests := []struct {
		seg  transcription.Segment
		want string
	}{
		{transcription.Segment{Start: 0, End: 1.5, Text: "hello"}, "[   0.00 -    1.50] hello"},
		{transcription.Segment{Start: 61, End: 62.25, Speaker: "SPEAKER_01", Text: "yes"}, "[  61.00 -   62.25] SPEAKER_01: yes"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := formatSegment(tt.seg); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

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

func TestCredentialsCommands(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	dir := t.TempDir()
	path := writeConfig(t, "name: scribe\nlogging:\n  level: error\ncredentials:\n  path: "+filepath.Join(dir, "creds.db")+"\n  passphrase: correct horse\n")

	out, err := run(t, "--config", path, "credentials", "set", "openai", "sk-proj-abcdef123456")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "abcdef123456") || !strings.Contains(out, "sk-proj***") {
		t.Errorf("set output not masked: %q", out)
	}

	out, err = run(t, "--config", path, "credentials", "get", "openai")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "sk-proj***" {
		t.Errorf("get output = %q", out)
	}

	out, err = run(t, "--config", path, "credentials", "list")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "openai" {
		t.Errorf("list output = %q", out)
	}

	if _, err := run(t, "--config", path, "credentials", "delete", "openai"); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "--config", path, "credentials", "get", "openai"); err == nil {
		t.Error("expected missing key after delete")
	}
}

func TestCredentialsCommands_NoPassphrase(t *testing.T) {
	path := writeConfig(t, "name: scribe\nlogging:\n  level: error\n")
	if _, err := run(t, "--config", path, "credentials", "set", "openai", "sk-x"); err != errNoStore {
		t.Errorf("err = %v, want errNoStore", err)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "scribe ") {
		t.Errorf("output = %q", out)
	}
}
