package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleTOML = `
[server]
ip = "0.0.0.0"
port = 8088
max_payload = 8192
smtp_server = "mail.example.com"
smtp_user = "relay@example.com"
smtp_password = "hunter2"
smtp_timeout = 20

[probe]
from_email = "probe@example.com"
cache_ttl = 0

[[endpoints]]
identifier = "mysiteidentifier"
name = "My Site"
domain = "https://mysite.example"
from_email = "noreply@mysite.example"
max_message_length = 5000
max_name_length = 64

[endpoints.target]
email = "owner@mysite.example"
email_name = "Site Owner"

[[endpoints]]
identifier = "other"
name = "Other Site"
domain = "https://other.example"
from_email = "noreply@other.example"
max_message_length = 100
max_name_length = 10

[endpoints.target]
email = "owner@other.example"
email_name = "Other Owner"
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_TOML(t *testing.T) {
	path := writeConfig(t, "config.toml", sampleTOML)

	cfg, err := Load(nil, path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Path() != path {
		t.Errorf("Path() = %q, want %q", cfg.Path(), path)
	}
	if got := cfg.Server.Addr(); got != "0.0.0.0:8088" {
		t.Errorf("Addr() = %q, want %q", got, "0.0.0.0:8088")
	}
	if cfg.Server.MaxPayload != 8192 {
		t.Errorf("MaxPayload = %d, want 8192", cfg.Server.MaxPayload)
	}
	if cfg.Server.SMTPTimeout != 20*time.Second {
		t.Errorf("SMTPTimeout = %v, want 20s (plain integers are seconds)", cfg.Server.SMTPTimeout)
	}
	if cfg.Server.SMTPPort != 25 {
		t.Errorf("SMTPPort = %d, want default 25", cfg.Server.SMTPPort)
	}
	if cfg.Probe.Timeout != 15*time.Second {
		t.Errorf("Probe.Timeout = %v, want default 15s", cfg.Probe.Timeout)
	}
	if cfg.Probe.CacheTTL != 0 {
		t.Errorf("Probe.CacheTTL = %v, want 0 (disabled)", cfg.Probe.CacheTTL)
	}
	if !cfg.Probe.SMTPCheck {
		t.Error("Probe.SMTPCheck should default to true")
	}
	if len(cfg.Endpoints) != 2 {
		t.Fatalf("len(Endpoints) = %d, want 2", len(cfg.Endpoints))
	}
	ep := cfg.Endpoints[0]
	if ep.Target.Email != "owner@mysite.example" || ep.Target.EmailName != "Site Owner" {
		t.Errorf("Target = %+v", ep.Target)
	}
	if ep.MaxNameLength != 64 || ep.MaxMessageLength != 5000 {
		t.Errorf("limits = %d/%d, want 64/5000", ep.MaxNameLength, ep.MaxMessageLength)
	}
}

func TestLoad_EnvOverridesSecret(t *testing.T) {
	t.Setenv("CONTACTRELAY_SERVER_SMTP_PASSWORD", "from-env")
	path := writeConfig(t, "config.toml", sampleTOML)

	cfg, err := Load(nil, path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.SMTPPassword != "from-env" {
		t.Errorf("SMTPPassword = %q, want %q", cfg.Server.SMTPPassword, "from-env")
	}
}

func TestLoad_ErrorKinds(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
		want Kind
	}{
		{"missing file", filepath.Join(dir, "nope.toml"), KindNotFound},
		{"directory", dir, KindPermission},
		{"bad toml", writeConfig(t, "bad.toml", "[server\nport = "), KindParse},
		{"no endpoints", writeConfig(t, "empty.toml", "[server]\nsmtp_server = \"mail\"\n"), KindInvalid},
		{"bad limits", writeConfig(t, "limits.toml", strings.Replace(sampleTOML, "max_name_length = 64", "max_name_length = 0", 1)), KindInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(nil, tt.path)
			var cerr *Error
			if !errors.As(err, &cerr) {
				t.Fatalf("Load error = %v, want *config.Error", err)
			}
			if cerr.Kind != tt.want {
				t.Errorf("Kind = %v, want %v (err: %v)", cerr.Kind, tt.want, err)
			}
			if !strings.Contains(cerr.Error(), tt.path) {
				t.Errorf("diagnostic %q should name the path", cerr.Error())
			}
		})
	}
}

func TestLoad_InvalidCollectsAllProblems(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[server]
port = 70000

[[endpoints]]
identifier = ""
max_message_length = 10
max_name_length = 10
`)
	_, err := Load(nil, path)
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	for _, want := range []string{
		"server.smtp_server",
		"server.port must be in 1..65535",
		"endpoints[0].identifier",
		"endpoints[0].domain",
		"endpoints[0].target.email",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q missing %q", msg, want)
		}
	}
}

func TestLookup(t *testing.T) {
	cfg := &Config{Endpoints: []EndpointConfig{
		{Identifier: "a", Name: "first"},
		{Identifier: "b", Name: "second"},
		{Identifier: "a", Name: "duplicate"},
	}}

	ep, ok := cfg.Lookup("a")
	if !ok || ep.Name != "first" {
		t.Errorf("Lookup(a) = %+v, %v; want first match", ep, ok)
	}
	again, _ := cfg.Lookup("a")
	if again != ep {
		t.Errorf("Lookup is not idempotent: %+v != %+v", again, ep)
	}
	if _, ok := cfg.Lookup("unknown"); ok {
		t.Error("Lookup(unknown) should miss")
	}
	if _, ok := cfg.Lookup(""); ok {
		t.Error("Lookup(\"\") should miss")
	}

	dups := cfg.DuplicateIdentifiers()
	if len(dups) != 1 || dups[0] != "a" {
		t.Errorf("DuplicateIdentifiers() = %v, want [a]", dups)
	}
}

func TestOrigins(t *testing.T) {
	cfg := &Config{Endpoints: []EndpointConfig{
		{Domain: "https://a.example"},
		{Domain: " https://b.example "},
		{Domain: "https://a.example"},
		{Domain: ""},
	}}
	got := cfg.Origins()
	want := []string{"https://a.example", "https://b.example"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Origins() = %v, want %v", got, want)
	}
}

func TestResolvePath(t *testing.T) {
	t.Setenv("CONTACTRELAY_CONFIG", "")
	if got := ResolvePath(""); got != DefaultPath {
		t.Errorf("ResolvePath(\"\") = %q, want %q", got, DefaultPath)
	}
	t.Setenv("CONTACTRELAY_CONFIG", "/tmp/env.toml")
	if got := ResolvePath(""); got != "/tmp/env.toml" {
		t.Errorf("ResolvePath with env = %q", got)
	}
	if got := ResolvePath("/tmp/flag.toml"); got != "/tmp/flag.toml" {
		t.Errorf("flag should win, got %q", got)
	}
}

func TestDump_RedactsSecrets(t *testing.T) {
	path := writeConfig(t, "config.toml", sampleTOML)
	cfg, err := Load(nil, path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	out, err := cfg.Dump()
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if strings.Contains(out, "hunter2") {
		t.Error("Dump leaked smtp_password")
	}
	if !strings.Contains(out, redacted) || !strings.Contains(out, "mysiteidentifier") {
		t.Errorf("unexpected dump:\n%s", out)
	}
	if cfg.Server.SMTPPassword != "hunter2" {
		t.Error("Dump must not modify the config")
	}
}

func TestLoad_FlagsOverride(t *testing.T) {
	t.Setenv("CONTACTRELAY_SERVER_LOG_LEVEL", "warn")
	path := writeConfig(t, "config.toml", sampleTOML)

	fs := Flags("contactrelay")
	if err := fs.Parse([]string{"--log_level", "debug"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cfg, err := Load(nil, path, fs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want flag value debug", cfg.Server.LogLevel)
	}
	if cfg.Server.Env != "prod" {
		t.Errorf("Env = %q, unset flag must not override the default", cfg.Server.Env)
	}
}
