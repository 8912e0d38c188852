package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/flemzord/meterbot/pkg/chat"
)

const sample = `
version: "1"
executor:
  min_balance: 0
  initial_balance: 2.5
  idle_timeout: 1h
  chat_modes: [assistant, code_assistant]
  default_chat_mode: assistant
  admins: [42]
  slot_prune_schedule: "@every 5m"
stream:
  min_delta: 50
  parse_mode: HTML
models:
  default: gpt-4o
  available:
    gpt-4o:
      input_per_1k: 0.005
      output_per_1k: 0.015
      context_window: 128000
    gpt-4o-mini:
      input_per_1k: 0.00015
      output_per_1k: 0.0006
images:
  dall-e-3:
    standard:
      1024x1024: 0.04
transcription:
  model: whisper-1
  per_minute: 0.006
store:
  driver: sqlite
  sqlite:
    path: ${METERBOT_TEST_DB:-/tmp/meterbot.db}
backend:
  openai:
    api_key: ${METERBOT_TEST_KEY}
channel:
  telegram:
    token: "123:abc"
gateway:
  bind: 127.0.0.1:9090
telemetry:
  service_name: meterbot-test
`

func TestParse_Sample(t *testing.T) {
	t.Setenv("METERBOT_TEST_KEY", "sk-test")

	cfg, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}

	if cfg.Backend.OpenAI.APIKey != "sk-test" {
		t.Errorf("api_key = %q, want expanded env value", cfg.Backend.OpenAI.APIKey)
	}
	if cfg.Store.SQLite.Path != "/tmp/meterbot.db" {
		t.Errorf("sqlite path = %q, want default from expression", cfg.Store.SQLite.Path)
	}
	if cfg.Executor.IdleTimeout != time.Hour {
		t.Errorf("idle_timeout = %v", cfg.Executor.IdleTimeout)
	}
	if cfg.Gateway == nil || cfg.Gateway.Bind != "127.0.0.1:9090" {
		t.Errorf("gateway = %+v", cfg.Gateway)
	}

	policy := cfg.ExecutorPolicy()
	if policy.InitialBalance != chat.Euros(2.5) || policy.DefaultModel != "gpt-4o" || policy.IdleTimeout != time.Hour {
		t.Errorf("executor policy = %+v", policy)
	}
	if diff := cmp.Diff([]int64{42}, policy.Admins); diff != "" {
		t.Errorf("admins mismatch (-want +got):\n%s", diff)
	}

	prices, err := cfg.Prices()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"gpt-4o", "gpt-4o-mini"}, prices.Models()); diff != "" {
		t.Errorf("models mismatch (-want +got):\n%s", diff)
	}

	if got := cfg.OpenAI().ContextWindows["gpt-4o"]; got != 128000 {
		t.Errorf("context window = %d, want 128000", got)
	}
	if got := cfg.SlotPruneSchedule(); got != "@every 5m" {
		t.Errorf("SlotPruneSchedule() = %q", got)
	}
	if got := cfg.SlotMaxIdle(); got != defaultSlotMaxIdle {
		t.Errorf("SlotMaxIdle() = %v", got)
	}
}

func TestParse_UnresolvedVariable(t *testing.T) {
	_, err := Parse([]byte("version: ${METERBOT_TEST_UNSET_VAR}\n"))
	if err == nil || !strings.Contains(err.Error(), "METERBOT_TEST_UNSET_VAR") {
		t.Errorf("Parse() error = %v, want unresolved variable", err)
	}
}

func TestParse_UnknownField(t *testing.T) {
	if _, err := Parse([]byte("version: \"1\"\nmodules: {}\n")); err == nil {
		t.Error("Parse() should reject unknown top-level keys")
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("METERBOT_TEST_SET", "value")

	tests := []struct {
		in   string
		want string
	}{
		{in: "a: ${METERBOT_TEST_SET}", want: "a: value"},
		{in: "a: ${METERBOT_TEST_SET:-other}", want: "a: value"},
		{in: "a: ${METERBOT_TEST_MISSING:-fallback}", want: "a: fallback"},
		{in: "a: ${METERBOT_TEST_MISSING:-}", want: "a: "},
		{in: "a: plain", want: "a: plain"},
	}
	for _, tt := range tests {
		got, err := expandEnv([]byte(tt.in))
		if err != nil {
			t.Errorf("expandEnv(%q) error: %v", tt.in, err)
			continue
		}
		if string(got) != tt.want {
			t.Errorf("expandEnv(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meterbot.yaml")
	if err := os.WriteFile(path, []byte("version: \"1\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Version != "1" {
		t.Errorf("Version = %q", cfg.Version)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of a missing file should fail")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want []string
	}{
		{
			name: "empty",
			yaml: "",
			want: []string{"version field is required", "at least one model", "api_key is required", "channel.telegram or gateway"},
		},
		{
			name: "bad values",
			yaml: `
version: "2"
executor:
  initial_balance: -1
  chat_modes: [assistant]
  default_chat_mode: poet
  slot_prune_schedule: "every now and then"
models:
  default: missing
  available:
    m: {input_per_1k: -1, output_per_1k: 0}
store:
  driver: postgres
backend:
  openai: {api_key: k}
channel:
  telegram: {token: bad}
`,
			want: []string{
				`unsupported version "2"`,
				"initial_balance must be >= 0",
				"default_chat_mode",
				"slot_prune_schedule",
				`"missing" is not in models.available`,
				"negative quantity",
				`unknown driver "postgres"`,
				"channel.telegram: telegram: token format invalid",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yaml))
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			err = Validate(cfg)
			if err == nil {
				t.Fatal("Validate() should fail")
			}
			for _, want := range tt.want {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("Validate() error missing %q:\n%v", want, err)
				}
			}
		})
	}
}

func TestDefaultModel_FallsBackToFirst(t *testing.T) {
	cfg := &Config{Models: ModelsConfig{Available: map[string]ModelEntry{"b": {}, "a": {}}}}
	if got := cfg.DefaultModel(); got != "a" {
		t.Errorf("DefaultModel() = %q, want a", got)
	}
}
