package app

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/meterbot/internal/config"
	"github.com/flemzord/meterbot/modules/store/sqlite"
)

const gatewayOnly = `
version: "1"
models:
  available:
    model-x:
      input_per_1k: 0.001
      output_per_1k: 0.002
store:
  driver: memory
backend:
  openai:
    api_key: sk-test-secret-key-0123456789abcdef
gateway:
  bind: 127.0.0.1:0
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meterbot.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

// syncBuffer is a bytes.Buffer safe for concurrent log writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestResolveConfigPath_XDGConfigHome(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "meterbot")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cfgPath := filepath.Join(cfgDir, "meterbot.yaml")
	if err := os.WriteFile(cfgPath, []byte("version: \"1\""), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv("XDG_CONFIG_HOME", dir)

	got, err := ResolveConfigPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != cfgPath {
		t.Errorf("got %q, want %q", got, cfgPath)
	}
}

func TestResolveConfigPath_NotFound(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/nonexistent/path")
	t.Chdir(t.TempDir())

	if _, err := ResolveConfigPath(); err == nil {
		t.Error("expected error when no config file found")
	}
}

func TestDefaultDataDir_XDGDataHome(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	if got, want := DefaultDataDir(), "/custom/data/meterbot"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{name: "missing file", path: "/nonexistent/config.yaml"},
		{name: "invalid yaml", path: writeConfig(t, "not: valid: yaml: [")},
		{name: "validation", path: writeConfig(t, "version: \"1\"\n")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(tt.path); err == nil {
				t.Error("LoadConfig() should fail")
			}
		})
	}
}

func TestRunContext_GatewayOnlyStartsAndStops(t *testing.T) {
	path := writeConfig(t, gatewayOnly)
	logs := &syncBuffer{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- RunContext(ctx, RunParams{ConfigPath: path, DataDir: t.TempDir(), LogOutput: logs})
	}()

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(logs.String(), "gateway: listening") {
		if time.Now().After(deadline) {
			t.Fatalf("gateway did not start; logs:\n%s", logs)
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunContext() error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RunContext did not return after cancel")
	}

	out := logs.String()
	if !strings.Contains(out, "app: shutdown complete") {
		t.Errorf("missing shutdown log:\n%s", out)
	}
	if strings.Contains(out, "sk-test-secret-key") {
		t.Error("API key leaked into logs")
	}
}

func TestOpenStore(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	dir := t.TempDir()

	s, err := openStore(context.Background(), config.StoreConfig{SQLite: sqlite.Config{Path: "nested/test.db"}}, dir, logger)
	if err != nil {
		t.Fatalf("openStore() error: %v", err)
	}
	if c, ok := s.(io.Closer); ok {
		_ = c.Close()
	}
	if _, err := os.Stat(filepath.Join(dir, "nested", "test.db")); err != nil {
		t.Errorf("relative path not resolved against the data dir: %v", err)
	}

	if _, err := openStore(context.Background(), config.StoreConfig{Driver: "postgres"}, dir, logger); err == nil {
		t.Error("unknown driver should fail")
	}
}

func TestDiscardTransport_Handles(t *testing.T) {
	tr := &discardTransport{logger: slog.New(slog.DiscardHandler)}
	a, _ := tr.Send(context.Background(), 7, "a", "")
	b, _ := tr.Send(context.Background(), 7, "b", "")
	if a.MessageID == b.MessageID || a.UserID != 7 {
		t.Errorf("handles = %+v, %+v", a, b)
	}
	if err := tr.Edit(context.Background(), a, "x", ""); err != nil {
		t.Errorf("Edit() error: %v", err)
	}
}
