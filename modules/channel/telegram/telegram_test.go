package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/flemzord/meterbot/internal/channel"
)

const testToken = "123:abc"

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func method(r *http.Request) string {
	return r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "valid", cfg: Config{Token: testToken}},
		{name: "missing token", cfg: Config{}, wantErr: "token is required"},
		{name: "bad token", cfg: Config{Token: "nope"}, wantErr: "token format"},
		{name: "bad url", cfg: Config{Token: testToken, APIURL: "ftp://x"}, wantErr: "api_url"},
		{name: "timeout too long", cfg: Config{Token: testToken, PollingTimeout: 99}, wantErr: "polling_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				if tt.cfg.APIURL != "https://api.telegram.org" || tt.cfg.PollingTimeout != 30 {
					t.Errorf("defaults not applied: %+v", tt.cfg)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestTransport_SendAndEdit(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var bodies []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		body["method"] = method(r)
		mu.Lock()
		bodies = append(bodies, body)
		mu.Unlock()
		writeJSON(t, w, map[string]any{
			"ok":     true,
			"result": map[string]any{"message_id": 55, "chat": map[string]any{"id": 42, "type": "private"}},
		})
	}))
	defer srv.Close()

	tr := NewTransport(NewClient(testToken, srv.URL))
	h, err := tr.Send(context.Background(), 42, "...", channel.ParseModeNone)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(channel.Handle{UserID: 42, ChatID: 42, MessageID: 55}, h); diff != "" {
		t.Errorf("handle mismatch (-want +got):\n%s", diff)
	}
	if err := tr.Edit(context.Background(), h, "<b>hi</b>", channel.ParseModeHTML); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(bodies) != 2 {
		t.Fatalf("requests = %d, want 2", len(bodies))
	}
	if bodies[0]["method"] != "sendMessage" || bodies[0]["text"] != "..." || bodies[0]["parse_mode"] != nil {
		t.Errorf("send body = %v", bodies[0])
	}
	if bodies[1]["method"] != "editMessageText" || bodies[1]["message_id"] != float64(55) || bodies[1]["parse_mode"] != "HTML" {
		t.Errorf("edit body = %v", bodies[1])
	}
}

func TestTransport_EditErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		description string
		want        error
	}{
		{name: "not modified", description: "Bad Request: message is not modified", want: channel.ErrNotModified},
		{name: "gone", description: "Bad Request: message to edit not found", want: channel.ErrMessageNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				writeJSON(t, w, map[string]any{"ok": false, "error_code": 400, "description": tt.description})
			}))
			defer srv.Close()

			err := NewTransport(NewClient(testToken, srv.URL)).Edit(context.Background(), channel.Handle{UserID: 1, MessageID: 2}, "x", "")
			if !errors.Is(err, tt.want) {
				t.Errorf("Edit() error = %v, want %v", err, tt.want)
			}
		})
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(t, w, map[string]any{"ok": false, "error_code": 400, "description": "Bad Request: chat not found"})
	}))
	defer srv.Close()
	err := NewTransport(NewClient(testToken, srv.URL)).Edit(context.Background(), channel.Handle{UserID: 1, MessageID: 2}, "x", "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != 400 {
		t.Errorf("other 400 should stay an APIError, got %v", err)
	}
}

func TestClient_RetriesOnTooManyRequests(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			writeJSON(t, w, map[string]any{"ok": false, "error_code": 429, "description": "Too Many Requests", "parameters": map[string]any{"retry_after": 0}})
			return
		}
		writeJSON(t, w, map[string]any{"ok": true, "result": true})
	}))
	defer srv.Close()

	c := NewClient(testToken, srv.URL)
	if err := c.SendChatAction(context.Background(), 1, "typing"); err != nil {
		t.Fatal(err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("calls = %d, want 2", n)
	}
}

func TestTruncateUTF8(t *testing.T) {
	t.Parallel()

	if got := truncateUTF8("héllo", 2); got != "h" {
		t.Errorf("truncateUTF8 split a rune: %q", got)
	}
	if got := truncateUTF8("abc", 10); got != "abc" {
		t.Errorf("truncateUTF8 = %q", got)
	}
}

func TestPoller_DeliversPrivateMessages(t *testing.T) {
	t.Parallel()

	png := []byte("\x89PNG\r\n\x1a\n0000")
	var served sync.Once
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/file/") {
			_, _ = w.Write(png)
			return
		}
		switch method(r) {
		case "getUpdates":
			updates := []Update{}
			served.Do(func() {
				updates = []Update{
					{UpdateID: 1, Message: &Message{MessageID: 1, From: &User{ID: 7, Username: "ann"}, Chat: Chat{ID: 7, Type: "private"}, Text: "hello"}},
					{UpdateID: 2, Message: &Message{MessageID: 2, From: &User{ID: 8}, Chat: Chat{ID: -5, Type: "group"}, Text: "ignored"}},
					{UpdateID: 3, Message: &Message{MessageID: 3, From: &User{ID: 9, IsBot: true}, Chat: Chat{ID: 9, Type: "private"}, Text: "bot"}},
					{UpdateID: 4, Message: &Message{MessageID: 4, From: &User{ID: 7}, Chat: Chat{ID: 7, Type: "private"}, Caption: "what is it", Photo: []PhotoSize{
						{FileID: "small", Width: 10, Height: 10},
						{FileID: "big", Width: 100, Height: 100},
					}}},
				}
			})
			writeJSON(t, w, map[string]any{"ok": true, "result": updates})
		case "getFile":
			body, _ := io.ReadAll(r.Body)
			if !strings.Contains(string(body), `"big"`) {
				t.Errorf("getFile body = %s, want largest size", body)
			}
			writeJSON(t, w, map[string]any{"ok": true, "result": File{FileID: "big", FilePath: "photos/big.png"}})
		}
	}))
	defer srv.Close()

	got := make(chan channel.Inbound, 4)
	cfg := Config{Token: testToken, APIURL: srv.URL, PollingTimeout: 1}
	p := NewPoller(NewClient(testToken, srv.URL), cfg, func(_ context.Context, m channel.Inbound) { got <- m }, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	var msgs []channel.Inbound
	for len(msgs) < 2 {
		select {
		case m := <-got:
			msgs = append(msgs, m)
		case <-time.After(5 * time.Second):
			t.Fatalf("received %d messages, want 2", len(msgs))
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}

	if msgs[0].UserID != 7 || msgs[0].Username != "ann" || msgs[0].Text != "hello" || msgs[0].Image != nil {
		t.Errorf("text message = %+v", msgs[0])
	}
	if msgs[1].Text != "what is it" || msgs[1].Image == nil || msgs[1].Image.MIMEType != "image/png" {
		t.Errorf("photo message = %+v", msgs[1])
	}
	if p.offset != 5 {
		t.Errorf("offset = %d, want 5", p.offset)
	}
}

func TestPoller_AllowUsers(t *testing.T) {
	t.Parallel()

	p := NewPoller(nil, Config{AllowUsers: []string{"42", "bob"}}, nil, nil)
	tests := []struct {
		user User
		want bool
	}{
		{User{ID: 42}, true},
		{User{ID: 1, Username: "bob"}, true},
		{User{ID: 1, Username: "eve"}, false},
		{User{ID: 1}, false},
	}
	for _, tt := range tests {
		if got := p.allowed(&tt.user); got != tt.want {
			t.Errorf("allowed(%+v) = %v, want %v", tt.user, got, tt.want)
		}
	}
}

func TestPoller_PausesAfterRepeatedErrors(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
		writeJSON(t, w, map[string]any{"ok": false, "error_code": 500, "description": "boom"})
	}))
	defer srv.Close()

	p := NewPoller(NewClient(testToken, srv.URL), Config{Token: testToken}, func(context.Context, channel.Inbound) {}, slog.Default())
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := p.Run(ctx); err != nil {
		t.Errorf("Run() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("calls = %d, want 1 within the first backoff", calls)
	}
}
