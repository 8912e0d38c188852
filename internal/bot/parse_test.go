package bot

import "testing"

func TestParseCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text  string
		name  string
		arg   string
		isCmd bool
	}{
		{text: "/new", name: "new", isCmd: true},
		{text: "  /Model  gpt-4 ", name: "model", arg: "gpt-4", isCmd: true},
		{text: "/mode@meterbot code_assistant", name: "mode", arg: "code_assistant", isCmd: true},
		{text: "hello /new", isCmd: false},
		{text: "/", isCmd: false},
		{text: "", isCmd: false},
	}
	for _, tt := range tests {
		name, arg, ok := parseCommand(tt.text)
		if ok != tt.isCmd || name != tt.name || arg != tt.arg {
			t.Errorf("parseCommand(%q) = (%q, %q, %v), want (%q, %q, %v)", tt.text, name, arg, ok, tt.name, tt.arg, tt.isCmd)
		}
	}
}
