package pricing_test

import (
	"errors"
	"testing"

	"github.com/flemzord/meterbot/internal/pricing"
	"github.com/flemzord/meterbot/pkg/chat"
)

func testTable(t *testing.T) *pricing.Table {
	t.Helper()
	tbl, err := pricing.New(pricing.Config{
		Models: map[string]pricing.ModelPrice{
			"model-x": {InputPer1K: 0.001, OutputPer1K: 0.002},
			"free":    {},
		},
		Images: map[string]pricing.ImagePrice{
			"dalle-3": {"standard": {"1024x1024": 0.04}, "hd": {"1024x1024": 0.08}},
		},
		Transcription: pricing.TranscriptionPrice{Model: "whisper-1", PerMinute: 0.006},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return tbl
}

func TestTable_Cost(t *testing.T) {
	t.Parallel()
	tbl := testTable(t)

	tests := []struct {
		name   string
		action pricing.Action
		want   chat.Money
	}{
		{"exact thousand", pricing.Completion("model-x", 1000, 1000), 3000},
		{"rounds up", pricing.Completion("model-x", 5, 7), 5 + 14},
		{"zero usage", pricing.Completion("model-x", 0, 0), 0},
		{"free model", pricing.Completion("free", 100, 100), 0},
		{"one image", pricing.Image("dalle-3", "standard", "1024x1024", 1), 40_000},
		{"hd images", pricing.Image("dalle-3", "hd", "1024x1024", 3), 240_000},
		{"one minute", pricing.Transcription("whisper-1", 60), 6000},
		{"partial minute", pricing.Transcription("whisper-1", 1), 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := tbl.Cost(tt.action)
			if err != nil {
				t.Fatalf("Cost() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Cost() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestTable_CostErrors(t *testing.T) {
	t.Parallel()
	tbl := testTable(t)

	tests := []struct {
		name   string
		action pricing.Action
		want   error
	}{
		{"unknown model", pricing.Completion("nope", 1, 1), pricing.ErrUnknownModel},
		{"negative tokens", pricing.Completion("model-x", -1, 0), pricing.ErrNegativeQuantity},
		{"unknown image model", pricing.Image("nope", "hd", "1024x1024", 1), pricing.ErrUnknownModel},
		{"unknown resolution", pricing.Image("dalle-3", "hd", "256x256", 1), pricing.ErrUnknownImageOption},
		{"unknown transcription model", pricing.Transcription("nope", 1), pricing.ErrUnknownModel},
		{"unknown kind", pricing.Action{Kind: "teleport"}, pricing.ErrUnknownAction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := tbl.Cost(tt.action); !errors.Is(err, tt.want) {
				t.Errorf("Cost() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNew_RejectsNegativePrices(t *testing.T) {
	t.Parallel()

	_, err := pricing.New(pricing.Config{
		Models: map[string]pricing.ModelPrice{"m": {InputPer1K: -1}},
	})
	if !errors.Is(err, pricing.ErrNegativeQuantity) {
		t.Errorf("New() error = %v, want ErrNegativeQuantity", err)
	}
}

func TestTable_Models(t *testing.T) {
	t.Parallel()
	tbl := testTable(t)

	got := tbl.Models()
	if len(got) != 2 || got[0] != "free" || got[1] != "model-x" {
		t.Errorf("Models() = %v", got)
	}
	if !tbl.Has("model-x") || tbl.Has("dalle-3") {
		t.Error("Has() disagrees with the completion price list")
	}
	if tbl.TranscriptionModel() != "whisper-1" {
		t.Errorf("TranscriptionModel() = %q", tbl.TranscriptionModel())
	}
}
