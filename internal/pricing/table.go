package pricing

import (
	"fmt"
	"math"
	"slices"

	"github.com/flemzord/meterbot/pkg/chat"
)

// ModelPrice is the euro price of 1000 input and output tokens.
type ModelPrice struct {
	InputPer1K  float64 `yaml:"input_per_1k"`
	OutputPer1K float64 `yaml:"output_per_1k"`
}

// ImagePrice maps quality then resolution to the euro price of one image.
type ImagePrice map[string]map[string]float64

// TranscriptionPrice is the euro price of one minute of audio for a model.
type TranscriptionPrice struct {
	Model     string  `yaml:"model"`
	PerMinute float64 `yaml:"per_minute"`
}

// Config is the YAML form of the price table.
type Config struct {
	Models        map[string]ModelPrice `yaml:"models"`
	Images        map[string]ImagePrice `yaml:"images"`
	Transcription TranscriptionPrice    `yaml:"transcription"`
}

type tokenPrice struct {
	input  chat.Money
	output chat.Money
}

// Table is an immutable price table. Cost is a pure function of the action.
type Table struct {
	models        map[string]tokenPrice
	images        map[string]map[string]chat.Money
	transcription struct {
		model     string
		perMinute chat.Money
	}
}

// New builds a Table from cfg. Prices must be non-negative.
func New(cfg Config) (*Table, error) {
	t := &Table{
		models: make(map[string]tokenPrice, len(cfg.Models)),
		images: make(map[string]map[string]chat.Money, len(cfg.Images)),
	}
	for name, p := range cfg.Models {
		if p.InputPer1K < 0 || p.OutputPer1K < 0 {
			return nil, fmt.Errorf("pricing: model %q: %w", name, ErrNegativeQuantity)
		}
		t.models[name] = tokenPrice{input: chat.Euros(p.InputPer1K), output: chat.Euros(p.OutputPer1K)}
	}
	for name, byQuality := range cfg.Images {
		opts := make(map[string]chat.Money)
		for quality, byRes := range byQuality {
			for res, price := range byRes {
				if price < 0 {
					return nil, fmt.Errorf("pricing: image model %q: %w", name, ErrNegativeQuantity)
				}
				opts[imageKey(quality, res)] = chat.Euros(price)
			}
		}
		t.images[name] = opts
	}
	if cfg.Transcription.PerMinute < 0 {
		return nil, fmt.Errorf("pricing: transcription: %w", ErrNegativeQuantity)
	}
	t.transcription.model = cfg.Transcription.Model
	t.transcription.perMinute = chat.Euros(cfg.Transcription.PerMinute)
	return t, nil
}

// Has reports whether model has a completion price.
func (t *Table) Has(model string) bool {
	_, ok := t.models[model]
	return ok
}

// Models returns the priced completion models in sorted order.
func (t *Table) Models() []string {
	names := make([]string, 0, len(t.models))
	for name := range t.models {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// TranscriptionModel returns the model transcription seconds are billed against.
func (t *Table) TranscriptionModel() string {
	return t.transcription.model
}

// Cost returns the price of a. Fractions of a micro-euro round up.
func (t *Table) Cost(a Action) (chat.Money, error) {
	switch a.Kind {
	case KindCompletion:
		p, ok := t.models[a.Model]
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrUnknownModel, a.Model)
		}
		if a.InputTokens < 0 || a.OutputTokens < 0 {
			return 0, ErrNegativeQuantity
		}
		return per1K(a.InputTokens, p.input) + per1K(a.OutputTokens, p.output), nil

	case KindImage:
		opts, ok := t.images[a.Model]
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrUnknownModel, a.Model)
		}
		price, ok := opts[imageKey(a.Quality, a.Resolution)]
		if !ok {
			return 0, fmt.Errorf("%w: %s %s", ErrUnknownImageOption, a.Quality, a.Resolution)
		}
		if a.Images < 0 {
			return 0, ErrNegativeQuantity
		}
		return price * chat.Money(a.Images), nil

	case KindTranscription:
		if a.Model != t.transcription.model {
			return 0, fmt.Errorf("%w: %q", ErrUnknownModel, a.Model)
		}
		if a.Seconds < 0 {
			return 0, ErrNegativeQuantity
		}
		return chat.Money(math.Ceil(a.Seconds * float64(t.transcription.perMinute) / 60)), nil

	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownAction, a.Kind)
	}
}

func per1K(tokens int, price chat.Money) chat.Money {
	return (chat.Money(tokens)*price + 999) / 1000
}

func imageKey(quality, resolution string) string {
	return quality + "/" + resolution
}
