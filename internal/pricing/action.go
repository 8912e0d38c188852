package pricing

// Kind discriminates the metered action types.
type Kind string

// Metered action kinds.
const (
	KindCompletion    Kind = "completion"
	KindImage         Kind = "image"
	KindTranscription Kind = "transcription"
)

// Action is one billable unit of work. Only the fields relevant to Kind are read.
type Action struct {
	Kind         Kind    `json:"kind"`
	Model        string  `json:"model"`
	InputTokens  int     `json:"input_tokens,omitempty"`
	OutputTokens int     `json:"output_tokens,omitempty"`
	Images       int     `json:"images,omitempty"`
	Quality      string  `json:"quality,omitempty"`
	Resolution   string  `json:"resolution,omitempty"`
	Seconds      float64 `json:"seconds,omitempty"`
}

// Completion describes a text generation with the given token usage.
func Completion(model string, inputTokens, outputTokens int) Action {
	return Action{Kind: KindCompletion, Model: model, InputTokens: inputTokens, OutputTokens: outputTokens}
}

// Image describes n generated images.
func Image(model, quality, resolution string, n int) Action {
	return Action{Kind: KindImage, Model: model, Quality: quality, Resolution: resolution, Images: n}
}

// Transcription describes seconds of transcribed audio.
func Transcription(model string, seconds float64) Action {
	return Action{Kind: KindTranscription, Model: model, Seconds: seconds}
}
