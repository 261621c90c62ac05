package domain

// Event is a mailbox message from a background goroutine to the UI loop.
// The set of implementations is closed: Utterance and Advisory.
type Event interface {
	isEvent()
}

// Utterance is a finalized transcript segment.
type Utterance struct {
	Text string
}

// Advisory is a raw advisory engine response (or a formatted error).
// Seq is assigned when the advisory task is spawned; zero means unsequenced.
type Advisory struct {
	Raw string
	Seq uint64
}

func (Utterance) isEvent() {}
func (Advisory) isEvent()  {}

// TranscriptKind identifies a streaming transcription event.
type TranscriptKind string

const (
	TranscriptKindPartial TranscriptKind = "partial"
	TranscriptKindFinal   TranscriptKind = "final"

	// TranscriptKindUtteranceEnd carries no text; it marks a gap in speech.
	TranscriptKindUtteranceEnd TranscriptKind = "utterance_end"
)

// TranscriptEvent is incremental output from a streaming STT provider.
type TranscriptEvent struct {
	Kind          TranscriptKind `json:"kind"`
	Text          string         `json:"text"`
	IsSpeechFinal bool           `json:"isSpeechFinal"`
}
