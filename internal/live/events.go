package live

// EventType identifies what a live session event carries.
type EventType string

const (
	// EventAudio carries one chunk of 24 kHz PCM16LE model speech.
	EventAudio EventType = "audio"
	// EventTranscript carries transcript text for either leg of the call.
	EventTranscript EventType = "transcript"
	// EventToolCall carries a batch of function calls issued by the model.
	EventToolCall EventType = "tool_call"
	// EventTurnComplete marks the natural end of one model turn. It is not
	// an error and does not end the session.
	EventTurnComplete EventType = "turn_complete"
	// EventClosed is the final event before the event channel closes.
	EventClosed EventType = "closed"
)

// TranscriptSource distinguishes model speech from caller speech.
type TranscriptSource string

const (
	SourceAssistant TranscriptSource = "assistant"
	SourceUser      TranscriptSource = "user"
)

// Event is one item on a session's event stream. The stream is owned and
// consumed by a single reader, normally the media bridge for the call.
type Event struct {
	Type   EventType
	Audio  []byte
	Text   string
	Source TranscriptSource
	Calls  []FunctionCall
	Detail string
}

// FunctionCall is a model-issued function invocation. ID is the
// provider-assigned correlation id and must be echoed on the response.
type FunctionCall struct {
	ID   string
	Name string
	Args map[string]any
}

// FunctionResponse is the result of one function call, either a result
// string or an error string, never both.
type FunctionResponse struct {
	ID     string
	Name   string
	Result string
	Err    string
}

// FunctionDeclaration describes a callable function to the model, in the
// provider's declaration schema.
type FunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}
