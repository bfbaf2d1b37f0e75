package llm

// Role is who authored a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

const (
	DefaultTemperature = 0.2
	DefaultTopP        = 0.9
)

// ChatMessage is a single message in a conversation.
type ChatMessage struct {
	// Role is who sent the message: "system", "user" or "assistant".
	Role Role `json:"role"`
	// Content is the text of the message.
	Content string `json:"content"`
}

// ChatRequest is a conversation plus the sampling parameters to complete it
// with. Nil parameters take their defaults.
type ChatRequest struct {
	Messages    []ChatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
}

// ChatResponse is the result of a blocking completion.
type ChatResponse struct {
	Content string `json:"content"`
}

// EventType tags a StreamEvent.
type EventType string

const (
	EventToken EventType = "token"
	EventDone  EventType = "done"
	EventError EventType = "error"
)

// DoneData is the payload of the done event.
const DoneData = "[DONE]"

// StreamEvent is one event of a streaming completion. A stream carries zero
// or more token events followed by exactly one done or error event.
type StreamEvent struct {
	Type EventType
	Data string
}

// Terminal reports whether e ends the stream.
func (e StreamEvent) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

func tokenEvent(text string) StreamEvent {
	return StreamEvent{Type: EventToken, Data: text}
}

func doneEvent() StreamEvent {
	return StreamEvent{Type: EventDone, Data: DoneData}
}

func errorEvent(err error) StreamEvent {
	return StreamEvent{Type: EventError, Data: err.Error()}
}

func (r *ChatRequest) temperature() float64 {
	if r.Temperature == nil {
		return DefaultTemperature
	}
	return *r.Temperature
}

func (r *ChatRequest) topP() float64 {
	if r.TopP == nil {
		return DefaultTopP
	}
	return *r.TopP
}
