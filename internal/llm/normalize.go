package llm

import (
	"fmt"

	"llm-gateway/internal/backend"
)

var turns = map[Role]backend.Turn{
	RoleSystem:    backend.TurnSystem,
	RoleUser:      backend.TurnUser,
	RoleAssistant: backend.TurnAssistant,
}

// Normalize converts messages to the backend's turn representation, keeping
// their order. It fails with ErrInvalidRole on the first unknown role.
func Normalize(messages []ChatMessage) ([]backend.Message, error) {
	out := make([]backend.Message, len(messages))
	for i, m := range messages {
		turn, ok := turns[m.Role]
		if !ok {
			return nil, fmt.Errorf("%w: messages[%d] has role %q, want system, user or assistant", ErrInvalidRole, i, m.Role)
		}
		out[i] = backend.Message{Turn: turn, Content: m.Content}
	}
	return out, nil
}
