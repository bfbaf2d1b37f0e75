package backend

import "fmt"

// Result is what a blocking generation returns. Backends answer either with
// plain text or with a structured message; the set is closed to those two.
type Result interface {
	isResult()
}

// Text is a raw string result.
type Text string

func (Text) isResult() {}

// MessageResult is a structured assistant message.
type MessageResult struct {
	Role    string
	Content string
}

func (*MessageResult) isResult() {}

// ExtractText returns the text payload of r.
func ExtractText(r Result) (string, error) {
	switch v := r.(type) {
	case Text:
		return string(v), nil
	case *MessageResult:
		if v == nil {
			return "", fmt.Errorf("nil message result")
		}
		return v.Content, nil
	case nil:
		return "", fmt.Errorf("backend returned no result")
	default:
		return "", fmt.Errorf("unsupported result type %T", r)
	}
}
