package birdeye

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

var (
	// ErrMalformedResponse is returned when a REST payload does not match the
	// documented shape.
	ErrMalformedResponse = errors.New("birdeye: malformed response")
	// ErrMalformedMessage marks a price channel frame that could not be
	// decoded.
	ErrMalformedMessage = errors.New("birdeye: malformed message")
)

// StatusError is returned for non-2xx REST responses.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("birdeye: unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("birdeye: unexpected status %d: %s", e.StatusCode, e.Message)
}

type errorProcessor interface {
	Decode(r *resty.Response) error
}

// ErrorProcessor turns an error response into a *StatusError. Messages maps
// status codes to replacement messages.
type ErrorProcessor struct {
	Messages map[int]string
}

func NewErrorProcessor(messages map[int]string) *ErrorProcessor {
	return &ErrorProcessor{Messages: messages}
}

func (p *ErrorProcessor) Decode(r *resty.Response) error {
	statusErr := &StatusError{StatusCode: r.StatusCode()}
	if msg, ok := p.Messages[r.StatusCode()]; ok {
		statusErr.Message = msg
		return statusErr
	}

	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(r.Body(), &body); err == nil {
		statusErr.Message = body.Message
	}

	return statusErr
}
