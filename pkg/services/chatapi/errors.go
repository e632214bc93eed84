package chatapi

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrEmptyResult = errors.New("chatapi: empty result")
	ErrEmptyToken  = errors.New("chatapi: empty token")
)

// StatusError captures non-2xx responses of the chat service.
type StatusError struct {
	StatusCode int
	URL        string
	Message    string
	Body       string
}

func (e *StatusError) Error() string {
	if len(e.Message) > 0 {
		return fmt.Sprintf("chatapi: status %d from %s: %s", e.StatusCode, e.URL, e.Message)
	}
	return fmt.Sprintf("chatapi: status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *StatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// IsUnauthorized reports whether err is a 401 from the service
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized
}
