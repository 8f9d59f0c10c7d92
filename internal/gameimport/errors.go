package gameimport

import (
	"errors"
	"fmt"
)

// ErrUnrecognizedURL is returned when a URL matches no supported platform.
var ErrUnrecognizedURL = errors.New("unrecognized game URL: expected a lichess.org or chess.com game link")

// NotFoundError reports a game id the platform does not know (HTTP 404).
type NotFoundError struct {
	Source Source
	GameID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s game %s not found", e.Source, e.GameID)
}

// FetchError reports any other non-2xx platform response, or a transport
// failure (StatusCode 0, Err set).
type FetchError struct {
	Source     Source
	StatusCode int
	Status     string
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s request failed: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("%s request failed: %s", e.Source, e.Status)
}

func (e *FetchError) Unwrap() error { return e.Err }
