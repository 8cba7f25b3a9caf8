package fetch

import (
	"errors"
	"fmt"
)

// ErrInvalidRange is returned when the requested day count is outside the
// 1-16 window supported by the Open-Meteo forecast API.
var ErrInvalidRange = errors.New("days must be between 1 and 16")

// NetworkError wraps the last transport failure after retry exhaustion.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
