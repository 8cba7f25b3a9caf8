package transform

import "fmt"

// MissingInputError is returned when transform is invoked before fetch has
// produced the raw JSON documents for a city.
type MissingInputError struct {
	City string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("raw data not available for %q; run: etl-weather fetch --city %q", e.City, e.City)
}
