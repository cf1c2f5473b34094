package flight

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderUnavailable means the flight data source could not be reached
	// or returned a response that could not be decoded. Transient.
	ErrProviderUnavailable = errors.New("flight provider unavailable")

	// ErrMalformedRecord means a single provider entry lacked required fields.
	ErrMalformedRecord = errors.New("malformed flight record")

	// ErrInvalidPreviousState means the retained snapshot held duplicate ids.
	ErrInvalidPreviousState = errors.New("invalid previous state")

	// ErrInvalidZone means the zone name is not known to the provider.
	ErrInvalidZone = errors.New("unknown zone")
)

// MalformedRecordError describes a provider entry that was skipped.
type MalformedRecordError struct {
	Index  int
	ID     string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("entry %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("entry %d (%s): %s", e.Index, e.ID, e.Reason)
}

// Unwrap lets errors.Is match ErrMalformedRecord.
func (e *MalformedRecordError) Unwrap() error {
	return ErrMalformedRecord
}
