package oracle

import (
	"errors"

	"FountainProtocol/internal/calculator"
)

var (
	// ErrInputUnavailable means the holder/donor counts could not be obtained. No state was changed.
	ErrInputUnavailable = errors.New("input unavailable")

	// ErrPublishFailed wraps audit publication failures reported on a Result.
	ErrPublishFailed = errors.New("publish failed")

	// ErrInvalidConfiguration is returned at construction for bad parameters.
	ErrInvalidConfiguration = calculator.ErrInvalidConfiguration
)

// Status is the outcome of a run that did not fail.
type Status string

const (
	StatusComputed        Status = "COMPUTED"
	StatusAlreadyComputed Status = "ALREADY_COMPUTED"
)
