package engine

import (
	"errors"
	"fmt"
)

// IncompleteReadingError means the reading carried no usable measurement, or
// a paired field (gas type/concentration, latitude/longitude) was only
// half-present. Recoverable at the boundary as a rejected request.
type IncompleteReadingError struct {
	Reason string
}

func (e *IncompleteReadingError) Error() string {
	return fmt.Sprintf("incomplete reading: %s", e.Reason)
}

// OutOfRangeError means a present field carried a physically implausible
// value. Recoverable at the boundary as a rejected request.
type OutOfRangeError struct {
	Field string
	Value float64
	Min   float64
	Max   float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%s out of range: %g not in [%g, %g]", e.Field, e.Value, e.Min, e.Max)
}

// UnsupportedGasError means the gas type is not one the MQ2 sensor reports.
type UnsupportedGasError struct {
	GasType string
}

func (e *UnsupportedGasError) Error() string {
	return fmt.Sprintf("unsupported gas type: %q", e.GasType)
}

// ErrUnclassifiableReading indicates no type rule matched a validated
// reading. The validator guarantees at least one measurement field, so this
// is an internal-consistency fault, not a client error.
var ErrUnclassifiableReading = errors.New("unclassifiable reading: no telemetry type rule matched")

// IsValidationError reports whether err is a client-recoverable validation
// failure, as opposed to an internal fault.
func IsValidationError(err error) bool {
	var incomplete *IncompleteReadingError
	var outOfRange *OutOfRangeError
	var badGas *UnsupportedGasError
	return errors.As(err, &incomplete) || errors.As(err, &outOfRange) || errors.As(err, &badGas)
}
