package capture

import "fmt"

// AcquisitionError reports that the hardware could not be acquired: permission denied,
// device busy, no such device. It is never fatal; the caller may retry.
type AcquisitionError struct {
	Source string
	Err    error
}

func NewAcquisitionError(source string, err error) *AcquisitionError {
	return &AcquisitionError{Source: source, Err: err}
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("failed to acquire capture source '%s': %v", e.Source, e.Err)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

func (e *AcquisitionError) Cause() error {
	return e.Err
}
