package flow

import "github.com/pkg/errors"

// FlattenErrors folds the non-nil errors into one, nil if there are none.
func FlattenErrors(errs ...error) error {
	var finalErr error
	for _, err := range errs {
		if err == nil {
			continue
		}

		if finalErr != nil {
			finalErr = errors.Errorf("%v, %v", finalErr, err)
		} else {
			finalErr = err
		}
	}
	return finalErr
}
