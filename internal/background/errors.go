package background

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrSuperseded means the decode finished after another selection was made; the decoded
// image was dropped.
var ErrSuperseded = errors.New("background selection superseded")

// DecodeError reports bytes that are not a decodable image. The previous selection stays.
type DecodeError struct {
	MIME string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode background image (%s): %v", e.MIME, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
func (e *DecodeError) Cause() error  { return e.Err }
