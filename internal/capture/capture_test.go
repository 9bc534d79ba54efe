package capture

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type stubTrack struct {
	id      string
	kind    Kind
	stopped bool
	err     error
}

func (t *stubTrack) ID() string    { return t.id }
func (t *stubTrack) Kind() Kind    { return t.kind }
func (t *stubTrack) Stopped() bool { return t.stopped }
func (t *stubTrack) Stop() error {
	t.stopped = true
	return t.err
}

func TestStopAll(t *testing.T) {
	video := &stubTrack{id: "v", kind: KindVideo}
	audio := &stubTrack{id: "a", kind: KindAudio, err: errors.New("busy")}
	tracks := []Track{video, audio}

	assert.Equal(t, 2, ActiveTracks(tracks))

	err := StopAll(tracks)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to stop audio track a")
	assert.Equal(t, 0, ActiveTracks(tracks))
}

func TestAcquisitionError(t *testing.T) {
	denied := errors.New("permission denied")
	var err error = NewAcquisitionError("0", denied)

	var acqErr *AcquisitionError
	assert.True(t, errors.As(errors.Wrap(err, "start"), &acqErr))
	assert.True(t, errors.Is(err, denied))
	assert.Equal(t, "failed to acquire capture source '0': permission denied", err.Error())
}

func TestGainClamp(t *testing.T) {
	g := NewGain(1.5)
	assert.Equal(t, 1.0, g.Get())

	g.Set(-0.2)
	assert.Equal(t, 0.0, g.Get())

	g.Set(0.35)
	assert.InDelta(t, 0.35, g.Get(), 1e-9)
}
