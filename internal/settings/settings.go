// Package settings holds the user facing state shared between the control panel, the camera
// controller and the display. Everything is mutated through the setters only.
package settings

import (
	"sync"

	"github.com/liptakmatyas/opencv-playground/webcambg/internal/capture"
)

type Snapshot struct {
	CameraOn bool
	Mirrored bool
	Volume   float64
}

type Settings struct {
	mu        sync.RWMutex
	state     Snapshot
	listeners []func(Snapshot)
}

func New(mirrored bool, volume float64) *Settings {
	return &Settings{
		state: Snapshot{
			CameraOn: false,
			Mirrored: mirrored,
			Volume:   capture.ClampGain(volume),
		},
	}
}

func (s *Settings) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state
}

func (s *Settings) CameraOn() bool  { return s.Snapshot().CameraOn }
func (s *Settings) Mirrored() bool  { return s.Snapshot().Mirrored }
func (s *Settings) Volume() float64 { return s.Snapshot().Volume }

// SetCameraOn is reserved for the camera controller.
func (s *Settings) SetCameraOn(on bool) {
	s.update(func(st *Snapshot) { st.CameraOn = on })
}

func (s *Settings) SetMirrored(mirrored bool) {
	s.update(func(st *Snapshot) { st.Mirrored = mirrored })
}

func (s *Settings) ToggleMirrored() bool {
	var mirrored bool
	s.update(func(st *Snapshot) {
		st.Mirrored = !st.Mirrored
		mirrored = st.Mirrored
	})
	return mirrored
}

// SetVolume clamps to [0, 1] and returns the stored value.
func (s *Settings) SetVolume(volume float64) float64 {
	volume = capture.ClampGain(volume)
	s.update(func(st *Snapshot) { st.Volume = volume })
	return volume
}

// Subscribe registers fn to be called with every new snapshot, outside the lock.
func (s *Settings) Subscribe(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listeners = append(s.listeners, fn)
}

func (s *Settings) update(mutate func(*Snapshot)) {
	s.mu.Lock()
	before := s.state
	mutate(&s.state)
	after := s.state
	listeners := append([]func(Snapshot){}, s.listeners...)
	s.mu.Unlock()

	if before == after {
		return
	}
	for _, fn := range listeners {
		fn(after)
	}
}
