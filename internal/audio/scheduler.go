// Package audio drives the pulse-oximeter beep. Cadence tracks the heart
// rate and pitch tracks oxygen saturation, the way bedside monitors map
// desaturation to a falling tone.
package audio

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/calmacil/vitalsim/api/schemas"
	"github.com/calmacil/vitalsim/internal/store"
)

// Output is the playback device. Browser and terminal backends both start
// suspended until the user interacts, so the scheduler resumes lazily.
type Output interface {
	Resume() error
	Suspended() bool
	Beep(freq float64, d time.Duration)
}

const (
	beepDuration = 60 * time.Millisecond

	// Pitch bands by SpO2, in Hz. Healthy saturation beeps high and the
	// tone steps down as the patient desaturates.
	pitchHealthy  = 880.0
	pitchMild     = 660.0
	pitchCritical = 440.0

	spo2Healthy = 96
	spo2Mild    = 90

	// idlePoll is the re-check cadence while the beep is gated off
	// (paused, muted, pulseless). Cheap enough to just keep polling.
	idlePoll = 2 * time.Second
)

// Scheduler emits one beep per simulated heartbeat. It is self-rescheduling:
// each fire reads the latest state and arms the next timer from the current
// heart rate, so rate changes take effect within one beat.
type Scheduler struct {
	st     *store.Store
	out    Output
	logger *zap.Logger

	minCadenceHR int

	mu      sync.Mutex
	muted   bool
	stopped bool
	timer   *time.Timer
}

// NewScheduler builds a stopped scheduler. minCadenceHR floors the cadence
// computation so a near-zero heart rate cannot arm an hours-long timer.
func NewScheduler(st *store.Store, out Output, minCadenceHR int, logger *zap.Logger) *Scheduler {
	if minCadenceHR < 1 {
		minCadenceHR = 1
	}
	return &Scheduler{
		st:           st,
		out:          out,
		logger:       logger.Named("audio"),
		minCadenceHR: minCadenceHR,
	}
}

// Start arms the first timer. Safe to call once; use SetMuted to toggle
// sound afterwards.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.timer != nil {
		return
	}
	s.timer = time.AfterFunc(0, s.fire)
}

// Stop cancels the pending timer. The scheduler cannot be restarted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
	}
}

// SetMuted silences the beep without tearing down the schedule.
func (s *Scheduler) SetMuted(muted bool) {
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()
}

// Muted reports the current mute flag.
func (s *Scheduler) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	muted := s.muted
	s.mu.Unlock()

	state := s.st.State()
	next := idlePoll

	if s.audible(state, muted) {
		if s.out.Suspended() {
			if err := s.out.Resume(); err != nil {
				s.logger.Debug("Audio output not ready", zap.Error(err))
			}
		}
		if !s.out.Suspended() {
			s.out.Beep(pitchFor(state.Vitals.SpO2), beepDuration)
		}
		hr := state.Vitals.HR
		if hr < s.minCadenceHR {
			hr = s.minCadenceHR
		}
		next = time.Duration(60000/hr) * time.Millisecond
	}

	s.mu.Lock()
	if !s.stopped {
		s.timer = time.AfterFunc(next, s.fire)
	}
	s.mu.Unlock()
}

// audible gates the beep: no pulse tone while muted, paused, pulseless or
// in a rhythm that has no organised output.
func (s *Scheduler) audible(state store.State, muted bool) bool {
	if muted || !state.Running || state.Vitals.HR <= 0 {
		return false
	}
	if state.Rhythm.Shockable() || !state.Rhythm.Valid() {
		return false
	}
	return state.Rhythm != schemas.RhythmAsystole
}

func pitchFor(spo2 int) float64 {
	switch {
	case spo2 >= spo2Healthy:
		return pitchHealthy
	case spo2 >= spo2Mild:
		return pitchMild
	default:
		return pitchCritical
	}
}
