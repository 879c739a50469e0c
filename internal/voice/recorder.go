package voice

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/journeyapp/journey-client-go/internal/config"
	apperrors "github.com/journeyapp/journey-client-go/internal/errors"
)

// State is the recorder lifecycle phase.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateStopped
	StateSubmitting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateStopped:
		return "stopped"
	case StateSubmitting:
		return "submitting"
	default:
		return "unknown"
	}
}

// VoiceSetter submits a finished clip. Satisfied by auth.Manager.
type VoiceSetter interface {
	SetVoice(ctx context.Context, audio []byte) error
}

// Snapshot is an observer's view of the recorder.
type Snapshot struct {
	State        State
	Remaining    int
	HasRecording bool
	ClipID       string
}

// Recorder runs the capture countdown: recording starts with a fixed number
// of seconds and stops automatically when the countdown reaches zero.
type Recorder struct {
	device InputDevice
	setter VoiceSetter

	seconds int
	tick    time.Duration
	onTick  func(remaining int)

	mu         sync.Mutex
	state      State
	remaining  int
	clip       []byte
	clipID     string
	stream     InputStream
	generation int
	cancelTick context.CancelFunc
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithTickInterval overrides the countdown tick, mainly for tests.
func WithTickInterval(d time.Duration) Option {
	return func(r *Recorder) { r.tick = d }
}

// WithTickObserver registers a callback invoked with the remaining seconds
// after every countdown tick.
func WithTickObserver(fn func(remaining int)) Option {
	return func(r *Recorder) { r.onTick = fn }
}

func NewRecorder(device InputDevice, setter VoiceSetter, seconds int, opts ...Option) *Recorder {
	r := &Recorder{
		device:  device,
		setter:  setter,
		seconds: seconds,
		tick:    config.RecordTickInterval,
		state:   StateIdle,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		State:        r.state,
		Remaining:    r.remaining,
		HasRecording: len(r.clip) > 0,
		ClipID:       r.clipID,
	}
}

// Start opens the device and begins the countdown. Starting while already
// recording is a no-op; starting during submission is rejected.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	switch r.state {
	case StateRecording:
		r.mu.Unlock()
		return nil
	case StateSubmitting:
		r.mu.Unlock()
		return apperrors.InvalidState("cannot start recording while a submission is in flight")
	}
	r.mu.Unlock()

	stream, err := r.device.Open(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.generation++
	gen := r.generation
	r.state = StateRecording
	r.remaining = r.seconds
	r.clip = nil
	r.clipID = ""
	r.stream = stream
	tickCtx, cancel := context.WithCancel(context.Background())
	r.cancelTick = cancel
	r.mu.Unlock()

	go r.countdown(tickCtx, gen)
	return nil
}

func (r *Recorder) countdown(ctx context.Context, gen int) {
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.mu.Lock()
			if r.state != StateRecording || r.generation != gen {
				r.mu.Unlock()
				return
			}
			r.remaining--
			if r.remaining < 0 {
				r.remaining = 0
			}
			remaining := r.remaining
			r.mu.Unlock()

			if r.onTick != nil {
				r.onTick(remaining)
			}
			if remaining == 0 {
				if err := r.Stop(); err != nil {
					log.Error().Err(err).Msg("auto-stop at end of countdown failed")
				}
				return
			}
		}
	}
}

// Stop ends the capture and keeps the clip for submission. Valid only while
// recording.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	if r.state != StateRecording {
		r.mu.Unlock()
		return apperrors.InvalidState("no recording in progress")
	}
	stream := r.stream
	r.stream = nil
	if r.cancelTick != nil {
		r.cancelTick()
		r.cancelTick = nil
	}
	r.mu.Unlock()

	audio, err := stream.Close()

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.state = StateIdle
		r.remaining = 0
		return err
	}
	r.state = StateStopped
	r.clip = audio
	r.clipID = uuid.NewString()
	return nil
}

// Restart discards any held clip and begins a fresh capture.
func (r *Recorder) Restart(ctx context.Context) error {
	r.mu.Lock()
	if r.state == StateRecording {
		r.mu.Unlock()
		if err := r.Stop(); err != nil {
			return err
		}
		r.mu.Lock()
	}
	if r.state == StateSubmitting {
		r.mu.Unlock()
		return apperrors.InvalidState("cannot restart while a submission is in flight")
	}
	r.state = StateIdle
	r.clip = nil
	r.clipID = ""
	r.remaining = 0
	r.mu.Unlock()

	return r.Start(ctx)
}

// Submit uploads the held clip. On success the recorder returns to idle with
// the clip discarded; on failure the clip is kept so the user can retry.
func (r *Recorder) Submit(ctx context.Context) error {
	r.mu.Lock()
	if r.state != StateStopped || len(r.clip) == 0 {
		r.mu.Unlock()
		return apperrors.InvalidState("nothing recorded to submit")
	}
	r.state = StateSubmitting
	clip := r.clip
	clipID := r.clipID
	r.mu.Unlock()

	err := r.setter.SetVoice(ctx, clip)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.state = StateStopped
		return err
	}
	log.Info().Str("clipId", clipID).Int("bytes", len(clip)).Msg("voice sample submitted")
	r.state = StateIdle
	r.clip = nil
	r.clipID = ""
	return nil
}

// Teardown releases the device and resets the recorder. Safe to call in any
// state.
func (r *Recorder) Teardown() {
	r.mu.Lock()
	stream := r.stream
	r.stream = nil
	if r.cancelTick != nil {
		r.cancelTick()
		r.cancelTick = nil
	}
	r.state = StateIdle
	r.remaining = 0
	r.clip = nil
	r.clipID = ""
	r.mu.Unlock()

	if stream != nil {
		if _, err := stream.Close(); err != nil {
			log.Debug().Err(err).Msg("discarding capture on teardown")
		}
	}
}
