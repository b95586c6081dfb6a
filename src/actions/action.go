// Package actions implements the units of work that MIDI mappings trigger:
// simulated input, MIDI output, commands, sounds, mixer changes and the
// sequence/conditional combinators built from them.
package actions

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/0h41/midikontrol/src/gamepad"
	"github.com/0h41/midikontrol/src/input"
	"github.com/0h41/midikontrol/src/pulseaudio"
	"github.com/0h41/midikontrol/src/sound"
	"github.com/0h41/midikontrol/src/state"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gitlab.com/gomidi/midi/v2"
	"go.uber.org/atomic"
)

// Action is a validated, executable unit of work. The set of implementations
// is closed: every variant lives in this package and is built through New.
type Action interface {
	ID() uuid.UUID
	Kind() Kind
	Description() string
	// IsValid checks the configuration and records the problems found,
	// replacing those of any previous call.
	IsValid() bool
	ValidationErrors() []string
	Config() Config
	// Suspends reports whether execution may wait on wall-clock time.
	Suspends() bool

	execute(ctx context.Context, trigger *int) error
}

// DeviceInfo describes a MIDI output port.
type DeviceInfo struct {
	ID   int
	Name string
}

// MidiOutput sends messages to MIDI output ports.
type MidiOutput interface {
	OutputDevices() []DeviceInfo
	StartOutputDevice(id int) error
	Send(id int, msg midi.Message) error
}

// Mixer controls system audio volumes and the default output.
type Mixer interface {
	SetVolume(targetType pulseaudio.TargetType, name string, volume float32) error
	SetDefaultOutput(name string) error
}

// Player plays decoded sound buffers without blocking.
type Player interface {
	Play(buf *sound.Buffer) error
}

// DecodeFunc loads an audio file into memory.
type DecodeFunc func(path string, volume float64) (*sound.Buffer, error)

// Reporter receives execution failures for display to the user.
type Reporter interface {
	ActionFailed(a Action, err error)
}

// Services are the collaborators actions drive. Nil services make the
// actions that need them fail with a ResourceUnavailableError.
type Services struct {
	State    *state.Store
	Input    input.Simulator
	Gamepad  gamepad.Controller
	Midi     MidiOutput
	Mixer    Mixer
	Decode   DecodeFunc
	Player   Player
	Reporter Reporter
}

type Stats struct {
	Executed int64 `json:"executed"`
	Failed   int64 `json:"failed"`
	Pending  int64 `json:"pending"`
}

// Env is the execution environment shared by every action built from it. It
// runs actions, reports their failures and tracks the background work they
// schedule.
type Env struct {
	Services
	log zerolog.Logger

	wg       sync.WaitGroup
	pending  *atomic.Int64
	executed *atomic.Int64
	failed   *atomic.Int64
}

func NewEnv(services Services) *Env {
	if services.State == nil {
		services.State = state.NewStore()
	}
	if services.Gamepad == nil {
		services.Gamepad = gamepad.Unavailable{}
	}
	if services.Decode == nil {
		services.Decode = sound.Decode
	}
	return &Env{
		Services: services,
		log:      log.With().Str("module", "Actions").Logger(),
		pending:  atomic.NewInt64(0),
		executed: atomic.NewInt64(0),
		failed:   atomic.NewInt64(0),
	}
}

// Execute runs a on the calling goroutine. Failures and panics are logged and
// handed to the Reporter; the returned error is informational only.
func (env *Env) Execute(ctx context.Context, a Action, trigger *int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			env.log.Debug().Str("stack", string(debug.Stack())).Msg("Recovered action panic")
		}
		err = env.finish(a, err)
	}()
	return a.execute(ctx, trigger)
}

// reportedError marks a failure that has already been counted and handed to
// the Reporter. Sequence and Conditional pass their children's failures up
// wrapped in it, so one failing step is reported once.
type reportedError struct {
	error
}

func (e reportedError) Unwrap() error { return e.error }

func (env *Env) finish(a Action, err error) error {
	if err == nil {
		env.executed.Inc()
		env.log.Debug().Str("action", string(a.Kind())).Str("id", a.ID().String()).Msg("Action executed")
		return nil
	}
	var done reportedError
	if errors.As(err, &done) {
		env.log.Debug().Err(err).Str("action", string(a.Kind())).Str("id", a.ID().String()).Msg("Action stopped by a failed child")
		return err
	}
	env.failed.Inc()
	err = wrap(a, err)
	env.log.Error().Err(err).Str("action", string(a.Kind())).Str("id", a.ID().String()).Msg("Action failed")
	if env.Reporter != nil {
		env.Reporter.ActionFailed(a, err)
	}
	return reportedError{err}
}

func wrap(a Action, err error) error {
	if _, ok := err.(*ExecutionError); ok {
		return err
	}
	return &ExecutionError{ActionID: a.ID(), Kind: a.Kind(), Description: a.Description(), Err: err}
}

// Go runs fn on a tracked goroutine.
func (env *Env) Go(fn func()) {
	env.wg.Add(1)
	env.pending.Inc()
	go func() {
		defer env.wg.Done()
		defer env.pending.Dec()
		fn()
	}()
}

// Schedule runs task for a after delay. Its outcome goes through the same
// logging and reporting path as Execute.
func (env *Env) Schedule(delay time.Duration, a Action, task func() error) {
	env.wg.Add(1)
	env.pending.Inc()
	time.AfterFunc(delay, func() {
		defer env.wg.Done()
		defer env.pending.Dec()
		var err error
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic in scheduled task: %v", r)
				}
			}()
			err = task()
		}()
		env.finish(a, err)
	})
}

// Wait blocks until every tracked goroutine and scheduled task has finished.
func (env *Env) Wait() {
	env.wg.Wait()
}

func (env *Env) Stats() Stats {
	return Stats{
		Executed: env.executed.Load(),
		Failed:   env.failed.Load(),
		Pending:  env.pending.Load(),
	}
}

// base carries the attributes every variant shares.
type base struct {
	env         *Env
	id          uuid.UUID
	kind        Kind
	description string
	errors      []string
}

func newBase(env *Env, cfg Config) base {
	return base{env: env, id: uuid.New(), kind: cfg.Type, description: cfg.Description}
}

func (b *base) ID() uuid.UUID       { return b.id }
func (b *base) Kind() Kind          { return b.kind }
func (b *base) Description() string { return b.description }
func (b *base) Suspends() bool      { return false }

func (b *base) ValidationErrors() []string {
	return append([]string(nil), b.errors...)
}

// record replaces the validation errors and reports whether there were none.
func (b *base) record(errs []string) bool {
	b.errors = errs
	return len(errs) == 0
}

func (b *base) config() Config {
	return Config{Type: b.kind, Description: b.description}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
