package actions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/0h41/midikontrol/src/gamepad"
	"github.com/0h41/midikontrol/src/pulseaudio"
	"github.com/0h41/midikontrol/src/sound"
)

func gamepadError(name string, err error) error {
	if errors.Is(err, gamepad.ErrDriverUnavailable) {
		return &ResourceUnavailableError{Resource: "game controller driver", Name: name, Err: err}
	}
	return err
}

// GameControllerButton presses on a positive trigger, releases on zero and
// taps when there is no trigger value.
type GameControllerButton struct {
	base
	Button gamepad.Button
}

func (a *GameControllerButton) IsValid() bool {
	var errs []string
	if _, err := gamepad.ParseButton(string(a.Button)); err != nil {
		errs = append(errs, err.Error())
	}
	return a.record(errs)
}

func (a *GameControllerButton) Config() Config {
	cfg := a.config()
	cfg.Button = string(a.Button)
	return cfg
}

func (a *GameControllerButton) execute(ctx context.Context, trigger *int) error {
	button, err := gamepad.ParseButton(string(a.Button))
	if err != nil {
		return err
	}
	pad := a.env.Gamepad
	if trigger != nil {
		return gamepadError(string(button), pad.SetButton(button, *trigger > 0))
	}
	if err := pad.SetButton(button, true); err != nil {
		return gamepadError(string(button), err)
	}
	return gamepadError(string(button), pad.SetButton(button, false))
}

// GameControllerAxis maps the trigger value from [MinInput, MaxInput] onto an axis.
type GameControllerAxis struct {
	base
	Axis     gamepad.Axis
	MinInput int
	MaxInput int
	Invert   bool
}

func (a *GameControllerAxis) IsValid() bool {
	var errs []string
	if _, err := gamepad.ParseAxis(string(a.Axis)); err != nil {
		errs = append(errs, err.Error())
	}
	if a.MinInput == a.MaxInput {
		errs = append(errs, fmt.Sprintf("MinInput and MaxInput must differ, both are %d", a.MinInput))
	}
	return a.record(errs)
}

func (a *GameControllerAxis) Config() Config {
	cfg := a.config()
	cfg.Axis = string(a.Axis)
	minInput, maxInput := a.MinInput, a.MaxInput
	cfg.MinInput, cfg.MaxInput = &minInput, &maxInput
	cfg.Invert = a.Invert
	return cfg
}

func (a *GameControllerAxis) execute(ctx context.Context, trigger *int) error {
	axis, err := gamepad.ParseAxis(string(a.Axis))
	if err != nil {
		return err
	}
	// without a value the axis returns to the middle of its input range
	value := (a.MinInput + a.MaxInput) / 2
	if trigger != nil {
		value = *trigger
	}
	return gamepadError(string(axis), a.env.Gamepad.SetAxis(axis, gamepad.Remap(axis, value, a.MinInput, a.MaxInput, a.Invert)))
}

// PlaySound decodes FilePath once and plays the cached buffer on every trigger.
type PlaySound struct {
	base
	FilePath string
	Volume   float64

	mu     sync.Mutex
	buffer *sound.Buffer
}

func (a *PlaySound) IsValid() bool {
	var errs []string
	if strings.TrimSpace(a.FilePath) == "" {
		errs = append(errs, "FilePath is required")
	}
	if a.Volume < 0 || a.Volume > 1 {
		errs = append(errs, fmt.Sprintf("Volume must be between 0 and 1, got %g", a.Volume))
	}
	return a.record(errs)
}

func (a *PlaySound) Config() Config {
	cfg := a.config()
	cfg.FilePath = a.FilePath
	volume := a.Volume
	cfg.Volume = &volume
	return cfg
}

// Prepare decodes the sound file if it has not been decoded yet.
func (a *PlaySound) Prepare() error {
	_, err := a.load()
	return err
}

func (a *PlaySound) load() (*sound.Buffer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.buffer != nil {
		return a.buffer, nil
	}
	buf, err := a.env.Decode(a.FilePath, a.Volume)
	if err != nil {
		return nil, &ResourceUnavailableError{Resource: "sound file", Name: a.FilePath, Err: err}
	}
	a.buffer = buf
	return buf, nil
}

func (a *PlaySound) execute(ctx context.Context, trigger *int) error {
	buf, err := a.load()
	if err != nil {
		return err
	}
	if a.env.Player == nil {
		return &ResourceUnavailableError{Resource: "audio output", Name: "default"}
	}
	return a.env.Player.Play(buf)
}

// AudioVolume sets a mixer target to trigger/127, or to Value percent when
// there is no trigger value.
type AudioVolume struct {
	base
	TargetType pulseaudio.TargetType
	TargetName string
	Value      int
}

func (a *AudioVolume) IsValid() bool {
	var errs []string
	if _, err := pulseaudio.ParseTargetType(string(a.TargetType)); err != nil {
		errs = append(errs, err.Error())
	}
	if strings.TrimSpace(a.TargetName) == "" {
		errs = append(errs, "TargetName is required")
	}
	if a.Value < 0 || a.Value > 100 {
		errs = append(errs, fmt.Sprintf("Value must be between 0 and 100, got %d", a.Value))
	}
	return a.record(errs)
}

func (a *AudioVolume) Config() Config {
	cfg := a.config()
	cfg.TargetType = string(a.TargetType)
	cfg.TargetName = a.TargetName
	cfg.Value = a.Value
	return cfg
}

func (a *AudioVolume) execute(ctx context.Context, trigger *int) error {
	if a.env.Mixer == nil {
		return &ResourceUnavailableError{Resource: "audio mixer", Name: a.TargetName}
	}
	targetType, err := pulseaudio.ParseTargetType(string(a.TargetType))
	if err != nil {
		return err
	}
	volume := float32(a.Value) / 100
	if trigger != nil {
		volume = float32(min(max(*trigger, 0), 127)) / 127
	}
	return mixerError(a.TargetName, a.env.Mixer.SetVolume(targetType, a.TargetName, volume))
}

type AudioDefaultOutput struct {
	base
	TargetName string
}

func (a *AudioDefaultOutput) IsValid() bool {
	var errs []string
	if strings.TrimSpace(a.TargetName) == "" {
		errs = append(errs, "TargetName is required")
	}
	return a.record(errs)
}

func (a *AudioDefaultOutput) Config() Config {
	cfg := a.config()
	cfg.TargetName = a.TargetName
	return cfg
}

func (a *AudioDefaultOutput) execute(ctx context.Context, trigger *int) error {
	if a.env.Mixer == nil {
		return &ResourceUnavailableError{Resource: "audio mixer", Name: a.TargetName}
	}
	return mixerError(a.TargetName, a.env.Mixer.SetDefaultOutput(a.TargetName))
}

func mixerError(name string, err error) error {
	if errors.Is(err, pulseaudio.ErrTargetNotFound) {
		return &ResourceUnavailableError{Resource: "audio target", Name: name, Err: err}
	}
	return err
}
