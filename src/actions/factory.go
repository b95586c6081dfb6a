package actions

import (
	"errors"
	"fmt"
	"strings"

	"github.com/0h41/midikontrol/src/gamepad"
	"github.com/0h41/midikontrol/src/input"
	"github.com/0h41/midikontrol/src/pulseaudio"
)

const (
	defaultMinInput = 0
	defaultMaxInput = 127
)

// New builds the action variant named by cfg.Type. It does not validate the
// result; call IsValid or use NewValidated.
func New(cfg Config, env *Env) (Action, error) {
	b := newBase(env, cfg)

	switch cfg.Type {
	case KindKeyPressRelease:
		return &KeyPressRelease{base: b, VirtualKeyCode: cfg.VirtualKeyCode}, nil
	case KindKeyDown:
		return &KeyDown{base: b, VirtualKeyCode: cfg.VirtualKeyCode, AutoReleaseAfterMs: cfg.AutoReleaseAfterMs}, nil
	case KindKeyUp:
		return &KeyUp{base: b, VirtualKeyCode: cfg.VirtualKeyCode}, nil
	case KindKeyToggle:
		return &KeyToggle{base: b, VirtualKeyCode: cfg.VirtualKeyCode}, nil
	case KindKeyCombination:
		return &KeyCombination{base: b, VirtualKeyCode: cfg.VirtualKeyCode, Modifiers: append([]int(nil), cfg.Modifiers...)}, nil
	case KindMouseClick:
		return &MouseClick{base: b, Button: input.MouseButton(cfg.Button)}, nil
	case KindMouseScroll:
		return &MouseScroll{base: b, Direction: input.ScrollDirection(cfg.Direction), Amount: cfg.Amount}, nil

	case KindMidiNoteOn:
		return &MidiNoteOn{
			base:            b,
			midiTarget:      midiTarget{DeviceName: cfg.OutputDeviceName},
			Channel:         cfg.Channel,
			Note:            cfg.Note,
			Velocity:        cfg.Velocity,
			UseTriggerValue: cfg.UseTriggerValue,
		}, nil
	case KindMidiNoteOff:
		return &MidiNoteOff{
			base:       b,
			midiTarget: midiTarget{DeviceName: cfg.OutputDeviceName},
			Channel:    cfg.Channel,
			Note:       cfg.Note,
		}, nil
	case KindMidiControlChange:
		return &MidiControlChange{
			base:            b,
			midiTarget:      midiTarget{DeviceName: cfg.OutputDeviceName},
			Channel:         cfg.Channel,
			ControlNumber:   cfg.ControlNumber,
			Value:           cfg.Value,
			UseTriggerValue: cfg.UseTriggerValue,
		}, nil
	case KindMidiSysEx:
		return &MidiSysEx{base: b, midiTarget: midiTarget{DeviceName: cfg.OutputDeviceName}, Data: cfg.SysExData}, nil

	case KindCommandExecution:
		return &CommandExecution{base: b, Command: cfg.Command, Shell: cfg.Shell, WaitForExit: cfg.WaitForExit}, nil
	case KindDelay:
		return &Delay{base: b, Milliseconds: cfg.Milliseconds}, nil

	case KindGameControllerButton:
		return &GameControllerButton{base: b, Button: gamepad.Button(cfg.Button)}, nil
	case KindGameControllerAxis:
		a := &GameControllerAxis{base: b, Axis: gamepad.Axis(cfg.Axis), MinInput: defaultMinInput, MaxInput: defaultMaxInput, Invert: cfg.Invert}
		if cfg.MinInput != nil {
			a.MinInput = *cfg.MinInput
		}
		if cfg.MaxInput != nil {
			a.MaxInput = *cfg.MaxInput
		}
		return a, nil

	case KindPlaySound:
		a := &PlaySound{base: b, FilePath: cfg.FilePath, Volume: 1}
		if cfg.Volume != nil {
			a.Volume = *cfg.Volume
		}
		return a, nil

	case KindSequence:
		children := make([]Action, 0, len(cfg.SubActions))
		for i, sub := range cfg.SubActions {
			child, err := New(sub, env)
			if err != nil {
				return nil, fmt.Errorf("[%d] %w", i, err)
			}
			children = append(children, child)
		}
		handling := cfg.ErrorHandling
		if handling == "" {
			handling = ContinueOnError
		}
		return &Sequence{base: b, Actions: children, ErrorHandling: handling}, nil

	case KindConditional:
		a := &Conditional{base: b, StateKey: cfg.StateKey, Comparison: cfg.Comparison, CompareValue: cfg.CompareValue}
		var err error
		if cfg.Then != nil {
			if a.Then, err = New(*cfg.Then, env); err != nil {
				return nil, fmt.Errorf("[Then] %w", err)
			}
		}
		if cfg.Else != nil {
			if a.Else, err = New(*cfg.Else, env); err != nil {
				return nil, fmt.Errorf("[Else] %w", err)
			}
		}
		return a, nil

	case KindSetState:
		return &SetState{base: b, StateKey: cfg.StateKey, Value: cfg.Value, UseTriggerValue: cfg.UseTriggerValue}, nil
	case KindAudioVolume:
		return &AudioVolume{base: b, TargetType: pulseaudio.TargetType(cfg.TargetType), TargetName: cfg.TargetName, Value: cfg.Value}, nil
	case KindAudioDefaultOutput:
		return &AudioDefaultOutput{base: b, TargetName: cfg.TargetName}, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownKind, cfg.Type)
}

// NewValidated builds an action and rejects it when it fails validation.
func NewValidated(cfg Config, env *Env) (Action, error) {
	a, err := New(cfg, env)
	if err != nil {
		return nil, err
	}
	if !a.IsValid() {
		return a, fmt.Errorf("%w: %s", ErrInvalidAction, strings.Join(a.ValidationErrors(), "; "))
	}
	return a, nil
}

// Preparer is implemented by actions that load resources ahead of their
// first execution.
type Preparer interface {
	Prepare() error
}

// Prepare eagerly loads the resources of a and of every nested sub-action.
// Failures are returned but leave the actions usable: they retry on trigger.
func Prepare(a Action) error {
	var errs []error
	if p, ok := a.(Preparer); ok {
		if err := p.Prepare(); err != nil {
			errs = append(errs, err)
		}
	}
	if p, ok := a.(parent); ok {
		for _, child := range p.children() {
			if err := Prepare(child); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

var (
	_ Action = (*KeyPressRelease)(nil)
	_ Action = (*KeyDown)(nil)
	_ Action = (*KeyUp)(nil)
	_ Action = (*KeyToggle)(nil)
	_ Action = (*KeyCombination)(nil)
	_ Action = (*MouseClick)(nil)
	_ Action = (*MouseScroll)(nil)
	_ Action = (*MidiNoteOn)(nil)
	_ Action = (*MidiNoteOff)(nil)
	_ Action = (*MidiControlChange)(nil)
	_ Action = (*MidiSysEx)(nil)
	_ Action = (*CommandExecution)(nil)
	_ Action = (*Delay)(nil)
	_ Action = (*GameControllerButton)(nil)
	_ Action = (*GameControllerAxis)(nil)
	_ Action = (*PlaySound)(nil)
	_ Action = (*Sequence)(nil)
	_ Action = (*Conditional)(nil)
	_ Action = (*SetState)(nil)
	_ Action = (*AudioVolume)(nil)
	_ Action = (*AudioDefaultOutput)(nil)

	_ Preparer = (*PlaySound)(nil)
)
