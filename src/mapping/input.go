// Package mapping binds MIDI input specifications to actions and looks up the
// actions an incoming event triggers.
package mapping

import (
	"errors"
	"fmt"
	"strings"

	"github.com/0h41/midikontrol/src/actions"
	"github.com/0h41/midikontrol/src/sysex"
)

type InputType string

const (
	NoteOn                InputType = "NoteOn"
	NoteOff               InputType = "NoteOff"
	ControlChangeAbsolute InputType = "ControlChangeAbsolute"
	ControlChangeRelative InputType = "ControlChangeRelative"
	SysEx                 InputType = "SysEx"
)

// AnyDevice matches events from every device.
const AnyDevice = "*"

var ErrInvalidInput = errors.New("invalid MIDI input")

// ParseInputType resolves an input type name case-insensitively. "ControlChange"
// is accepted as ControlChangeAbsolute.
func ParseInputType(name string) (InputType, error) {
	if strings.EqualFold(name, "ControlChange") {
		return ControlChangeAbsolute, nil
	}
	for _, t := range []InputType{NoteOn, NoteOff, ControlChangeAbsolute, ControlChangeRelative, SysEx} {
		if strings.EqualFold(name, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: unknown input type %q", ErrInvalidInput, name)
}

// family groups input types that arrive as the same wire message.
func (t InputType) family() InputType {
	if t == ControlChangeRelative {
		return ControlChangeAbsolute
	}
	return t
}

// MidiInput describes a MIDI input, either as configured on a mapping or as
// received from a device.
type MidiInput struct {
	InputType    InputType
	InputNumber  int
	Channel      *int
	DeviceName   string
	SysExPattern []byte
}

func (in MidiInput) Validate() error {
	switch in.InputType {
	case NoteOn, NoteOff, ControlChangeAbsolute, ControlChangeRelative:
		if in.InputNumber < 0 || in.InputNumber > 127 {
			return fmt.Errorf("%w: input number must be between 0 and 127, got %d", ErrInvalidInput, in.InputNumber)
		}
	case SysEx:
		if len(in.SysExPattern) == 0 {
			return fmt.Errorf("%w: SysEx input needs a pattern", ErrInvalidInput)
		}
		if err := sysex.Validate(in.SysExPattern); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	default:
		return fmt.Errorf("%w: unknown input type %q", ErrInvalidInput, in.InputType)
	}
	if in.Channel != nil && (*in.Channel < 1 || *in.Channel > 16) {
		return fmt.Errorf("%w: channel must be between 1 and 16, got %d", ErrInvalidInput, *in.Channel)
	}
	if strings.TrimSpace(in.DeviceName) == "" {
		return fmt.Errorf("%w: device name is required", ErrInvalidInput)
	}
	return nil
}

func (in MidiInput) String() string {
	channel := "any"
	if in.Channel != nil {
		channel = fmt.Sprint(*in.Channel)
	}
	if in.InputType == SysEx {
		return fmt.Sprintf("%s [%s] on %s", in.InputType, sysex.Format(in.SysExPattern), in.DeviceName)
	}
	return fmt.Sprintf("%s %d ch %s on %s", in.InputType, in.InputNumber, channel, in.DeviceName)
}

// Event is a message received from a MIDI device. Input.Channel is always set
// for channel messages and Input.DeviceName is the port it arrived on.
type Event struct {
	Input MidiInput
	// Value is the data byte (velocity or controller value); nil for SysEx.
	Value *int
	// Raw holds the complete SysEx message including F0 and F7.
	Raw []byte
}

// ActionMapping binds one input to one action.
type ActionMapping struct {
	Input       MidiInput
	Action      actions.Action
	Description string
	IsEnabled   bool
}
