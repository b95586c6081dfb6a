package actions

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/0h41/midikontrol/src/sysex"
	"gitlab.com/gomidi/midi/v2"
)

// midiTarget resolves and caches the output port an action sends to.
type midiTarget struct {
	DeviceName string

	mu       sync.Mutex
	deviceID *int
}

func (t *midiTarget) validate() []string {
	if strings.TrimSpace(t.DeviceName) == "" {
		return []string{"OutputDeviceName is required"}
	}
	return nil
}

func (t *midiTarget) resolve(out MidiOutput) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.deviceID != nil {
		return *t.deviceID, nil
	}
	if out == nil {
		return 0, &ResourceUnavailableError{Resource: "MIDI output", Name: t.DeviceName}
	}

	devices := out.OutputDevices()
	var found *DeviceInfo
	for i := range devices {
		if strings.EqualFold(devices[i].Name, t.DeviceName) {
			found = &devices[i]
			break
		}
	}
	if found == nil {
		for i := range devices {
			if strings.Contains(strings.ToLower(devices[i].Name), strings.ToLower(t.DeviceName)) {
				found = &devices[i]
				break
			}
		}
	}
	if found == nil {
		return 0, &ResourceUnavailableError{Resource: "MIDI output device", Name: t.DeviceName}
	}
	if err := out.StartOutputDevice(found.ID); err != nil {
		return 0, &ResourceUnavailableError{Resource: "MIDI output device", Name: t.DeviceName, Err: err}
	}
	id := found.ID
	t.deviceID = &id
	return id, nil
}

func (t *midiTarget) invalidate() {
	t.mu.Lock()
	t.deviceID = nil
	t.mu.Unlock()
}

func (t *midiTarget) send(out MidiOutput, msg midi.Message) error {
	id, err := t.resolve(out)
	if err != nil {
		return err
	}
	if err := out.Send(id, msg); err != nil {
		t.invalidate()
		return &ResourceUnavailableError{Resource: "MIDI output device", Name: t.DeviceName, Err: err}
	}
	return nil
}

func validateChannel(channel int) []string {
	if channel < 1 || channel > 16 {
		return []string{fmt.Sprintf("Channel must be between 1 and 16, got %d", channel)}
	}
	return nil
}

func validateData(field string, value int) []string {
	if value < 0 || value > 127 {
		return []string{fmt.Sprintf("%s must be between 0 and 127, got %d", field, value)}
	}
	return nil
}

// dataValue picks the trigger value when forwarding is enabled and one is present.
func dataValue(configured int, useTrigger bool, trigger *int) uint8 {
	if useTrigger && trigger != nil {
		return uint8(min(max(*trigger, 0), 127))
	}
	return uint8(configured)
}

type MidiNoteOn struct {
	base
	midiTarget
	Channel         int
	Note            int
	Velocity        int
	UseTriggerValue bool
}

func (a *MidiNoteOn) IsValid() bool {
	errs := a.midiTarget.validate()
	errs = append(errs, validateChannel(a.Channel)...)
	errs = append(errs, validateData("Note", a.Note)...)
	errs = append(errs, validateData("Velocity", a.Velocity)...)
	return a.record(errs)
}

func (a *MidiNoteOn) Config() Config {
	cfg := a.config()
	cfg.OutputDeviceName = a.DeviceName
	cfg.Channel = a.Channel
	cfg.Note = a.Note
	cfg.Velocity = a.Velocity
	cfg.UseTriggerValue = a.UseTriggerValue
	return cfg
}

func (a *MidiNoteOn) execute(ctx context.Context, trigger *int) error {
	msg := midi.NoteOn(uint8(a.Channel-1), uint8(a.Note), dataValue(a.Velocity, a.UseTriggerValue, trigger))
	return a.send(a.env.Midi, msg)
}

type MidiNoteOff struct {
	base
	midiTarget
	Channel int
	Note    int
}

func (a *MidiNoteOff) IsValid() bool {
	errs := a.midiTarget.validate()
	errs = append(errs, validateChannel(a.Channel)...)
	errs = append(errs, validateData("Note", a.Note)...)
	return a.record(errs)
}

func (a *MidiNoteOff) Config() Config {
	cfg := a.config()
	cfg.OutputDeviceName = a.DeviceName
	cfg.Channel = a.Channel
	cfg.Note = a.Note
	return cfg
}

func (a *MidiNoteOff) execute(ctx context.Context, trigger *int) error {
	return a.send(a.env.Midi, midi.NoteOff(uint8(a.Channel-1), uint8(a.Note)))
}

type MidiControlChange struct {
	base
	midiTarget
	Channel         int
	ControlNumber   int
	Value           int
	UseTriggerValue bool
}

func (a *MidiControlChange) IsValid() bool {
	errs := a.midiTarget.validate()
	errs = append(errs, validateChannel(a.Channel)...)
	errs = append(errs, validateData("ControlNumber", a.ControlNumber)...)
	errs = append(errs, validateData("Value", a.Value)...)
	return a.record(errs)
}

func (a *MidiControlChange) Config() Config {
	cfg := a.config()
	cfg.OutputDeviceName = a.DeviceName
	cfg.Channel = a.Channel
	cfg.ControlNumber = a.ControlNumber
	cfg.Value = a.Value
	cfg.UseTriggerValue = a.UseTriggerValue
	return cfg
}

func (a *MidiControlChange) execute(ctx context.Context, trigger *int) error {
	msg := midi.ControlChange(uint8(a.Channel-1), uint8(a.ControlNumber), dataValue(a.Value, a.UseTriggerValue, trigger))
	return a.send(a.env.Midi, msg)
}

type MidiSysEx struct {
	base
	midiTarget
	Data string

	message []byte
}

func (a *MidiSysEx) IsValid() bool {
	errs := a.midiTarget.validate()
	data, err := sysex.ParseFramed(a.Data)
	if err != nil {
		errs = append(errs, fmt.Sprintf("SysExData: %v", err))
	}
	a.message = data
	return a.record(errs)
}

func (a *MidiSysEx) Config() Config {
	cfg := a.config()
	cfg.OutputDeviceName = a.DeviceName
	cfg.SysExData = a.Data
	return cfg
}

func (a *MidiSysEx) execute(ctx context.Context, trigger *int) error {
	data := a.message
	if data == nil {
		var err error
		if data, err = sysex.ParseFramed(a.Data); err != nil {
			return err
		}
	}
	// the builder adds the F0/F7 framing itself
	return a.send(a.env.Midi, midi.SysEx(data[1:len(data)-1]))
}
