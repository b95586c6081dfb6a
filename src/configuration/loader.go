package configuration

import (
	"fmt"

	"github.com/0h41/midikontrol/src/actions"
	"github.com/0h41/midikontrol/src/mapping"
	"github.com/0h41/midikontrol/src/sysex"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// Loader converts between profiles and the mapping set the registry serves.
type Loader struct {
	env *actions.Env
	log zerolog.Logger
}

func NewLoader(env *actions.Env) *Loader {
	return &Loader{
		env: env,
		log: log.With().Str("module", "Loader").Logger(),
	}
}

// ValidatedEntry is a profile entry whose MIDI input has been checked and
// built, waiting for its action to be constructed.
type ValidatedEntry struct {
	Device string
	Index  int
	Entry  MappingEntry
	Input  mapping.MidiInput
}

// ConvertToMappings builds a mapping for every entry of profile. Entries that
// fail to convert are skipped and reported; they never stop the others.
func (l *Loader) ConvertToMappings(profile *Profile) ([]*mapping.ActionMapping, []*MappingError) {
	validated, failures := l.ValidateInputs(profile)
	mappings, actionFailures := l.BuildMappings(validated)
	failures = append(failures, actionFailures...)

	l.log.Debug().
		Str("profile", profile.ProfileName).
		Int("mappings", len(mappings)).
		Int("failures", len(failures)).
		Msg("Converted profile")
	return mappings, failures
}

// ValidateInputs checks the MIDI input of every entry.
func (l *Loader) ValidateInputs(profile *Profile) ([]ValidatedEntry, []*MappingError) {
	var validated []ValidatedEntry
	var failures []*MappingError

	for _, device := range profile.MidiDevices {
		for i, entry := range device.Mappings {
			input, err := buildInput(device.DeviceName, entry)
			if err != nil {
				failures = append(failures, l.failure(device.DeviceName, i, entry, err))
				continue
			}
			validated = append(validated, ValidatedEntry{Device: device.DeviceName, Index: i, Entry: entry, Input: input})
		}
	}
	return validated, failures
}

// BuildMappings constructs and validates the action of every entry and
// eagerly loads the resources the actions need.
func (l *Loader) BuildMappings(entries []ValidatedEntry) ([]*mapping.ActionMapping, []*MappingError) {
	var mappings []*mapping.ActionMapping
	var failures []*MappingError

	for _, v := range entries {
		action, err := actions.New(v.Entry.Action, l.env)
		if err != nil {
			failures = append(failures, l.failure(v.Device, v.Index, v.Entry, err))
			continue
		}
		if !action.IsValid() {
			failures = append(failures, l.failure(v.Device, v.Index, v.Entry, actions.ErrInvalidAction, action.ValidationErrors()...))
			continue
		}
		if err := actions.Prepare(action); err != nil {
			l.log.Warn().Err(err).Str("input", v.Input.String()).Msg("Could not prepare action resources, will retry on trigger")
		}

		description := v.Entry.Description
		if description == "" {
			description = action.Description()
		}
		mappings = append(mappings, &mapping.ActionMapping{
			Input:       v.Input,
			Action:      action,
			Description: description,
			IsEnabled:   v.Entry.Enabled(),
		})
	}
	return mappings, failures
}

func (l *Loader) failure(device string, index int, entry MappingEntry, err error, problems ...string) *MappingError {
	failure := &MappingError{
		Device:      device,
		Index:       index,
		Description: entry.Description,
		Problems:    problems,
		Err:         err,
	}
	l.log.Warn().Err(failure).Msg("Skipping mapping")
	return failure
}

func buildInput(deviceName string, entry MappingEntry) (mapping.MidiInput, error) {
	inputType, err := mapping.ParseInputType(entry.InputType)
	if err != nil {
		return mapping.MidiInput{}, err
	}
	input := mapping.MidiInput{
		InputType:  inputType,
		Channel:    entry.Channel,
		DeviceName: deviceName,
	}

	switch inputType {
	case mapping.NoteOn, mapping.NoteOff:
		if entry.Note == nil {
			return input, fmt.Errorf("%w: %s input needs a Note", mapping.ErrInvalidInput, inputType)
		}
		input.InputNumber = *entry.Note
	case mapping.ControlChangeAbsolute, mapping.ControlChangeRelative:
		if entry.ControlNumber == nil {
			return input, fmt.Errorf("%w: %s input needs a ControlNumber", mapping.ErrInvalidInput, inputType)
		}
		input.InputNumber = *entry.ControlNumber
	case mapping.SysEx:
		pattern, err := sysex.ParseFramed(entry.SysExPattern)
		if err != nil {
			return input, fmt.Errorf("%w: %v", mapping.ErrInvalidInput, err)
		}
		input.SysExPattern = pattern
	}

	if err := input.Validate(); err != nil {
		return input, err
	}
	return input, nil
}

// ConvertFromMappings rebuilds a profile from a mapping set, grouping the
// mappings by device name in the order devices first appear.
func ConvertFromMappings(name string, mappings []*mapping.ActionMapping) *Profile {
	mappings = lo.Filter(mappings, func(m *mapping.ActionMapping, _ int) bool {
		return m != nil && m.Action != nil
	})
	deviceNames := lo.Uniq(lo.Map(mappings, func(m *mapping.ActionMapping, _ int) string {
		return m.Input.DeviceName
	}))

	profile := &Profile{
		ProfileName: name,
		MidiDevices: make([]DeviceConfig, 0, len(deviceNames)),
	}
	for _, deviceName := range deviceNames {
		device := DeviceConfig{DeviceName: deviceName, Mappings: []MappingEntry{}}
		for _, m := range mappings {
			if m.Input.DeviceName == deviceName {
				device.Mappings = append(device.Mappings, toEntry(m))
			}
		}
		profile.MidiDevices = append(profile.MidiDevices, device)
	}
	return profile
}

func toEntry(m *mapping.ActionMapping) MappingEntry {
	entry := MappingEntry{
		Description: m.Description,
		InputType:   string(m.Input.InputType),
		Action:      m.Action.Config(),
	}
	if !m.IsEnabled {
		entry.IsEnabled = lo.ToPtr(false)
	}
	if m.Input.Channel != nil {
		entry.Channel = lo.ToPtr(*m.Input.Channel)
	}

	switch m.Input.InputType {
	case mapping.NoteOn, mapping.NoteOff:
		entry.Note = lo.ToPtr(m.Input.InputNumber)
	case mapping.ControlChangeAbsolute, mapping.ControlChangeRelative:
		entry.ControlNumber = lo.ToPtr(m.Input.InputNumber)
	case mapping.SysEx:
		entry.SysExPattern = sysex.Format(m.Input.SysExPattern)
	}
	return entry
}
