package configuration

import "github.com/0h41/midikontrol/src/actions"

// Settings is the application configuration stored in config.yaml.
type Settings struct {
	Profile           string `yaml:"profile"`           // Path of the profile to load at startup
	LogLevel          string `yaml:"logLevel"`          // zerolog level name
	WebUI             bool   `yaml:"webUI"`             // Serve the notification channel
	WebAddr           string `yaml:"webAddr"`           // Address:port of the notification channel
	WatchProfile      bool   `yaml:"watchProfile"`      // Reload the profile when the file changes
	DeviceMatching    string `yaml:"deviceMatching"`    // "substring" or "exact"
	PersistStates     bool   `yaml:"persistStates"`     // Write state changes back to InitialStates
	VirtualDeviceName string `yaml:"virtualDeviceName"` // Name of the uinput keyboard/mouse
}

// Profile is a named set of device mappings, stored as JSON.
type Profile struct {
	ProfileName   string         `json:"ProfileName"`
	Description   string         `json:"Description,omitempty"`
	MidiDevices   []DeviceConfig `json:"MidiDevices"`
	InitialStates map[string]int `json:"InitialStates,omitempty"`
}

// DeviceConfig groups the mappings of one MIDI input device. DeviceName "*"
// applies them to every device.
type DeviceConfig struct {
	DeviceName string         `json:"DeviceName"`
	Mappings   []MappingEntry `json:"Mappings"`
}

// MappingEntry binds one MIDI input to one action. Note is used by NoteOn and
// NoteOff inputs, ControlNumber by control change inputs and SysExPattern by
// SysEx inputs.
type MappingEntry struct {
	Description   string         `json:"Description,omitempty"`
	IsEnabled     *bool          `json:"IsEnabled,omitempty"`
	InputType     string         `json:"InputType"`
	Note          *int           `json:"Note,omitempty"`
	ControlNumber *int           `json:"ControlNumber,omitempty"`
	Channel       *int           `json:"Channel,omitempty"`
	SysExPattern  string         `json:"SysExPattern,omitempty"`
	Action        actions.Config `json:"Action"`
}

// Enabled reports whether the entry is active. Entries are enabled unless
// IsEnabled is explicitly false.
func (e MappingEntry) Enabled() bool {
	return e.IsEnabled == nil || *e.IsEnabled
}

// MappingCount returns the number of mapping entries across all devices.
func (p *Profile) MappingCount() int {
	n := 0
	for _, device := range p.MidiDevices {
		n += len(device.Mappings)
	}
	return n
}
