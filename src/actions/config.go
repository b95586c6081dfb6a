package actions

// Kind is the discriminator stored in the Type field of an action config.
type Kind string

const (
	KindKeyPressRelease      Kind = "KeyPressRelease"
	KindKeyDown              Kind = "KeyDown"
	KindKeyUp                Kind = "KeyUp"
	KindKeyToggle            Kind = "KeyToggle"
	KindKeyCombination       Kind = "KeyCombination"
	KindMouseClick           Kind = "MouseClick"
	KindMouseScroll          Kind = "MouseScroll"
	KindMidiNoteOn           Kind = "MidiNoteOn"
	KindMidiNoteOff          Kind = "MidiNoteOff"
	KindMidiControlChange    Kind = "MidiControlChange"
	KindMidiSysEx            Kind = "MidiSysEx"
	KindCommandExecution     Kind = "CommandExecution"
	KindDelay                Kind = "Delay"
	KindGameControllerButton Kind = "GameControllerButton"
	KindGameControllerAxis   Kind = "GameControllerAxis"
	KindPlaySound            Kind = "PlaySound"
	KindSequence             Kind = "Sequence"
	KindConditional          Kind = "Conditional"
	KindSetState             Kind = "SetState"
	KindAudioVolume          Kind = "AudioVolume"
	KindAudioDefaultOutput   Kind = "AudioDefaultOutput"
)

// Kinds lists every known action kind.
var Kinds = []Kind{
	KindKeyPressRelease, KindKeyDown, KindKeyUp, KindKeyToggle, KindKeyCombination,
	KindMouseClick, KindMouseScroll,
	KindMidiNoteOn, KindMidiNoteOff, KindMidiControlChange, KindMidiSysEx,
	KindCommandExecution, KindDelay,
	KindGameControllerButton, KindGameControllerAxis,
	KindPlaySound, KindSequence, KindConditional, KindSetState,
	KindAudioVolume, KindAudioDefaultOutput,
}

type ErrorHandling string

const (
	ContinueOnError ErrorHandling = "ContinueOnError"
	StopOnError     ErrorHandling = "StopOnError"
)

type Comparison string

const (
	Equals             Comparison = "Equals"
	NotEquals          Comparison = "NotEquals"
	GreaterThan        Comparison = "GreaterThan"
	GreaterThanOrEqual Comparison = "GreaterThanOrEqual"
	LessThan           Comparison = "LessThan"
	LessThanOrEqual    Comparison = "LessThanOrEqual"
)

// Config is the serialised form of every action variant. Only the fields of
// the variant named by Type are meaningful.
type Config struct {
	Type        Kind   `json:"Type"`
	Description string `json:"Description,omitempty"`

	// keyboard
	VirtualKeyCode     int   `json:"VirtualKeyCode,omitempty"`
	AutoReleaseAfterMs *int  `json:"AutoReleaseAfterMs,omitempty"`
	Modifiers          []int `json:"Modifiers,omitempty"`

	// mouse and game controller
	Button    string `json:"Button,omitempty"`
	Direction string `json:"Direction,omitempty"`
	Amount    int    `json:"Amount,omitempty"`
	Axis      string `json:"Axis,omitempty"`
	MinInput  *int   `json:"MinInput,omitempty"`
	MaxInput  *int   `json:"MaxInput,omitempty"`
	Invert    bool   `json:"Invert,omitempty"`

	// MIDI output
	OutputDeviceName string `json:"OutputDeviceName,omitempty"`
	Channel          int    `json:"Channel,omitempty"`
	Note             int    `json:"Note,omitempty"`
	Velocity         int    `json:"Velocity,omitempty"`
	ControlNumber    int    `json:"ControlNumber,omitempty"`
	Value            int    `json:"Value,omitempty"`
	UseTriggerValue  bool   `json:"UseTriggerValue,omitempty"`
	SysExData        string `json:"SysExData,omitempty"`

	// command
	Command     string `json:"Command,omitempty"`
	Shell       string `json:"Shell,omitempty"`
	WaitForExit bool   `json:"WaitForExit,omitempty"`

	Milliseconds int `json:"Milliseconds,omitempty"`

	// sound
	FilePath string   `json:"FilePath,omitempty"`
	Volume   *float64 `json:"Volume,omitempty"`

	// flow control
	SubActions    []Config      `json:"SubActions,omitempty"`
	ErrorHandling ErrorHandling `json:"ErrorHandling,omitempty"`
	StateKey      string        `json:"StateKey,omitempty"`
	Comparison    Comparison    `json:"Comparison,omitempty"`
	CompareValue  int           `json:"CompareValue,omitempty"`
	Then          *Config       `json:"Then,omitempty"`
	Else          *Config       `json:"Else,omitempty"`

	// PulseAudio
	TargetType string `json:"TargetType,omitempty"`
	TargetName string `json:"TargetName,omitempty"`
}
