// Package midi connects MIDI ports to the engine: input ports deliver events,
// output ports receive the messages MIDI actions send.
package midi

import (
	"fmt"
	"strings"
	"sync"

	"github.com/0h41/midikontrol/src/mapping"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	_ "gitlab.com/gomidi/midi/v2/drivers/portmididrv"
)

func listDevices() ([]string, []string) {
	ins := lo.Map(midi.GetInPorts(), func(port drivers.In, _ int) string { return port.String() })
	outs := lo.Map(midi.GetOutPorts(), func(port drivers.Out, _ int) string { return port.String() })
	return ins, outs
}

// List logs every MIDI input and output port.
func List() {
	log := log.Logger.With().Str("module", "Midi").Logger()
	ins, outs := listDevices()
	// List input ports
	for _, port := range ins {
		log.Info().Msgf("Found midi in device:\t%s", port)
	}
	// List output ports
	for _, port := range outs {
		log.Info().Msgf("Found midi out device:\t%s", port)
	}
}

// InputPorts returns the names of the available input ports.
func InputPorts() []string {
	ins, _ := listDevices()
	return ins
}

// Close releases the MIDI driver.
func Close() {
	midi.CloseDriver()
}

// Handler receives the events of one input port. Calls for a given port are
// serialized.
type Handler func(event mapping.Event)

// MidiClient listens to one input port and converts its messages to events.
type MidiClient struct {
	log      zerolog.Logger
	PortName string
	handler  Handler

	mu   sync.Mutex
	stop func()
}

func NewMidiClient(portName string, handler Handler) *MidiClient {
	return &MidiClient{
		log:      log.With().Str("module", "Midi").Str("device", portName).Logger(),
		PortName: portName,
		handler:  handler,
	}
}

// Start opens the port and begins delivering events.
func (client *MidiClient) Start() error {
	client.mu.Lock()
	defer client.mu.Unlock()
	if client.stop != nil {
		return nil
	}

	in, err := midi.FindInPort(client.PortName)
	if err != nil {
		return fmt.Errorf("could not find MIDI in %s: %w", client.PortName, err)
	}

	stop, err := midi.ListenTo(in, client.onMessage, midi.UseSysEx())
	if err != nil {
		return fmt.Errorf("could not listen to MIDI in %s: %w", client.PortName, err)
	}
	client.stop = stop
	client.log.Info().Msg("Listening")
	return nil
}

func (client *MidiClient) onMessage(message midi.Message, timestampMs int32) {
	event, ok := ToEvent(message, client.PortName)
	if !ok {
		client.log.Trace().Msgf("Ignoring MIDI message (%s)", message.String())
		return
	}
	client.log.Debug().Str("input", event.Input.String()).Msg("Received MIDI message")
	client.handler(event)
}

// Stop closes the listener. It is safe to call more than once.
func (client *MidiClient) Stop() {
	client.mu.Lock()
	defer client.mu.Unlock()
	if client.stop != nil {
		client.stop()
		client.stop = nil
	}
}

// ToEvent converts a received message into an event from port. NoteOn with
// velocity 0 is reported as NoteOff. Messages no mapping can match are
// rejected.
func ToEvent(message midi.Message, port string) (mapping.Event, bool) {
	var channel, number, value uint8
	var data []byte

	event := mapping.Event{Input: mapping.MidiInput{DeviceName: port}}
	switch {
	case message.GetNoteOn(&channel, &number, &value):
		event.Input.InputType = mapping.NoteOn
		if value == 0 {
			event.Input.InputType = mapping.NoteOff
		}
	case message.GetNoteOff(&channel, &number, &value):
		event.Input.InputType = mapping.NoteOff
	case message.GetControlChange(&channel, &number, &value):
		event.Input.InputType = mapping.ControlChangeAbsolute
	case message.GetSysEx(&data):
		raw := append([]byte(nil), message...)
		event.Input.InputType = mapping.SysEx
		event.Input.SysExPattern = raw
		event.Raw = raw
		return event, true
	default:
		return event, false
	}

	event.Input.InputNumber = int(number)
	event.Input.Channel = lo.ToPtr(int(channel) + 1)
	event.Value = lo.ToPtr(int(value))
	return event, true
}

// MatchPorts returns the ports a set of configured device names refers to.
// A name matches ports it equals or is contained in, ignoring case; "*"
// selects every port.
func MatchPorts(ports []string, deviceNames []string) []string {
	return lo.Filter(ports, func(port string, _ int) bool {
		return lo.SomeBy(deviceNames, func(name string) bool {
			return name == mapping.AnyDevice ||
				(name != "" && strings.Contains(strings.ToLower(port), strings.ToLower(name)))
		})
	})
}
