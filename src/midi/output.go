package midi

import (
	"errors"
	"fmt"
	"sync"

	"github.com/0h41/midikontrol/src/actions"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

var ErrPortNotStarted = errors.New("MIDI output port not started")

type outputPort struct {
	mu   sync.Mutex
	port drivers.Out
}

// OutputManager opens MIDI output ports on demand and serializes the
// messages sent to each of them.
type OutputManager struct {
	log   zerolog.Logger
	ports func() []drivers.Out

	mu      sync.Mutex
	started map[int]*outputPort
}

func NewOutputManager() *OutputManager {
	return newOutputManager(func() []drivers.Out { return midi.GetOutPorts() })
}

func newOutputManager(ports func() []drivers.Out) *OutputManager {
	return &OutputManager{
		log:     log.With().Str("module", "MidiOut").Logger(),
		ports:   ports,
		started: make(map[int]*outputPort),
	}
}

func (m *OutputManager) OutputDevices() []actions.DeviceInfo {
	return lo.Map(m.ports(), func(port drivers.Out, _ int) actions.DeviceInfo {
		return actions.DeviceInfo{ID: port.Number(), Name: port.String()}
	})
}

// StartOutputDevice opens the port with the given id. Starting an open port
// is a no-op.
func (m *OutputManager) StartOutputDevice(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.started[id]; ok {
		return nil
	}

	port, found := lo.Find(m.ports(), func(port drivers.Out) bool { return port.Number() == id })
	if !found {
		return fmt.Errorf("no MIDI output port with id %d", id)
	}
	if !port.IsOpen() {
		if err := port.Open(); err != nil {
			return fmt.Errorf("could not open MIDI out %s: %w", port.String(), err)
		}
	}
	m.started[id] = &outputPort{port: port}
	m.log.Info().Str("device", port.String()).Msg("Opened MIDI output")
	return nil
}

// Send writes msg to a started port. A failed port is forgotten so the next
// StartOutputDevice reopens it.
func (m *OutputManager) Send(id int, msg midi.Message) error {
	m.mu.Lock()
	out, ok := m.started[id]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrPortNotStarted, id)
	}

	out.mu.Lock()
	err := out.port.Send(msg)
	out.mu.Unlock()
	if err != nil {
		m.mu.Lock()
		if m.started[id] == out {
			delete(m.started, id)
		}
		m.mu.Unlock()
		return fmt.Errorf("could not send to MIDI out %s: %w", out.port.String(), err)
	}
	m.log.Trace().Str("device", out.port.String()).Msgf("Sent %s", msg.String())
	return nil
}

// Close closes every started port.
func (m *OutputManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, out := range m.started {
		out.mu.Lock()
		if err := out.port.Close(); err != nil {
			m.log.Warn().Err(err).Str("device", out.port.String()).Msg("Could not close MIDI output")
		}
		out.mu.Unlock()
		delete(m.started, id)
	}
}
