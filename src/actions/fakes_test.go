package actions

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/0h41/midikontrol/src/gamepad"
	"github.com/0h41/midikontrol/src/input"
	"github.com/0h41/midikontrol/src/pulseaudio"
	"github.com/0h41/midikontrol/src/sound"
	"github.com/0h41/midikontrol/src/state"
	"gitlab.com/gomidi/midi/v2"
)

type keyEvent struct {
	down bool
	vk   uint16
	at   time.Time
}

type fakeSimulator struct {
	mu      sync.Mutex
	events  []keyEvent
	clicks  []input.MouseButton
	scrolls int
	panicOn uint16
}

func (s *fakeSimulator) KeyDown(vk uint16) error {
	if vk == s.panicOn && vk != 0 {
		panic("simulated driver crash")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, keyEvent{down: true, vk: vk, at: time.Now()})
	return nil
}

func (s *fakeSimulator) KeyUp(vk uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, keyEvent{down: false, vk: vk, at: time.Now()})
	return nil
}

func (s *fakeSimulator) MouseClick(button input.MouseButton) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clicks = append(s.clicks, button)
	return nil
}

func (s *fakeSimulator) Scroll(direction input.ScrollDirection, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scrolls += amount
	return nil
}

func (s *fakeSimulator) Close() error { return nil }

func (s *fakeSimulator) snapshot() []keyEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]keyEvent(nil), s.events...)
}

func (s *fakeSimulator) count(down bool, vk uint16) int {
	n := 0
	for _, e := range s.snapshot() {
		if e.down == down && e.vk == vk {
			n++
		}
	}
	return n
}

type fakeMidi struct {
	mu          sync.Mutex
	devices     []DeviceInfo
	lookups     int
	started     []int
	sent        []midi.Message
	failSends   bool
	startFailed bool
}

func (m *fakeMidi) OutputDevices() []DeviceInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	return append([]DeviceInfo(nil), m.devices...)
}

func (m *fakeMidi) StartOutputDevice(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startFailed {
		return errors.New("port busy")
	}
	m.started = append(m.started, id)
	return nil
}

func (m *fakeMidi) Send(id int, msg midi.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSends {
		return errors.New("device unplugged")
	}
	m.sent = append(m.sent, msg)
	return nil
}

type fakeGamepad struct {
	mu      sync.Mutex
	buttons []string
	axes    map[gamepad.Axis]int
}

func (g *fakeGamepad) SetButton(button gamepad.Button, pressed bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.buttons = append(g.buttons, fmt.Sprintf("%s:%v", button, pressed))
	return nil
}

func (g *fakeGamepad) SetAxis(axis gamepad.Axis, value int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.axes == nil {
		g.axes = map[gamepad.Axis]int{}
	}
	g.axes[axis] = value
	return nil
}

type fakeMixer struct {
	volumes map[string]float32
	output  string
}

func (m *fakeMixer) SetVolume(targetType pulseaudio.TargetType, name string, volume float32) error {
	if name == "missing" {
		return fmt.Errorf("%w: %s", pulseaudio.ErrTargetNotFound, name)
	}
	if m.volumes == nil {
		m.volumes = map[string]float32{}
	}
	m.volumes[string(targetType)+"/"+name] = volume
	return nil
}

func (m *fakeMixer) SetDefaultOutput(name string) error {
	m.output = name
	return nil
}

type fakePlayer struct {
	mu     sync.Mutex
	played []*sound.Buffer
}

func (p *fakePlayer) Play(buf *sound.Buffer) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.played = append(p.played, buf)
	return nil
}

type fakeReporter struct {
	mu       sync.Mutex
	failures []error
}

func (r *fakeReporter) ActionFailed(a Action, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, err)
}

func (r *fakeReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.failures)
}

type testEnv struct {
	*Env
	sim      *fakeSimulator
	midi     *fakeMidi
	pad      *fakeGamepad
	mixer    *fakeMixer
	player   *fakePlayer
	reporter *fakeReporter
	decodes  int
}

func newTestEnv() *testEnv {
	te := &testEnv{
		sim:      &fakeSimulator{},
		midi:     &fakeMidi{devices: []DeviceInfo{{ID: 0, Name: "Midi Through Port-0"}, {ID: 3, Name: "nanoKONTROL2 MIDI 1"}}},
		pad:      &fakeGamepad{},
		mixer:    &fakeMixer{},
		player:   &fakePlayer{},
		reporter: &fakeReporter{},
	}
	te.Env = NewEnv(Services{
		State:    state.NewStore(),
		Input:    te.sim,
		Gamepad:  te.pad,
		Midi:     te.midi,
		Mixer:    te.mixer,
		Player:   te.player,
		Reporter: te.reporter,
		Decode: func(path string, volume float64) (*sound.Buffer, error) {
			te.decodes++
			if path == "missing.wav" {
				return nil, errors.New("no such file")
			}
			return &sound.Buffer{Path: path, Data: make([]byte, 16)}, nil
		},
	})
	return te
}

func intPtr(v int) *int { return &v }
