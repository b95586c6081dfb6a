package midi

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/0h41/midikontrol/src/mapping"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

func TestToEvent(t *testing.T) {
	tests := []struct {
		name    string
		message midi.Message
		want    mapping.InputType
		number  int
		channel int
		value   int
	}{
		{"note on", midi.NoteOn(0, 60, 100), mapping.NoteOn, 60, 1, 100},
		{"note on velocity 0", midi.NoteOn(3, 61, 0), mapping.NoteOff, 61, 4, 0},
		{"note off", midi.NoteOff(15, 62), mapping.NoteOff, 62, 16, 0},
		{"control change", midi.ControlChange(1, 7, 64), mapping.ControlChangeAbsolute, 7, 2, 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, ok := ToEvent(tt.message, "nanoKONTROL2 MIDI 1")
			if !ok {
				t.Fatal("message was rejected")
			}
			in := event.Input
			if in.InputType != tt.want || in.InputNumber != tt.number || in.DeviceName != "nanoKONTROL2 MIDI 1" {
				t.Errorf("input = %+v", in)
			}
			if in.Channel == nil || *in.Channel != tt.channel {
				t.Errorf("channel = %v, want %d", in.Channel, tt.channel)
			}
			if event.Value == nil || *event.Value != tt.value {
				t.Errorf("value = %v, want %d", event.Value, tt.value)
			}
		})
	}
}

func TestToEventSysEx(t *testing.T) {
	message := midi.SysEx([]byte{0x43, 0x12, 0x00})
	event, ok := ToEvent(message, "Synth")
	if !ok {
		t.Fatal("sysex was rejected")
	}
	want := []byte{0xF0, 0x43, 0x12, 0x00, 0xF7}
	if event.Input.InputType != mapping.SysEx || !reflect.DeepEqual(event.Input.SysExPattern, want) {
		t.Errorf("input = %+v", event.Input)
	}
	if !reflect.DeepEqual(event.Raw, want) || event.Value != nil {
		t.Errorf("raw = % X value = %v", event.Raw, event.Value)
	}
}

func TestToEventIgnored(t *testing.T) {
	for _, message := range []midi.Message{midi.ProgramChange(0, 5), midi.Pitchbend(0, 100)} {
		if _, ok := ToEvent(message, "x"); ok {
			t.Errorf("%s should be ignored", message.String())
		}
	}
}

func TestMatchPorts(t *testing.T) {
	ports := []string{"Midi Through Port-0", "nanoKONTROL2 MIDI 1", "LPD8 MIDI 1"}

	tests := []struct {
		names []string
		want  []string
	}{
		{[]string{"nanokontrol2"}, []string{"nanoKONTROL2 MIDI 1"}},
		{[]string{"LPD8", "nanoKONTROL2"}, []string{"nanoKONTROL2 MIDI 1", "LPD8 MIDI 1"}},
		{[]string{"*"}, ports},
		{[]string{"Launchpad", ""}, []string{}},
	}
	for _, tt := range tests {
		if got := MatchPorts(ports, tt.names); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("MatchPorts(%v) = %v, want %v", tt.names, got, tt.want)
		}
	}
}

type fakeOut struct {
	mu      sync.Mutex
	number  int
	name    string
	open    bool
	opens   int
	sent    [][]byte
	sendErr error
}

func (p *fakeOut) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = true
	p.opens++
	return nil
}

func (p *fakeOut) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = false
	return nil
}

func (p *fakeOut) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

func (p *fakeOut) Number() int             { return p.number }
func (p *fakeOut) String() string          { return p.name }
func (p *fakeOut) Underlying() interface{} { return nil }

func (p *fakeOut) Send(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sendErr != nil {
		return p.sendErr
	}
	p.sent = append(p.sent, append([]byte(nil), data...))
	return nil
}

func newTestOutputs(ports ...*fakeOut) *OutputManager {
	return newOutputManager(func() []drivers.Out {
		outs := make([]drivers.Out, len(ports))
		for i, p := range ports {
			outs[i] = p
		}
		return outs
	})
}

func TestOutputManager(t *testing.T) {
	through := &fakeOut{number: 0, name: "Midi Through Port-0"}
	synth := &fakeOut{number: 2, name: "Synth MIDI 1"}
	m := newTestOutputs(through, synth)

	devices := m.OutputDevices()
	if len(devices) != 2 || devices[1].ID != 2 || devices[1].Name != "Synth MIDI 1" {
		t.Fatalf("OutputDevices() = %+v", devices)
	}

	if err := m.Send(2, midi.NoteOn(0, 60, 100)); !errors.Is(err, ErrPortNotStarted) {
		t.Errorf("Send before start: %v", err)
	}
	if err := m.StartOutputDevice(7); err == nil {
		t.Error("starting an unknown port should fail")
	}
	if err := m.StartOutputDevice(2); err != nil {
		t.Fatalf("StartOutputDevice: %v", err)
	}
	if err := m.StartOutputDevice(2); err != nil || synth.opens != 1 {
		t.Errorf("second start reopened the port: %v, opens = %d", err, synth.opens)
	}

	if err := m.Send(2, midi.NoteOn(0, 60, 100)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(synth.sent) != 1 || !reflect.DeepEqual(synth.sent[0], []byte{0x90, 60, 100}) {
		t.Errorf("sent = % X", synth.sent)
	}

	synth.sendErr = errors.New("device unplugged")
	if err := m.Send(2, midi.NoteOff(0, 60)); err == nil {
		t.Error("expected send error")
	}
	synth.sendErr = nil
	if err := m.Send(2, midi.NoteOff(0, 60)); !errors.Is(err, ErrPortNotStarted) {
		t.Errorf("failed port should be forgotten, got %v", err)
	}

	m.Close()
	if through.IsOpen() {
		t.Error("unstarted port was opened")
	}
}

func TestOutputManagerSerializesSends(t *testing.T) {
	port := &fakeOut{number: 1, name: "Synth"}
	m := newTestOutputs(port)
	if err := m.StartOutputDevice(1); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Send(1, midi.ControlChange(0, 7, uint8(i)))
		}(i)
	}
	wg.Wait()

	if len(port.sent) != 50 {
		t.Errorf("sent %d messages, want 50", len(port.sent))
	}
}
