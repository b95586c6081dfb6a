package mapping

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/0h41/midikontrol/src/actions"
	"github.com/0h41/midikontrol/src/input"
)

type recordingSimulator struct {
	mu   sync.Mutex
	keys []string
}

func (s *recordingSimulator) record(event string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, event)
	return nil
}

func (s *recordingSimulator) KeyDown(vk uint16) error                 { return s.record("down:" + string(rune(vk))) }
func (s *recordingSimulator) KeyUp(vk uint16) error                   { return s.record("up:" + string(rune(vk))) }
func (s *recordingSimulator) MouseClick(input.MouseButton) error      { return nil }
func (s *recordingSimulator) Scroll(input.ScrollDirection, int) error { return nil }
func (s *recordingSimulator) Close() error                            { return nil }

func channel(c int) *int { return &c }

func newAction(t *testing.T, env *actions.Env, vk int) actions.Action {
	t.Helper()
	a, err := actions.NewValidated(actions.Config{Type: actions.KindKeyPressRelease, VirtualKeyCode: vk}, env)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func noteOn(number, ch int, device string) MidiInput {
	return MidiInput{InputType: NoteOn, InputNumber: number, Channel: channel(ch), DeviceName: device}
}

func TestNoteOnScenario(t *testing.T) {
	sim := &recordingSimulator{}
	env := actions.NewEnv(actions.Services{Input: sim})
	registry := NewRegistry()
	registry.LoadMappings([]*ActionMapping{{
		Input:     MidiInput{InputType: NoteOn, InputNumber: 60, Channel: channel(1), DeviceName: "X"},
		Action:    newAction(t, env, 65),
		IsEnabled: true,
	}})

	found := registry.FindActions(noteOn(60, 1, "X"))
	if len(found) != 1 {
		t.Fatalf("FindActions() = %d actions, want 1", len(found))
	}
	if err := env.Execute(context.Background(), found[0], channel(100)); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(sim.keys) != 2 || sim.keys[0] != "down:A" || sim.keys[1] != "up:A" {
		t.Errorf("simulated keys = %v, want A pressed and released", sim.keys)
	}
}

func TestFindActionsMatching(t *testing.T) {
	env := actions.NewEnv(actions.Services{})
	registry := NewRegistry()
	target := newAction(t, env, 65)
	registry.LoadMappings([]*ActionMapping{{
		Input:     MidiInput{InputType: NoteOn, InputNumber: 60, Channel: channel(1), DeviceName: "nanoKONTROL2"},
		Action:    target,
		IsEnabled: true,
	}})

	tests := []struct {
		name  string
		event MidiInput
		want  bool
	}{
		{"exact", noteOn(60, 1, "nanoKONTROL2"), true},
		{"device case", noteOn(60, 1, "NANOkontrol2"), true},
		{"device substring", noteOn(60, 1, "nanoKONTROL2 MIDI 1"), true},
		{"other device", noteOn(60, 1, "Launchpad"), false},
		{"other note", noteOn(61, 1, "nanoKONTROL2"), false},
		{"other channel", noteOn(60, 2, "nanoKONTROL2"), false},
		{"other type", MidiInput{InputType: NoteOff, InputNumber: 60, Channel: channel(1), DeviceName: "nanoKONTROL2"}, false},
	}
	for _, tt := range tests {
		found := registry.FindActions(tt.event)
		got := len(found) == 1 && found[0] == target
		if got != tt.want {
			t.Errorf("%s: matched = %v, want %v", tt.name, got, tt.want)
		}
		if !tt.want && len(found) != 0 {
			t.Errorf("%s: FindActions() = %v, want empty", tt.name, found)
		}
	}
}

func TestExactDeviceMatching(t *testing.T) {
	env := actions.NewEnv(actions.Services{})
	registry := NewRegistry(WithDeviceMatching(MatchExact))
	registry.LoadMappings([]*ActionMapping{{
		Input:     noteOn(60, 1, "nanoKONTROL2"),
		Action:    newAction(t, env, 65),
		IsEnabled: true,
	}})
	if found := registry.FindActions(noteOn(60, 1, "nanoKONTROL2 MIDI 1")); len(found) != 0 {
		t.Error("exact matching accepted a substring device name")
	}
	if found := registry.FindActions(noteOn(60, 1, "NANOKONTROL2")); len(found) != 1 {
		t.Error("exact matching should ignore case")
	}
}

func TestWildcards(t *testing.T) {
	env := actions.NewEnv(actions.Services{})
	registry := NewRegistry(WithDeviceMatching(MatchExact))
	anyDevice := newAction(t, env, 65)
	anyChannel := newAction(t, env, 66)
	registry.LoadMappings([]*ActionMapping{
		{Input: MidiInput{InputType: ControlChangeAbsolute, InputNumber: 7, Channel: channel(3), DeviceName: AnyDevice}, Action: anyDevice, IsEnabled: true},
		{Input: MidiInput{InputType: ControlChangeAbsolute, InputNumber: 8, DeviceName: "Faderfox"}, Action: anyChannel, IsEnabled: true},
	})

	for _, device := range []string{"Faderfox", "Launch Control XL", "Midi Through Port-0"} {
		found := registry.FindActions(MidiInput{InputType: ControlChangeAbsolute, InputNumber: 7, Channel: channel(3), DeviceName: device})
		if len(found) != 1 || found[0] != anyDevice {
			t.Errorf("device %q: wildcard device mapping did not match", device)
		}
	}
	for ch := 1; ch <= 16; ch++ {
		found := registry.FindActions(MidiInput{InputType: ControlChangeAbsolute, InputNumber: 8, Channel: channel(ch), DeviceName: "Faderfox"})
		if len(found) != 1 || found[0] != anyChannel {
			t.Errorf("channel %d: wildcard channel mapping did not match", ch)
		}
	}
}

func TestRelativeControlChangeSharesFamily(t *testing.T) {
	env := actions.NewEnv(actions.Services{})
	registry := NewRegistry()
	encoder := newAction(t, env, 65)
	registry.LoadMappings([]*ActionMapping{{
		Input:     MidiInput{InputType: ControlChangeRelative, InputNumber: 16, DeviceName: AnyDevice},
		Action:    encoder,
		IsEnabled: true,
	}})
	found := registry.FindActions(MidiInput{InputType: ControlChangeAbsolute, InputNumber: 16, Channel: channel(1), DeviceName: "X-Touch"})
	if len(found) != 1 {
		t.Errorf("relative mapping did not match an incoming control change")
	}
}

func TestSysExMatching(t *testing.T) {
	env := actions.NewEnv(actions.Services{})
	registry := NewRegistry()
	a := newAction(t, env, 65)
	registry.LoadMappings([]*ActionMapping{{
		Input:     MidiInput{InputType: SysEx, SysExPattern: []byte{0xF0, 0x43, 0x12, 0x00, 0xF7}, DeviceName: AnyDevice},
		Action:    a,
		IsEnabled: true,
	}})

	same := MidiInput{InputType: SysEx, SysExPattern: []byte{0xF0, 0x43, 0x12, 0x00, 0xF7}, DeviceName: "DX7"}
	if found := registry.FindActions(same); len(found) != 1 || found[0] != a {
		t.Error("identical SysEx did not match")
	}
	for i := 1; i < 4; i++ {
		payload := []byte{0xF0, 0x43, 0x12, 0x00, 0xF7}
		payload[i] ^= 0x01
		if found := registry.FindActions(MidiInput{InputType: SysEx, SysExPattern: payload, DeviceName: "DX7"}); len(found) != 0 {
			t.Errorf("SysEx differing in byte %d matched", i)
		}
	}
}

func TestDisabledMappingsAreNotIndexed(t *testing.T) {
	env := actions.NewEnv(actions.Services{})
	registry := NewRegistry()
	enabled := newAction(t, env, 65)
	registry.LoadMappings([]*ActionMapping{
		{Input: noteOn(36, 10, "MPD218"), Action: newAction(t, env, 66), IsEnabled: false},
		{Input: noteOn(36, 10, "MPD218"), Action: enabled, IsEnabled: true},
		{Input: MidiInput{InputType: SysEx, SysExPattern: []byte{0xF0, 0x01, 0xF7}, DeviceName: "MPD218"}, Action: newAction(t, env, 67), IsEnabled: true},
	})

	found := registry.FindActions(noteOn(36, 10, "MPD218"))
	if len(found) != 1 || found[0] != enabled {
		t.Errorf("FindActions() = %v, want only the enabled action", found)
	}

	stats := registry.Statistics()
	if stats.MappingCount != 3 || stats.EnabledCount != 2 || stats.DisabledCount != 1 || stats.SysExCount != 1 || stats.DeviceCount != 1 {
		t.Errorf("Statistics() = %+v", stats)
	}
	if stats.Lookups != 1 || stats.Matches != 1 {
		t.Errorf("lookups/matches = %d/%d, want 1/1", stats.Lookups, stats.Matches)
	}
	if len(registry.Mappings()) != 3 {
		t.Errorf("Mappings() = %d, want all 3 including disabled", len(registry.Mappings()))
	}
}

func TestAllMatchesInLoadOrder(t *testing.T) {
	env := actions.NewEnv(actions.Services{})
	registry := NewRegistry()
	first, second, third := newAction(t, env, 65), newAction(t, env, 66), newAction(t, env, 67)
	registry.LoadMappings([]*ActionMapping{
		{Input: noteOn(40, 1, AnyDevice), Action: first, IsEnabled: true},
		{Input: MidiInput{InputType: NoteOn, InputNumber: 40, DeviceName: "Keystation"}, Action: second, IsEnabled: true},
		{Input: noteOn(40, 1, "Keystation"), Action: third, IsEnabled: true},
	})
	found := registry.FindActions(noteOn(40, 1, "Keystation 49"))
	if len(found) != 3 || found[0] != first || found[1] != second || found[2] != third {
		t.Errorf("FindActions() = %v, want all three in load order", found)
	}
}

func TestEmptyRegistry(t *testing.T) {
	registry := NewRegistry()
	if found := registry.FindActions(noteOn(1, 1, "X")); len(found) != 0 {
		t.Errorf("FindActions() on empty registry = %v", found)
	}
}

func TestConcurrentSwapIsAtomic(t *testing.T) {
	env := actions.NewEnv(actions.Services{})
	registry := NewRegistry()
	setOf := func(n int) []*ActionMapping {
		mappings := make([]*ActionMapping, n)
		for i := range mappings {
			mappings[i] = &ActionMapping{Input: noteOn(10, 1, AnyDevice), Action: newAction(t, env, 65), IsEnabled: true}
		}
		return mappings
	}
	small, large := setOf(2), setOf(5)
	registry.LoadMappings(small)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	errs := make(chan int, 1)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if n := len(registry.FindActions(noteOn(10, 1, "X"))); n != 2 && n != 5 {
					select {
					case errs <- n:
					default:
					}
				}
			}
		}()
	}
	for i := 0; i < 500; i++ {
		if i%2 == 0 {
			registry.LoadMappings(large)
		} else {
			registry.LoadMappings(small)
		}
	}
	close(stop)
	wg.Wait()

	select {
	case n := <-errs:
		t.Errorf("a lookup observed a partial registry with %d matches", n)
	default:
	}
}

func TestMidiInputValidate(t *testing.T) {
	tests := []struct {
		name  string
		input MidiInput
		valid bool
	}{
		{"note", noteOn(60, 1, "X"), true},
		{"note without channel", MidiInput{InputType: NoteOff, InputNumber: 0, DeviceName: "*"}, true},
		{"note out of range", MidiInput{InputType: NoteOn, InputNumber: 128, DeviceName: "X"}, false},
		{"channel out of range", MidiInput{InputType: NoteOn, InputNumber: 1, Channel: channel(17), DeviceName: "X"}, false},
		{"no device", MidiInput{InputType: NoteOn, InputNumber: 1}, false},
		{"sysex", MidiInput{InputType: SysEx, SysExPattern: []byte{0xF0, 0x7E, 0xF7}, DeviceName: "X"}, true},
		{"sysex without pattern", MidiInput{InputType: SysEx, DeviceName: "X"}, false},
		{"sysex unframed", MidiInput{InputType: SysEx, SysExPattern: []byte{0x7E, 0x01}, DeviceName: "X"}, false},
		{"unknown type", MidiInput{InputType: "PitchBend", DeviceName: "X"}, false},
	}
	for _, tt := range tests {
		err := tt.input.Validate()
		if (err == nil) != tt.valid {
			t.Errorf("%s: Validate() = %v, want valid %v", tt.name, err, tt.valid)
		}
		if err != nil && !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: Validate() = %v, want ErrInvalidInput", tt.name, err)
		}
	}
}

func TestParseInputType(t *testing.T) {
	tests := map[string]InputType{
		"NoteOn":                NoteOn,
		"noteoff":               NoteOff,
		"ControlChange":         ControlChangeAbsolute,
		"ControlChangeRelative": ControlChangeRelative,
		"SYSEX":                 SysEx,
	}
	for in, want := range tests {
		if got, err := ParseInputType(in); err != nil || got != want {
			t.Errorf("ParseInputType(%q) = %q, %v, want %q", in, got, err, want)
		}
	}
	if _, err := ParseInputType("Aftertouch"); err == nil {
		t.Error("ParseInputType(Aftertouch) should fail")
	}
}
