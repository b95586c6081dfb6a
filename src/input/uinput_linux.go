//go:build linux

package input

import (
	"fmt"
	"sync"
	"syscall"
	"time"

	"github.com/holoplot/go-evdev"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

const (
	synReport = 0x00
	relHWheel = 0x06
	relWheel  = 0x08
	btnLeft   = 0x110
	btnRight  = 0x111
	btnMiddle = 0x112
	busUSB    = 0x03
)

// UinputSimulator drives a virtual keyboard/mouse created through /dev/uinput.
type UinputSimulator struct {
	log    zerolog.Logger
	mu     sync.Mutex
	device *evdev.InputDevice
}

// NewSimulator creates the virtual device. The caller needs write access to /dev/uinput.
func NewSimulator(name string) (Simulator, error) {
	keys := lo.Map(lo.Uniq(lo.Values(linuxKeyCodes)), func(code uint16, i int) evdev.EvCode {
		return evdev.EvCode(code)
	})
	keys = append(keys, btnLeft, btnRight, btnMiddle)

	device, err := evdev.CreateDevice(name, evdev.InputID{
		BusType: busUSB,
		Vendor:  0x4d4b,
		Product: 0x0001,
		Version: 1,
	}, map[evdev.EvType][]evdev.EvCode{
		evdev.EV_KEY: keys,
		evdev.EV_REL: {relWheel, relHWheel},
	})
	if err != nil {
		return nil, fmt.Errorf("could not create uinput device: %w", err)
	}

	return &UinputSimulator{
		log:    log.With().Str("module", "Input").Logger(),
		device: device,
	}, nil
}

func (s *UinputSimulator) KeyDown(virtualKeyCode uint16) error {
	code, ok := LinuxKeyCode(virtualKeyCode)
	if !ok {
		return fmt.Errorf("%w: 0x%02X", ErrUnknownKey, virtualKeyCode)
	}
	return s.emit(evdev.EV_KEY, evdev.EvCode(code), 1)
}

func (s *UinputSimulator) KeyUp(virtualKeyCode uint16) error {
	code, ok := LinuxKeyCode(virtualKeyCode)
	if !ok {
		return fmt.Errorf("%w: 0x%02X", ErrUnknownKey, virtualKeyCode)
	}
	return s.emit(evdev.EV_KEY, evdev.EvCode(code), 0)
}

func (s *UinputSimulator) MouseClick(button MouseButton) error {
	var code evdev.EvCode
	switch button {
	case LeftButton:
		code = btnLeft
	case RightButton:
		code = btnRight
	case MiddleButton:
		code = btnMiddle
	default:
		return fmt.Errorf("unknown mouse button %q", button)
	}
	if err := s.emit(evdev.EV_KEY, code, 1); err != nil {
		return err
	}
	return s.emit(evdev.EV_KEY, code, 0)
}

func (s *UinputSimulator) Scroll(direction ScrollDirection, amount int) error {
	var code evdev.EvCode
	var value int32
	switch direction {
	case ScrollUp:
		code, value = relWheel, 1
	case ScrollDown:
		code, value = relWheel, -1
	case ScrollRight:
		code, value = relHWheel, 1
	case ScrollLeft:
		code, value = relHWheel, -1
	default:
		return fmt.Errorf("unknown scroll direction %q", direction)
	}
	for i := 0; i < amount; i++ {
		if err := s.emit(evdev.EV_REL, code, value); err != nil {
			return err
		}
	}
	return nil
}

func (s *UinputSimulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device.Close()
}

// emit writes one event followed by a SYN_REPORT.
func (s *UinputSimulator) emit(eventType evdev.EvType, code evdev.EvCode, value int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := syscall.NsecToTimeval(time.Now().UnixNano())
	if err := s.device.WriteOne(&evdev.InputEvent{Time: now, Type: eventType, Code: code, Value: value}); err != nil {
		return fmt.Errorf("uinput write failed: %w", err)
	}
	if err := s.device.WriteOne(&evdev.InputEvent{Time: now, Type: evdev.EV_SYN, Code: synReport}); err != nil {
		return fmt.Errorf("uinput sync failed: %w", err)
	}
	s.log.Debug().Uint16("type", uint16(eventType)).Uint16("code", uint16(code)).Int32("value", value).Msg("Emitted input event")
	return nil
}
