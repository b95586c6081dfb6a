// Package input simulates keyboard and mouse input at the operating-system level.
//
// Keys are identified by Windows-style virtual key codes, the format profiles are
// written in. Each platform backend translates them to its native codes.
package input

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupported is returned by the stub simulator on platforms without a backend.
	ErrUnsupported = errors.New("input simulation is not available on this platform")

	// ErrUnknownKey is returned when a virtual key code has no native equivalent.
	ErrUnknownKey = errors.New("unknown virtual key code")
)

// Simulator injects synthetic keyboard and mouse events.
type Simulator interface {
	KeyDown(virtualKeyCode uint16) error
	KeyUp(virtualKeyCode uint16) error
	MouseClick(button MouseButton) error
	Scroll(direction ScrollDirection, amount int) error
	Close() error
}

type MouseButton string

const (
	LeftButton   MouseButton = "Left"
	RightButton  MouseButton = "Right"
	MiddleButton MouseButton = "Middle"
)

type ScrollDirection string

const (
	ScrollUp    ScrollDirection = "Up"
	ScrollDown  ScrollDirection = "Down"
	ScrollLeft  ScrollDirection = "Left"
	ScrollRight ScrollDirection = "Right"
)

// ParseMouseButton resolves a button name case-insensitively.
func ParseMouseButton(name string) (MouseButton, error) {
	for _, button := range []MouseButton{LeftButton, RightButton, MiddleButton} {
		if strings.EqualFold(name, string(button)) {
			return button, nil
		}
	}
	return "", fmt.Errorf("unknown mouse button %q", name)
}

// ParseScrollDirection resolves a scroll direction name case-insensitively.
func ParseScrollDirection(name string) (ScrollDirection, error) {
	for _, direction := range []ScrollDirection{ScrollUp, ScrollDown, ScrollLeft, ScrollRight} {
		if strings.EqualFold(name, string(direction)) {
			return direction, nil
		}
	}
	return "", fmt.Errorf("unknown scroll direction %q", name)
}

// Common virtual key codes.
const (
	VKBack      uint16 = 0x08
	VKTab       uint16 = 0x09
	VKReturn    uint16 = 0x0D
	VKShift     uint16 = 0x10
	VKControl   uint16 = 0x11
	VKMenu      uint16 = 0x12
	VKEscape    uint16 = 0x1B
	VKSpace     uint16 = 0x20
	VKLeft      uint16 = 0x25
	VKUp        uint16 = 0x26
	VKRight     uint16 = 0x27
	VKDown      uint16 = 0x28
	VKA         uint16 = 0x41
	VKLWin      uint16 = 0x5B
	VKF1        uint16 = 0x70
	VKMediaPlay uint16 = 0xB3
)

// ValidVirtualKey reports whether code lies in the assignable virtual key range.
func ValidVirtualKey(code uint16) bool {
	return code >= 0x01 && code <= 0xFE
}
