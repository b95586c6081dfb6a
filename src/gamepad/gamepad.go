// Package gamepad describes the emulated game controller that actions drive.
// Binding to an actual virtual-controller driver is left to the Controller
// implementation supplied by the host.
package gamepad

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDriverUnavailable is returned when no virtual controller driver is installed.
var ErrDriverUnavailable = errors.New("virtual game controller driver is not available")

type Button string

const (
	ButtonA             Button = "A"
	ButtonB             Button = "B"
	ButtonX             Button = "X"
	ButtonY             Button = "Y"
	ButtonLeftShoulder  Button = "LeftShoulder"
	ButtonRightShoulder Button = "RightShoulder"
	ButtonBack          Button = "Back"
	ButtonStart         Button = "Start"
	ButtonGuide         Button = "Guide"
	ButtonLeftThumb     Button = "LeftThumb"
	ButtonRightThumb    Button = "RightThumb"
	ButtonUp            Button = "Up"
	ButtonDown          Button = "Down"
	ButtonLeft          Button = "Left"
	ButtonRight         Button = "Right"
)

var buttons = []Button{
	ButtonA, ButtonB, ButtonX, ButtonY,
	ButtonLeftShoulder, ButtonRightShoulder,
	ButtonBack, ButtonStart, ButtonGuide,
	ButtonLeftThumb, ButtonRightThumb,
	ButtonUp, ButtonDown, ButtonLeft, ButtonRight,
}

type Axis string

const (
	AxisLeftThumbX   Axis = "LeftThumbX"
	AxisLeftThumbY   Axis = "LeftThumbY"
	AxisRightThumbX  Axis = "RightThumbX"
	AxisRightThumbY  Axis = "RightThumbY"
	AxisLeftTrigger  Axis = "LeftTrigger"
	AxisRightTrigger Axis = "RightTrigger"
)

// Range is the native value range of an axis.
type Range struct {
	Min, Max int
}

var axisRanges = map[Axis]Range{
	AxisLeftThumbX:   {-32768, 32767},
	AxisLeftThumbY:   {-32768, 32767},
	AxisRightThumbX:  {-32768, 32767},
	AxisRightThumbY:  {-32768, 32767},
	AxisLeftTrigger:  {0, 255},
	AxisRightTrigger: {0, 255},
}

// Controller is an emulated gamepad. Implementations must tolerate concurrent calls.
type Controller interface {
	SetButton(button Button, pressed bool) error
	SetAxis(axis Axis, value int) error
}

// ParseButton resolves a symbolic button name case-insensitively.
func ParseButton(name string) (Button, error) {
	for _, button := range buttons {
		if strings.EqualFold(name, string(button)) {
			return button, nil
		}
	}
	return "", fmt.Errorf("unknown controller button %q", name)
}

// ParseAxis resolves a symbolic axis name case-insensitively.
func ParseAxis(name string) (Axis, error) {
	for axis := range axisRanges {
		if strings.EqualFold(name, string(axis)) {
			return axis, nil
		}
	}
	return "", fmt.Errorf("unknown controller axis %q", name)
}

// AxisRange returns the native range of axis.
func AxisRange(axis Axis) Range {
	return axisRanges[axis]
}

// Remap linearly maps value from [inMin, inMax] onto the native range of axis.
// Values outside the input range are clamped; invert mirrors the result.
func Remap(axis Axis, value, inMin, inMax int, invert bool) int {
	target := axisRanges[axis]
	if inMin == inMax {
		return target.Min
	}

	t := float64(value-inMin) / float64(inMax-inMin)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	if invert {
		t = 1 - t
	}
	return target.Min + int(t*float64(target.Max-target.Min)+0.5)
}

// Unavailable is the Controller used when no driver is present.
type Unavailable struct{}

func (Unavailable) SetButton(Button, bool) error { return ErrDriverUnavailable }
func (Unavailable) SetAxis(Axis, int) error      { return ErrDriverUnavailable }
