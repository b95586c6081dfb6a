//go:build !linux

package input

import (
	"github.com/rs/zerolog/log"
)

type unsupportedSimulator struct{}

// NewSimulator returns a simulator whose every call fails with ErrUnsupported.
func NewSimulator(name string) (Simulator, error) {
	log.Warn().Str("module", "Input").Msg("Using unsupported input simulator on this platform")
	return unsupportedSimulator{}, nil
}

func (unsupportedSimulator) KeyDown(uint16) error              { return ErrUnsupported }
func (unsupportedSimulator) KeyUp(uint16) error                { return ErrUnsupported }
func (unsupportedSimulator) MouseClick(MouseButton) error      { return ErrUnsupported }
func (unsupportedSimulator) Scroll(ScrollDirection, int) error { return ErrUnsupported }
func (unsupportedSimulator) Close() error                      { return nil }
