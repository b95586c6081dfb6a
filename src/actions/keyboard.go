package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/0h41/midikontrol/src/input"
	"github.com/0h41/midikontrol/src/state"
)

func validateKey(field string, code int) []string {
	if code < 0 || code > 0xFFFF || !input.ValidVirtualKey(uint16(code)) {
		return []string{fmt.Sprintf("%s must be between 1 and 254, got %d", field, code)}
	}
	return nil
}

func (env *Env) simulator(a Action) (input.Simulator, error) {
	if env.Input == nil {
		return nil, &ResourceUnavailableError{Resource: "input simulator", Name: string(a.Kind())}
	}
	return env.Input, nil
}

// KeyPressRelease taps a key and clears its tracked down state.
type KeyPressRelease struct {
	base
	VirtualKeyCode int
}

func (a *KeyPressRelease) IsValid() bool {
	return a.record(validateKey("VirtualKeyCode", a.VirtualKeyCode))
}

func (a *KeyPressRelease) Config() Config {
	cfg := a.config()
	cfg.VirtualKeyCode = a.VirtualKeyCode
	return cfg
}

func (a *KeyPressRelease) execute(ctx context.Context, trigger *int) error {
	sim, err := a.env.simulator(a)
	if err != nil {
		return err
	}
	vk := uint16(a.VirtualKeyCode)
	if err := sim.KeyDown(vk); err != nil {
		return err
	}
	if err := sim.KeyUp(vk); err != nil {
		return err
	}
	a.env.State.Set(state.KeyStateKey(vk), 0)
	return nil
}

// KeyDown presses a key unless it is already held, optionally releasing it
// again after AutoReleaseAfterMs.
type KeyDown struct {
	base
	VirtualKeyCode     int
	AutoReleaseAfterMs *int
}

func (a *KeyDown) IsValid() bool {
	errs := validateKey("VirtualKeyCode", a.VirtualKeyCode)
	if a.AutoReleaseAfterMs != nil && *a.AutoReleaseAfterMs < 0 {
		errs = append(errs, fmt.Sprintf("AutoReleaseAfterMs must not be negative, got %d", *a.AutoReleaseAfterMs))
	}
	return a.record(errs)
}

func (a *KeyDown) Config() Config {
	cfg := a.config()
	cfg.VirtualKeyCode = a.VirtualKeyCode
	cfg.AutoReleaseAfterMs = a.AutoReleaseAfterMs
	return cfg
}

func (a *KeyDown) execute(ctx context.Context, trigger *int) error {
	sim, err := a.env.simulator(a)
	if err != nil {
		return err
	}
	vk := uint16(a.VirtualKeyCode)
	key := state.KeyStateKey(vk)

	// claim the key so concurrent presses send a single down event
	for {
		current, _ := a.env.State.Get(key)
		if current == 1 {
			return nil
		}
		if a.env.State.CompareAndSet(key, current, 1) {
			break
		}
	}
	if err := sim.KeyDown(vk); err != nil {
		a.env.State.Set(key, 0)
		return err
	}

	if a.AutoReleaseAfterMs != nil && *a.AutoReleaseAfterMs > 0 {
		a.env.Schedule(time.Duration(*a.AutoReleaseAfterMs)*time.Millisecond, a, func() error {
			if !a.env.State.CompareAndSet(key, 1, 0) {
				return nil
			}
			return sim.KeyUp(vk)
		})
	}
	return nil
}

// KeyUp releases a key only if it is tracked as held.
type KeyUp struct {
	base
	VirtualKeyCode int
}

func (a *KeyUp) IsValid() bool {
	return a.record(validateKey("VirtualKeyCode", a.VirtualKeyCode))
}

func (a *KeyUp) Config() Config {
	cfg := a.config()
	cfg.VirtualKeyCode = a.VirtualKeyCode
	return cfg
}

func (a *KeyUp) execute(ctx context.Context, trigger *int) error {
	sim, err := a.env.simulator(a)
	if err != nil {
		return err
	}
	vk := uint16(a.VirtualKeyCode)
	if !a.env.State.CompareAndSet(state.KeyStateKey(vk), 1, 0) {
		return nil
	}
	return sim.KeyUp(vk)
}

// KeyToggle alternates between pressing and releasing a key.
type KeyToggle struct {
	base
	VirtualKeyCode int
}

func (a *KeyToggle) IsValid() bool {
	return a.record(validateKey("VirtualKeyCode", a.VirtualKeyCode))
}

func (a *KeyToggle) Config() Config {
	cfg := a.config()
	cfg.VirtualKeyCode = a.VirtualKeyCode
	return cfg
}

func (a *KeyToggle) execute(ctx context.Context, trigger *int) error {
	sim, err := a.env.simulator(a)
	if err != nil {
		return err
	}
	vk := uint16(a.VirtualKeyCode)
	key := state.KeyStateKey(vk)

	// each toggle flips the tracked state exactly once
	for {
		current, _ := a.env.State.Get(key)
		if current == 1 {
			if a.env.State.CompareAndSet(key, 1, 0) {
				return sim.KeyUp(vk)
			}
			continue
		}
		if a.env.State.CompareAndSet(key, current, 1) {
			break
		}
	}
	if err := sim.KeyDown(vk); err != nil {
		a.env.State.Set(key, 0)
		return err
	}
	return nil
}

// KeyCombination holds the modifiers, taps the key and releases the
// modifiers in reverse order.
type KeyCombination struct {
	base
	Modifiers      []int
	VirtualKeyCode int
}

func (a *KeyCombination) IsValid() bool {
	errs := validateKey("VirtualKeyCode", a.VirtualKeyCode)
	for i, m := range a.Modifiers {
		errs = append(errs, validateKey(fmt.Sprintf("Modifiers[%d]", i), m)...)
	}
	return a.record(errs)
}

func (a *KeyCombination) Config() Config {
	cfg := a.config()
	cfg.VirtualKeyCode = a.VirtualKeyCode
	cfg.Modifiers = append([]int(nil), a.Modifiers...)
	return cfg
}

func (a *KeyCombination) execute(ctx context.Context, trigger *int) error {
	sim, err := a.env.simulator(a)
	if err != nil {
		return err
	}
	pressed := make([]uint16, 0, len(a.Modifiers))
	release := func() error {
		var first error
		for i := len(pressed) - 1; i >= 0; i-- {
			if err := sim.KeyUp(pressed[i]); err != nil && first == nil {
				first = err
			}
		}
		return first
	}

	for _, m := range a.Modifiers {
		if err := sim.KeyDown(uint16(m)); err != nil {
			release()
			return err
		}
		pressed = append(pressed, uint16(m))
	}
	vk := uint16(a.VirtualKeyCode)
	if err := sim.KeyDown(vk); err != nil {
		release()
		return err
	}
	if err := sim.KeyUp(vk); err != nil {
		release()
		return err
	}
	return release()
}

type MouseClick struct {
	base
	Button input.MouseButton
}

func (a *MouseClick) IsValid() bool {
	var errs []string
	if _, err := input.ParseMouseButton(string(a.Button)); err != nil {
		errs = append(errs, err.Error())
	}
	return a.record(errs)
}

func (a *MouseClick) Config() Config {
	cfg := a.config()
	cfg.Button = string(a.Button)
	return cfg
}

func (a *MouseClick) execute(ctx context.Context, trigger *int) error {
	sim, err := a.env.simulator(a)
	if err != nil {
		return err
	}
	button, err := input.ParseMouseButton(string(a.Button))
	if err != nil {
		return err
	}
	return sim.MouseClick(button)
}

type MouseScroll struct {
	base
	Direction input.ScrollDirection
	Amount    int
}

func (a *MouseScroll) IsValid() bool {
	var errs []string
	if _, err := input.ParseScrollDirection(string(a.Direction)); err != nil {
		errs = append(errs, err.Error())
	}
	if a.Amount < 0 {
		errs = append(errs, fmt.Sprintf("Amount must not be negative, got %d", a.Amount))
	}
	return a.record(errs)
}

func (a *MouseScroll) Config() Config {
	cfg := a.config()
	cfg.Direction = string(a.Direction)
	cfg.Amount = a.Amount
	return cfg
}

func (a *MouseScroll) execute(ctx context.Context, trigger *int) error {
	sim, err := a.env.simulator(a)
	if err != nil {
		return err
	}
	direction, err := input.ParseScrollDirection(string(a.Direction))
	if err != nil {
		return err
	}
	return sim.Scroll(direction, max(a.Amount, 1))
}
