package actions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/0h41/midikontrol/src/state"
	"github.com/samber/lo"
)

// parent is implemented by actions that own sub-actions.
type parent interface {
	children() []Action
}

// Delay suspends the calling flow for Milliseconds.
type Delay struct {
	base
	Milliseconds int
}

func (a *Delay) IsValid() bool {
	var errs []string
	if a.Milliseconds < 0 {
		errs = append(errs, fmt.Sprintf("Milliseconds must not be negative, got %d", a.Milliseconds))
	}
	return a.record(errs)
}

func (a *Delay) Suspends() bool { return a.Milliseconds > 0 }

func (a *Delay) Config() Config {
	cfg := a.config()
	cfg.Milliseconds = a.Milliseconds
	return cfg
}

func (a *Delay) execute(ctx context.Context, trigger *int) error {
	return sleep(ctx, time.Duration(a.Milliseconds)*time.Millisecond)
}

// Sequence runs its sub-actions in order, each finishing before the next starts.
type Sequence struct {
	base
	Actions       []Action
	ErrorHandling ErrorHandling
}

func (a *Sequence) children() []Action { return a.Actions }

func (a *Sequence) IsValid() bool {
	var errs []string
	if len(a.Actions) == 0 {
		errs = append(errs, "SubActions must not be empty")
	}
	switch a.ErrorHandling {
	case "", ContinueOnError, StopOnError:
	default:
		errs = append(errs, fmt.Sprintf("unknown ErrorHandling %q", a.ErrorHandling))
	}
	for i, child := range a.Actions {
		if !child.IsValid() {
			errs = append(errs, lo.Map(child.ValidationErrors(), func(e string, _ int) string {
				return fmt.Sprintf("[%d] %s", i, e)
			})...)
		}
	}
	return a.record(errs)
}

func (a *Sequence) Suspends() bool {
	return lo.SomeBy(a.Actions, func(child Action) bool { return child.Suspends() })
}

func (a *Sequence) Config() Config {
	cfg := a.config()
	cfg.ErrorHandling = a.ErrorHandling
	cfg.SubActions = lo.Map(a.Actions, func(child Action, _ int) Config { return child.Config() })
	return cfg
}

func (a *Sequence) execute(ctx context.Context, trigger *int) error {
	for i, child := range a.Actions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.env.Execute(ctx, child, trigger); err != nil && a.ErrorHandling == StopOnError {
			return fmt.Errorf("%w: step %d: %w", ErrSequenceStopped, i, err)
		}
	}
	return nil
}

// Conditional compares a state value and runs Then or Else.
type Conditional struct {
	base
	StateKey     string
	Comparison   Comparison
	CompareValue int
	Then         Action
	Else         Action
}

func (a *Conditional) children() []Action {
	return lo.Filter([]Action{a.Then, a.Else}, func(child Action, _ int) bool { return child != nil })
}

func (a *Conditional) IsValid() bool {
	var errs []string
	if strings.TrimSpace(a.StateKey) == "" {
		errs = append(errs, "StateKey is required")
	}
	if _, err := compare(a.Comparison, 0, 0); err != nil {
		errs = append(errs, err.Error())
	}
	if a.Then == nil {
		errs = append(errs, "Then is required")
	} else if !a.Then.IsValid() {
		errs = append(errs, lo.Map(a.Then.ValidationErrors(), func(e string, _ int) string { return "[Then] " + e })...)
	}
	if a.Else != nil && !a.Else.IsValid() {
		errs = append(errs, lo.Map(a.Else.ValidationErrors(), func(e string, _ int) string { return "[Else] " + e })...)
	}
	return a.record(errs)
}

func (a *Conditional) Suspends() bool {
	return lo.SomeBy(a.children(), func(child Action) bool { return child.Suspends() })
}

func (a *Conditional) Config() Config {
	cfg := a.config()
	cfg.StateKey = a.StateKey
	cfg.Comparison = a.Comparison
	cfg.CompareValue = a.CompareValue
	if a.Then != nil {
		then := a.Then.Config()
		cfg.Then = &then
	}
	if a.Else != nil {
		otherwise := a.Else.Config()
		cfg.Else = &otherwise
	}
	return cfg
}

func (a *Conditional) execute(ctx context.Context, trigger *int) error {
	current, _ := a.env.State.Get(a.StateKey)
	ok, err := compare(a.Comparison, current, a.CompareValue)
	if err != nil {
		return err
	}
	branch := a.Else
	if ok {
		branch = a.Then
	}
	if branch == nil {
		return nil
	}
	return a.env.Execute(ctx, branch, trigger)
}

func compare(comparison Comparison, value, target int) (bool, error) {
	switch comparison {
	case Equals:
		return value == target, nil
	case NotEquals:
		return value != target, nil
	case GreaterThan:
		return value > target, nil
	case GreaterThanOrEqual:
		return value >= target, nil
	case LessThan:
		return value < target, nil
	case LessThanOrEqual:
		return value <= target, nil
	}
	return false, fmt.Errorf("unknown Comparison %q", comparison)
}

// SetState writes a user state key, either a fixed Value or the trigger value.
type SetState struct {
	base
	StateKey        string
	Value           int
	UseTriggerValue bool
}

func validateStateKey(key string) []string {
	switch {
	case strings.TrimSpace(key) == "":
		return []string{"StateKey is required"}
	case state.IsInternal(key):
		return []string{fmt.Sprintf("StateKey %q uses the reserved %q prefix", key, state.InternalPrefix)}
	}
	return nil
}

func (a *SetState) IsValid() bool {
	return a.record(validateStateKey(a.StateKey))
}

func (a *SetState) Config() Config {
	cfg := a.config()
	cfg.StateKey = a.StateKey
	cfg.Value = a.Value
	cfg.UseTriggerValue = a.UseTriggerValue
	return cfg
}

func (a *SetState) execute(ctx context.Context, trigger *int) error {
	value := a.Value
	if a.UseTriggerValue && trigger != nil {
		value = *trigger
	}
	a.env.State.Set(a.StateKey, value)
	return nil
}
