// Package engine ties the registry, the loader and the action environment
// together: it loads profiles and dispatches incoming MIDI events.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/0h41/midikontrol/src/actions"
	"github.com/0h41/midikontrol/src/configuration"
	"github.com/0h41/midikontrol/src/mapping"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"go.uber.org/atomic"
)

// LoadState is the phase of the profile load in progress.
type LoadState string

const (
	Idle       LoadState = "Idle"
	Parsing    LoadState = "Parsing"
	Validating LoadState = "Validating"
	Converting LoadState = "Converting"
	Committing LoadState = "Committing"
)

// LoadReport summarizes a profile load.
type LoadReport struct {
	Path         string                        `json:"path,omitempty"`
	ProfileName  string                        `json:"profileName"`
	MappingCount int                           `json:"mappingCount"`
	EnabledCount int                           `json:"enabledCount"`
	Failures     []*configuration.MappingError `json:"-"`
	LoadedAt     time.Time                     `json:"loadedAt"`
}

// FailureMessages returns the skipped mappings as text.
func (r LoadReport) FailureMessages() []string {
	return lo.Map(r.Failures, func(f *configuration.MappingError, _ int) string { return f.Error() })
}

// Observer is told about the outcome of every profile load.
type Observer interface {
	ProfileLoaded(report LoadReport)
	ProfileLoadFailed(path string, err error)
}

type Engine struct {
	env      *actions.Env
	registry *mapping.Registry
	loader   *configuration.Loader
	observer Observer
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	loadMu  sync.Mutex
	state   *atomic.String
	profile *atomic.Pointer[configuration.Profile]
}

// New creates an engine with an empty mapping set. observer may be nil.
func New(env *actions.Env, observer Observer, opts ...mapping.Option) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		env:      env,
		registry: mapping.NewRegistry(opts...),
		loader:   configuration.NewLoader(env),
		observer: observer,
		log:      log.With().Str("module", "Engine").Logger(),
		ctx:      ctx,
		cancel:   cancel,
		state:    atomic.NewString(string(Idle)),
		profile:  atomic.NewPointer[configuration.Profile](nil),
	}
}

// SetObserver replaces the observer told about profile loads.
func (e *Engine) SetObserver(observer Observer) {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()
	e.observer = observer
}

func (e *Engine) setState(s LoadState) {
	e.state.Store(string(s))
	e.log.Trace().Str("state", string(s)).Msg("Load state")
}

// State returns the current load phase.
func (e *Engine) State() LoadState {
	return LoadState(e.state.Load())
}

// LoadProfile reads the profile at path and makes it active. When the file
// cannot be loaded the previous profile stays active and a
// *configuration.LoadError is returned.
func (e *Engine) LoadProfile(path string) (LoadReport, error) {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	e.setState(Parsing)
	profile, err := configuration.LoadConfiguration(path)
	if err != nil {
		e.setState(Idle)
		e.log.Error().Err(err).Str("path", path).Msg("Profile load failed, keeping previous profile")
		if e.observer != nil {
			e.observer.ProfileLoadFailed(path, err)
		}
		return LoadReport{Path: path}, err
	}

	report := e.apply(profile)
	report.Path = path
	e.notifyLoaded(report)
	return report, nil
}

// SetConfiguration makes an already parsed profile active. State keys are
// reset to the profile's InitialStates.
func (e *Engine) SetConfiguration(profile *configuration.Profile) LoadReport {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	report := e.apply(profile)
	e.notifyLoaded(report)
	return report
}

func (e *Engine) apply(profile *configuration.Profile) LoadReport {
	e.setState(Validating)
	validated, failures := e.loader.ValidateInputs(profile)

	e.setState(Converting)
	mappings, actionFailures := e.loader.BuildMappings(validated)
	failures = append(failures, actionFailures...)

	e.setState(Committing)
	e.registry.LoadMappings(mappings)
	e.env.State.Reset(profile.InitialStates)
	e.profile.Store(profile)
	e.setState(Idle)

	stats := e.registry.Statistics()
	report := LoadReport{
		ProfileName:  profile.ProfileName,
		MappingCount: stats.MappingCount,
		EnabledCount: stats.EnabledCount,
		Failures:     failures,
		LoadedAt:     stats.LoadedAt,
	}
	e.log.Info().
		Str("profile", profile.ProfileName).
		Int("mappings", report.MappingCount).
		Int("skipped", len(failures)).
		Msg("Profile active")
	return report
}

func (e *Engine) notifyLoaded(report LoadReport) {
	if e.observer != nil {
		e.observer.ProfileLoaded(report)
	}
}

// Profile returns the active profile, or nil before the first load.
func (e *Engine) Profile() *configuration.Profile {
	return e.profile.Load()
}

// Export rebuilds a profile from the active mappings.
func (e *Engine) Export() *configuration.Profile {
	name := "Exported"
	var initial map[string]int
	if current := e.profile.Load(); current != nil {
		name = current.ProfileName
		initial = current.InitialStates
	}
	profile := configuration.ConvertFromMappings(name, e.registry.Mappings())
	profile.InitialStates = initial
	return profile
}

func (e *Engine) FindActions(input mapping.MidiInput) []actions.Action {
	return e.registry.FindActions(input)
}

func (e *Engine) GetRegistryStatistics() mapping.Statistics {
	return e.registry.Statistics()
}

// ExecutionStats returns the counters of the action environment.
func (e *Engine) ExecutionStats() actions.Stats {
	return e.env.Stats()
}

// Handle runs the actions mapped to event in order. Actions run on the
// calling goroutine until one that suspends is reached; it and the actions
// after it continue on a tracked goroutine so Handle returns promptly.
func (e *Engine) Handle(event mapping.Event) {
	matched := e.registry.FindActions(event.Input)
	if len(matched) == 0 {
		return
	}

	for i, a := range matched {
		if a.Suspends() {
			rest := matched[i:]
			e.env.Go(func() {
				for _, a := range rest {
					e.env.Execute(e.ctx, a, event.Value)
				}
			})
			return
		}
		e.env.Execute(e.ctx, a, event.Value)
	}
}

// Wait blocks until all background work started by actions has finished.
func (e *Engine) Wait() {
	e.env.Wait()
}

// Close cancels running delays and waits for background work to finish.
func (e *Engine) Close() {
	e.cancel()
	e.env.Wait()
}
