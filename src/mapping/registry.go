package mapping

import (
	"strings"
	"time"

	"github.com/0h41/midikontrol/src/actions"
	"github.com/0h41/midikontrol/src/sysex"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"go.uber.org/atomic"
)

// DeviceMatching selects how mapping device names are compared with the
// name of the port an event arrived on.
type DeviceMatching string

const (
	// MatchExact compares names case-insensitively.
	MatchExact DeviceMatching = "exact"
	// MatchSubstring additionally accepts ports whose name contains the
	// mapping's device name, so "nanoKONTROL2" matches "nanoKONTROL2 MIDI 1".
	MatchSubstring DeviceMatching = "substring"
)

type Statistics struct {
	MappingCount  int       `json:"mappingCount"`
	EnabledCount  int       `json:"enabledCount"`
	DisabledCount int       `json:"disabledCount"`
	DeviceCount   int       `json:"deviceCount"`
	SysExCount    int       `json:"sysExCount"`
	Lookups       int64     `json:"lookups"`
	Matches       int64     `json:"matches"`
	LoadedAt      time.Time `json:"loadedAt"`
}

type indexKey struct {
	family InputType
	number int
}

// index is an immutable snapshot of the loaded mappings.
type index struct {
	all      []*ActionMapping
	byKey    map[indexKey][]*ActionMapping
	sysEx    []*ActionMapping
	stats    Statistics
	loadedAt time.Time
}

// Registry holds the active mappings. Loading builds a new index and swaps it
// in atomically, so lookups see either the old or the new set.
type Registry struct {
	log      zerolog.Logger
	matching DeviceMatching
	current  *atomic.Pointer[index]
	lookups  *atomic.Int64
	matches  *atomic.Int64
}

type Option func(*Registry)

func WithDeviceMatching(matching DeviceMatching) Option {
	return func(r *Registry) {
		if matching == MatchExact || matching == MatchSubstring {
			r.matching = matching
		}
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		log:      log.With().Str("module", "Registry").Logger(),
		matching: MatchSubstring,
		current:  atomic.NewPointer(buildIndex(nil)),
		lookups:  atomic.NewInt64(0),
		matches:  atomic.NewInt64(0),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func buildIndex(mappings []*ActionMapping) *index {
	idx := &index{
		all:      append([]*ActionMapping(nil), mappings...),
		byKey:    make(map[indexKey][]*ActionMapping),
		loadedAt: time.Now(),
	}
	enabled := lo.Filter(mappings, func(m *ActionMapping, _ int) bool {
		return m != nil && m.IsEnabled && m.Action != nil
	})
	for _, m := range enabled {
		if m.Input.InputType == SysEx {
			idx.sysEx = append(idx.sysEx, m)
			continue
		}
		key := indexKey{family: m.Input.InputType.family(), number: m.Input.InputNumber}
		idx.byKey[key] = append(idx.byKey[key], m)
	}

	idx.stats = Statistics{
		MappingCount:  len(idx.all),
		EnabledCount:  len(enabled),
		DisabledCount: len(idx.all) - len(enabled),
		SysExCount:    len(idx.sysEx),
		DeviceCount: len(lo.Uniq(lo.Map(enabled, func(m *ActionMapping, _ int) string {
			return strings.ToLower(m.Input.DeviceName)
		}))),
		LoadedAt: idx.loadedAt,
	}
	return idx
}

// LoadMappings replaces the whole active mapping set.
func (r *Registry) LoadMappings(mappings []*ActionMapping) {
	idx := buildIndex(mappings)
	r.current.Store(idx)
	r.log.Info().
		Int("mappings", idx.stats.MappingCount).
		Int("enabled", idx.stats.EnabledCount).
		Int("devices", idx.stats.DeviceCount).
		Msg("Loaded mappings")
}

// FindActions returns the actions of every enabled mapping matching event, in
// load order. An event nothing is mapped to yields an empty slice.
func (r *Registry) FindActions(event MidiInput) []actions.Action {
	return lo.Map(r.findMappings(event), func(m *ActionMapping, _ int) actions.Action { return m.Action })
}

func (r *Registry) findMappings(event MidiInput) []*ActionMapping {
	idx := r.current.Load()
	r.lookups.Inc()

	var candidates []*ActionMapping
	if event.InputType == SysEx {
		candidates = idx.sysEx
	} else {
		candidates = idx.byKey[indexKey{family: event.InputType.family(), number: event.InputNumber}]
	}

	found := lo.Filter(candidates, func(m *ActionMapping, _ int) bool {
		return r.matchesEvent(m.Input, event)
	})
	if len(found) > 0 {
		r.matches.Inc()
	}
	r.log.Trace().Str("event", event.String()).Int("matches", len(found)).Msg("Lookup")
	return found
}

func (r *Registry) matchesEvent(configured, event MidiInput) bool {
	if configured.InputType == SysEx {
		if !sysex.Matches(configured.SysExPattern, event.SysExPattern) {
			return false
		}
	} else if configured.Channel != nil && (event.Channel == nil || *event.Channel != *configured.Channel) {
		return false
	}
	return r.matchesDevice(configured.DeviceName, event.DeviceName)
}

func (r *Registry) matchesDevice(configured, actual string) bool {
	if configured == AnyDevice || strings.EqualFold(configured, actual) {
		return true
	}
	return r.matching == MatchSubstring && configured != "" &&
		strings.Contains(strings.ToLower(actual), strings.ToLower(configured))
}

// Mappings returns every loaded mapping, disabled ones included, in load order.
func (r *Registry) Mappings() []*ActionMapping {
	return append([]*ActionMapping(nil), r.current.Load().all...)
}

func (r *Registry) Statistics() Statistics {
	stats := r.current.Load().stats
	stats.Lookups = r.lookups.Load()
	stats.Matches = r.matches.Load()
	return stats
}
