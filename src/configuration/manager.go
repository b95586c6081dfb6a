package configuration

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/0h41/midikontrol/src/state"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultSaveDelay = 2 * time.Second

// ErrProfileChanged is returned by SaveNow when the profile file no longer
// holds the content the in-memory profile was read from or last saved as.
var ErrProfileChanged = errors.New("profile file changed on disk")

// ConfigManager owns the active profile and persists runtime changes to it
type ConfigManager struct {
	profile       *Profile
	profilePath   string
	saveDelay     time.Duration
	mu            sync.Mutex
	saveMutex     sync.Mutex
	saveDebouncer *time.Timer
	lastSaved     []byte
	baseline      []byte // file content the in-memory profile corresponds to
	dirty         bool
	subscribers   map[string][]func(interface{})
	log           zerolog.Logger
}

// NewConfigManager creates a manager for the profile stored at profilePath
func NewConfigManager(profile *Profile, profilePath string) *ConfigManager {
	return &ConfigManager{
		profile:     profile,
		profilePath: profilePath,
		saveDelay:   DefaultSaveDelay,
		baseline:    readFile(profilePath),
		subscribers: make(map[string][]func(interface{})),
		log:         log.With().Str("module", "Config").Logger(),
	}
}

func readFile(path string) []byte {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return data
}

// SetSaveDelay changes how long SaveWithDebounce waits for further changes
func (cm *ConfigManager) SetSaveDelay(delay time.Duration) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.saveDelay = delay
}

// GetProfile returns the current profile
func (cm *ConfigManager) GetProfile() *Profile {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.profile
}

// SetProfile replaces the profile after a successful reload from disk.
// Unsaved state changes of the previous profile are dropped.
func (cm *ConfigManager) SetProfile(profile *Profile) {
	baseline := readFile(cm.profilePath)
	cm.mu.Lock()
	cm.profile = profile
	cm.baseline = baseline
	cm.dirty = false
	if cm.saveDebouncer != nil {
		cm.saveDebouncer.Stop()
		cm.saveDebouncer = nil
	}
	cm.mu.Unlock()
	cm.Notify("profile.replaced", profile)
}

func (cm *ConfigManager) Path() string {
	return cm.profilePath
}

// Subscribe registers a callback for configuration changes
func (cm *ConfigManager) Subscribe(topic string, callback func(interface{})) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.subscribers[topic] = append(cm.subscribers[topic], callback)
}

// Notify sends updates to subscribers
func (cm *ConfigManager) Notify(topic string, data interface{}) {
	cm.mu.Lock()
	callbacks := append([]func(interface{}){}, cm.subscribers[topic]...)
	cm.mu.Unlock()
	for _, callback := range callbacks {
		callback(data)
	}
}

// UpdateState records a user state change in the profile's InitialStates so
// it survives a restart. Internal keys are ignored. It has the signature of a
// state.Observer.
func (cm *ConfigManager) UpdateState(key string, value int) {
	if state.IsInternal(key) {
		return
	}

	cm.mu.Lock()
	if cm.profile == nil {
		cm.mu.Unlock()
		return
	}
	if current, ok := cm.profile.InitialStates[key]; ok && current == value {
		cm.mu.Unlock()
		return
	}
	if cm.profile.InitialStates == nil {
		cm.profile.InitialStates = make(map[string]int)
	}
	cm.profile.InitialStates[key] = value
	cm.dirty = true
	cm.mu.Unlock()

	// Notify subscribers immediately with real-time changes
	cm.Notify("state.updated", map[string]interface{}{
		"key":   key,
		"value": value,
	})
	cm.SaveWithDebounce()
}

// SaveWithDebounce schedules a save after a brief delay, debouncing multiple rapid changes
func (cm *ConfigManager) SaveWithDebounce() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	// Cancel existing timer if any
	if cm.saveDebouncer != nil {
		cm.saveDebouncer.Stop()
	}
	cm.saveDebouncer = time.AfterFunc(cm.saveDelay, func() {
		if err := cm.saveIfDirty(); err != nil {
			cm.logSaveError(err)
		}
	})
}

func (cm *ConfigManager) logSaveError(err error) {
	if errors.Is(err, ErrProfileChanged) {
		cm.log.Warn().Str("path", cm.profilePath).Msg("Profile was edited on disk, state changes are not saved until it reloads")
		return
	}
	cm.log.Error().Err(err).Msg("Failed to save profile")
}

// Flush cancels the debounce timer, waits for a save in progress and writes
// any changes still unsaved.
func (cm *ConfigManager) Flush() error {
	cm.mu.Lock()
	if cm.saveDebouncer != nil {
		cm.saveDebouncer.Stop()
		cm.saveDebouncer = nil
	}
	cm.mu.Unlock()
	return cm.saveIfDirty()
}

func (cm *ConfigManager) saveIfDirty() error {
	cm.saveMutex.Lock()
	defer cm.saveMutex.Unlock()

	cm.mu.Lock()
	dirty := cm.dirty
	cm.mu.Unlock()
	if !dirty {
		return nil
	}
	return cm.save()
}

// SaveNow immediately saves the profile to disk. It refuses with
// ErrProfileChanged when the file was modified by someone else since the
// profile was loaded, so a pending edit is never overwritten.
func (cm *ConfigManager) SaveNow() error {
	cm.saveMutex.Lock()
	defer cm.saveMutex.Unlock()
	return cm.save()
}

// save must be called with saveMutex held.
func (cm *ConfigManager) save() error {
	onDisk, readErr := os.ReadFile(cm.profilePath)

	cm.mu.Lock()
	if readErr == nil && !bytes.Equal(onDisk, cm.baseline) {
		cm.mu.Unlock()
		return ErrProfileChanged
	}
	data, err := json.MarshalIndent(cm.profile, "", "  ")
	wasDirty := cm.dirty
	cm.dirty = false
	cm.mu.Unlock()
	if err != nil {
		cm.markDirty(wasDirty)
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	cm.log.Debug().Msg("Saving profile to disk")

	// Write to temporary file first
	tempPath := cm.profilePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		cm.markDirty(wasDirty)
		return fmt.Errorf("failed to write temporary profile file %s: %w", tempPath, err)
	}

	// Rename to actual profile file (atomic operation)
	if err := os.Rename(tempPath, cm.profilePath); err != nil {
		cm.markDirty(wasDirty)
		return fmt.Errorf("failed to rename %s to %s: %w", tempPath, cm.profilePath, err)
	}

	cm.mu.Lock()
	cm.lastSaved = data
	cm.baseline = data
	cm.mu.Unlock()

	cm.log.Info().Str("path", cm.profilePath).Msg("Profile saved")
	return nil
}

func (cm *ConfigManager) markDirty(dirty bool) {
	if !dirty {
		return
	}
	cm.mu.Lock()
	cm.dirty = true
	cm.mu.Unlock()
}

// IsOwnWrite reports whether the profile file currently holds exactly what
// the manager last wrote, so a file watcher can skip reloading it.
func (cm *ConfigManager) IsOwnWrite() bool {
	data, err := os.ReadFile(cm.profilePath)
	if err != nil {
		return false
	}
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.lastSaved != nil && bytes.Equal(data, cm.lastSaved)
}
