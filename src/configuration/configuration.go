package configuration

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Default settings
func GetDefaultSettings() Settings {
	homeDir, _ := os.UserHomeDir()
	return Settings{
		Profile:           filepath.Join(homeDir, ".config", "midikontrol", "profile.json"),
		LogLevel:          "info",
		WebUI:             true,
		WebAddr:           "127.0.0.1:6080",
		WatchProfile:      true,
		DeviceMatching:    "substring",
		PersistStates:     true,
		VirtualDeviceName: "midikontrol virtual input",
	}
}

func settingsPaths() []string {
	homeDir, _ := os.UserHomeDir()
	return []string{
		"./config.yaml",
		filepath.Join(homeDir, ".config", "midikontrol", "config.yaml"),
	}
}

// Load reads config.yaml from the working directory or ~/.config/midikontrol.
// When neither exists a default file is written to the home location.
func Load() (Settings, string, error) {
	paths := settingsPaths()
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			settings, err := LoadSettings(path)
			return settings, path, err
		}
	}

	settings := GetDefaultSettings()
	configPath := paths[len(paths)-1]
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return settings, "", fmt.Errorf("could not create config directory: %w", err)
	}
	if err := writeSettings(configPath, settings); err != nil {
		return settings, "", err
	}
	return settings, configPath, nil
}

// LoadSettings reads a settings file, filling unset fields with defaults.
func LoadSettings(path string) (Settings, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return GetDefaultSettings(), fmt.Errorf("could not read config: %w", err)
	}

	// Unmarshal over the defaults so missing keys keep their default value
	settings := GetDefaultSettings()
	if err := yaml.Unmarshal(content, &settings); err != nil {
		return GetDefaultSettings(), fmt.Errorf("error parsing config: %w", err)
	}
	ensureDefaults(&settings)
	return settings, nil
}

func writeSettings(path string, settings Settings) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}
	return nil
}

// Set default values for invalid or empty fields
func ensureDefaults(settings *Settings) {
	defaults := GetDefaultSettings()
	if settings.Profile == "" {
		settings.Profile = defaults.Profile
	}
	if settings.LogLevel == "" {
		settings.LogLevel = defaults.LogLevel
	}
	if settings.WebAddr == "" {
		settings.WebAddr = defaults.WebAddr
	}
	if settings.DeviceMatching != "exact" && settings.DeviceMatching != "substring" {
		settings.DeviceMatching = defaults.DeviceMatching
	}
	if settings.VirtualDeviceName == "" {
		settings.VirtualDeviceName = defaults.VirtualDeviceName
	}
}
