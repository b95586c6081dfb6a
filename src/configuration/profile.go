package configuration

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed profile.schema.json
var profileSchemaSource string

var profileSchema = jsonschema.MustCompileString("profile.schema.json", profileSchemaSource)

// LoadConfiguration reads and validates the profile at path. Every failure is
// returned as a *LoadError.
func LoadConfiguration(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &LoadError{Path: path, Reason: "file not found", Err: err}
		}
		return nil, &LoadError{Path: path, Reason: "could not read file", Err: err}
	}
	return ParseProfile(path, data)
}

// ParseProfile decodes and validates profile JSON. path is only used in errors.
func ParseProfile(path string, data []byte) (*Profile, error) {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &LoadError{Path: path, Reason: "malformed JSON", Err: err}
	}
	if err := profileSchema.Validate(doc); err != nil {
		return nil, &LoadError{Path: path, Reason: "schema violation", Err: err}
	}

	var profile Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, &LoadError{Path: path, Reason: "malformed JSON", Err: err}
	}
	if strings.TrimSpace(profile.ProfileName) == "" {
		return nil, &LoadError{Path: path, Reason: "ProfileName must not be empty"}
	}
	return &profile, nil
}

// SaveProfile writes profile as indented JSON, replacing path atomically.
func SaveProfile(path string, profile *Profile) error {
	data, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("could not create profile directory: %w", err)
	}

	// Write to temporary file first
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temporary profile file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename profile file: %w", err)
	}
	return nil
}
