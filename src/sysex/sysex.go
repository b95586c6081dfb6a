// Package sysex parses and formats MIDI System Exclusive messages written as
// space separated hex bytes, e.g. "F0 43 12 00 F7".
package sysex

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	Start byte = 0xF0
	End   byte = 0xF7
)

var ErrFraming = errors.New("sysex message must start with F0 and end with F7")

// Parse decodes a hex string. Whitespace between bytes is optional.
func Parse(s string) ([]byte, error) {
	compact := strings.Join(strings.Fields(s), "")
	if compact == "" {
		return nil, errors.New("sysex message is empty")
	}
	data, err := hex.DecodeString(compact)
	if err != nil {
		return nil, fmt.Errorf("invalid sysex hex %q: %w", s, err)
	}
	return data, nil
}

// ParseFramed decodes s and checks the F0..F7 framing.
func ParseFramed(s string) ([]byte, error) {
	data, err := Parse(s)
	if err != nil {
		return nil, err
	}
	if err := Validate(data); err != nil {
		return nil, err
	}
	return data, nil
}

// Validate checks that data is a complete F0..F7 message.
func Validate(data []byte) error {
	if len(data) < 2 || data[0] != Start || data[len(data)-1] != End {
		return ErrFraming
	}
	for _, b := range data[1 : len(data)-1] {
		if b > 0x7F {
			return fmt.Errorf("sysex data byte %02X is out of range", b)
		}
	}
	return nil
}

// Format renders data as upper-case hex bytes separated by spaces.
func Format(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}

// Matches reports whether payload is pattern, or begins with pattern minus its
// closing F7.
func Matches(pattern, payload []byte) bool {
	if len(pattern) == 0 {
		return false
	}
	if string(pattern) == string(payload) {
		return true
	}
	body := pattern
	if body[len(body)-1] == End {
		body = body[:len(body)-1]
	}
	return len(body) > 1 && strings.HasPrefix(string(payload), string(body))
}
