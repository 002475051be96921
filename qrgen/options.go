// Package qrgen turns a binary payload into a QR-code image: the payload is
// capped at a fixed number of bytes, base64-encoded and rendered as a PNG.
package qrgen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/skip2/go-qrcode"
	"rsc.io/qr/coding"
)

const (
	// DefaultMaxPayloadBytes is the largest payload encoded before truncation.
	DefaultMaxPayloadBytes = 2240
	// DefaultVersion is the smallest symbol version produced.
	DefaultVersion = 20
	// DefaultModuleSize is the edge length of one module in pixels.
	DefaultModuleSize = 2

	minVersion = 1
	maxVersion = 40
)

// Level is a QR error-correction level.
type Level string

const (
	LevelL Level = "L" // ~7% recoverable
	LevelM Level = "M" // ~15%
	LevelQ Level = "Q" // ~25%
	LevelH Level = "H" // ~30%
)

// ParseLevel parses an error-correction level name. Matching is
// case-insensitive and ignores surrounding whitespace.
func ParseLevel(s string) (Level, error) {
	switch l := Level(strings.ToUpper(strings.TrimSpace(s))); l {
	case LevelL, LevelM, LevelQ, LevelH:
		return l, nil
	default:
		return "", fmt.Errorf("unknown error correction level %q (want L, M, Q or H)", s)
	}
}

func (l Level) recovery() qrcode.RecoveryLevel {
	switch l {
	case LevelM:
		return qrcode.Medium
	case LevelQ:
		return qrcode.High
	case LevelH:
		return qrcode.Highest
	default:
		return qrcode.Low
	}
}

func (l Level) coding() coding.Level {
	switch l {
	case LevelM:
		return coding.M
	case LevelQ:
		return coding.Q
	case LevelH:
		return coding.H
	default:
		return coding.L
	}
}

// Options configures one encoder run.
type Options struct {
	MaxPayloadBytes int
	SourcePath      string
	OutputPath      string
	Version         int
	Level           Level
	ModuleSize      int
}

// DefaultOptions returns the options the tool has always used.
func DefaultOptions() Options {
	return Options{
		MaxPayloadBytes: DefaultMaxPayloadBytes,
		SourcePath:      "output.mp4",
		OutputPath:      "audioQR_sample.png",
		Version:         DefaultVersion,
		Level:           LevelL,
		ModuleSize:      DefaultModuleSize,
	}
}

// Validate reports every invalid field in o.
func (o Options) Validate() error {
	var errs []error
	if o.MaxPayloadBytes <= 0 {
		errs = append(errs, fmt.Errorf("max payload bytes must be positive, got %d", o.MaxPayloadBytes))
	}
	if o.Version < minVersion || o.Version > maxVersion {
		errs = append(errs, fmt.Errorf("qr version must be between %d and %d, got %d", minVersion, maxVersion, o.Version))
	}
	if o.ModuleSize < 1 {
		errs = append(errs, fmt.Errorf("module size must be at least 1, got %d", o.ModuleSize))
	}
	if _, err := ParseLevel(string(o.Level)); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
