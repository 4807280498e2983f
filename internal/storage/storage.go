package storage

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/eugenenazirov/plate-binning/internal/calculator"
)

var (
	// ErrNotFound is returned when no configuration is stored under a name.
	ErrNotFound = errors.New("dilution configuration not found")
	// ErrInvalidName is returned for blank configuration names.
	ErrInvalidName = errors.New("configuration name must not be blank")
	// ErrInvalidConfiguration wraps loader errors for configurations that cannot be parsed.
	ErrInvalidConfiguration = errors.New("invalid dilution configuration")
)

var defaultConfigurations = map[string]calculator.RawConfiguration{
	"concentration-binning": {
		SourceVolume:  "10",
		DiluentVolume: "25",
		Bins: []calculator.RawBin{
			{Max: "25", Colour: "1", Label: "16 PCR cycles"},
			{Min: "25", Max: "500", Colour: "2", Label: "12 PCR cycles"},
			{Min: "500", Colour: "3", Label: "8 PCR cycles"},
		},
	},
	"concentration-normalisation": {
		TargetAmount:        "50",
		TargetVolume:        "20",
		MinimumSourceVolume: "0.2",
	},
	"fixed-normalisation": {
		SourceVolume:  "2",
		DiluentVolume: "33",
	},
	"normalised-binning": {
		TargetAmount:        "50",
		TargetVolume:        "20",
		MinimumSourceVolume: "0.2",
		Bins: []calculator.RawBin{
			{Max: "25", Colour: "1", Label: "16 PCR cycles"},
			{Min: "25", Max: "50", Colour: "2", Label: "12 PCR cycles"},
			{Min: "50", Colour: "3", Label: "8 PCR cycles"},
		},
	},
	"cycle-count-binning": {
		Bins: []calculator.RawBin{{Colour: "1"}, {Colour: "2"}, {Colour: "3"}, {Colour: "4"}},
	},
}

// Storage provides access to named dilution configurations.
type Storage interface {
	ListConfigurations() ([]string, error)
	GetConfiguration(name string) (calculator.RawConfiguration, error)
	SetConfiguration(name string, raw calculator.RawConfiguration) error
}

// MemoryStorage keeps configurations in-memory and guards access with a RWMutex.
type MemoryStorage struct {
	mu      sync.RWMutex
	configs map[string]calculator.RawConfiguration
}

// NewMemoryStorage initialises storage with a copy of the default configurations.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{configs: DefaultConfigurations()}
}

// DefaultConfigurations returns a copy of the built-in configurations, keyed by name.
func DefaultConfigurations() map[string]calculator.RawConfiguration {
	out := make(map[string]calculator.RawConfiguration, len(defaultConfigurations))
	for name, raw := range defaultConfigurations {
		out[name] = clone(raw)
	}
	return out
}

// ListConfigurations returns the stored names in sorted order.
func (s *MemoryStorage) ListConfigurations() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.configs))
	for name := range s.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// GetConfiguration returns a defensive copy of the named configuration.
func (s *MemoryStorage) GetConfiguration(name string) (calculator.RawConfiguration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, ok := s.configs[strings.TrimSpace(name)]
	if !ok {
		return calculator.RawConfiguration{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return clone(raw), nil
}

// SetConfiguration validates and stores raw under name, replacing any previous entry.
func (s *MemoryStorage) SetConfiguration(name string, raw calculator.RawConfiguration) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	if _, err := calculator.LoadConfiguration(raw); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}

	s.mu.Lock()
	s.configs[name] = clone(raw)
	s.mu.Unlock()

	return nil
}

func clone(raw calculator.RawConfiguration) calculator.RawConfiguration {
	out := raw
	if raw.Bins != nil {
		out.Bins = make([]calculator.RawBin, len(raw.Bins))
		copy(out.Bins, raw.Bins)
	}
	return out
}
