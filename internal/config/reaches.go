package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abelzeko/water-router/internal/routing"
)

// DefaultHistory is how far back a forecast looks when a reach does not say
const DefaultHistory = 48 * time.Hour

// ReachConfig describes a river reach whose upstream station feeds the router
type ReachConfig struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	River       string         `yaml:"river"`   // Upstream river name, as scraped
	Station     string         `yaml:"station"` // Upstream station name, as scraped
	K           time.Duration  `yaml:"k"`
	X           float64        `yaml:"x"`
	TimeStep    time.Duration  `yaml:"time_step"`
	SubReaches  int            `yaml:"sub_reaches,omitempty"`
	Policy      routing.Policy `yaml:"policy,omitempty"`
	History     time.Duration  `yaml:"history,omitempty"`
}

// Params converts the reach into routing parameters
func (r ReachConfig) Params() routing.Params {
	return routing.NewParams(r.K, r.TimeStep, r.X, routing.WithSubReaches(r.SubReaches))
}

type reachFile struct {
	Reaches []ReachConfig `yaml:"reaches"`
}

// LoadReaches reads the reach catalogue from path. A missing file yields
// an empty catalogue.
func LoadReaches(path string) ([]ReachConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read reaches file: %w", err)
	}
	return ParseReaches(bytes.NewReader(data))
}

// ParseReaches decodes and validates a reach catalogue
func ParseReaches(r io.Reader) ([]ReachConfig, error) {
	var f reachFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse reaches: %w", err)
	}

	seen := make(map[string]bool, len(f.Reaches))
	for i := range f.Reaches {
		rc := &f.Reaches[i]
		if rc.SubReaches == 0 {
			rc.SubReaches = 1
		}
		if rc.History == 0 {
			rc.History = DefaultHistory
		}
		if err := rc.validate(); err != nil {
			return nil, fmt.Errorf("reach #%d: %w", i+1, err)
		}
		if seen[rc.Name] {
			return nil, fmt.Errorf("reach #%d: duplicate name %q", i+1, rc.Name)
		}
		seen[rc.Name] = true
	}
	return f.Reaches, nil
}

func (r *ReachConfig) validate() error {
	switch {
	case r.Name == "":
		return errors.New("name is required")
	case r.River == "" || r.Station == "":
		return fmt.Errorf("%s: river and station are required", r.Name)
	case r.K < time.Second:
		return fmt.Errorf("%s: k must be at least 1s, got %s", r.Name, r.K)
	case r.TimeStep < time.Second:
		return fmt.Errorf("%s: time_step must be at least 1s, got %s", r.Name, r.TimeStep)
	case r.SubReaches < 1:
		return fmt.Errorf("%s: sub_reaches must be at least 1, got %d", r.Name, r.SubReaches)
	case r.History < r.TimeStep:
		return fmt.Errorf("%s: history %s is shorter than time_step %s", r.Name, r.History, r.TimeStep)
	}
	return nil
}
