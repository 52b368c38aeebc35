// Package config loads the multi-street application configuration.
package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

const (
	DefaultCarClassID          = 2
	DefaultConfidenceThreshold = 0.35
)

// Config is the full application configuration.
type Config struct {
	GlobalPaths     Paths             `yaml:"global_paths"`
	GlobalDetection Detection         `yaml:"global_detection"`
	Streets         map[string]Street `yaml:"streets"`
}

// Paths locates the detector model files.
type Paths struct {
	ModelWeights string `yaml:"model_weights"`
	ModelConfig  string `yaml:"model_config"`
	ClassNames   string `yaml:"class_names"`
}

// Detection holds the tunable detection parameters. Pointer fields so a
// street section can override a single field without clobbering the rest.
type Detection struct {
	CarClassID          *int     `yaml:"car_class_id,omitempty"`
	ConfidenceThreshold *float64 `yaml:"confidence_threshold,omitempty"`
}

// Street is one entry in the street catalogue.
type Street struct {
	Video          string     `yaml:"video"`
	Zones          string     `yaml:"zones"`
	ReferenceImage string     `yaml:"reference_image,omitempty"`
	Model          *Paths     `yaml:"model,omitempty"`
	Detection      *Detection `yaml:"detection,omitempty"`
}

// Resolved is the effective configuration for one street after the
// street section has been merged over the globals.
type Resolved struct {
	Street              string
	Video               string
	Zones               string
	ReferenceImage      string
	Paths               Paths
	CarClassID          int
	ConfidenceThreshold float64
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if len(cfg.Streets) == 0 {
		return nil, fmt.Errorf("config %s defines no streets", path)
	}
	return &cfg, nil
}

// StreetNames returns the catalogue's street names in stable order.
func (c *Config) StreetNames() []string {
	names := make([]string, 0, len(c.Streets))
	for name := range c.Streets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve merges a street's section over the global settings. Street-level
// detection parameters override the globals field by field; unset fields in
// both fall back to the built-in defaults.
func (c *Config) Resolve(street string) (Resolved, error) {
	s, ok := c.Streets[street]
	if !ok {
		return Resolved{}, fmt.Errorf("street %q not found in config", street)
	}

	r := Resolved{
		Street:              street,
		Video:               s.Video,
		Zones:               s.Zones,
		ReferenceImage:      s.ReferenceImage,
		Paths:               c.GlobalPaths,
		CarClassID:          DefaultCarClassID,
		ConfidenceThreshold: DefaultConfidenceThreshold,
	}
	if s.Model != nil {
		r.Paths = *s.Model
	}
	if v := c.GlobalDetection.CarClassID; v != nil {
		r.CarClassID = *v
	}
	if v := c.GlobalDetection.ConfidenceThreshold; v != nil {
		r.ConfidenceThreshold = *v
	}
	if s.Detection != nil {
		if v := s.Detection.CarClassID; v != nil {
			r.CarClassID = *v
		}
		if v := s.Detection.ConfidenceThreshold; v != nil {
			r.ConfidenceThreshold = *v
		}
	}
	return r, nil
}
