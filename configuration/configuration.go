// Package configuration parses a YAML configuration document describing
// which lower-device backend to use and how to size the device. The
// sealedblockctl CLI does not read this document: it takes its settings
// from command-line flags and always uses the "file" backend. Key material
// is never part of configuration — the CLI reads it from a raw key file
// named on the command line — to avoid encouraging secrets-in-config.
// Grounded on distribution's configuration package.
package configuration

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v2"
)

// Configuration is the top-level document read from a sealedblockctl
// config file.
type Configuration struct {
	// Log configures the logging subsystem.
	Log Log `yaml:"log"`

	// Storage selects and configures the lower-device backend.
	Storage Storage `yaml:"storage"`

	// Device sizes the sealed device.
	Device Device `yaml:"device"`
}

// Log configures the logging subsystem.
type Log struct {
	Level     string `yaml:"level"`
	Formatter string `yaml:"formatter"`
}

// Device sizes the sealed device.
type Device struct {
	// NBlocks is the number of data blocks the device exposes. Must be a
	// power of two greater than one.
	NBlocks uint64 `yaml:"nblks"`
}

// Parameters holds backend-specific configuration values.
type Parameters map[string]interface{}

// Storage names exactly one registered backend and its parameters,
// mirroring distribution's Storage map[string]Parameters.
type Storage map[string]Parameters

// Type returns the configured backend's name.
func (s Storage) Type() (string, error) {
	for k, v := range s {
		if k == "" {
			continue
		}
		if v == nil {
			return k, nil
		}
		return k, nil
	}
	return "", fmt.Errorf("configuration: no storage backend configured")
}

// Params returns the configured backend's parameters.
func (s Storage) Params() Parameters {
	name, err := s.Type()
	if err != nil {
		return nil
	}
	return s[name]
}

// Parse reads a Configuration from rd, applying SEALEDBLOCK_-prefixed
// environment variable overrides on top of the parsed YAML document.
func Parse(rd io.Reader) (*Configuration, error) {
	in, err := io.ReadAll(rd)
	if err != nil {
		return nil, err
	}

	config := new(Configuration)
	if err := yaml.Unmarshal(in, config); err != nil {
		return nil, err
	}

	if err := overrideFromEnv(config); err != nil {
		return nil, err
	}

	return config, nil
}
