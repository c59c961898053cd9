package store

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadSeed reads an initial state document from a YAML file. Runs and
// outreach history are never seeded.
func LoadSeed(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return State{}, fmt.Errorf("failed to read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes a YAML seed document.
func ParseSeed(data []byte) (State, error) {
	var state State
	if err := yaml.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("failed to parse seed: %w", err)
	}
	for i, job := range state.Jobs {
		if job.ID == "" {
			return State{}, fmt.Errorf("seed job %d (%s) has no id", i, job.Title)
		}
	}
	hydrate(&state)
	return state, nil
}
