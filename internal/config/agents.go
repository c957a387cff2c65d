package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/Harshitk-cp/concord/internal/domain"
	"gopkg.in/yaml.v3"
)

var (
	ErrAgentIDMissing = errors.New("agent id is required")
	ErrDuplicateAgent = errors.New("duplicate agent id")
)

type agentsFile struct {
	Agents []domain.AgentConfig `yaml:"agents"`
}

// LoadAgents reads the coordination roster. A missing file yields an empty roster.
func LoadAgents(path string) ([]domain.AgentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read agents file: %w", err)
	}
	return ParseAgents(data)
}

func ParseAgents(data []byte) ([]domain.AgentConfig, error) {
	var f agentsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse agents file: %w", err)
	}

	seen := make(map[string]bool, len(f.Agents))
	for i, a := range f.Agents {
		if a.ID == "" {
			return nil, fmt.Errorf("agent %d: %w", i, ErrAgentIDMissing)
		}
		if seen[a.ID] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAgent, a.ID)
		}
		seen[a.ID] = true
	}
	return f.Agents, nil
}
