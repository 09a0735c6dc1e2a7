package tools

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultTimeoutSeconds = 10

// ServerConfig is one tool server entry in the registry file.
type ServerConfig struct {
	Name           string `yaml:"name"`
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the per-call deadline for this server.
func (s ServerConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// RegistryConfig lists the tool servers the agent may call.
type RegistryConfig struct {
	Servers []ServerConfig `yaml:"servers"`
}

// LoadRegistry parses a YAML tool-server registry file.
func LoadRegistry(path string) (*RegistryConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tools config: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry parses registry YAML and validates it.
func ParseRegistry(data []byte) (*RegistryConfig, error) {
	var cfg RegistryConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse tools config: %w", err)
	}
	seen := make(map[string]bool, len(cfg.Servers))
	for i := range cfg.Servers {
		s := &cfg.Servers[i]
		if s.Name == "" || s.URL == "" {
			return nil, fmt.Errorf("tool server %d: name and url are required", i)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("duplicate tool server name %q", s.Name)
		}
		seen[s.Name] = true
		if s.TimeoutSeconds <= 0 {
			s.TimeoutSeconds = defaultTimeoutSeconds
		}
	}
	return &cfg, nil
}
