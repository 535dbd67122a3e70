package modulemanager

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ModuleConfig represents the module configuration structure
type ModuleConfig struct {
	Modules struct {
		Disabled []string `yaml:"disabled"`
	} `yaml:"modules"`
}

// LoadConfig loads module configuration from a YAML file
func LoadConfig(configPath string) (*ModuleConfig, error) {
	config := &ModuleConfig{}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() string {
	if _, err := os.Stat("mediawall-modules.yml"); err == nil {
		return "mediawall-modules.yml"
	}

	dataDir := os.Getenv("MEDIAWALL_DATA_DIR")
	if dataDir == "" {
		dataDir = "./data"
	}

	return filepath.Join(dataDir, "mediawall-modules.yml")
}
