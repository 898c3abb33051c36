package config

import (
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadQuestionnaire reads and validates a questionnaire file. An empty path selects the built-in one.
func LoadQuestionnaire(filePath string) (*Questionnaire, error) {
	if filePath == "" {
		log.Printf("No questionnaire file configured, using built-in questionnaire.")
		return DefaultQuestionnaire(), nil
	}

	log.Printf("Loading questionnaire from %s...", filePath)

	yamlFile, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", filePath, err)
	}

	var cfg Questionnaire

	err = yaml.Unmarshal(yamlFile, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML from '%s': %w", filePath, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Printf("Questionnaire loaded and validated successfully. %d questions found.", len(cfg.Questions))
	return &cfg, nil
}
