package triage

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// VocabFile is the top-level YAML structure for a triage vocabulary pack.
type VocabFile struct {
	Symptoms []SymptomConfig  `yaml:"symptoms"`
	Severity []SeverityConfig `yaml:"severity"`
}

// SymptomConfig maps a controlled symptom tag to its keyword variants.
// Expansion holds extra query terms appended during retrieval query
// expansion when this tag is present.
type SymptomConfig struct {
	Tag       string   `yaml:"tag"`
	Keywords  []string `yaml:"keywords"`
	Expansion string   `yaml:"expansion,omitempty"`
}

// SeverityConfig maps a severity level to its qualifier words. Levels are
// checked in file order (high to low); the first level with a hit wins.
type SeverityConfig struct {
	Level    string   `yaml:"level"`
	Keywords []string `yaml:"keywords"`
}

// ParseVocabFile parses vocabulary YAML bytes into a VocabFile.
func ParseVocabFile(data []byte) (*VocabFile, error) {
	var vf VocabFile
	if err := yaml.Unmarshal(data, &vf); err != nil {
		return nil, fmt.Errorf("parsing triage vocabulary YAML: %w", err)
	}
	return &vf, nil
}

// LoadVocabFile reads and parses a vocabulary YAML file from disk. Returns
// nil (not an error) if the file does not exist.
func LoadVocabFile(path string) (*VocabFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading triage vocabulary file %s: %w", path, err)
	}
	return ParseVocabFile(data)
}

func (vf *VocabFile) validate() error {
	if len(vf.Symptoms) == 0 {
		return fmt.Errorf("triage vocabulary has no symptoms")
	}
	seen := make(map[string]bool, len(vf.Symptoms))
	for _, s := range vf.Symptoms {
		if s.Tag == "" || len(s.Keywords) == 0 {
			return fmt.Errorf("symptom %q: tag and keywords are required", s.Tag)
		}
		if seen[s.Tag] {
			return fmt.Errorf("duplicate symptom tag %q", s.Tag)
		}
		seen[s.Tag] = true
	}
	for _, sv := range vf.Severity {
		switch sv.Level {
		case SeverityHigh, SeverityMedium, SeverityLow:
		default:
			return fmt.Errorf("unknown severity level %q", sv.Level)
		}
	}
	return nil
}
