package safety

import (
	"fmt"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

// RuleFile is the top-level YAML structure for a safety rule pack.
type RuleFile struct {
	RuleSets []RuleSetConfig `yaml:"rule_sets"`
}

// RuleSetConfig is one tagged pattern set. Emergency sets are always
// evaluated before refusal sets regardless of file order; within a category,
// file order is preserved.
type RuleSetConfig struct {
	Name     string          `yaml:"name"`
	Category string          `yaml:"category"` // "emergency" or "refusal"
	Flag     string          `yaml:"flag"`
	Message  string          `yaml:"message"`
	Patterns []PatternConfig `yaml:"patterns"`
}

// PatternConfig is a single regex pattern within a rule set.
type PatternConfig struct {
	Name  string `yaml:"name"`
	Regex string `yaml:"regex"`
}

// ParseRuleFile parses rule pack YAML bytes into a RuleFile.
func ParseRuleFile(data []byte) (*RuleFile, error) {
	var rf RuleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing safety rule YAML: %w", err)
	}
	return &rf, nil
}

// LoadRuleFile reads and parses a rule pack YAML file from disk. Returns nil
// (not an error) if the file does not exist, so callers can treat a missing
// override file as a no-op.
func LoadRuleFile(path string) (*RuleFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading safety rule file %s: %w", path, err)
	}
	return ParseRuleFile(data)
}

// compiledRuleSet is a rule set with its patterns compiled for matching over
// case-folded text.
type compiledRuleSet struct {
	name     string
	category string
	flag     string
	message  string
	patterns []*regexp.Regexp
}

// compileRuleSets validates and compiles the rule sets of a pack. The result
// is ordered emergency sets first, then refusal sets, keeping file order
// within each category, so an override pack that appends a new emergency set
// cannot end up shadowed by an embedded refusal set.
func compileRuleSets(rf *RuleFile) ([]compiledRuleSet, error) {
	var sets []compiledRuleSet
	for _, rs := range rf.RuleSets {
		switch rs.Category {
		case CategoryEmergency, CategoryRefusal:
		default:
			return nil, fmt.Errorf("rule set %q: unknown category %q", rs.Name, rs.Category)
		}
		if len(rs.Patterns) == 0 {
			return nil, fmt.Errorf("rule set %q: no patterns", rs.Name)
		}
		cs := compiledRuleSet{
			name:     rs.Name,
			category: rs.Category,
			flag:     rs.Flag,
			message:  rs.Message,
		}
		for _, p := range rs.Patterns {
			re, err := regexp.Compile(p.Regex)
			if err != nil {
				return nil, fmt.Errorf("compiling pattern %q in rule set %q: %w", p.Name, rs.Name, err)
			}
			cs.patterns = append(cs.patterns, re)
		}
		sets = append(sets, cs)
	}
	sort.SliceStable(sets, func(i, j int) bool {
		return categoryRank(sets[i].category) < categoryRank(sets[j].category)
	})
	return sets, nil
}

func categoryRank(category string) int {
	if category == CategoryEmergency {
		return 0
	}
	return 1
}
