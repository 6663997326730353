package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"sedentarism/domain/fuzzy"
	"sedentarism/domain/weekly"
	"sedentarism/internal/errors"
)

// RuleFile is the YAML document describing a rule base.
type RuleFile struct {
	Rules []RuleSpec `yaml:"rules"`
}

// RuleSpec is one rule as written by hand.
type RuleSpec struct {
	ID          string     `yaml:"id"`
	If          []TermSpec `yaml:"if"`
	Then        string     `yaml:"then"`
	Weight      float64    `yaml:"weight"`
	Description string     `yaml:"description,omitempty"`
}

// TermSpec is one antecedent condition.
type TermSpec struct {
	Feature string `yaml:"feature"`
	Label   string `yaml:"label"`
}

// LoadRuleFile reads and validates a YAML rule file.
func LoadRuleFile(path string) (*fuzzy.RuleBase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.IOError("failed to read rule file "+path, err)
	}
	rb, err := ParseRules(data)
	if err != nil {
		return nil, errors.Wrapf(err, "rule file %s", path)
	}
	return rb, nil
}

// ParseRules decodes a rule document. Unknown features, labels or
// consequents are configuration errors.
func ParseRules(data []byte) (*fuzzy.RuleBase, error) {
	var doc RuleFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, err)
	}

	rules := make([]fuzzy.Rule, 0, len(doc.Rules))
	for _, spec := range doc.Rules {
		r := fuzzy.Rule{ID: spec.ID, Weight: spec.Weight, Description: spec.Description}
		c, err := fuzzy.ParseCategory(spec.Then)
		if err != nil {
			return nil, errors.ConfigInvalidf("rule %s: %v", spec.ID, err)
		}
		r.Consequent = c
		for _, t := range spec.If {
			f, err := weekly.ParseFeatureID(t.Feature)
			if err != nil {
				return nil, errors.ConfigInvalidf("rule %s: %v", spec.ID, err)
			}
			l, err := fuzzy.ParseFuzzyLabel(t.Label)
			if err != nil {
				return nil, errors.ConfigInvalidf("rule %s: %v", spec.ID, err)
			}
			r.Antecedent = append(r.Antecedent, fuzzy.AntecedentTerm{Feature: f, Label: l})
		}
		rules = append(rules, r)
	}
	return fuzzy.NewRuleBase(rules)
}

// MarshalRules renders a rule base as a rule file.
func MarshalRules(rb *fuzzy.RuleBase) ([]byte, error) {
	var doc RuleFile
	for _, r := range rb.Rules() {
		spec := RuleSpec{ID: r.ID, Then: r.Consequent.String(), Weight: r.Weight, Description: r.Description}
		for _, t := range r.Antecedent {
			spec.If = append(spec.If, TermSpec{Feature: t.Feature.String(), Label: t.Label.String()})
		}
		doc.Rules = append(doc.Rules, spec)
	}
	return yaml.Marshal(doc)
}
