package rules

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ftcid/AutomatedHomeV2/errors"
)

// ruleDocument is the on-disk shape of the rule source:
//
//	rules:
//	  - rule: "/kitchen/sensor/motion == true"
//	    actions:
//	      - topic: /kitchen/lamp/set
//	        params: {power: "on"}
type ruleDocument struct {
	Rules []Rule `yaml:"rules"`
}

// LoadFile reads and parses a rule document, returning a fully-formed
// RuleSet stamped with the file's modification time.
func LoadFile(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "RuleLoader", "LoadFile", "read rule document")
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "RuleLoader", "LoadFile", "stat rule document")
	}

	rs, err := parseDocument(data)
	if err != nil {
		return nil, err
	}

	rs.Fingerprint = info.ModTime()
	rs.LoadedAt = time.Now()
	return rs, nil
}

func parseDocument(data []byte) (*RuleSet, error) {
	var doc ruleDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.WrapInvalid(err, "RuleLoader", "parseDocument", "parse YAML")
	}

	rs := &RuleSet{Rules: make([]Rule, 0, len(doc.Rules))}
	for i, r := range doc.Rules {
		if err := validateRule(i, r); err != nil {
			return nil, err
		}
		r.ensureID()
		rs.Rules = append(rs.Rules, r)
	}

	return rs, nil
}

// validateRule rejects records the evaluator could never act on. Expression
// syntax is not checked here; a rule with a bad expression is skipped at
// evaluation time so the rest of the document stays usable.
func validateRule(index int, r Rule) error {
	if strings.TrimSpace(r.Expression) == "" {
		return errors.WrapInvalid(
			fmt.Errorf("rule %d has an empty expression", index),
			"RuleLoader", "validateRule", "check expression")
	}

	for j, action := range r.Actions {
		if !strings.HasPrefix(action.Topic, "/") {
			return errors.WrapInvalid(
				fmt.Errorf("rule %d action %d has invalid topic %q", index, j, action.Topic),
				"RuleLoader", "validateRule", "check action topic")
		}
	}

	return nil
}
