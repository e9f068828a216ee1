// Package rules defines the declarative rule model and the hot-reloadable
// repository that owns the active RuleSet.
package rules

import (
	"time"

	"github.com/google/uuid"
)

// Action is a publish instruction executed when its owning rule matches.
// Params is the typed payload for the target topic, commonly a map.
type Action struct {
	Topic  string `yaml:"topic" json:"topic"`
	Params any    `yaml:"params" json:"params"`
}

// Rule is a boolean expression over topic-derived identifiers plus the
// actions to run when it matches. Expressions may reference topics either in
// path form (/room/device/attr) or identifier form (room_device_attr).
type Rule struct {
	ID         string   `yaml:"id,omitempty" json:"id"`
	Expression string   `yaml:"rule" json:"rule"`
	Actions    []Action `yaml:"actions" json:"actions"`
}

// RuleSet is an ordered, immutable sequence of rules plus the fingerprint of
// the source document it was loaded from. A new RuleSet atomically replaces
// the old one on reload; it is never mutated in place.
type RuleSet struct {
	Rules       []Rule
	Fingerprint time.Time
	LoadedAt    time.Time
}

// EmptyRuleSet returns a RuleSet with no rules, used before the source
// document has loaded successfully for the first time.
func EmptyRuleSet() *RuleSet {
	return &RuleSet{LoadedAt: time.Now()}
}

// Len returns the number of rules in the set.
func (rs *RuleSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Rules)
}

// ensureID assigns a generated ID to rules the document left unnamed, so
// logs and metrics can always reference a stable rule identity.
func (r *Rule) ensureID() {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
}
