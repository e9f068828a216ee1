package engine

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/ftcid/AutomatedHomeV2/coerce"
	"github.com/ftcid/AutomatedHomeV2/expression"
	"github.com/ftcid/AutomatedHomeV2/rules"
	"github.com/ftcid/AutomatedHomeV2/state"
)

// topicPathPattern matches slash-separated topic paths embedded in rule
// expressions, e.g. /kitchen/lamp/power or /single. A path must start the
// expression or follow a non-identifier character, and its first segment
// must start with a letter, so divisions like "a/b" and "10/2" are never
// mistaken for paths.
var topicPathPattern = regexp.MustCompile(`(^|[^A-Za-z0-9_])(/[A-Za-z_][A-Za-z0-9_]*(?:/[A-Za-z0-9_]+)*)`)

// Identifier converts a topic path into the identifier form usable inside an
// expression: the leading separator is dropped and the remaining separators
// become underscores, so /kitchen/lamp/power becomes kitchen_lamp_power.
func Identifier(topic string) string {
	return strings.ReplaceAll(strings.TrimPrefix(topic, state.Separator), state.Separator, "_")
}

// rewriteTopicPaths replaces every embedded topic path in an expression with
// its identifier form, letting rule authors write either
// "/kitchen/lamp/power == 1" or "kitchen_lamp_power == 1".
func rewriteTopicPaths(expr string) string {
	return topicPathPattern.ReplaceAllStringFunc(expr, func(m string) string {
		// The match may carry the guard character preceding the path.
		i := strings.Index(m, state.Separator)
		return m[:i] + Identifier(m[i:])
	})
}

// RuleSource supplies the active rule set. Satisfied by *rules.Repository.
type RuleSource interface {
	Current() *rules.RuleSet
}

// Evaluator runs one evaluation pass over the active rules for each state
// change. Rules are independent: a rule that fails to parse or references an
// identifier with no binding is skipped and the pass continues.
type Evaluator struct {
	source  RuleSource
	matcher expression.Matcher
	logger  *slog.Logger
	metrics *evaluatorMetrics
}

// NewEvaluator creates an Evaluator reading rules from source and matching
// expressions with matcher.
func NewEvaluator(source RuleSource, matcher expression.Matcher, metrics *evaluatorMetrics) *Evaluator {
	return &Evaluator{
		source:  source,
		matcher: matcher,
		logger:  slog.Default().With("component", "evaluator"),
		metrics: metrics,
	}
}

// Evaluate runs all active rules against the snapshot and returns the
// actions of every rule that matched, in rule order. Only rules whose
// expression mentions changedTopic are considered; the others cannot have
// changed outcome and are skipped outright. An empty changedTopic disables
// the filter and evaluates everything.
//
// A panic inside the pass is recovered and the actions collected so far are
// returned, so a pathological rule cannot take down intake.
func (e *Evaluator) Evaluate(snapshot map[string]string, changedTopic string) (actions []rules.Action) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Evaluation pass panicked", "topic", changedTopic, "panic", r)
			if e.metrics != nil {
				e.metrics.errorsTotal.WithLabelValues("panic").Inc()
			}
		}
	}()

	bindings := make(map[string]any, len(snapshot))
	for topic, raw := range snapshot {
		bindings[Identifier(topic)] = coerce.Value(raw)
	}

	changed := Identifier(changedTopic)
	for _, rule := range e.source.Current().Rules {
		expr := rewriteTopicPaths(rule.Expression)
		if changed != "" && !strings.Contains(expr, changed) {
			continue
		}

		matched, err := e.matcher.Match(expr, bindings)
		if err != nil {
			e.recordRuleError(rule, err)
			continue
		}
		if !matched {
			continue
		}

		if e.metrics != nil {
			e.metrics.matchesTotal.Inc()
		}
		actions = append(actions, rule.Actions...)
	}
	return actions
}

// recordRuleError logs a per-rule failure at a severity matching its nature.
// An unresolved identifier just means a device has not reported yet; a syntax
// error is an authoring mistake worth surfacing loudly.
func (e *Evaluator) recordRuleError(rule rules.Rule, err error) {
	switch {
	case expression.IsUnresolvedIdentifier(err):
		e.logger.Debug("Rule references topic with no state yet",
			"rule", rule.ID, "error", err)
		if e.metrics != nil {
			e.metrics.errorsTotal.WithLabelValues("unresolved").Inc()
		}
	case expression.IsSyntaxError(err):
		e.logger.Error("Rule expression failed to parse",
			"rule", rule.ID, "expression", rule.Expression, "error", err)
		if e.metrics != nil {
			e.metrics.errorsTotal.WithLabelValues("syntax").Inc()
		}
	default:
		e.logger.Error("Rule evaluation failed",
			"rule", rule.ID, "error", err)
		if e.metrics != nil {
			e.metrics.errorsTotal.WithLabelValues("other").Inc()
		}
	}
}
