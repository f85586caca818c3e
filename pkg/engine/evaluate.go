package engine

import (
	"log/slog"
	"strings"

	"github.com/jwebster45206/nusantara/pkg/script"
	"github.com/jwebster45206/nusantara/pkg/vars"
	"golang.org/x/text/cases"
)

// Evaluator decides conditions against a Context and the variable store
type Evaluator struct {
	store *vars.Store
	sub   *Substituter
	log   *slog.Logger
}

func NewEvaluator(store *vars.Store, sub *Substituter, log *slog.Logger) *Evaluator {
	return &Evaluator{store: store, sub: sub, log: log}
}

// Evaluate reports whether cond holds. Conditions about an entity or target
// are false when the context has none.
func (ev *Evaluator) Evaluate(cond script.Condition, rc *Context) bool {
	switch c := cond.(type) {
	case script.ObjectTypeIs:
		return rc.Target != nil && strings.EqualFold(rc.Target.Material(), c.Material)
	case script.HeldItemIs:
		return rc.Entity != nil && strings.EqualFold(rc.Entity.HeldItem(), c.Material)
	case script.HasPermission:
		return rc.Entity != nil && rc.Entity.HasPermission(c.Node)
	case script.ActorNameIs:
		return rc.Entity != nil && foldEqual(rc.Entity.Name(), c.Name)
	case script.HealthBelow:
		return rc.Entity != nil && rc.Entity.Health() < c.Value
	case script.WorldIs:
		return rc.Entity != nil && foldEqual(rc.Entity.World(), c.World)
	case script.IsFlying:
		return rc.Entity != nil && rc.Entity.IsFlying()
	case script.IsSneaking:
		return rc.Entity != nil && rc.Entity.IsSneaking()
	case script.VarLessThan:
		v, ok := ev.numericVar(c.Name, rc)
		return ok && v < c.Value
	case script.VarGreaterThan:
		v, ok := ev.numericVar(c.Name, rc)
		return ok && v > c.Value
	case script.VarEquals:
		return looseEqual(ev.textVar(c.Name, rc), ev.sub.Expand(c.Value, rc))
	case script.ToolMatches:
		return rc.Entity != nil && rc.Target != nil && rc.Target.PrefersTool(rc.Entity.HeldItem())
	case script.Expression:
		return ev.expression(c.Text, rc)
	default:
		ev.log.Warn("Unhandled condition type", "condition", cond)
		return false
	}
}

// expression evaluates `left op right`. The first operator found in the
// order >, <, == splits the text once. Quotes around each side are dropped.
// > and < compare numbers and are false if either side is not one;
// == compares text ignoring case.
func (ev *Evaluator) expression(text string, rc *Context) bool {
	text = ev.sub.expandKnown(text, rc)

	for _, op := range []string{">", "<", "=="} {
		idx := strings.Index(text, op)
		if idx < 0 {
			continue
		}
		left := unquote(strings.TrimSpace(text[:idx]))
		right := unquote(strings.TrimSpace(text[idx+len(op):]))

		if op == "==" {
			return foldEqual(left, right)
		}
		l, lok := vars.ParseNumber(left)
		r, rok := vars.ParseNumber(right)
		if !lok || !rok {
			return false
		}
		if op == ">" {
			return l > r
		}
		return l < r
	}

	ev.log.Debug("Expression has no operator", "expression", text)
	return false
}

func (ev *Evaluator) textVar(name string, rc *Context) string {
	if v, ok := rc.Binding(name); ok {
		return v
	}
	scope, key := vars.Resolve(name, rc.EntityID())
	if vars.IsEntityScoped(name) && scope == "" {
		return "0"
	}
	if v, ok := ev.store.Get(scope, key); ok {
		return v
	}
	return "0"
}

// numericVar reads a variable as a number; absent counts as zero
func (ev *Evaluator) numericVar(name string, rc *Context) (float64, bool) {
	return vars.ParseNumber(ev.textVar(name, rc))
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func foldEqual(a, b string) bool {
	fold := cases.Fold()
	return fold.String(a) == fold.String(b)
}

// looseEqual compares numerically when both sides are numbers so that a
// stored "3.0" equals a written 3, and as case-insensitive text otherwise.
func looseEqual(a, b string) bool {
	if x, ok := vars.ParseNumber(a); ok {
		if y, ok := vars.ParseNumber(b); ok {
			return x == y
		}
	}
	return foldEqual(a, b)
}
