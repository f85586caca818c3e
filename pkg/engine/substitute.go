package engine

import (
	"strings"

	"github.com/jwebster45206/nusantara/pkg/vars"
)

// DefaultColorMarker replaces '&' in rendered text
const DefaultColorMarker = "§"

var actorNameTokens = []string{"%player%", "%pemain%"}

// Substituter resolves placeholders in script text
type Substituter struct {
	store  *vars.Store
	marker string
}

func NewSubstituter(store *vars.Store, colorMarker string) *Substituter {
	return &Substituter{store: store, marker: colorMarker}
}

// Apply renders text for display: Expand followed by '&' color translation
func (s *Substituter) Apply(text string, rc *Context) string {
	out := s.Expand(text, rc)
	if s.marker != "" && s.marker != "&" {
		out = strings.ReplaceAll(out, "&", s.marker)
	}
	return out
}

// Expand replaces actor-name tokens outside braces with the entity's name,
// then every {name} with a context binding, else the stored variable, else "0".
// The text is scanned once left to right; inserted values are not rescanned.
// An unterminated '{' and everything after it is left as is.
func (s *Substituter) Expand(text string, rc *Context) string {
	return s.expand(text, rc, true)
}

// expandKnown is Expand without the "0" default: unresolved {name}
// references stay literal.
func (s *Substituter) expandKnown(text string, rc *Context) string {
	return s.expand(text, rc, false)
}

func (s *Substituter) expand(text string, rc *Context, zeroDefault bool) string {
	if !strings.ContainsAny(text, "{%") {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))

	i := 0
	for i < len(text) {
		open := strings.IndexByte(text[i:], '{')
		if open < 0 {
			b.WriteString(s.actorName(text[i:], rc))
			break
		}
		b.WriteString(s.actorName(text[i:i+open], rc))

		start := i + open
		end := strings.IndexByte(text[start+1:], '}')
		if end < 0 {
			b.WriteString(text[start:])
			break
		}
		name := text[start+1 : start+1+end]
		if strings.IndexByte(name, '{') >= 0 || strings.TrimSpace(name) == "" {
			b.WriteByte('{')
			i = start + 1
			continue
		}

		if v, ok := s.lookup(strings.TrimSpace(name), rc); ok {
			b.WriteString(v)
		} else if zeroDefault {
			b.WriteString("0")
		} else {
			b.WriteString(text[start : start+end+2])
		}
		i = start + end + 2
	}
	return b.String()
}

func (s *Substituter) actorName(segment string, rc *Context) string {
	if rc == nil || rc.Entity == nil || !strings.Contains(segment, "%") {
		return segment
	}
	name := rc.Entity.Name()
	for _, tok := range actorNameTokens {
		segment = strings.ReplaceAll(segment, tok, name)
	}
	return segment
}

func (s *Substituter) lookup(name string, rc *Context) (string, bool) {
	if rc != nil {
		if v, ok := rc.Binding(name); ok {
			return v, true
		}
	}
	scope, key := vars.Resolve(name, rc.EntityID())
	if vars.IsEntityScoped(name) && scope == "" {
		return "", false
	}
	return s.store.Get(scope, key)
}
