package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jwebster45206/nusantara/pkg/script"
)

// ErrNoContent is returned when a file yields no handlers and no commands
var ErrNoContent = errors.New("script has no handlers or commands")

// Diagnostic is a recoverable problem found while parsing
type Diagnostic struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

func (d Diagnostic) String() string {
	s := fmt.Sprintf("%s:%d: %s", d.File, d.Line, d.Message)
	if d.Hint != "" {
		s += fmt.Sprintf(" (did you mean %q?)", d.Hint)
	}
	return s
}

// Parser turns NusantaraScript source into a script.Script.
// A Parser holds no per-file state and is safe for concurrent use.
type Parser struct {
	log *slog.Logger
}

// New creates a parser that reports diagnostics to log
func New(log *slog.Logger) *Parser {
	if log == nil {
		log = slog.Default()
	}
	return &Parser{log: log}
}

// Parse parses one file. Unknown statements are reported as diagnostics and
// skipped. The returned error wraps ErrNoContent when nothing survived.
func (p *Parser) Parse(name string, src []string) (*script.Script, []Diagnostic, error) {
	st := &parseState{
		file:  name,
		lines: Tokenize(src),
		log:   p.log,
	}
	s := st.parseFile()
	if s.Empty() {
		return s, st.diags, fmt.Errorf("%s: %w", name, ErrNoContent)
	}
	return s, st.diags, nil
}

// ParseString is Parse for a whole source text
func (p *Parser) ParseString(name, source string) (*script.Script, []Diagnostic, error) {
	return p.Parse(name, SplitLines(source))
}

type parseState struct {
	file  string
	lines []Line
	diags []Diagnostic
	log   *slog.Logger
}

func (st *parseState) addDiagnostic(line Line, hint string, format string, args ...any) {
	d := Diagnostic{
		File:    st.file,
		Line:    line.Number,
		Message: fmt.Sprintf(format, args...),
		Hint:    hint,
	}
	st.diags = append(st.diags, d)
	st.log.Warn("Script diagnostic",
		"file", d.File,
		"line", d.Line,
		"message", d.Message,
		"hint", d.Hint)
}

func (st *parseState) parseFile() *script.Script {
	s := &script.Script{Name: st.file}

	i := 0
	for i < len(st.lines) {
		ln := st.lines[i]
		if ln.Blank() {
			i++
			continue
		}
		if ln.Indent > 0 {
			st.addDiagnostic(ln, "", "unexpected indentation outside a handler or command")
			i++
			continue
		}

		lower := strings.ToLower(ln.Text)
		switch {
		case isTriggerLine(lower):
			var handler *script.EventHandler
			handler, i = st.parseHandler(i)
			if handler != nil {
				s.Handlers = append(s.Handlers, *handler)
			}
		case strings.HasPrefix(lower, commandPrefix):
			var cmd *script.CustomCommand
			cmd, i = st.parseCommand(i)
			if cmd != nil {
				s.Commands = append(s.Commands, *cmd)
			}
		default:
			st.addDiagnostic(ln, suggest(ln.Text, []string{"saat", "ketika", "perintah"}),
				"expected a trigger or command declaration, got %q", ln.Text)
			i++
		}
	}
	return s
}

func (st *parseState) parseHandler(i int) (*script.EventHandler, int) {
	ln := st.lines[i]
	trigger, phrase, ok := matchTrigger(ln.Text)
	if !ok {
		st.addDiagnostic(ln, suggest(phrase, triggerCandidates()), "unknown trigger %q", phrase)
		return nil, st.skipBody(i+1, ln.Indent)
	}
	if !strings.HasSuffix(ln.Text, ":") {
		st.addDiagnostic(ln, "", "trigger declaration should end with ':'")
	}

	actions, next := st.parseBody(i+1, ln.Indent)
	return &script.EventHandler{
		Trigger: trigger,
		Actions: actions,
		Line:    ln.Number,
	}, next
}

// parseCommand reads `perintah /name arg1 arg2:` and its property lines
func (st *parseState) parseCommand(i int) (*script.CustomCommand, int) {
	ln := st.lines[i]
	decl := strings.TrimSpace(strings.TrimSuffix(ln.Text, ":"))
	fields := strings.Fields(decl)
	if len(fields) < 2 {
		st.addDiagnostic(ln, "", "command declaration needs a name")
		return nil, st.skipBody(i+1, ln.Indent)
	}

	cmd := &script.CustomCommand{
		Name: strings.ToLower(strings.TrimPrefix(fields[1], "/")),
		Line: ln.Number,
	}
	for _, arg := range fields[2:] {
		if arg = strings.Trim(arg, ":"); arg != "" {
			cmd.Args = append(cmd.Args, arg)
		}
	}
	if cmd.Name == "" {
		st.addDiagnostic(ln, "", "command declaration needs a name")
		return nil, st.skipBody(i+1, ln.Indent)
	}

	j := i + 1
	for j < len(st.lines) {
		prop := st.lines[j]
		if prop.Blank() {
			j++
			continue
		}
		if prop.Indent <= ln.Indent {
			break
		}

		lower := strings.ToLower(prop.Text)
		switch {
		case strings.HasPrefix(lower, "izin:"):
			cmd.Permission = argument(prop.Text[len("izin:"):])
			j++
		case strings.HasPrefix(lower, "deskripsi:"):
			cmd.Description = argument(prop.Text[len("deskripsi:"):])
			j++
		case lower == "aksi:" || lower == "aksi":
			var actions []script.Action
			actions, j = st.parseBody(j+1, prop.Indent)
			cmd.Actions = append(cmd.Actions, actions...)
		default:
			st.addDiagnostic(prop, suggest(prop.Text, []string{"izin:", "deskripsi:", "aksi:"}),
				"unknown command property %q", prop.Text)
			j = st.skipBody(j+1, prop.Indent)
		}
	}

	if len(cmd.Actions) == 0 {
		st.addDiagnostic(ln, "", "command /%s has no actions", cmd.Name)
	}
	return cmd, j
}

// parseBody reads statements indented exactly one level deeper than parent.
// It returns the index of the first line at or above parent's level.
func (st *parseState) parseBody(i, parent int) ([]script.Action, int) {
	var actions []script.Action
	for i < len(st.lines) {
		ln := st.lines[i]
		if ln.Blank() {
			i++
			continue
		}
		if ln.Indent <= parent {
			break
		}
		if ln.Indent > parent+1 {
			st.addDiagnostic(ln, "", "unexpected indentation")
			i++
			continue
		}

		lower := strings.ToLower(ln.Text)
		switch {
		case isElseLine(lower):
			st.addDiagnostic(ln, "", "%q without a matching 'jika'", ln.Text)
			i = st.skipBody(i+1, ln.Indent)
		case isConditionLine(lower):
			var block *script.ConditionalBlock
			block, i = st.parseBlock(i)
			if block != nil {
				actions = append(actions, script.Nested(block))
			}
		default:
			if act, ok := st.parseAction(ln); ok {
				actions = append(actions, act)
			}
			i++
		}
	}
	return actions, i
}

// parseBlock parses a `jika` line at level L with its then-body, and an
// optional `jika tidak` body or chained `jika` (else-if) at the same level.
// It returns nil when the condition could not be parsed; the block's lines
// are consumed either way.
func (st *parseState) parseBlock(i int) (*script.ConditionalBlock, int) {
	ln := st.lines[i]
	cond, ok := st.parseCondition(ln)

	then, next := st.parseBody(i+1, ln.Indent)
	block := &script.ConditionalBlock{
		Condition: cond,
		Then:      then,
		Line:      ln.Number,
	}

	j := st.skipBlank(next)
	if j < len(st.lines) && st.lines[j].Indent == ln.Indent {
		lower := strings.ToLower(st.lines[j].Text)
		switch {
		case isElseLine(lower):
			block.Else, next = st.parseBody(j+1, ln.Indent)
		case isConditionLine(lower):
			var inner *script.ConditionalBlock
			inner, next = st.parseBlock(j)
			if inner != nil {
				block.Else = []script.Action{script.Nested(inner)}
			}
		}
	}

	if !ok {
		return nil, next
	}
	return block, next
}

func (st *parseState) parseCondition(ln Line) (script.Condition, bool) {
	body, _ := trimKeyword(ln.Text, conditionPrefix)
	body = strings.TrimSpace(strings.TrimSuffix(body, ":"))

	cond, ok, err := matchCondition(body)
	if !ok {
		st.addDiagnostic(ln, suggest(body, conditionCandidates()), "unknown condition %q", body)
		return nil, false
	}
	if err != nil {
		st.addDiagnostic(ln, "", "invalid condition %q: %v", body, err)
		return nil, false
	}
	return cond, true
}

func (st *parseState) parseAction(ln Line) (script.Action, bool) {
	act, ok, err := matchAction(ln.Text)
	if !ok {
		st.addDiagnostic(ln, suggest(ln.Text, actionCandidates()), "unknown action %q", ln.Text)
		return script.Action{}, false
	}
	if err != nil {
		st.addDiagnostic(ln, "", "invalid action %q: %v", ln.Text, err)
		return script.Action{}, false
	}
	act.Line = ln.Number
	return act, true
}

// skipBody returns the index of the first non-blank line at or above level
func (st *parseState) skipBody(i, level int) int {
	for i < len(st.lines) {
		if !st.lines[i].Blank() && st.lines[i].Indent <= level {
			break
		}
		i++
	}
	return i
}

func (st *parseState) skipBlank(i int) int {
	for i < len(st.lines) && st.lines[i].Blank() {
		i++
	}
	return i
}
