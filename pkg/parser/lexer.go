package parser

import "strings"

const (
	indentWidth = 4
	tabWidth    = 4
)

// Line is one physical source line with its indentation resolved
type Line struct {
	Text   string // trimmed content
	Indent int    // leading whitespace width / 4
	Number int    // 1-based
}

// Blank reports whether the line carries no statement (empty or comment)
func (l Line) Blank() bool {
	return l.Text == "" || strings.HasPrefix(l.Text, "#")
}

// Tokenize resolves the indentation level of every line.
// Blank and comment lines are kept so line numbers stay aligned.
func Tokenize(src []string) []Line {
	lines := make([]Line, 0, len(src))
	for i, raw := range src {
		if i == 0 {
			raw = strings.TrimPrefix(raw, "\ufeff")
		}
		raw = strings.TrimRight(raw, "\r")

		width := 0
	scan:
		for _, r := range raw {
			switch r {
			case ' ':
				width++
			case '\t':
				width += tabWidth
			default:
				break scan
			}
		}

		lines = append(lines, Line{
			Text:   strings.TrimSpace(raw),
			Indent: width / indentWidth,
			Number: i + 1,
		})
	}
	return lines
}

// SplitLines splits source text into raw lines for Tokenize
func SplitLines(source string) []string {
	if source == "" {
		return nil
	}
	return strings.Split(source, "\n")
}
