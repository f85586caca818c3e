package parser

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	quotedPattern   = regexp.MustCompile(`"([^"]*)"`)
	variablePattern = regexp.MustCompile(`\{([^{}]+)\}`)
)

// firstString returns the first quoted literal, if any
func firstString(text string) (string, bool) {
	m := quotedPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// removeStrings blanks out quoted literals so keyword matching ignores them
func removeStrings(text string) string {
	return quotedPattern.ReplaceAllString(text, `""`)
}

// variableName returns the name inside the first {...} outside quotes
func variableName(text string) (string, bool) {
	m := variablePattern.FindStringSubmatch(removeStrings(text))
	if m == nil {
		return "", false
	}
	name := strings.TrimSpace(m[1])
	return name, name != ""
}

// firstNumber returns the first whitespace-separated numeric token
func firstNumber(text string) (string, bool) {
	for _, tok := range strings.Fields(removeStrings(text)) {
		tok = strings.TrimRight(tok, ",:")
		if _, err := strconv.ParseFloat(tok, 64); err == nil {
			return tok, true
		}
	}
	return "", false
}

// wordAfter returns the token following keyword, e.g. wordAfter("level 2", "level")
func wordAfter(text, keyword string) (string, bool) {
	fields := strings.Fields(removeStrings(text))
	for i := 0; i < len(fields)-1; i++ {
		if strings.EqualFold(fields[i], keyword) {
			return strings.TrimRight(fields[i+1], ",:"), true
		}
	}
	return "", false
}

// normalizeMaterial converts "oak log" to "OAK_LOG"
func normalizeMaterial(name string) string {
	name = strings.Join(strings.Fields(name), "_")
	return cases.Upper(language.Und).String(name)
}

// argument returns the quoted literal when present, else the remaining bare
// text with trailing punctuation trimmed
func argument(rest string) string {
	if s, ok := firstString(rest); ok {
		return s
	}
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(rest), ":,"))
}

// trimKeyword strips a case-insensitive prefix from text
func trimKeyword(text, prefix string) (string, bool) {
	if len(text) < len(prefix) || !strings.EqualFold(text[:len(prefix)], prefix) {
		return text, false
	}
	return strings.TrimSpace(text[len(prefix):]), true
}
