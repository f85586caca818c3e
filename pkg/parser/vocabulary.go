package parser

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jwebster45206/nusantara/pkg/script"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

var (
	triggerPrefixes = []string{"saat ", "ketika "}
	commandPrefix   = "perintah "
	conditionPrefix = "jika "
	elseMarkers     = []string{"jika tidak", "selain itu", "kalau tidak"}
)

var triggerPhrases = map[string]script.Trigger{
	"pemain masuk":         script.TriggerJoin,
	"pemain bergabung":     script.TriggerJoin,
	"pemain keluar":        script.TriggerQuit,
	"pemain chat":          script.TriggerChat,
	"pemain mengirim chat": script.TriggerChat,
	"blok dihancurkan":     script.TriggerBlockBreak,
	"blok dipecahkan":      script.TriggerBlockBreak,
	"pemain mati":          script.TriggerDeath,
	"pemain hidup kembali": script.TriggerRespawn,
	"pemain respawn":       script.TriggerRespawn,
	"pemain terluka":       script.TriggerActorDamage,
	"entitas terluka":      script.TriggerObjectDamage,
	"entity terluka":       script.TriggerObjectDamage,
}

var (
	errMissingArgument = errors.New("missing argument")
	errUnquoted        = errors.New("text must be wrapped in double quotes")
)

type conditionRule struct {
	phrase string
	build  func(rest string) (script.Condition, error)
}

var conditionRules = []conditionRule{
	{"alat benar", func(string) (script.Condition, error) { return script.ToolMatches{}, nil }},
	{"alat tepat", func(string) (script.Condition, error) { return script.ToolMatches{}, nil }},
	{"blok adalah", func(rest string) (script.Condition, error) {
		m, err := requireArg(rest)
		return script.ObjectTypeIs{Material: normalizeMaterial(m)}, err
	}},
	{"pemain memegang", func(rest string) (script.Condition, error) {
		m, err := requireArg(rest)
		return script.HeldItemIs{Material: normalizeMaterial(m)}, err
	}},
	{"pemain punya izin", func(rest string) (script.Condition, error) {
		node, err := requireArg(rest)
		return script.HasPermission{Node: node}, err
	}},
	{"pemain memiliki izin", func(rest string) (script.Condition, error) {
		node, err := requireArg(rest)
		return script.HasPermission{Node: node}, err
	}},
	{"pemain adalah", func(rest string) (script.Condition, error) {
		name, err := requireArg(rest)
		return script.ActorNameIs{Name: name}, err
	}},
	{"darah pemain kurang dari", func(rest string) (script.Condition, error) {
		v, err := requireNumber(rest)
		return script.HealthBelow{Value: v}, err
	}},
	{"dunia adalah", func(rest string) (script.Condition, error) {
		world, err := requireArg(rest)
		return script.WorldIs{World: world}, err
	}},
	{"pemain sedang terbang", func(string) (script.Condition, error) { return script.IsFlying{}, nil }},
	{"pemain sedang menyelinap", func(string) (script.Condition, error) { return script.IsSneaking{}, nil }},
}

type actionRule struct {
	prefixes []string
	build    func(rest string) (script.Action, error)
}

// Longer prefixes sharing a stem come first.
var actionRules = []actionRule{
	{[]string{"berhenti", "stop"}, simple(script.ActionStop)},
	{[]string{"batalkan event", "cancel event", "batalkan"}, simple(script.ActionCancelEvent)},
	{[]string{"kirim"}, quotedParam(script.ActionSendMessage)},
	{[]string{"broadcast", "umumkan", "siarkan"}, quotedParam(script.ActionBroadcast)},
	{[]string{"pulihkan pemain", "heal pemain", "sembuhkan pemain"}, simple(script.ActionHeal)},
	{[]string{"beri makan pemain", "feed pemain"}, simple(script.ActionFeed)},
	{[]string{"atur variabel", "set variabel", "setel variabel", "setel", "atur"}, buildSetVar},
	{[]string{"tambahkan", "tambah"}, buildArithmetic(script.ActionAddVar, " ke ")},
	{[]string{"kurangkan", "kurangi"}, buildArithmetic(script.ActionSubtractVar, " dari ")},
	{[]string{"hapus variabel", "delete variabel", "hapus"}, buildDeleteVar},
	{[]string{"berikan efek", "beri efek"}, buildEffect},
	{[]string{"berikan item", "beri item", "beri_item"}, buildGiveItem},
	{[]string{"keluarkan pemain", "kick pemain", "tendang pemain"}, buildKick},
	{[]string{"teleportasi pemain ke", "teleport pemain ke", "teleportasi pemain", "teleport pemain"}, buildTeleport},
	{[]string{"mainkan suara", "suara"}, buildSound},
}

// matchTrigger returns the trigger named by a `saat ...:` line
func matchTrigger(text string) (script.Trigger, string, bool) {
	phrase := strings.ToLower(text)
	for _, p := range triggerPrefixes {
		phrase = strings.TrimPrefix(phrase, p)
	}
	phrase = strings.TrimSpace(strings.TrimSuffix(phrase, ":"))
	phrase = strings.Join(strings.Fields(phrase), " ")
	t, ok := triggerPhrases[phrase]
	return t, phrase, ok
}

func isTriggerLine(lower string) bool {
	for _, p := range triggerPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

func isElseLine(lower string) bool {
	lower = strings.TrimSpace(strings.TrimSuffix(lower, ":"))
	for _, m := range elseMarkers {
		if lower == m {
			return true
		}
	}
	return false
}

func isConditionLine(lower string) bool {
	return strings.HasPrefix(lower, conditionPrefix) && !isElseLine(lower)
}

// matchCondition parses the text following `jika`.
// ok is false when nothing in the vocabulary recognizes the text.
func matchCondition(body string) (cond script.Condition, ok bool, err error) {
	for _, rule := range conditionRules {
		if rest, found := trimKeyword(body, rule.phrase); found {
			c, err := rule.build(rest)
			return c, true, err
		}
	}

	if c, found, err := matchVariableCondition(body); found {
		return c, true, err
	}

	if strings.Contains(body, ">") || strings.Contains(body, "<") || strings.Contains(body, "==") {
		return script.Expression{Text: body}, true, nil
	}
	return nil, false, nil
}

// matchVariableCondition handles `[variabel] {name} kurang dari|lebih dari|sama dengan|adalah ...`
func matchVariableCondition(body string) (script.Condition, bool, error) {
	rest, _ := trimKeyword(body, "variabel ")
	if !strings.HasPrefix(rest, "{") {
		return nil, false, nil
	}
	end := strings.Index(rest, "}")
	if end < 0 {
		return nil, false, nil
	}
	name := strings.TrimSpace(rest[1:end])
	tail := strings.TrimSpace(rest[end+1:])

	if arg, found := trimKeyword(tail, "kurang dari"); found {
		v, err := requireNumber(arg)
		return script.VarLessThan{Name: name, Value: v}, true, err
	}
	if arg, found := trimKeyword(tail, "lebih dari"); found {
		v, err := requireNumber(arg)
		return script.VarGreaterThan{Name: name, Value: v}, true, err
	}
	for _, kw := range []string{"sama dengan", "adalah"} {
		if arg, found := trimKeyword(tail, kw); found {
			value, err := requireArg(arg)
			return script.VarEquals{Name: name, Value: value}, true, err
		}
	}
	return nil, false, nil
}

// matchAction parses one statement line.
// ok is false when nothing in the vocabulary recognizes the text.
func matchAction(text string) (act script.Action, ok bool, err error) {
	lower := strings.ToLower(text)
	for _, rule := range actionRules {
		for _, prefix := range rule.prefixes {
			if lower == prefix || strings.HasPrefix(lower, prefix+" ") {
				a, err := rule.build(strings.TrimSpace(text[len(prefix):]))
				return a, true, err
			}
		}
	}
	return script.Action{}, false, nil
}

func simple(kind script.ActionKind) func(string) (script.Action, error) {
	return func(string) (script.Action, error) {
		return script.Action{Kind: kind}, nil
	}
}

func quotedParam(kind script.ActionKind) func(string) (script.Action, error) {
	return func(rest string) (script.Action, error) {
		s, ok := firstString(rest)
		if !ok {
			return script.Action{}, errUnquoted
		}
		return script.Action{Kind: kind, Param: s}, nil
	}
}

func buildSetVar(rest string) (script.Action, error) {
	name, ok := variableName(rest)
	if !ok {
		return script.Action{}, fmt.Errorf("%w: variable name in {braces}", errMissingArgument)
	}
	tail := strings.TrimSpace(rest[strings.Index(rest, "}")+1:])
	for _, sep := range []string{"menjadi", "=", "ke "} {
		if t, found := trimKeyword(tail, sep); found {
			tail = t
			break
		}
	}
	value, quoted := firstString(tail)
	if !quoted {
		value = strings.TrimSpace(tail)
	}
	if value == "" && !quoted {
		return script.Action{}, fmt.Errorf("%w: value for {%s}", errMissingArgument, name)
	}
	return script.Action{Kind: script.ActionSetVar, Param: name, Extra: []string{value}}, nil
}

func buildArithmetic(kind script.ActionKind, sep string) func(string) (script.Action, error) {
	return func(rest string) (script.Action, error) {
		amount, target := "", rest
		if idx := strings.Index(strings.ToLower(rest), sep); idx >= 0 {
			amount = strings.TrimSpace(rest[:idx])
			target = rest[idx+len(sep):]
		}
		name, ok := variableName(target)
		if !ok {
			return script.Action{}, fmt.Errorf("%w: variable name in {braces}", errMissingArgument)
		}
		if amount == "" {
			amount = "1"
		}
		if !numericOrPlaceholder(amount) {
			return script.Action{}, fmt.Errorf("invalid amount %q", amount)
		}
		return script.Action{Kind: kind, Param: name, Extra: []string{amount}}, nil
	}
}

func buildDeleteVar(rest string) (script.Action, error) {
	name, ok := variableName(rest)
	if !ok {
		return script.Action{}, fmt.Errorf("%w: variable name in {braces}", errMissingArgument)
	}
	return script.Action{Kind: script.ActionDeleteVar, Param: name}, nil
}

func buildGiveItem(rest string) (script.Action, error) {
	material, remainder := "", ""
	if s, ok := firstString(rest); ok {
		material = s
		remainder = removeStrings(rest)
	} else {
		fields := strings.Fields(strings.ReplaceAll(rest, ",", " "))
		if len(fields) > 0 {
			material = fields[0]
			remainder = strings.Join(fields[1:], " ")
		}
	}
	if strings.TrimSpace(material) == "" {
		return script.Action{}, fmt.Errorf("%w: item material", errMissingArgument)
	}

	amount := "1"
	for _, tok := range strings.Fields(strings.ReplaceAll(remainder, ",", " ")) {
		if numericOrPlaceholder(tok) {
			amount = tok
			break
		}
	}
	return script.Action{Kind: script.ActionGiveItem, Param: normalizeMaterial(material), Extra: []string{amount}}, nil
}

func buildKick(rest string) (script.Action, error) {
	reason, ok := firstString(rest)
	if !ok {
		reason, _ = trimKeyword(strings.TrimSpace(rest), "dengan alasan")
	}
	return script.Action{Kind: script.ActionKick, Param: strings.TrimSpace(reason)}, nil
}

func buildTeleport(rest string) (script.Action, error) {
	rest, _ = trimKeyword(rest, "ke")
	world, _ := firstString(rest)

	var coords []string
	for _, tok := range strings.Fields(removeStrings(rest)) {
		tok = strings.TrimRight(tok, ",")
		if numericOrPlaceholder(tok) {
			coords = append(coords, tok)
		}
	}
	if len(coords) < 3 {
		return script.Action{}, fmt.Errorf("%w: teleport needs x y z", errMissingArgument)
	}
	return script.Action{Kind: script.ActionTeleport, Param: world, Extra: coords[:3]}, nil
}

func buildSound(rest string) (script.Action, error) {
	name, ok := firstString(rest)
	if !ok {
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return script.Action{}, fmt.Errorf("%w: sound name", errMissingArgument)
		}
		name = fields[0]
	}
	return script.Action{Kind: script.ActionPlaySound, Param: name}, nil
}

func buildEffect(rest string) (script.Action, error) {
	name, ok := firstString(rest)
	if !ok {
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return script.Action{}, fmt.Errorf("%w: effect name", errMissingArgument)
		}
		name = fields[0]
	}
	level, found := wordAfter(rest, "level")
	if !found {
		level = "1"
	}
	seconds, found := wordAfter(rest, "durasi")
	if !found {
		seconds = "10"
	}
	return script.Action{
		Kind:  script.ActionGiveEffect,
		Param: normalizeMaterial(name),
		Extra: []string{level, seconds},
	}, nil
}

func requireArg(rest string) (string, error) {
	arg := argument(rest)
	if arg == "" {
		return "", errMissingArgument
	}
	return arg, nil
}

func requireNumber(rest string) (float64, error) {
	tok, ok := firstNumber(rest)
	if !ok {
		return 0, fmt.Errorf("%w: number", errMissingArgument)
	}
	return strconv.ParseFloat(tok, 64)
}

func numericOrPlaceholder(tok string) bool {
	if strings.HasPrefix(tok, "{") && strings.HasSuffix(tok, "}") {
		return true
	}
	_, err := strconv.ParseFloat(tok, 64)
	return err == nil
}

// suggest returns the closest known phrase to the start of text
func suggest(text string, candidates []string) string {
	words := strings.Fields(strings.ToLower(removeStrings(text)))
	if len(words) == 0 {
		return ""
	}
	n := min(2, len(words))
	ranks := fuzzy.RankFindFold(strings.Join(words[:n], " "), candidates)
	if len(ranks) == 0 {
		ranks = fuzzy.RankFindFold(words[0], candidates)
	}
	if len(ranks) == 0 {
		return ""
	}
	sort.Sort(ranks)
	return ranks[0].Target
}

func triggerCandidates() []string {
	out := make([]string, 0, len(triggerPhrases))
	for phrase := range triggerPhrases {
		out = append(out, phrase)
	}
	sort.Strings(out)
	return out
}

func conditionCandidates() []string {
	out := make([]string, 0, len(conditionRules)+3)
	for _, rule := range conditionRules {
		out = append(out, rule.phrase)
	}
	return append(out, "{variabel} kurang dari", "{variabel} lebih dari", "{variabel} sama dengan")
}

func actionCandidates() []string {
	var out []string
	for _, rule := range actionRules {
		out = append(out, rule.prefixes...)
	}
	return out
}
