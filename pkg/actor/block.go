package actor

import "strings"

// Block is a placed block that can be broken
type Block struct {
	Type     string   `json:"type" yaml:"type"`
	Position Position `json:"position" yaml:"position"`
}

func NewBlock(material string, pos Position) *Block {
	return &Block{Type: strings.ToUpper(material), Position: pos}
}

func (b *Block) Material() string { return b.Type }

// PrefersTool reports whether item is the right tool for this block.
// Wood wants an axe, stone and ores a pickaxe, loose ground a shovel.
// Anything else accepts any tool.
func (b *Block) PrefersTool(item string) bool {
	return ToolFor(b.Type).Accepts(item)
}

// ToolClass groups items by the kind of block they break well
type ToolClass string

const (
	ToolAny     ToolClass = ""
	ToolAxe     ToolClass = "AXE"
	ToolPickaxe ToolClass = "PICKAXE"
	ToolShovel  ToolClass = "SHOVEL"
)

var toolHints = []struct {
	class     ToolClass
	fragments []string
}{
	{ToolAxe, []string{"LOG", "PLANKS", "WOOD"}},
	{ToolPickaxe, []string{"STONE", "ORE", "COAL", "IRON"}},
	{ToolShovel, []string{"DIRT", "SAND", "GRAVEL"}},
}

// ToolFor picks the tool class for a material from its name
func ToolFor(material string) ToolClass {
	material = strings.ToUpper(material)
	for _, h := range toolHints {
		for _, f := range h.fragments {
			if strings.Contains(material, f) {
				return h.class
			}
		}
	}
	return ToolAny
}

// Accepts reports whether item belongs to the class
func (c ToolClass) Accepts(item string) bool {
	item = strings.ToUpper(item)
	switch c {
	case ToolAny:
		return true
	case ToolAxe:
		return strings.HasSuffix(item, "_AXE") || item == "AXE"
	default:
		return strings.HasSuffix(item, string(c))
	}
}
