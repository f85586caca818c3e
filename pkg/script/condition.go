package script

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Condition is the closed set of tests a `jika` line can express.
// Only types in this package implement it.
type Condition interface {
	fmt.Stringer
	isCondition()
}

// ObjectTypeIs matches the material of the event's target block
type ObjectTypeIs struct{ Material string }

// HeldItemIs matches the material in the entity's main hand
type HeldItemIs struct{ Material string }

// HasPermission checks a permission node on the entity
type HasPermission struct{ Node string }

// ActorNameIs compares the entity's display name
type ActorNameIs struct{ Name string }

// HealthBelow is true when the entity's health is strictly below Value
type HealthBelow struct{ Value float64 }

// WorldIs compares the entity's world name
type WorldIs struct{ World string }

type IsFlying struct{}

type IsSneaking struct{}

// VarLessThan compares a stored variable numerically
type VarLessThan struct {
	Name  string
	Value float64
}

// VarGreaterThan compares a stored variable numerically
type VarGreaterThan struct {
	Name  string
	Value float64
}

// VarEquals compares a stored variable as text, ignoring case.
// Value may contain placeholders.
type VarEquals struct {
	Name  string
	Value string
}

// ToolMatches asks the host whether the held item suits the target block
type ToolMatches struct{}

// Expression is a raw `left op right` comparison
type Expression struct{ Text string }

func (ObjectTypeIs) isCondition()   {}
func (HeldItemIs) isCondition()     {}
func (HasPermission) isCondition()  {}
func (ActorNameIs) isCondition()    {}
func (HealthBelow) isCondition()    {}
func (WorldIs) isCondition()        {}
func (IsFlying) isCondition()       {}
func (IsSneaking) isCondition()     {}
func (VarLessThan) isCondition()    {}
func (VarGreaterThan) isCondition() {}
func (VarEquals) isCondition()      {}
func (ToolMatches) isCondition()    {}
func (Expression) isCondition()     {}

func (c ObjectTypeIs) String() string  { return "object is " + c.Material }
func (c HeldItemIs) String() string    { return "holding " + c.Material }
func (c HasPermission) String() string { return "has permission " + c.Node }
func (c ActorNameIs) String() string   { return "name is " + c.Name }
func (c HealthBelow) String() string   { return "health < " + formatFloat(c.Value) }
func (c WorldIs) String() string       { return "world is " + c.World }
func (IsFlying) String() string        { return "flying" }
func (IsSneaking) String() string      { return "sneaking" }
func (c VarLessThan) String() string   { return "{" + c.Name + "} < " + formatFloat(c.Value) }
func (c VarGreaterThan) String() string {
	return "{" + c.Name + "} > " + formatFloat(c.Value)
}
func (c VarEquals) String() string  { return "{" + c.Name + "} == " + strconv.Quote(c.Value) }
func (ToolMatches) String() string  { return "tool matches" }
func (c Expression) String() string { return c.Text }

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// MarshalJSON renders the condition in its readable form
func (b ConditionalBlock) MarshalJSON() ([]byte, error) {
	type Alias ConditionalBlock
	cond := ""
	if b.Condition != nil {
		cond = b.Condition.String()
	}
	return json.Marshal(&struct {
		Condition string `json:"condition"`
		Alias
	}{
		Condition: cond,
		Alias:     Alias(b),
	})
}
