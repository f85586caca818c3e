package actor

import (
	"encoding/json"
	"testing"
)

func TestNewPlayerFromSpec(t *testing.T) {
	t.Run("fills defaults", func(t *testing.T) {
		p, err := NewPlayerFromSpec(&PlayerSpec{ID: "ani"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Name() != "ani" {
			t.Errorf("expected name to default to id, got %q", p.Name())
		}
		if p.Health() != 20 || p.MaxHealth() != 20 {
			t.Errorf("expected 20/20 health, got %v/%d", p.Health(), p.MaxHealth())
		}
		if p.Food() != MaxFood {
			t.Errorf("expected full food, got %d", p.Food())
		}
		if p.World() != "world" {
			t.Errorf("expected default world, got %q", p.World())
		}
	})

	t.Run("keeps current health below max", func(t *testing.T) {
		p, err := NewPlayerFromSpec(&PlayerSpec{ID: "budi", HP: 6, MaxHP: 20})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Health() != 6 {
			t.Errorf("expected health 6, got %v", p.Health())
		}
	})

	t.Run("rejects missing id", func(t *testing.T) {
		if _, err := NewPlayerFromSpec(&PlayerSpec{Name: "Tanpa ID"}); err == nil {
			t.Error("expected error for missing id")
		}
	})

	t.Run("rejects nil spec", func(t *testing.T) {
		if _, err := NewPlayerFromSpec(nil); err == nil {
			t.Error("expected error for nil spec")
		}
	})

	t.Run("does not share inventory with spec", func(t *testing.T) {
		spec := &PlayerSpec{ID: "c", Inventory: map[string]int{"DIRT": 1}}
		p, _ := NewPlayerFromSpec(spec)
		p.Give("DIRT", 2)
		if spec.Inventory["DIRT"] != 1 {
			t.Errorf("spec inventory was mutated: %d", spec.Inventory["DIRT"])
		}
		if p.ItemCount("DIRT") != 3 {
			t.Errorf("expected 3 dirt, got %d", p.ItemCount("DIRT"))
		}
	})
}

func TestPlayer_HealthChanges(t *testing.T) {
	p, _ := NewPlayerFromSpec(&PlayerSpec{ID: "ani", MaxHP: 20})

	hp, err := p.TakeDamage(15)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hp != 5 {
		t.Errorf("expected 5 HP, got %d", hp)
	}

	hp, _ = p.TakeDamage(50)
	if hp != 0 || !p.IsDead() {
		t.Errorf("expected player dead at 0 HP, got %d", hp)
	}

	if err := p.Heal(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Health() != 20 || p.IsDead() {
		t.Errorf("expected full health after heal, got %v", p.Health())
	}

	hp, _ = p.TakeDamage(-3)
	if hp != 20 {
		t.Errorf("negative damage should be ignored, got %d", hp)
	}
}

func TestPlayer_Permissions(t *testing.T) {
	p, _ := NewPlayerFromSpec(&PlayerSpec{ID: "ani", Permissions: []string{"vip"}})

	if !p.HasPermission("vip") {
		t.Error("expected vip permission")
	}
	if p.HasPermission("admin") {
		t.Error("unexpected admin permission")
	}
	p.Grant("*")
	if !p.HasPermission("admin") {
		t.Error("wildcard grant should match any node")
	}
}

func TestPlayer_MarshalJSON(t *testing.T) {
	p, _ := NewPlayerFromSpec(&PlayerSpec{ID: "ani", Name: "Ani", MaxHP: 20})
	_, _ = p.TakeDamage(4)
	p.ApplyEffect("SPEED", 2, 30)
	p.SetOnline(true)

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if got["hp"] != float64(16) {
		t.Errorf("expected hp 16, got %v", got["hp"])
	}
	if got["online"] != true {
		t.Errorf("expected online true, got %v", got["online"])
	}
	effects, ok := got["effects"].(map[string]any)
	if !ok || effects["SPEED"] == nil {
		t.Errorf("expected SPEED effect, got %v", got["effects"])
	}
}
