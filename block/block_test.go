package block

import "testing"

func TestDefaultSetAirIsZero(t *testing.T) {
	s := Default()
	air, ok := s.ByID(0)
	if !ok || !air.IsAir() {
		t.Fatalf("expected air at id 0, got %v", air)
	}
	if !s.Frozen() {
		t.Fatalf("expected default set to be frozen")
	}
}

func TestLookupByKeyAndShortName(t *testing.T) {
	s := Default()
	water, ok := s.Lookup("water", map[string]string{"level": "0"})
	if !ok {
		t.Fatalf("expected water[level=0] to be registered")
	}
	if water.Fluid != FluidWater {
		t.Fatalf("expected water fluid, got %d", water.Fluid)
	}
	if got, ok := s.ByKey("minecraft:water[level=0]"); !ok || got != water {
		t.Fatalf("expected key lookup to return the same state")
	}
	if s.MustGet("stone") != s.MustGet("minecraft:stone") {
		t.Fatalf("expected short and namespaced names to resolve to the same state")
	}
}

func TestRegisterRejectsDuplicateKey(t *testing.T) {
	s := NewSet()
	if _, err := s.Register(&State{Name: "minecraft:stone"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := s.Register(&State{Name: "minecraft:stone"}); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}

func TestKeySortsProperties(t *testing.T) {
	got := Key("minecraft:oak_log", map[string]string{"axis": "y", "a": "b"})
	if got != "minecraft:oak_log[a=b,axis=y]" {
		t.Fatalf("unexpected key %q", got)
	}
}
