package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/astei/chunkforge/chunk"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chunkforge.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if target, _ := cfg.Target(); target != chunk.StatusFull {
		t.Fatalf("expected target full, got %s", target)
	}
	if cfg.IndexPath != filepath.Join("world", "status.db") {
		t.Fatalf("expected the index next to the region dir, got %s", cfg.IndexPath)
	}
	if h := cfg.HeightAccessor(); h.MinY != -64 || h.SectionCount() != 24 {
		t.Fatalf("unexpected default height %+v", h)
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
seed: 1234
min_y: -16
height: 64
sea_level: 20
radius: 2
center_x: -3
center_z: 7
target_status: minecraft:Features
compression: GZIP
output_dir: out/region
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Seed != 1234 || cfg.Radius != 2 || cfg.SeaLevel != 20 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if target, err := cfg.Target(); err != nil || target != chunk.StatusFeatures {
		t.Fatalf("expected target features, got %s (%v)", target, err)
	}
	if cfg.Compression != "gzip" {
		t.Fatalf("expected compression to be lowercased, got %s", cfg.Compression)
	}
	if cfg.Center() != (chunk.Pos{X: -3, Z: 7}) {
		t.Fatalf("unexpected center %s", cfg.Center())
	}
	if !cfg.GenerateStructures {
		t.Fatalf("expected structures to stay enabled by default")
	}
	if cfg.IndexPath != filepath.Join("out", "status.db") {
		t.Fatalf("unexpected index path %s", cfg.IndexPath)
	}
}

func TestConfigSchemaRejects(t *testing.T) {
	for name, body := range map[string]string{
		"unknown key":      "seed: 1\nworld_border: 10\n",
		"bad compression":  "compression: lz4\n",
		"odd height":       "height: 100\n",
		"negative radius":  "radius: -1\n",
		"string for seed":  "seed: lots\n",
		"empty target":     "target_status: \"\"\n",
	} {
		if _, err := LoadConfig(writeConfig(t, body)); err == nil {
			t.Fatalf("%s: expected an error", name)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := defaults()
	cfg.Normalize()
	cfg.SeaLevel = 400
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "sea_level") {
		t.Fatalf("expected a sea level error, got %v", err)
	}

	cfg = defaults()
	cfg.TargetStatus = "decorated"
	cfg.Normalize()
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected an unknown status error")
	}

	path := writeConfig(t, "sea_level: -100\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected a sea level below the world to fail")
	}
}
