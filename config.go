package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/astei/chunkforge/anvil"
	"github.com/astei/chunkforge/chunk"
)

type Config struct {
	Seed               int64  `yaml:"seed"`
	MinY               int    `yaml:"min_y"`
	Height             int    `yaml:"height"`
	SeaLevel           int    `yaml:"sea_level"`
	Workers            int    `yaml:"workers"`
	Radius             int    `yaml:"radius"`
	CenterX            int32  `yaml:"center_x"`
	CenterZ            int32  `yaml:"center_z"`
	TargetStatus       string `yaml:"target_status"`
	OutputDir          string `yaml:"output_dir"`
	Compression        string `yaml:"compression"`
	GenerateStructures bool   `yaml:"generate_structures"`
	IndexPath          string `yaml:"index_path"`
}

const configSchema = `{
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"seed": {"type": "integer"},
		"min_y": {"type": "integer", "multipleOf": 16, "minimum": -2032, "maximum": 2016},
		"height": {"type": "integer", "multipleOf": 16, "minimum": 16, "maximum": 1024},
		"sea_level": {"type": "integer"},
		"workers": {"type": "integer", "minimum": 0, "maximum": 512},
		"radius": {"type": "integer", "minimum": 0, "maximum": 256},
		"center_x": {"type": "integer"},
		"center_z": {"type": "integer"},
		"target_status": {"type": "string", "minLength": 1},
		"output_dir": {"type": "string"},
		"compression": {"enum": ["zlib", "deflate", "gzip", "none"]},
		"generate_structures": {"type": "boolean"},
		"index_path": {"type": "string"}
	}
}`

var compiledSchema = jsonschema.MustCompileString("config.schema.json", configSchema)

// LoadConfig reads a YAML config. An empty path yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := validateSchema(b); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// validateSchema checks the raw document against the schema. YAML values
// are passed through JSON so the validator sees JSON number types.
func validateSchema(b []byte) error {
	var doc any
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return compiledSchema.Validate(v)
}

func defaults() Config {
	return Config{
		Seed:               0,
		MinY:               -64,
		Height:             384,
		SeaLevel:           63,
		Radius:             4,
		TargetStatus:       "full",
		OutputDir:          "world/region",
		Compression:        "zlib",
		GenerateStructures: true,
	}
}

func (c *Config) Normalize() {
	c.TargetStatus = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(c.TargetStatus)), "minecraft:")
	if c.TargetStatus == "" {
		c.TargetStatus = "full"
	}
	c.Compression = strings.ToLower(strings.TrimSpace(c.Compression))
	if c.OutputDir == "" {
		c.OutputDir = "world/region"
	}
	if c.IndexPath == "" {
		c.IndexPath = filepath.Join(filepath.Dir(filepath.Clean(c.OutputDir)), "status.db")
	}
}

// Validate checks the rules the schema cannot express.
func (c Config) Validate() error {
	if err := c.HeightAccessor().Validate(); err != nil {
		return err
	}
	if c.SeaLevel < c.MinY || c.SeaLevel >= c.MinY+c.Height {
		return fmt.Errorf("sea_level %d is outside the world (%d to %d)", c.SeaLevel, c.MinY, c.MinY+c.Height)
	}
	if _, err := c.Target(); err != nil {
		return err
	}
	if _, err := anvil.ParseCompression(c.Compression); err != nil {
		return err
	}
	if c.Radius < 0 {
		return fmt.Errorf("radius must not be negative, got %d", c.Radius)
	}
	return nil
}

func (c Config) HeightAccessor() chunk.HeightAccessor {
	return chunk.HeightAccessor{MinY: c.MinY, Height: c.Height}
}

func (c Config) Target() (chunk.Status, error) {
	return chunk.ParseStatus(c.TargetStatus)
}

func (c Config) Center() chunk.Pos {
	return chunk.Pos{X: c.CenterX, Z: c.CenterZ}
}
