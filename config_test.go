package segprep

import (
	"errors"
	"testing"
)

func validConfig() *Config {
	return &Config{
		LodDir:      "/data/lod",
		OutDir:      "/data/out",
		Geopackage:  "/data/labels.gpkg",
		Attribute:   "class",
		Sources:       []SourceSpec{{Name: "ortho", Dir: "/data/ortho"}, {Name: "dev", Dir: "/data/dev"}},
		PatchWidth:    512,
		PatchHeight:   512,
		SplitFraction: -1,
	}
}

func TestConfigValidateDefaults(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Stride != 512 {
		t.Fatalf("stride should default to patch width, got %d", cfg.Stride)
	}
	if cfg.EdgePolicy != EdgeDrop {
		t.Fatalf("edge policy should default to drop, got %q", cfg.EdgePolicy)
	}
	if cfg.Overlap != OverlapArea {
		t.Fatalf("overlap should default to area, got %q", cfg.Overlap)
	}
	if cfg.SplitFraction != DefaultSplitFraction {
		t.Fatalf("unset split fraction should default to %v, got %v", DefaultSplitFraction, cfg.SplitFraction)
	}
	if cfg.Workers <= 0 {
		t.Fatalf("workers should default to positive, got %d", cfg.Workers)
	}
	for _, s := range cfg.Sources {
		if s.Resample != ResampleNearest {
			t.Fatalf("resample should default to near, got %q", s.Resample)
		}
	}
}

func TestConfigValidateErrors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing lod dir", func(c *Config) { c.LodDir = "" }},
		{"missing out dir", func(c *Config) { c.OutDir = "" }},
		{"missing label source", func(c *Config) { c.Geopackage = "" }},
		{"missing attribute", func(c *Config) { c.Attribute = "" }},
		{"no sources", func(c *Config) { c.Sources = nil }},
		{"unnamed source", func(c *Config) { c.Sources[0].Name = "" }},
		{"duplicate source", func(c *Config) { c.Sources[1].Name = "ortho" }},
		{"bad resample", func(c *Config) { c.Sources[0].Resample = "lanczos" }},
		{"zero patch size", func(c *Config) { c.PatchWidth = 0 }},
		{"negative stride", func(c *Config) { c.Stride = -1 }},
		{"bad edge policy", func(c *Config) { c.EdgePolicy = "mirror" }},
		{"bad overlap", func(c *Config) { c.Overlap = "biggest" }},
		{"fraction above one", func(c *Config) { c.SplitFraction = 1.5 }},
	}
	for _, c := range cases {
		cfg := validConfig()
		c.mutate(cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrBadConfig) {
			t.Fatalf("%s: want ErrBadConfig, got %v", c.name, err)
		}
	}
}

// 显式的0是合法取值：全部样本进验证集
func TestConfigValidateSplitFractionZero(t *testing.T) {
	cfg := validConfig()
	cfg.SplitFraction = 0
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.SplitFraction != 0 {
		t.Fatalf("explicit 0 was replaced by %v", cfg.SplitFraction)
	}
}

func TestConfigValidateKeepsExplicit(t *testing.T) {
	cfg := validConfig()
	cfg.Stride = 256
	cfg.EdgePolicy = EdgePad
	cfg.Overlap = OverlapOrder
	cfg.SplitFraction = 0.9
	cfg.Workers = 2
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Stride != 256 || cfg.EdgePolicy != EdgePad || cfg.Overlap != OverlapOrder ||
		cfg.SplitFraction != 0.9 || cfg.Workers != 2 {
		t.Fatalf("explicit values were overridden: %+v", cfg)
	}
}
