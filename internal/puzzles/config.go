package puzzles

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Puzzles []Spec `yaml:"puzzles"`
}

type Spec struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Path        string `yaml:"path"`
	Description string `yaml:"description,omitempty"`
}

// Load reads a puzzle manifest. An empty path yields the built-in
// manifest of shipped scenarios. Relative script paths resolve against
// the manifest's directory.
func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("puzzles.yaml: %w", err)
	}
	base := filepath.Dir(path)
	for i := range cfg.Puzzles {
		if p := strings.TrimSpace(cfg.Puzzles[i].Path); p != "" && !filepath.IsAbs(p) {
			cfg.Puzzles[i].Path = filepath.Join(base, p)
		}
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("puzzles.yaml: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		Puzzles: []Spec{
			{
				ID:          "simple_block",
				Name:        "Simple block",
				Path:        "configs/scenarios/simple_block.box",
				Description: "one crate, one wall",
			},
			{
				ID:          "box_chain",
				Name:        "Box chain",
				Path:        "configs/scenarios/box_chain.box",
				Description: "three crates shoved to the boundary",
			},
			{
				ID:          "alias_transparency",
				Name:        "Alias transparency",
				Path:        "configs/scenarios/alias_transparency.box",
				Description: "pushes addressed through alias names",
			},
			{
				ID:          "wrap_empty",
				Name:        "Wrap into empty",
				Path:        "configs/scenarios/wrap_empty.box",
				Description: "gateway wrap landing on a free cell",
			},
			{
				ID:          "ring_interior",
				Name:        "Interior ring",
				Path:        "configs/scenarios/ring_interior.box",
				Description: "ring rotation driven from inside the cycle",
			},
			{
				ID:          "cycle_rotation",
				Name:        "Cycle rotation",
				Path:        "configs/scenarios/cycle_rotation.box",
				Description: "self-containing ring driven from outside",
			},
		},
	}
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	for i := range c.Puzzles {
		c.Puzzles[i].ID = strings.TrimSpace(c.Puzzles[i].ID)
		c.Puzzles[i].Name = strings.TrimSpace(c.Puzzles[i].Name)
		c.Puzzles[i].Path = strings.TrimSpace(c.Puzzles[i].Path)
		if c.Puzzles[i].Name == "" {
			c.Puzzles[i].Name = c.Puzzles[i].ID
		}
	}
}

func (c Config) Validate() error {
	c.Normalize()
	if len(c.Puzzles) == 0 {
		return fmt.Errorf("puzzles must not be empty")
	}
	seen := map[string]bool{}
	for _, p := range c.Puzzles {
		if p.ID == "" {
			return fmt.Errorf("puzzle id must not be empty")
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate puzzle id: %s", p.ID)
		}
		seen[p.ID] = true
		if p.Path == "" {
			return fmt.Errorf("puzzle %s path must not be empty", p.ID)
		}
	}
	return nil
}

func (c Config) SpecByID(id string) (Spec, bool) {
	for _, p := range c.Puzzles {
		if p.ID == id {
			return p, true
		}
	}
	return Spec{}, false
}
