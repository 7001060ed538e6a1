package llm

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Profile binds one call purpose to a provider model and its rate budget.
// Zero-valued limits leave that limiter off.
type Profile struct {
	Purpose   string  `yaml:"purpose"`
	Provider  string  `yaml:"provider"`
	Model     string  `yaml:"model"`
	MaxTokens int     `yaml:"max_tokens"`
	RPS       float64 `yaml:"rps"`
	Burst     int     `yaml:"burst"`
	RPM       int     `yaml:"rpm"`
	RPD       int     `yaml:"rpd"`
	TPM       int     `yaml:"tpm"`
	Retries   int     `yaml:"retries"`
}

// Catalog is the model configuration file: one profile per purpose.
type Catalog struct {
	Profiles []Profile `yaml:"profiles"`
}

// LoadCatalog reads and validates a YAML catalog.
func LoadCatalog(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("llm: read catalog: %w", err)
	}
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("llm: parse catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	seen := map[string]struct{}{}
	for i, p := range c.Profiles {
		purpose := strings.ToLower(strings.TrimSpace(p.Purpose))
		if purpose == "" {
			return fmt.Errorf("llm: catalog profile %d: purpose is required", i)
		}
		if strings.TrimSpace(p.Provider) == "" || strings.TrimSpace(p.Model) == "" {
			return fmt.Errorf("llm: catalog profile %q: provider and model are required", p.Purpose)
		}
		if _, dup := seen[purpose]; dup {
			return fmt.Errorf("llm: catalog profile %q: duplicate purpose", p.Purpose)
		}
		seen[purpose] = struct{}{}
	}
	return nil
}

// Profile returns the profile for purpose, case-insensitive.
func (c *Catalog) Profile(purpose string) (Profile, bool) {
	if c == nil {
		return Profile{}, false
	}
	purpose = strings.ToLower(strings.TrimSpace(purpose))
	for _, p := range c.Profiles {
		if strings.ToLower(strings.TrimSpace(p.Purpose)) == purpose {
			return p, true
		}
	}
	return Profile{}, false
}

// DefaultCatalog covers both call purposes on free-tier-friendly budgets:
// Gemini flash for the assistant turn, a Groq-hosted Llama for integrity
// verdicts so the reviewer is a different model family than the assistant.
func DefaultCatalog() *Catalog {
	return &Catalog{Profiles: []Profile{
		{
			Purpose:  PhaseAssistant,
			Provider: "gemini",
			Model:    "gemini-2.5-flash",
			RPS:      2,
			Burst:    2,
			RPM:      10,
			RPD:      250,
		},
		{
			Purpose:  PhaseIntegrity,
			Provider: "groq",
			Model:    "llama-3.3-70b-versatile",
			RPM:      30,
			RPD:      1000,
			Retries:  2,
		},
	}}
}
