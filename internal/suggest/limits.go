package suggest

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/glowcart/optimizer-cli/internal/model"
)

// Limits caps the accepted length of a generated suggestion per type.
// Anything over the cap fails shape validation and falls back.
type Limits struct {
	Title       int `yaml:"title"`
	Description int `yaml:"description"`
	Pricing     int `yaml:"pricing"`
	Keywords    int `yaml:"keywords"`
}

// DefaultLimits mirrors the storefront platform's own field caps.
func DefaultLimits() Limits {
	return Limits{
		Title:       255,
		Description: 65535,
		Pricing:     32,
		Keywords:    255,
	}
}

// For returns the cap for a type.
func (l Limits) For(typ model.OptimizationType) int {
	switch typ {
	case model.TypeTitle:
		return l.Title
	case model.TypeDescription:
		return l.Description
	case model.TypePricing:
		return l.Pricing
	case model.TypeKeywords:
		return l.Keywords
	default:
		return 0
	}
}

// LoadLimits reads suggestion limits from a YAML file. Fields left unset
// take the default cap.
func LoadLimits(path string) (Limits, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Limits{}, eris.Wrapf(err, "suggest: read limits %s", path)
	}

	// The YAML has a top-level "suggest" key
	var wrapper struct {
		Suggest struct {
			Limits Limits `yaml:"limits"`
		} `yaml:"suggest"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return Limits{}, eris.Wrap(err, "suggest: parse limits")
	}

	limits := wrapper.Suggest.Limits
	defaults := DefaultLimits()
	if limits.Title <= 0 {
		limits.Title = defaults.Title
	}
	if limits.Description <= 0 {
		limits.Description = defaults.Description
	}
	if limits.Pricing <= 0 {
		limits.Pricing = defaults.Pricing
	}
	if limits.Keywords <= 0 {
		limits.Keywords = defaults.Keywords
	}

	return limits, nil
}
