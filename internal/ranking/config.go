package ranking

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig is returned by New when the scoring configuration cannot be used.
var ErrInvalidConfig = errors.New("invalid ranking config")

// Weights controls how the score components are blended.
type Weights struct {
	Embedding float64 `yaml:"embedding"`
	Relevance float64 `yaml:"relevance"`
	Domain    float64 `yaml:"domain"`
	Usage     float64 `yaml:"usage"`
	Query     float64 `yaml:"query"`
}

// Boost multiplies the final score of candidates whose question id has a priority prefix.
type Boost struct {
	Factor   float64  `yaml:"factor"`
	Prefixes []string `yaml:"prefixes"`
}

// Config holds every survey-specific knob of the ranker.
type Config struct {
	DomainKeywords []string `yaml:"domainKeywords"`
	UsageKeywords  []string `yaml:"usageKeywords"`
	Weights        Weights  `yaml:"weights"`
	Boost          Boost    `yaml:"boost"`
	// Boilerplate phrases are removed case-insensitively with trailing whitespace.
	Boilerplate []string `yaml:"boilerplate"`
	// Annotations are inline tags removed case-sensitively, e.g. "(MA)".
	Annotations []string `yaml:"annotations"`
}

// DefaultConfig reproduces the scoring rules of the OTT usage survey.
func DefaultConfig() Config {
	return Config{
		DomainKeywords: []string{"ott", "video", "app", "stream", "platform", "netflix", "prime", "hotstar"},
		UsageKeywords:  []string{"using", "used", "use", "usage", "currently", "installed"},
		Weights: Weights{
			Embedding: 0.7,
			Relevance: 0.3,
			Domain:    0.4,
			Usage:     0.3,
			Query:     0.3,
		},
		Boost: Boost{
			Factor:   1.5,
			Prefixes: []string{"Q10", "Q11"},
		},
		Boilerplate: []string{"SHOW SCREEN TO THE RESPONDENT", "CONTINUE ONLY IF", "TERMINATE"},
		Annotations: []string{"(MA)", "(SA)"},
	}
}

// Validate reports configuration values the scoring fold cannot honour.
func (c Config) Validate() error {
	weights := map[string]float64{
		"embedding": c.Weights.Embedding,
		"relevance": c.Weights.Relevance,
		"domain":    c.Weights.Domain,
		"usage":     c.Weights.Usage,
		"query":     c.Weights.Query,
	}
	for name, w := range weights {
		if w < 0 {
			return fmt.Errorf("%w: %s weight %v is negative", ErrInvalidConfig, name, w)
		}
	}
	if len(c.Boost.Prefixes) > 0 && c.Boost.Factor <= 0 {
		return fmt.Errorf("%w: boost factor %v must be positive", ErrInvalidConfig, c.Boost.Factor)
	}
	for _, p := range c.Boost.Prefixes {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("%w: empty boost prefix", ErrInvalidConfig)
		}
	}
	for _, phrase := range append(append([]string(nil), c.Boilerplate...), c.Annotations...) {
		if strings.TrimSpace(phrase) == "" {
			return fmt.Errorf("%w: empty boilerplate marker", ErrInvalidConfig)
		}
	}
	return nil
}
