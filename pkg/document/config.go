package document

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Syntax selects the tag flavor used when serializing a document.
type Syntax string

const (
	// SyntaxCanonical emits `:::tag` lines.
	SyntaxCanonical Syntax = "canonical"
	// SyntaxComment emits tags as HTML comments so the document renders
	// as plain Markdown.
	SyntaxComment Syntax = "comment"
)

// Valid reports whether s names a supported syntax.
func (s Syntax) Valid() bool {
	return s == SyntaxCanonical || s == SyntaxComment
}

// Config carries the document-level vocabulary: sentinel tokens, the
// default role, and the output syntax. It is threaded explicitly through
// parse and serialize calls so documents with different vocabularies can
// coexist in one process.
type Config struct {
	// SkipToken marks a field as skipped in place of a value payload.
	SkipToken string `yaml:"skip_token"`
	// AbortToken marks a field as aborted in place of a value payload.
	AbortToken string `yaml:"abort_token"`
	// DefaultRole is assigned to fields that declare no role.
	DefaultRole string `yaml:"default_role"`
	// Syntax chooses the serialization flavor.
	Syntax Syntax `yaml:"syntax"`
}

// DefaultConfig returns the stock vocabulary.
func DefaultConfig() Config {
	return Config{
		SkipToken:   "SKIP",
		AbortToken:  "ABORT",
		DefaultRole: "human",
		Syntax:      SyntaxCanonical,
	}
}

// ParseConfig decodes a YAML payload over the defaults.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("document: parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the vocabulary for internal consistency.
func (c Config) Validate() error {
	if c.SkipToken == "" || c.AbortToken == "" {
		return errors.New("document: sentinel tokens must be non-empty")
	}
	if c.SkipToken == c.AbortToken {
		return fmt.Errorf("document: skip and abort tokens collide (%q)", c.SkipToken)
	}
	if c.DefaultRole == "" {
		return errors.New("document: default role must be non-empty")
	}
	if !c.Syntax.Valid() {
		return fmt.Errorf("document: unknown syntax %q", c.Syntax)
	}
	return nil
}
