package pattern

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed corpus.yml
var defaultCorpus []byte

//go:embed corpus.schema.json
var corpusSchemaJSON string

var corpusSchema = jsonschema.MustCompileString("mem://yui/pattern/corpus.schema.json", corpusSchemaJSON)

// Corpus is a set of training conversations. Every statement in a
// conversation is treated as the response to the statement before it.
type Corpus struct {
	Categories    []string   `yaml:"categories"`
	Conversations [][]string `yaml:"conversations"`
}

// Category returns the first category, or "" when none is set.
func (c *Corpus) Category() string {
	if len(c.Categories) == 0 {
		return ""
	}
	return c.Categories[0]
}

// DefaultCorpus returns the built-in question/answer corpus.
func DefaultCorpus() *Corpus {
	c, err := ParseCorpus(defaultCorpus)
	if err != nil {
		panic(fmt.Sprintf("pattern: embedded corpus is invalid: %v", err))
	}
	return c
}

// LoadCorpus reads a YAML corpus from path. An empty path selects the
// built-in corpus.
func LoadCorpus(path string) (*Corpus, error) {
	if path == "" {
		return DefaultCorpus(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", path, err)
	}
	c, err := ParseCorpus(data)
	if err != nil {
		return nil, fmt.Errorf("corpus %s: %w", path, err)
	}
	return c, nil
}

// ParseCorpus decodes and validates a YAML corpus.
func ParseCorpus(data []byte) (*Corpus, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse corpus: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("parse corpus: document is empty")
	}
	if err := corpusSchema.Validate(raw); err != nil {
		return nil, fmt.Errorf("invalid corpus: %w", err)
	}

	var c Corpus
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse corpus: %w", err)
	}
	for i, conv := range c.Conversations {
		for j, s := range conv {
			c.Conversations[i][j] = strings.TrimSpace(s)
		}
	}
	return &c, nil
}
