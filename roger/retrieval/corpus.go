package retrieval

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xeipuuv/gojsonschema"
)

// Passage is one entry of the externally-maintained knowledge corpus
// (facts, policy/FAQ snippets).
type Passage struct {
	ID     string   `json:"id"`
	Text   string   `json:"text"`
	Topics []string `json:"topics,omitempty"`
}

// Corpus is an immutable snapshot of the knowledge corpus. Reloads build
// a fresh snapshot and swap it atomically; a failed reload keeps the last
// good snapshot live.
type Corpus struct {
	Passages []Passage `json:"passages"`
}

// corpusSchema validates corpus files before activation. The corpus is
// supplied by an external content-management collaborator, so malformed
// updates must be rejected rather than crash retrieval.
const corpusSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["passages"],
	"properties": {
		"passages": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "text"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"text": {"type": "string", "minLength": 1},
					"topics": {"type": "array", "items": {"type": "string"}}
				}
			}
		}
	}
}`

// LoadCorpus reads and optionally schema-validates a corpus JSON file.
func LoadCorpus(path string, validate bool) (*Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus: %w", err)
	}
	return ParseCorpus(data, validate)
}

// ParseCorpus parses corpus bytes, validating against the embedded schema
// when requested.
func ParseCorpus(data []byte, validate bool) (*Corpus, error) {
	if validate {
		result, err := gojsonschema.Validate(
			gojsonschema.NewStringLoader(corpusSchema),
			gojsonschema.NewBytesLoader(data),
		)
		if err != nil {
			return nil, fmt.Errorf("corpus schema validation failed: %w", err)
		}
		if !result.Valid() {
			return nil, fmt.Errorf("corpus rejected by schema: %v", result.Errors())
		}
	}

	var corpus Corpus
	if err := json.Unmarshal(data, &corpus); err != nil {
		return nil, fmt.Errorf("failed to parse corpus: %w", err)
	}
	if len(corpus.Passages) == 0 {
		return nil, fmt.Errorf("corpus contains no passages")
	}

	seen := make(map[string]bool, len(corpus.Passages))
	for _, p := range corpus.Passages {
		if seen[p.ID] {
			return nil, fmt.Errorf("duplicate passage id %q", p.ID)
		}
		seen[p.ID] = true
	}
	return &corpus, nil
}
