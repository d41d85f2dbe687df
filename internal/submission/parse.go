package submission

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/plughub/registry-updater/internal/github"
)

//go:embed scanner_mapping.schema.json
var scannerMappingSchemaJSON string

// scannerMappingSchema validates the fixed bucket-name shape of a
// scanner mapping. Compiled once at package load; the schema is embedded,
// so a compile failure is a programming error.
var scannerMappingSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(scannerMappingSchemaJSON))
	if err != nil {
		panic(fmt.Sprintf("invalid embedded scanner mapping schema: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("scanner_mapping.schema.json", doc); err != nil {
		panic(fmt.Sprintf("failed to add scanner mapping schema resource: %v", err))
	}
	schema, err := compiler.Compile("scanner_mapping.schema.json")
	if err != nil {
		panic(fmt.Sprintf("failed to compile scanner mapping schema: %v", err))
	}
	return schema
}

// rawPayload mirrors the issue-form JSON. Issue forms deliver categories
// either as a list or as a comma-joined string, and the scanner mapping
// either as an object or as fenced text, so both fields stay raw until
// normalization.
type rawPayload struct {
	ProjectURL         string          `json:"project_url"`
	Categories         json.RawMessage `json:"categories"`
	OtherCategory      string          `json:"other_category"`
	ScannerMapping     json.RawMessage `json:"scanner_mapping"`
	AdditionalComments string          `json:"additional_comments"`
	SubmitterID        string          `json:"submitter_id"`
}

// Parse turns a raw structured issue payload into a Submission, or fails
// with a MalformedSubmissionError when a required field is absent, the URL
// does not resolve to an owner/repo pair, or the scanner mapping does not
// match the fixed bucket-name schema. Whitespace-only fields are treated
// as absent.
func Parse(raw []byte) (*Submission, error) {
	var payload rawPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, malformed("payload", "not valid JSON: %v", err)
	}

	projectURL := strings.TrimSpace(payload.ProjectURL)
	if projectURL == "" {
		return nil, malformed("project_url", "required field is absent")
	}
	ref, err := github.ParseProjectURL(projectURL)
	if err != nil {
		return nil, malformed("project_url", "%v", err)
	}

	categories, err := parseCategories(payload.Categories)
	if err != nil {
		return nil, err
	}

	mapping, err := parseScannerMapping(payload.ScannerMapping)
	if err != nil {
		return nil, err
	}

	return &Submission{
		ProjectURL:         projectURL,
		Ref:                ref,
		Categories:         categories,
		OtherCategory:      strings.TrimSpace(payload.OtherCategory),
		ScannerMapping:     mapping,
		AdditionalComments: strings.TrimSpace(payload.AdditionalComments),
		SubmitterID:        strings.TrimSpace(payload.SubmitterID),
	}, nil
}

// parseCategories accepts a JSON list of strings or a single comma-joined
// string (the issue-form checkbox rendering), validates each tag against
// the fixed set, and deduplicates preserving order.
func parseCategories(raw json.RawMessage) ([]Category, error) {
	if len(raw) == 0 {
		return nil, malformed("categories", "required field is absent")
	}

	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		var joined string
		if err := json.Unmarshal(raw, &joined); err != nil {
			return nil, malformed("categories", "expected a list of strings or a comma-joined string")
		}
		for _, part := range strings.Split(joined, ",") {
			names = append(names, strings.TrimSpace(part))
		}
	}

	seen := make(map[Category]struct{}, len(names))
	var categories []Category
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		category, err := ParseCategory(name)
		if err != nil {
			return nil, malformed("categories", "%v", err)
		}
		if _, dup := seen[category]; dup {
			continue
		}
		seen[category] = struct{}{}
		categories = append(categories, category)
	}

	if len(categories) == 0 {
		return nil, malformed("categories", "at least one category is required")
	}
	return categories, nil
}

// parseScannerMapping accepts a JSON object or a string carrying one,
// possibly wrapped in a markdown code fence the way issue forms deliver
// free-text fields. Absent or whitespace-only input yields nil.
func parseScannerMapping(raw json.RawMessage) (*ScannerMapping, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	text := raw
	var fenced string
	if err := json.Unmarshal(raw, &fenced); err == nil {
		fenced = stripCodeFence(fenced)
		if fenced == "" {
			return nil, nil
		}
		text = []byte(fenced)
	}

	value, err := jsonschema.UnmarshalJSON(bytes.NewReader(text))
	if err != nil {
		return nil, malformed("scanner_mapping", "not valid JSON: %v", err)
	}
	if err := scannerMappingSchema.Validate(value); err != nil {
		return nil, malformed("scanner_mapping", "does not match the bucket schema: %v", err)
	}

	var mapping ScannerMapping
	if err := json.Unmarshal(text, &mapping); err != nil {
		return nil, malformed("scanner_mapping", "failed to decode: %v", err)
	}
	return &mapping, nil
}

// stripCodeFence removes a surrounding markdown code fence (``` or
// ```json) and trims whitespace.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		// Drop the language tag line (e.g. "json" or "JSON").
		tag := strings.TrimSpace(s[:idx])
		if tag == "" || strings.EqualFold(tag, "json") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
