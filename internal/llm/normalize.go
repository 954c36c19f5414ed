package llm

import (
	"encoding/json"
	"log"
	"strings"
)

// Normalize recovers a structured assignment list from the model's raw text
// output. The output is expected to be JSON but not guaranteed; several
// plausible encodings are tried in strict order, first success wins:
//
//  1. an object with an "items" array
//  2. a bare array of records
//  3. an object whose first array-valued field looks like a record list
//  4. a fenced code block containing any of the above
//
// Anything else degrades to the empty result. Normalize never fails.
//
// Field values pass through unvalidated: a malformed due_date or an unknown
// type reaches the caller unchanged.
func Normalize(raw string) ExtractionResult {
	if items, ok := parseRecords(raw); ok {
		if len(items) == 0 {
			log.Printf("normalize: model reported no assignments")
		}
		return ExtractionResult{Items: items}
	}
	if block, ok := fencedBlock(raw); ok {
		if items, ok := parseRecords(block); ok {
			return ExtractionResult{Items: items}
		}
	}
	log.Printf("normalize: could not recover JSON from model output (%.120q)", raw)
	return EmptyResult()
}

// parseRecords applies recovery rungs 1-3 to a candidate JSON string.
// Returns a non-nil slice on success.
func parseRecords(s string) ([]AssignmentRecord, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}

	if strings.HasPrefix(s, "[") {
		return parseRecordArray([]byte(s))
	}

	fields, ok := objectFields(s)
	if !ok {
		return nil, false
	}

	// An explicit "items" field wins regardless of position.
	for _, f := range fields {
		if f.key == "items" {
			return parseRecordArray(f.value)
		}
	}

	// Heuristic scan: first array-valued field, in document order, whose
	// first element carries a "title" key.
	for _, f := range fields {
		if !looksLikeRecordList(f.value) {
			continue
		}
		return parseRecordArray(f.value)
	}
	return nil, false
}

type jsonField struct {
	key   string
	value json.RawMessage
}

// objectFields decodes a top-level JSON object into its fields, preserving
// document order (a plain map would randomize it and make the heuristic scan
// nondeterministic).
func objectFields(s string) ([]jsonField, bool) {
	dec := json.NewDecoder(strings.NewReader(s))
	tok, err := dec.Token()
	if err != nil {
		return nil, false
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, false
	}

	var fields []jsonField
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, false
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, false
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, false
		}
		fields = append(fields, jsonField{key: key, value: value})
	}
	if _, err := dec.Token(); err != nil { // closing '}'
		return nil, false
	}
	return fields, true
}

func parseRecordArray(data []byte) ([]AssignmentRecord, bool) {
	var items []AssignmentRecord
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, false
	}
	if items == nil {
		items = []AssignmentRecord{}
	}
	return items, true
}

// looksLikeRecordList reports whether a raw JSON value is a non-empty array
// whose first element has a "title" field.
func looksLikeRecordList(data json.RawMessage) bool {
	var probe []map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	if len(probe) == 0 {
		return false
	}
	_, hasTitle := probe[0]["title"]
	return hasTitle
}

// fencedBlock extracts the contents of the first triple-backtick code block
// in the text, tolerating an optional "json" language tag.
func fencedBlock(s string) (string, bool) {
	start := strings.Index(s, "```")
	if start < 0 {
		return "", false
	}
	rest := s[start+3:]
	rest = strings.TrimPrefix(rest, "json")
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}
