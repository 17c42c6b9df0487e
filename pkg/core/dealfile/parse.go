// Package dealfile reads deal documents written by hand or exported by other tools.
//
// A document is tried as strict JSON first, then as Hjson (comments, unquoted keys,
// optional commas), then through JSON repair for truncated or fenced exports. Every path
// ends in encoding/json so models.Date and decimal fields decode the same way.
package dealfile

import (
	"encoding/json"
	"fmt"
	"os"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"

	"deal_proforma/pkg/models"
)

// Format names the parser that accepted a document.
type Format string

const (
	FormatJSON     Format = "json"
	FormatHJSON    Format = "hjson"
	FormatRepaired Format = "repaired_json"
)

// Parse decodes a deal document.
func Parse(data []byte) (models.Deal, Format, error) {
	// 1. Strict JSON
	var deal models.Deal
	jsonErr := json.Unmarshal(data, &deal)
	if jsonErr == nil {
		return deal, FormatJSON, nil
	}

	// 2. Hjson, normalized back to JSON
	if normalized, err := hjsonToJSON(data); err == nil {
		deal = models.Deal{}
		if err := json.Unmarshal(normalized, &deal); err == nil {
			return deal, FormatHJSON, nil
		}
	}

	// 3. JSON repair
	repaired, err := jsonrepair.RepairJSON(string(data))
	if err == nil {
		deal = models.Deal{}
		if err := json.Unmarshal([]byte(repaired), &deal); err == nil {
			return deal, FormatRepaired, nil
		}
	}

	return models.Deal{}, "", fmt.Errorf("parse deal document: %w", jsonErr)
}

// ParseFile reads and decodes a deal document from disk.
func ParseFile(path string) (models.Deal, Format, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Deal{}, "", fmt.Errorf("read deal file: %w", err)
	}
	return Parse(data)
}

func hjsonToJSON(data []byte) ([]byte, error) {
	var generic interface{}
	if err := hjson.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}
