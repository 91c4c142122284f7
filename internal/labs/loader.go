package labs

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

const tableSchemaURL = "reference_table.json"

// tableSchema describes a reference table file. YAML and JSON files share it.
const tableSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["parameters"],
  "properties": {
    "parameters": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["name", "low", "high", "unit"],
        "properties": {
          "name":     {"type": "string", "minLength": 1},
          "low":      {"type": "number"},
          "high":     {"type": "number"},
          "unit":     {"type": "string"},
          "decimals": {"type": "integer", "minimum": 0, "maximum": 6}
        }
      }
    }
  }
}`

type tableFile struct {
	Parameters []ReferenceParameter `json:"parameters"`
}

// LoadTable reads a reference table from a YAML or JSON file.
func LoadTable(path string) (Table, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read reference table: %w", err)
	}
	t, err := ParseTable(b)
	if err != nil {
		return Table{}, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ParseTable decodes and validates a reference table document.
func ParseTable(data []byte) (Table, error) {
	if strings.TrimSpace(string(data)) == "" {
		return Table{}, fmt.Errorf("reference table document is empty")
	}
	// YAML is a superset of JSON; normalize through JSON so the schema
	// validator only ever sees float64/map/slice values.
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Table{}, fmt.Errorf("decode reference table: %w", err)
	}
	js, err := json.Marshal(doc)
	if err != nil {
		return Table{}, fmt.Errorf("normalize reference table: %w", err)
	}
	if err := validateTableJSON(js); err != nil {
		return Table{}, err
	}
	var tf tableFile
	if err := json.Unmarshal(js, &tf); err != nil {
		return Table{}, fmt.Errorf("decode reference table: %w", err)
	}
	return NewTable(tf.Parameters)
}

func validateTableJSON(js []byte) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(tableSchemaURL, strings.NewReader(tableSchema)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(tableSchemaURL)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(js, &v); err != nil {
		return fmt.Errorf("unmarshal reference table: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("reference table does not match schema: %w", err)
	}
	return nil
}
