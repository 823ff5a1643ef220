package internal

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// PromptTemplate is a system prompt written as a JSON object that declares
// named input and output fields.
type PromptTemplate struct {
	Fields  map[string]interface{}
	Inputs  []string
	Outputs []string
}

// ParseTemplate recognizes a structured system prompt. It returns false for
// plain-text prompts and for JSON objects without an inputs/outputs schema.
func ParseTemplate(prompt string) (*PromptTemplate, bool) {
	trimmed := strings.TrimSpace(prompt)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}

	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
		return nil, false
	}

	inputs, inOK := objectKeys(fields["inputs"])
	outputs, outOK := objectKeys(fields["outputs"])
	if _, present := fields["inputs"]; present && !inOK {
		return nil, false
	}
	if _, present := fields["outputs"]; present && !outOK {
		return nil, false
	}
	if len(inputs) == 0 && len(outputs) == 0 {
		return nil, false
	}

	return &PromptTemplate{Fields: fields, Inputs: inputs, Outputs: outputs}, true
}

func objectKeys(v interface{}) ([]string, bool) {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, false
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, true
}

// RepairTemplate fixes common JSON mistakes (trailing commas, single quotes,
// unquoted keys) and re-indents the result.
func RepairTemplate(prompt string) (string, error) {
	repaired, err := jsonrepair.JSONRepair(prompt)
	if err != nil {
		return "", &ParseError{Source: "template", Key: "system prompt", Err: err}
	}

	var v interface{}
	if err := json.Unmarshal([]byte(repaired), &v); err != nil {
		return "", &ParseError{Source: "template", Key: "system prompt", Err: err}
	}
	if _, ok := v.(map[string]interface{}); !ok {
		return "", &ParseError{Source: "template", Key: "system prompt", Err: fmt.Errorf("repaired value is not an object")}
	}

	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// ExampleShape returns an empty example carrying every declared field.
func (t *PromptTemplate) ExampleShape() Example {
	ex := Example{Inputs: make(map[string]string), Outputs: make(map[string]string)}
	for _, k := range t.Inputs {
		ex.Inputs[k] = ""
	}
	for _, k := range t.Outputs {
		ex.Outputs[k] = ""
	}
	return ex
}

// ValidateExamples checks that every example only uses declared fields.
func (t *PromptTemplate) ValidateExamples(examples []Example) error {
	inputs := toSet(t.Inputs)
	outputs := toSet(t.Outputs)
	for i, ex := range examples {
		for k := range ex.Inputs {
			if !inputs[k] {
				return fmt.Errorf("example %d: unknown input field %q", i+1, k)
			}
		}
		for k := range ex.Outputs {
			if !outputs[k] {
				return fmt.Errorf("example %d: unknown output field %q", i+1, k)
			}
		}
	}
	return nil
}

func toSet(keys []string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}
