// Package schema validates JSON payloads against JSON Schema documents
// expressed as Go maps. Compiled schemas are cached per name.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validator compiles a schema once and validates many documents against it
type Validator struct {
	name   string
	source map[string]any

	once     sync.Once
	compiled *jsonschema.Schema
	err      error
}

// New creates a validator for the given schema map
func New(name string, source map[string]any) *Validator {
	return &Validator{name: name, source: source}
}

func (v *Validator) compile() (*jsonschema.Schema, error) {
	v.once.Do(func() {
		b, err := json.Marshal(v.source)
		if err != nil {
			v.err = fmt.Errorf("marshal schema %s: %w", v.name, err)
			return
		}
		url := "https://karasuemlak.com/schemas/" + v.name + ".json"
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(url, bytes.NewReader(b)); err != nil {
			v.err = fmt.Errorf("add schema %s: %w", v.name, err)
			return
		}
		v.compiled, v.err = compiler.Compile(url)
	})
	return v.compiled, v.err
}

// ValidateBytes validates raw JSON
func (v *Validator) ValidateBytes(data []byte) error {
	compiled, err := v.compile()
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("unmarshal %s: %w", v.name, err)
	}
	if err := compiled.Validate(doc); err != nil {
		return fmt.Errorf("%s does not match schema: %w", v.name, err)
	}
	return nil
}

// Validate marshals value and validates the result
func (v *Validator) Validate(value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", v.name, err)
	}
	return v.ValidateBytes(data)
}

// MarshalValid marshals value and returns the bytes only if they validate
func (v *Validator) MarshalValid(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", v.name, err)
	}
	if err := v.ValidateBytes(data); err != nil {
		return nil, err
	}
	return data, nil
}

// UnmarshalValid validates data and decodes it into out
func (v *Validator) UnmarshalValid(data []byte, out any) error {
	if err := v.ValidateBytes(data); err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
