package validator

// The CUE schemas are the contract between the Go side and everything that
// consumes its JSON: the rego policies and the facts/lint output. Data that
// does not match fails loudly here instead of silently not matching a rule.
// When validation fails, fix the producer or the schema, never the caller.

import (
	"embed"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed facts_schema.cue
var factsSchemaFS embed.FS

//go:embed output_schema.cue
var outputSchemaFS embed.FS

// schema is a compiled CUE file with one definition to check against.
type schema struct {
	ctx   *cue.Context
	value cue.Value
	def   string
}

func load(fsys embed.FS, file, def string) (*schema, error) {
	ctx := cuecontext.New()

	schemaBytes, err := fsys.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("loading embedded schema %s: %w", file, err)
	}

	value := ctx.CompileBytes(schemaBytes)
	if value.Err() != nil {
		return nil, fmt.Errorf("compiling schema %s: %w", file, value.Err())
	}
	if d := value.LookupPath(cue.ParsePath(def)); d.Err() != nil {
		return nil, fmt.Errorf("looking up %s definition: %w", def, d.Err())
	}

	return &schema{ctx: ctx, value: value, def: def}, nil
}

func (s *schema) unify(jsonBytes []byte) (cue.Value, error) {
	dataValue := s.ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return cue.Value{}, fmt.Errorf("compiling JSON as CUE: %w", dataValue.Err())
	}
	return s.value.LookupPath(cue.ParsePath(s.def)).Unify(dataValue), nil
}

func (s *schema) validateJSON(jsonBytes []byte, what string) error {
	unified, err := s.unify(jsonBytes)
	if err != nil {
		return err
	}
	if err := unified.Validate(); err != nil {
		return fmt.Errorf("%s schema validation failed: %w", what, err)
	}
	return nil
}

func (s *schema) validate(data interface{}, what string) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling %s to JSON: %w", what, err)
	}
	return s.validateJSON(jsonBytes, what)
}

// Validator validates the policy input (fact tables plus lint rule
// configuration) before it reaches the rego engine.
type Validator struct {
	s *schema
}

// New creates a new Validator with the embedded CUE schema
func New() (*Validator, error) {
	s, err := load(factsSchemaFS, "facts_schema.cue", "#Input")
	if err != nil {
		return nil, err
	}
	return &Validator{s: s}, nil
}

// Validate checks that the input data conforms to the CUE schema.
// Returns nil if valid, or a detailed error explaining what failed.
func (v *Validator) Validate(data interface{}) error {
	return v.s.validate(data, "input")
}

// ValidateJSON validates JSON bytes directly against the schema
func (v *Validator) ValidateJSON(jsonBytes []byte) error {
	return v.s.validateJSON(jsonBytes, "input")
}

// ValidationErrors returns detailed information about all validation errors
func (v *Validator) ValidationErrors(data interface{}) []string {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return []string{fmt.Sprintf("marshal error: %v", err)}
	}

	unified, err := v.s.unify(jsonBytes)
	if err != nil {
		return []string{fmt.Sprintf("compile error: %v", err)}
	}

	err = unified.Validate()
	if err == nil {
		return nil
	}

	// Extract all errors
	var errs []string
	for _, e := range errors.Errors(err) {
		errs = append(errs, e.Error())
	}
	return errs
}

// FactsValidator validates relational fact tables against the facts schema.
type FactsValidator struct {
	s *schema
}

// NewFactsValidator creates a validator for relational fact tables.
func NewFactsValidator() (*FactsValidator, error) {
	s, err := load(factsSchemaFS, "facts_schema.cue", "#FactTables")
	if err != nil {
		return nil, err
	}
	return &FactsValidator{s: s}, nil
}

// Validate checks that the fact tables conform to the facts schema.
func (v *FactsValidator) Validate(data interface{}) error {
	return v.s.validate(data, "facts")
}

// OutputValidator validates lint output against the output schema
type OutputValidator struct {
	s *schema
}

// NewOutputValidator creates a validator for lint output
func NewOutputValidator() (*OutputValidator, error) {
	s, err := load(outputSchemaFS, "output_schema.cue", "#LintOutput")
	if err != nil {
		return nil, err
	}
	return &OutputValidator{s: s}, nil
}

// Validate checks that the output data conforms to the output schema
func (v *OutputValidator) Validate(data interface{}) error {
	return v.s.validate(data, "output")
}
