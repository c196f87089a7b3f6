package validator

// The CUE validator is the contract guard between an external HDL front end
// and the engine. A document that does not match the schema is rejected with
// every violation listed, before any module is decoded.

import (
	"embed"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed design_schema.cue
var designSchemaFS embed.FS

//go:embed facts_schema.cue
var factsSchemaFS embed.FS

// ValidationError carries every schema violation of one document
type ValidationError struct {
	Source string
	Errs   []string
	err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: schema validation failed:\n%s", e.Source, errors.Details(e.err, nil))
}

func (e *ValidationError) Unwrap() error {
	return e.err
}

// Validator validates design documents against the embedded #Design schema.
type Validator struct {
	ctx    *cue.Context
	schema cue.Value
}

// New creates a new Validator with the embedded CUE schema
func New() (*Validator, error) {
	ctx := cuecontext.New()

	schemaBytes, err := designSchemaFS.ReadFile("design_schema.cue")
	if err != nil {
		return nil, fmt.Errorf("loading embedded schema: %w", err)
	}

	schema := ctx.CompileBytes(schemaBytes, cue.Filename("design_schema.cue"))
	if schema.Err() != nil {
		return nil, fmt.Errorf("compiling schema: %w", schema.Err())
	}

	return &Validator{
		ctx:    ctx,
		schema: schema,
	}, nil
}

// Validate checks that an in-memory value (typically *hdl.Design) conforms to the schema
func (v *Validator) Validate(data interface{}) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling data to JSON: %w", err)
	}
	return v.ValidateJSON(jsonBytes, "<design>")
}

// ValidateJSON validates JSON bytes directly against the schema. source names
// the document in error positions.
func (v *Validator) ValidateJSON(jsonBytes []byte, source string) error {
	return validate(v.ctx, v.schema, "#Design", jsonBytes, source)
}

// ValidationErrors returns one line per schema violation, nil when the data is valid
func (v *Validator) ValidationErrors(data interface{}) []string {
	err := v.Validate(data)
	if err == nil {
		return nil
	}
	var verr *ValidationError
	if ve, ok := err.(*ValidationError); ok {
		verr = ve
	}
	if verr == nil {
		return []string{err.Error()}
	}
	return verr.Errs
}

// FactsValidator validates relational fact tables against the facts schema.
type FactsValidator struct {
	ctx    *cue.Context
	schema cue.Value
}

// NewFactsValidator creates a validator for relational fact tables.
func NewFactsValidator() (*FactsValidator, error) {
	ctx := cuecontext.New()

	schemaBytes, err := factsSchemaFS.ReadFile("facts_schema.cue")
	if err != nil {
		return nil, fmt.Errorf("loading facts schema: %w", err)
	}

	schema := ctx.CompileBytes(schemaBytes, cue.Filename("facts_schema.cue"))
	if schema.Err() != nil {
		return nil, fmt.Errorf("compiling facts schema: %w", schema.Err())
	}

	return &FactsValidator{
		ctx:    ctx,
		schema: schema,
	}, nil
}

// Validate checks that the fact tables conform to the facts schema.
func (v *FactsValidator) Validate(data interface{}) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling facts to JSON: %w", err)
	}
	return validate(v.ctx, v.schema, "#FactTables", jsonBytes, "<facts>")
}

func validate(ctx *cue.Context, schema cue.Value, path string, jsonBytes []byte, source string) error {
	dataValue := ctx.CompileBytes(jsonBytes, cue.Filename(source))
	if dataValue.Err() != nil {
		return fmt.Errorf("compiling %s as CUE: %w", source, dataValue.Err())
	}

	def := schema.LookupPath(cue.ParsePath(path))
	if def.Err() != nil {
		return fmt.Errorf("looking up %s definition: %w", path, def.Err())
	}

	unified := def.Unify(dataValue)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		verr := &ValidationError{Source: source, err: err}
		for _, e := range errors.Errors(err) {
			verr.Errs = append(verr.Errs, e.Error())
		}
		return verr
	}

	return nil
}
