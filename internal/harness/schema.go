package harness

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
)

//go:embed schema/scenario.cue
var scenarioSchema string

// SchemaError is one schema violation in a scenario document.
type SchemaError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// Error implements the error interface.
func (e SchemaError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.File, e.Line, e.Column, e.Path, e.Message)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// SchemaErrors collects every violation found in one document.
type SchemaErrors []SchemaError

// Error implements the error interface.
func (es SchemaErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return "schema validation failed:\n  " + strings.Join(msgs, "\n  ")
}

// ValidateDocument checks a YAML scenario document against the embedded CUE
// schema. filename is only used in error positions.
//
// Returns SchemaErrors for violations, or a plain error when the document is
// not valid YAML.
func ValidateDocument(filename string, data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(scenarioSchema, cue.Filename("scenario.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compiling scenario schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Scenario"))

	file, err := cueyaml.Extract(filename, data)
	if err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	doc := ctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return toSchemaErrors(err)
	}

	if err := def.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return toSchemaErrors(err)
	}
	return nil
}

func toSchemaErrors(err error) error {
	cueErrs := errors.Errors(err)
	if len(cueErrs) == 0 {
		return err
	}
	out := make(SchemaErrors, 0, len(cueErrs))
	for _, ce := range cueErrs {
		format, args := ce.Msg()
		se := SchemaError{
			Path:    strings.Join(ce.Path(), "."),
			Message: fmt.Sprintf(format, args...),
		}
		for _, pos := range errors.Positions(ce) {
			// Prefer the document position over the schema's.
			if pos.Filename() == "scenario.cue" {
				continue
			}
			se.File = pos.Filename()
			se.Line = pos.Line()
			se.Column = pos.Column()
			break
		}
		out = append(out, se)
	}
	return out
}
