package schema

import (
	"errors"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// ValidateError lists the leaf failures of a validation.
type ValidateError []*jsonschema.ValidationError

func (e ValidateError) Error() string {
	messages := make([]string, 0, len(e))
	for _, err := range e {
		location := "/" + strings.Join(err.InstanceLocation, "/")
		messages = append(messages, location+": "+err.ErrorKind.LocalizedString(printer))
	}
	return strings.Join(messages, "; ")
}

type Validator struct {
	schema *jsonschema.Schema
}

// New compiles a JSON Schema document. Documents without $schema are
// treated as draft 2020-12.
func New(schemaDef string) (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.DefaultDraft(jsonschema.Draft2020)
	schemaJson, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaDef))
	if err != nil {
		return nil, err
	}
	err = c.AddResource("schema.json", schemaJson)
	if err != nil {
		return nil, err
	}
	schema, err := c.Compile("schema.json")
	if err != nil {
		return nil, err
	}
	return &Validator{schema: schema}, nil
}

// ValidateJSON validates a raw JSON document.
func (v *Validator) ValidateJSON(body []byte) error {
	value, err := jsonschema.UnmarshalJSON(strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	return v.Validate(value)
}

func (v *Validator) Validate(value interface{}) error {
	return convertError(v.schema.Validate(value))
}

func convertError(err error) error {
	var e *jsonschema.ValidationError
	if !errors.As(err, &e) {
		return err
	}

	var validateError ValidateError
	var walk func(e *jsonschema.ValidationError)

	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			validateError = append(validateError, e)
			return
		}
		for _, cause := range e.Causes {
			walk(cause)
		}
	}

	walk(e)
	return validateError
}
