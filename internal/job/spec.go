// Package job builds a validated job description from the launcher payload.
package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mattjoyce/speclaunch/internal/b64"
)

var (
	ErrDecode       = errors.New("payload is not valid base64")
	ErrMalformed    = errors.New("payload is not a JSON object")
	ErrMissingField = errors.New("missing required field")
	ErrFieldType    = errors.New("field has the wrong type")
)

// FieldError ties a field problem to the field name.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// Spec describes one process to launch. It is never modified after it is
// built.
type Spec struct {
	Executable string            `json:"executable"`
	Args       []string          `json:"args"`
	Env        map[string]string `json:"env"`
	WorkDir    string            `json:"work_dir,omitempty"`

	payload []byte
}

// Payload returns the decoded JSON document the spec was built from.
func (s *Spec) Payload() []byte {
	return s.payload
}

// HasWorkDir reports whether the job asks for a working directory change.
func (s *Spec) HasWorkDir() bool {
	return s.WorkDir != ""
}

// FromChunks joins the chunks, decodes the base64 text with codec and parses
// the result. Decoding failures match ErrDecode.
func FromChunks(codec *b64.Codec, chunks []string) (*Spec, error) {
	data, err := codec.Decode(strings.Join(chunks, ""))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return FromJSON(data)
}

// FromJSON parses a payload document. Every field is checked and all problems
// are reported together. work_dir is optional: when it is absent, null, empty
// or not a string the job inherits the launcher's directory.
func FromJSON(data []byte) (*Spec, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil || doc == nil {
		if err == nil {
			err = errors.New("document is null")
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	spec := &Spec{payload: data}
	var errs []error

	if err := stringField(doc, "executable", &spec.Executable); err != nil {
		errs = append(errs, err)
	} else if spec.Executable == "" {
		errs = append(errs, &FieldError{Field: "executable", Err: fmt.Errorf("%w: empty string", ErrFieldType)})
	}

	if err := requiredField(doc, "args", &spec.Args, "array of strings"); err != nil {
		errs = append(errs, err)
	}
	if err := requiredField(doc, "env", &spec.Env, "object of strings"); err != nil {
		errs = append(errs, err)
	}

	if raw, ok := doc["work_dir"]; ok {
		var dir string
		if json.Unmarshal(raw, &dir) == nil {
			spec.WorkDir = dir
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if spec.Args == nil {
		spec.Args = []string{}
	}
	if spec.Env == nil {
		spec.Env = map[string]string{}
	}
	return spec, nil
}

func stringField(doc map[string]json.RawMessage, name string, dst *string) error {
	return requiredField(doc, name, dst, "string")
}

// requiredField decodes doc[name] into dst. A JSON null counts as the wrong
// type, not as missing.
func requiredField(doc map[string]json.RawMessage, name string, dst any, want string) error {
	raw, ok := doc[name]
	if !ok {
		return &FieldError{Field: name, Err: ErrMissingField}
	}
	if isNull(raw) {
		return &FieldError{Field: name, Err: fmt.Errorf("%w: want %s, got null", ErrFieldType, want)}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &FieldError{Field: name, Err: fmt.Errorf("%w: want %s", ErrFieldType, want)}
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}
