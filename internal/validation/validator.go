package validation

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/inaiurai/whitelist/internal/errs"
)

// Request schema names.
const (
	WhitelistAdd    = "whitelist_add"
	WhitelistRemove = "whitelist_remove"
	WhitelistCheck  = "whitelist_check"
	CoinsAdd        = "coins_add"
	AuthRegister    = "auth_register"
	AuthLogin       = "auth_login"
)

//go:embed schemas/*.json
var schemaFS embed.FS

type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// New compiles every embedded request schema.
func New() (*Validator, error) {
	entries, err := fs.ReadDir(schemaFS, "schemas")
	if err != nil {
		return nil, fmt.Errorf("read embedded schemas: %w", err)
	}
	schemas := make(map[string]*jsonschema.Schema, len(entries))
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), path.Ext(e.Name()))
		data, err := schemaFS.ReadFile("schemas/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", e.Name(), err)
		}
		id := "https://whitelist.inaiurai.dev/schemas/" + e.Name()
		schemas[name], err = jsonschema.CompileString(id, string(data))
		if err != nil {
			return nil, fmt.Errorf("compile schema %q: %w", name, err)
		}
	}
	return &Validator{schemas: schemas}, nil
}

// Decode validates body against the named schema and unmarshals it into dst.
// Any failure is an *errs.ValidationError.
func (v *Validator) Decode(name string, body []byte, dst any) error {
	schema, ok := v.schemas[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return errs.Invalid("body", "invalid JSON")
	}
	if err := schema.Validate(doc); err != nil {
		return describe(err)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return errs.Invalid("body", "%v", err)
	}
	return nil
}

// describe reduces a schema error to its first leaf cause.
func describe(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return errs.Invalid("body", "%v", err)
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	field := strings.TrimPrefix(ve.InstanceLocation, "/")
	if field == "" {
		field = "body"
	}
	return errs.Invalid(field, "%s", ve.Message)
}
