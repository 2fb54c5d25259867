// Package openapi imports an OpenAPI operation's request schema as a
// blank form document, so a fill session can start from an API contract
// instead of a hand-written document. Only the schema is imported;
// responses start unanswered.
package openapi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formdoc/pkg/document"
)

// ImportOperation loads an OpenAPI document from raw bytes and builds a
// form for the named operation. The supplied config seeds the form's
// vocabulary; every field is assigned the default role.
func ImportOperation(ctx context.Context, data []byte, operationID string, cfg document.Config) (*document.Form, error) {
	if ctx == nil {
		return nil, errors.New("openapi importer: context is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("openapi importer: document payload is empty")
	}

	loader := &openapi3.Loader{Context: ctx}
	spec, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("openapi importer: load document: %w", err)
	}

	op := findOperation(spec, operationID)
	if op == nil {
		return nil, fmt.Errorf("openapi importer: operation %q not found", operationID)
	}

	schema := requestSchema(op)
	if schema == nil || schema.Value == nil {
		return nil, fmt.Errorf("openapi importer: operation %q has no request schema", operationID)
	}

	form := document.New(cfg)
	form.ID = identifierFrom(operationID)
	form.Title = op.Summary
	if err := form.Index.Add(form.ID, document.RefForm); err != nil {
		return nil, err
	}

	if err := importObject(form, "", schema.Value); err != nil {
		return nil, err
	}
	if op.Description != "" {
		form.Docs = append(form.Docs, document.DocBlock{
			Kind: document.DocDescription, Target: form.ID, Body: op.Description,
		})
	}
	return form, nil
}

func findOperation(spec *openapi3.T, operationID string) *openapi3.Operation {
	if spec.Paths == nil {
		return nil
	}
	for _, item := range spec.Paths.Map() {
		if item == nil {
			continue
		}
		for _, op := range item.Operations() {
			if op != nil && op.OperationID == operationID {
				return op
			}
		}
	}
	return nil
}

func requestSchema(op *openapi3.Operation) *openapi3.SchemaRef {
	if op.RequestBody == nil || op.RequestBody.Value == nil {
		return nil
	}
	content := op.RequestBody.Value.Content
	for _, mediaType := range []string{"application/json", "application/x-www-form-urlencoded", "multipart/form-data"} {
		if mt, ok := content[mediaType]; ok {
			return mt.Schema
		}
	}
	for _, mt := range content {
		return mt.Schema
	}
	return nil
}

// importObject maps object properties to fields in declaration-stable
// order; nested objects become groups one level deep, flattened with a
// prefixed identifier below that.
func importObject(form *document.Form, prefix string, schema *openapi3.Schema) error {
	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	for _, name := range sortedKeys(schema.Properties) {
		propRef := schema.Properties[name]
		if propRef == nil || propRef.Value == nil {
			continue
		}
		prop := propRef.Value
		id := identifierFrom(name)
		if prefix != "" {
			id = prefix + "_" + id
		}

		if schemaType(prop) == "object" && prefix == "" {
			grp := document.Group{ID: id, Title: labelFrom(name)}
			if err := form.AddGroup(grp); err != nil {
				return err
			}
			if err := importObject(form, id, prop); err != nil {
				return err
			}
			continue
		}

		fld, err := fieldFrom(id, name, prop, required[name])
		if err != nil {
			return err
		}
		group := ""
		if prefix != "" {
			group = prefix
		}
		if err := form.AddField(group, fld); err != nil {
			return err
		}
		if prop.Description != "" {
			form.Docs = append(form.Docs, document.DocBlock{
				Kind: document.DocDescription, Target: fld.ID, Body: prop.Description,
			})
		}
	}
	return nil
}

func fieldFrom(id, name string, schema *openapi3.Schema, required bool) (*document.Field, error) {
	fld := &document.Field{
		ID:       id,
		Label:    labelFrom(name),
		Required: required,
	}
	if schema.Title != "" {
		fld.Label = schema.Title
	}

	switch schemaType(schema) {
	case "string":
		fld.Kind = stringKind(schema)
		if fld.Kind == document.KindSingleSelect {
			fld.Options = optionsFrom(schema.Enum)
		}
	case "integer", "number":
		fld.Kind = document.KindNumber
		if schema.Min != nil {
			min := *schema.Min
			fld.Min = &min
		}
		if schema.Max != nil {
			max := *schema.Max
			fld.Max = &max
		}
	case "boolean":
		fld.Kind = document.KindCheckboxes
		fld.Mode = document.ChecklistAll
		fld.Options = []document.SelectOption{{ID: "confirmed", Label: fld.Label}}
	case "array":
		return arrayField(fld, schema)
	case "object":
		// Deeply nested objects flatten poorly; surface as free text the
		// filler can structure.
		fld.Kind = document.KindString
	default:
		fld.Kind = document.KindString
	}
	return fld, nil
}

func arrayField(fld *document.Field, schema *openapi3.Schema) (*document.Field, error) {
	if schema.Items == nil || schema.Items.Value == nil {
		fld.Kind = document.KindStringList
		return fld, nil
	}
	items := schema.Items.Value
	if schema.MinItems != 0 {
		min := int(schema.MinItems)
		fld.MinItems = &min
	}
	if schema.MaxItems != nil {
		max := int(*schema.MaxItems)
		fld.MaxItems = &max
	}

	switch schemaType(items) {
	case "string":
		if len(items.Enum) > 0 {
			fld.Kind = document.KindMultiSelect
			fld.Options = optionsFrom(items.Enum)
			return fld, nil
		}
		if items.Format == "uri" || items.Format == "url" {
			fld.Kind = document.KindURLList
			return fld, nil
		}
		fld.Kind = document.KindStringList
		return fld, nil
	case "object":
		columns, ok := columnsFrom(items)
		if !ok {
			fld.Kind = document.KindStringList
			return fld, nil
		}
		fld.Kind = document.KindTable
		fld.Columns = columns
		if fld.MinItems != nil {
			fld.MinRows, fld.MinItems = fld.MinItems, nil
		}
		if fld.MaxItems != nil {
			fld.MaxRows, fld.MaxItems = fld.MaxItems, nil
		}
		return fld, nil
	default:
		fld.Kind = document.KindStringList
		return fld, nil
	}
}

// columnsFrom builds table columns when every item property maps to a
// scalar cell kind.
func columnsFrom(items *openapi3.Schema) ([]document.Column, bool) {
	required := make(map[string]bool, len(items.Required))
	for _, name := range items.Required {
		required[name] = true
	}
	var columns []document.Column
	for _, name := range sortedKeys(items.Properties) {
		propRef := items.Properties[name]
		if propRef == nil || propRef.Value == nil {
			return nil, false
		}
		var kind document.FieldKind
		switch schemaType(propRef.Value) {
		case "string":
			kind = stringKind(propRef.Value)
			if !kind.Scalar() {
				kind = document.KindString
			}
		case "integer", "number":
			kind = document.KindNumber
		default:
			return nil, false
		}
		columns = append(columns, document.Column{
			ID:       identifierFrom(name),
			Label:    labelFrom(name),
			Kind:     kind,
			Required: required[name],
		})
	}
	return columns, len(columns) > 0
}

func stringKind(schema *openapi3.Schema) document.FieldKind {
	if len(schema.Enum) > 0 {
		return document.KindSingleSelect
	}
	switch schema.Format {
	case "date":
		return document.KindDate
	case "uri", "url":
		return document.KindURL
	default:
		return document.KindString
	}
}

func optionsFrom(enum []any) []document.SelectOption {
	var options []document.SelectOption
	for _, raw := range enum {
		s, ok := raw.(string)
		if !ok {
			continue
		}
		id := identifierFrom(s)
		if id == "" {
			continue
		}
		options = append(options, document.SelectOption{ID: id, Label: labelFrom(s)})
	}
	return options
}

var identifierCleaner = strings.NewReplacer(" ", "_", "-", "_", ".", "_", "/", "_")

func identifierFrom(name string) string {
	cleaned := identifierCleaner.Replace(strings.TrimSpace(name))
	var sb strings.Builder
	for _, r := range cleaned {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		}
	}
	out := sb.String()
	if out == "" {
		return ""
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "f_" + out
	}
	return out
}

// labelFrom converts a property name into a display label: split on
// separators and camelCase boundaries, then title-case each word.
func labelFrom(name string) string {
	spaced := strings.NewReplacer("_", " ", "-", " ").Replace(name)
	var out strings.Builder
	prev := rune(0)
	for _, r := range spaced {
		if prev != 0 && prev >= 'a' && prev <= 'z' && r >= 'A' && r <= 'Z' {
			out.WriteRune(' ')
		}
		out.WriteRune(r)
		prev = r
	}
	words := strings.Fields(out.String())
	for i, word := range words {
		lower := strings.ToLower(word)
		words[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(words, " ")
}

// schemaType returns the single declared type of a schema, or "" when
// none is declared.
func schemaType(schema *openapi3.Schema) string {
	if schema.Type == nil {
		return ""
	}
	values := schema.Type.Slice()
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func sortedKeys(m openapi3.Schemas) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
