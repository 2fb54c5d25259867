package tag

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-formdoc/pkg/document"
)

// parseFieldAttrs turns the attribute set of a :::field line into a
// field definition. Kind-specific attributes are consumed per kind so
// anything left over is reported as unknown.
func parseFieldAttrs(a *attrs, cfg document.Config, line int) (*document.Field, error) {
	id, err := a.require("id")
	if err != nil {
		return nil, parseErrf(line, "field: %v", err)
	}
	kindRaw, err := a.require("kind")
	if err != nil {
		return nil, parseErrf(line, "field %q: %v", id, err)
	}
	kind := document.FieldKind(kindRaw)
	if !kind.Valid() {
		return nil, parseErrf(line, "field %q: unknown kind %q", id, kindRaw)
	}

	fld := &document.Field{
		ID:       id,
		Kind:     kind,
		Required: a.flag("required"),
		Report:   a.flag("report"),
	}
	if label, ok := a.get("label"); ok {
		fld.Label = label
	}
	if role, ok := a.get("role"); ok {
		if strings.Contains(role, ",") {
			return nil, parseErrf(line, "field %q: a field is owned by exactly one role, got %q", id, role)
		}
		fld.Role = role
	} else {
		fld.Role = cfg.DefaultRole
	}
	priority, err := a.intValue("priority")
	if err != nil {
		return nil, parseErrf(line, "field %q: %v", id, err)
	}
	if priority != nil {
		fld.Priority = *priority
	}
	if validate, ok := a.get("validate"); ok {
		for _, part := range strings.Split(validate, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				fld.Validators = append(fld.Validators, part)
			}
		}
	}

	if err := parseKindAttrs(fld, a, line); err != nil {
		return nil, err
	}

	if leftover := a.unknown(); len(leftover) > 0 {
		return nil, parseErrf(line, "field %q: unknown attributes for kind %s: %s",
			id, kind, strings.Join(leftover, ", "))
	}
	return fld, nil
}

func parseKindAttrs(fld *document.Field, a *attrs, line int) error {
	switch fld.Kind {
	case document.KindString, document.KindURL:
		// No kind-specific attributes.
		return nil
	case document.KindNumber:
		var err error
		if fld.Min, err = a.floatValue("min"); err != nil {
			return parseErrf(line, "field %q: %v", fld.ID, err)
		}
		if fld.Max, err = a.floatValue("max"); err != nil {
			return parseErrf(line, "field %q: %v", fld.ID, err)
		}
		return nil
	case document.KindYear:
		var err error
		if fld.MinYear, err = a.intValue("min"); err != nil {
			return parseErrf(line, "field %q: %v", fld.ID, err)
		}
		if fld.MaxYear, err = a.intValue("max"); err != nil {
			return parseErrf(line, "field %q: %v", fld.ID, err)
		}
		return nil
	case document.KindDate:
		fld.MinDate, _ = a.get("min")
		fld.MaxDate, _ = a.get("max")
		return nil
	case document.KindStringList, document.KindURLList:
		var err error
		if fld.MinItems, err = a.intValue("min_items"); err != nil {
			return parseErrf(line, "field %q: %v", fld.ID, err)
		}
		if fld.MaxItems, err = a.intValue("max_items"); err != nil {
			return parseErrf(line, "field %q: %v", fld.ID, err)
		}
		return nil
	case document.KindSingleSelect, document.KindMultiSelect:
		return parseOptionsAttr(fld, a, line)
	case document.KindCheckboxes:
		if err := parseOptionsAttr(fld, a, line); err != nil {
			return err
		}
		fld.Mode = document.ChecklistAll
		if mode, ok := a.get("mode"); ok {
			fld.Mode = document.ChecklistMode(mode)
			if !fld.Mode.Valid() {
				return parseErrf(line, "field %q: unknown checklist mode %q", fld.ID, mode)
			}
		}
		var err error
		if fld.MinChecked, err = a.intValue("min_checked"); err != nil {
			return parseErrf(line, "field %q: %v", fld.ID, err)
		}
		fld.Checkpoint = a.flag("checkpoint")
		return nil
	case document.KindTable:
		if err := parseColumnsAttr(fld, a, line); err != nil {
			return err
		}
		var err error
		if fld.MinRows, err = a.intValue("min_rows"); err != nil {
			return parseErrf(line, "field %q: %v", fld.ID, err)
		}
		if fld.MaxRows, err = a.intValue("max_rows"); err != nil {
			return parseErrf(line, "field %q: %v", fld.ID, err)
		}
		return nil
	}
	return parseErrf(line, "field %q: unhandled kind %q", fld.ID, fld.Kind)
}

// parseOptionsAttr reads options="id:Label|id2:Label 2" (labels
// optional). Option identifiers must be unique within the field.
func parseOptionsAttr(fld *document.Field, a *attrs, line int) error {
	raw, err := a.require("options")
	if err != nil {
		return parseErrf(line, "field %q: %v", fld.ID, err)
	}
	seen := make(map[string]bool)
	for _, part := range strings.Split(raw, "|") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, label, _ := strings.Cut(part, ":")
		id = strings.TrimSpace(id)
		label = strings.TrimSpace(label)
		if !document.ValidIdentifier(id) {
			return parseErrf(line, "field %q: invalid option identifier %q", fld.ID, id)
		}
		if seen[id] {
			return parseErrf(line, "field %q: duplicate option %q", fld.ID, id)
		}
		seen[id] = true
		fld.Options = append(fld.Options, document.SelectOption{ID: id, Label: label})
	}
	if len(fld.Options) == 0 {
		return parseErrf(line, "field %q: options attribute declares no options", fld.ID)
	}
	return nil
}

// parseColumnsAttr reads columns="id:Label:kind" or
// columns="id:Label:kind:required", pipe-separated. An empty label slot
// means the label was not declared.
func parseColumnsAttr(fld *document.Field, a *attrs, line int) error {
	raw, err := a.require("columns")
	if err != nil {
		return parseErrf(line, "field %q: %v", fld.ID, err)
	}
	seen := make(map[string]bool)
	for _, part := range splitEscaped(raw, '|') {
		if strings.TrimSpace(part) == "" {
			continue
		}
		segs := strings.Split(part, ":")
		if len(segs) < 3 || len(segs) > 4 {
			return parseErrf(line, "field %q: column %q must be id:Label:kind[:required]", fld.ID, part)
		}
		col := document.Column{
			ID:    strings.TrimSpace(segs[0]),
			Label: strings.TrimSpace(segs[1]),
			Kind:  document.FieldKind(strings.TrimSpace(segs[2])),
		}
		if len(segs) == 4 {
			if strings.TrimSpace(segs[3]) != "required" {
				return parseErrf(line, "field %q: column %q: expected required, got %q", fld.ID, col.ID, segs[3])
			}
			col.Required = true
		}
		if !document.ValidIdentifier(col.ID) {
			return parseErrf(line, "field %q: invalid column identifier %q", fld.ID, col.ID)
		}
		if !col.Kind.Scalar() {
			return parseErrf(line, "field %q: column %q: kind %q is not a scalar cell type", fld.ID, col.ID, col.Kind)
		}
		if seen[col.ID] {
			return parseErrf(line, "field %q: duplicate column %q", fld.ID, col.ID)
		}
		seen[col.ID] = true
		fld.Columns = append(fld.Columns, col)
	}
	if len(fld.Columns) == 0 {
		return parseErrf(line, "field %q: columns attribute declares no columns", fld.ID)
	}
	return nil
}

// payloadToResponse converts a raw value payload to a response,
// recognizing sentinels first. A sentinel on a required field is fatal.
func payloadToResponse(fld *document.Field, payload string, cfg document.Config, line int) (document.Response, error) {
	if literal, ok := unescapeSentinelValue(payload, cfg); ok {
		value, err := parseScalarPayload(fld.ID, fld.Kind, literal, line)
		if err != nil {
			return document.Response{}, err
		}
		return document.Response{State: document.StateAnswered, Value: value}, nil
	}
	if sent, ok, err := parseSentinel(payload, cfg); err != nil {
		return document.Response{}, parseErrf(line, "field %q: %v", fld.ID, err)
	} else if ok {
		if fld.Required && sent.state == document.StateSkipped {
			return document.Response{}, parseErrf(line, "field %q is required and cannot be skipped", fld.ID)
		}
		return document.Response{State: sent.state, Reason: sent.reason}, nil
	}

	value, err := parseScalarPayload(fld.ID, fld.Kind, payload, line)
	if err != nil {
		return document.Response{}, err
	}
	return document.Response{State: document.StateAnswered, Value: value}, nil
}

// parseScalarPayload types a payload for the scalar and single-select
// kinds. Numeric payloads that fail to parse are kept as raw strings so
// the validator can surface them as issues rather than killing the
// document.
func parseScalarPayload(fieldID string, kind document.FieldKind, payload string, line int) (any, error) {
	switch kind {
	case document.KindString, document.KindDate, document.KindURL, document.KindSingleSelect:
		return payload, nil
	case document.KindNumber:
		if n, err := strconv.ParseFloat(strings.TrimSpace(payload), 64); err == nil {
			return n, nil
		}
		return payload, nil
	case document.KindYear:
		if n, err := strconv.Atoi(strings.TrimSpace(payload)); err == nil {
			return n, nil
		}
		return payload, nil
	default:
		return nil, parseErrf(line, "field %q: kind %s does not take an inline value", fieldID, kind)
	}
}

// linesToResponse types a fenced payload body for the multi-line kinds.
func linesToResponse(fld *document.Field, body string, cfg document.Config, line int) (document.Response, error) {
	if literal, ok := unescapeSentinelValue(body, cfg); ok {
		body = literal
	} else if sent, ok, err := parseSentinel(body, cfg); err != nil {
		return document.Response{}, parseErrf(line, "field %q: %v", fld.ID, err)
	} else if ok {
		if fld.Required && sent.state == document.StateSkipped {
			return document.Response{}, parseErrf(line, "field %q is required and cannot be skipped", fld.ID)
		}
		return document.Response{State: sent.state, Reason: sent.reason}, nil
	}

	switch fld.Kind {
	case document.KindString, document.KindDate, document.KindURL,
		document.KindNumber, document.KindYear, document.KindSingleSelect:
		value, err := parseScalarPayload(fld.ID, fld.Kind, body, line)
		if err != nil {
			return document.Response{}, err
		}
		return document.Response{State: document.StateAnswered, Value: value}, nil
	case document.KindStringList, document.KindURLList:
		items := []string{}
		if body != "" {
			items = strings.Split(body, "\n")
		}
		return document.Response{State: document.StateAnswered, Value: items}, nil
	case document.KindMultiSelect:
		items := []string{}
		for _, raw := range strings.Split(body, "\n") {
			raw = strings.TrimSpace(raw)
			if raw != "" {
				items = append(items, raw)
			}
		}
		return document.Response{State: document.StateAnswered, Value: items}, nil
	case document.KindCheckboxes:
		return checklistResponse(fld, body, line)
	default:
		return document.Response{}, parseErrf(line, "field %q: kind %s does not take a fenced value", fld.ID, fld.Kind)
	}
}

// checklistResponse parses `option: state` lines. Unlisted options get
// the not-done token of the field's vocabulary, or the unanswered marker
// in explicit mode.
func checklistResponse(fld *document.Field, body string, line int) (document.Response, error) {
	states := make(map[string]string, len(fld.Options))
	_, notDone := fld.CheckPair()
	fill := notDone
	if fld.Mode == document.ChecklistExplicit {
		fill = document.CheckUnanswered
	}
	for _, opt := range fld.Options {
		states[opt.ID] = fill
	}

	allowed := make(map[string]bool)
	for _, state := range fld.CheckStates() {
		allowed[state] = true
	}

	for _, raw := range strings.Split(body, "\n") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, state, found := strings.Cut(raw, ":")
		if !found {
			return document.Response{}, parseErrf(line, "field %q: checklist entry %q must be option: state", fld.ID, raw)
		}
		id = strings.TrimSpace(id)
		state = strings.TrimSpace(state)
		if _, ok := fld.Option(id); !ok {
			return document.Response{}, parseErrf(line, "field %q: unknown checklist option %q", fld.ID, id)
		}
		if !allowed[state] {
			return document.Response{}, parseErrf(line, "field %q: option %q: state %q not in vocabulary %s",
				fld.ID, id, state, strings.Join(fld.CheckStates(), "/"))
		}
		states[id] = state
	}
	return document.Response{State: document.StateAnswered, Value: states}, nil
}

func splitEscaped(s string, sep byte) []string {
	var parts []string
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && s[i+1] == sep {
			sb.WriteByte(sep)
			i++
			continue
		}
		if s[i] == sep {
			parts = append(parts, sb.String())
			sb.Reset()
			continue
		}
		sb.WriteByte(s[i])
	}
	parts = append(parts, sb.String())
	return parts
}

func formatScalar(kind document.FieldKind, value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(v), nil
	default:
		return "", fmt.Errorf("tag serializer: cannot render %T as %s", value, kind)
	}
}
