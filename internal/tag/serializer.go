package tag

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-formdoc/pkg/document"
)

// Serializer renders a form back to tag-syntax text. Output is
// canonical: parsing serializer output and serializing again reproduces
// it byte for byte.
type Serializer struct {
	cfg    document.Config
	syntax document.Syntax
}

// NewSerializer constructs a serializer. An empty syntax falls back to
// the config's choice.
func NewSerializer(cfg document.Config, syntax document.Syntax) *Serializer {
	if syntax == "" {
		syntax = cfg.Syntax
	}
	return &Serializer{cfg: cfg, syntax: syntax}
}

// tagLine renders one tag in the selected flavor.
func (sz *Serializer) tagLine(content string) string {
	if sz.syntax == document.SyntaxComment {
		return "<!-- formdoc: " + content + " -->"
	}
	return ":::" + content
}

// Serialize renders the whole form.
func (sz *Serializer) Serialize(form *document.Form) (string, error) {
	if !sz.syntax.Valid() {
		return "", fmt.Errorf("tag serializer: unknown syntax %q", sz.syntax)
	}
	var out strings.Builder

	header := "form id=" + form.ID
	if form.Title != "" {
		header += " title=" + quoteAttr(form.Title)
	}
	out.WriteString(sz.tagLine(header) + "\n\n")

	for _, role := range form.Roles {
		out.WriteString(sz.tagLine("role id="+role.ID) + "\n")
		if role.Instructions != "" {
			writeFenced(&out, "instructions", role.Instructions)
		}
		out.WriteString("\n")
	}

	for _, grp := range form.Groups {
		if err := sz.writeGroup(&out, form, grp, true); err != nil {
			return "", err
		}
		out.WriteString("\n")
	}

	for _, doc := range form.Docs {
		out.WriteString(sz.tagLine(fmt.Sprintf("describe target=%s kind=%s", doc.Target, doc.Kind)) + "\n")
		writeFenced(&out, "text", doc.Body)
		out.WriteString("\n")
	}

	for _, note := range form.Notes {
		out.WriteString(sz.tagLine(fmt.Sprintf("note target=%s role=%s", note.Target, note.Role)) + "\n")
		writeFenced(&out, "text", note.Text)
		out.WriteString("\n")
	}

	out.WriteString(sz.tagLine("endform") + "\n")
	return out.String(), nil
}

func (sz *Serializer) writeGroup(out *strings.Builder, form *document.Form, grp document.Group, top bool) error {
	if !grp.Implicit {
		header := "group id=" + grp.ID
		if grp.Title != "" {
			header += " title=" + quoteAttr(grp.Title)
		}
		out.WriteString(sz.tagLine(header) + "\n")
	}
	for _, id := range grp.FieldIDs {
		fld, ok := form.Field(id)
		if !ok {
			return fmt.Errorf("tag serializer: group references unknown field %q", id)
		}
		if err := sz.writeField(out, form, fld); err != nil {
			return err
		}
	}
	for _, child := range grp.Children {
		if err := sz.writeGroup(out, form, child, false); err != nil {
			return err
		}
	}
	if !grp.Implicit {
		out.WriteString(sz.tagLine("endgroup") + "\n")
	}
	return nil
}

func (sz *Serializer) writeField(out *strings.Builder, form *document.Form, fld *document.Field) error {
	attrs, err := sz.fieldAttrs(fld)
	if err != nil {
		return err
	}

	resp := form.Response(fld.ID)
	var block func() error

	switch resp.State {
	case document.StateUnanswered:
		// No payload.
	case document.StateSkipped, document.StateAborted:
		if resp.Reason == "" {
			attrs += " state=" + string(resp.State)
		} else if strings.Contains(resp.Reason, "\n") {
			body := renderSentinel(resp.State, resp.Reason, sz.cfg)
			block = func() error { writeFenced(out, "value", body); return nil }
		} else {
			attrs += " value=" + quoteAttr(renderSentinel(resp.State, resp.Reason, sz.cfg))
		}
	case document.StateAnswered:
		inline, fenced, rows, err := sz.renderValue(fld, resp.Value)
		if err != nil {
			return err
		}
		switch {
		case rows != nil:
			block = func() error { return renderRows(fld, rows, sz.cfg, out, sz.tagLine) }
		case fenced != nil:
			block = func() error { writeFenced(out, "value", *fenced); return nil }
		default:
			attrs += " value=" + quoteAttr(inline)
		}
	default:
		return fmt.Errorf("tag serializer: field %q has invalid state %q", fld.ID, resp.State)
	}

	out.WriteString(sz.tagLine("field "+attrs) + "\n")
	if block != nil {
		if err := block(); err != nil {
			return err
		}
	}
	return nil
}

// renderValue picks the payload form for an answered value: an inline
// attribute, a fenced block, or table rows.
func (sz *Serializer) renderValue(fld *document.Field, value any) (inline string, fenced *string, rows []document.Row, err error) {
	switch fld.Kind {
	case document.KindString, document.KindDate, document.KindURL,
		document.KindNumber, document.KindYear, document.KindSingleSelect:
		text, err := formatScalar(fld.Kind, value)
		if err != nil {
			return "", nil, nil, fmt.Errorf("field %q: %w", fld.ID, err)
		}
		text = escapeSentinelValue(text, sz.cfg)
		if strings.Contains(text, "\n") {
			return "", &text, nil, nil
		}
		return text, nil, nil, nil
	case document.KindStringList, document.KindURLList, document.KindMultiSelect:
		items, ok := value.([]string)
		if !ok {
			return "", nil, nil, fmt.Errorf("tag serializer: field %q: expected []string, got %T", fld.ID, value)
		}
		for _, item := range items {
			if strings.Contains(item, "\n") {
				return "", nil, nil, fmt.Errorf("tag serializer: field %q: list item contains a newline", fld.ID)
			}
		}
		body := escapeSentinelValue(strings.Join(items, "\n"), sz.cfg)
		return "", &body, nil, nil
	case document.KindCheckboxes:
		states, ok := value.(map[string]string)
		if !ok {
			return "", nil, nil, fmt.Errorf("tag serializer: field %q: expected map[string]string, got %T", fld.ID, value)
		}
		lines := make([]string, 0, len(fld.Options))
		for _, opt := range fld.Options {
			state, ok := states[opt.ID]
			if !ok {
				_, state = fld.CheckPair()
				if fld.Mode == document.ChecklistExplicit {
					state = document.CheckUnanswered
				}
			}
			lines = append(lines, opt.ID+": "+state)
		}
		body := escapeSentinelValue(strings.Join(lines, "\n"), sz.cfg)
		return "", &body, nil, nil
	case document.KindTable:
		tableRows, ok := value.([]document.Row)
		if !ok {
			return "", nil, nil, fmt.Errorf("tag serializer: field %q: expected []document.Row, got %T", fld.ID, value)
		}
		return "", nil, tableRows, nil
	}
	return "", nil, nil, fmt.Errorf("tag serializer: field %q: unhandled kind %q", fld.ID, fld.Kind)
}

// fieldAttrs renders the declaration attributes in canonical order.
func (sz *Serializer) fieldAttrs(fld *document.Field) (string, error) {
	var parts []string
	add := func(s string) { parts = append(parts, s) }

	add("id=" + fld.ID)
	add("kind=" + string(fld.Kind))
	if fld.Label != "" {
		if strings.Contains(fld.Label, "\n") {
			return "", fmt.Errorf("tag serializer: field %q: label contains a newline", fld.ID)
		}
		add("label=" + quoteAttr(fld.Label))
	}
	if fld.Required {
		add("required")
	}
	if fld.Priority != 0 {
		add(fmt.Sprintf("priority=%d", fld.Priority))
	}
	if fld.Role != "" && fld.Role != sz.cfg.DefaultRole {
		add("role=" + fld.Role)
	}
	if len(fld.Validators) > 0 {
		add("validate=" + quoteAttr(strings.Join(fld.Validators, ",")))
	}
	if fld.Report {
		add("report")
	}

	switch fld.Kind {
	case document.KindNumber:
		if fld.Min != nil {
			min, _ := formatScalar(document.KindNumber, *fld.Min)
			add("min=" + min)
		}
		if fld.Max != nil {
			max, _ := formatScalar(document.KindNumber, *fld.Max)
			add("max=" + max)
		}
	case document.KindYear:
		if fld.MinYear != nil {
			add(fmt.Sprintf("min=%d", *fld.MinYear))
		}
		if fld.MaxYear != nil {
			add(fmt.Sprintf("max=%d", *fld.MaxYear))
		}
	case document.KindDate:
		if fld.MinDate != "" {
			add("min=" + fld.MinDate)
		}
		if fld.MaxDate != "" {
			add("max=" + fld.MaxDate)
		}
	case document.KindStringList, document.KindURLList:
		if fld.MinItems != nil {
			add(fmt.Sprintf("min_items=%d", *fld.MinItems))
		}
		if fld.MaxItems != nil {
			add(fmt.Sprintf("max_items=%d", *fld.MaxItems))
		}
	case document.KindSingleSelect, document.KindMultiSelect:
		opts, err := renderOptions(fld)
		if err != nil {
			return "", err
		}
		add("options=" + opts)
	case document.KindCheckboxes:
		opts, err := renderOptions(fld)
		if err != nil {
			return "", err
		}
		add("options=" + opts)
		add("mode=" + string(fld.Mode))
		if fld.MinChecked != nil {
			add(fmt.Sprintf("min_checked=%d", *fld.MinChecked))
		}
		if fld.Checkpoint {
			add("checkpoint")
		}
	case document.KindTable:
		cols, err := renderColumns(fld)
		if err != nil {
			return "", err
		}
		add("columns=" + cols)
		if fld.MinRows != nil {
			add(fmt.Sprintf("min_rows=%d", *fld.MinRows))
		}
		if fld.MaxRows != nil {
			add(fmt.Sprintf("max_rows=%d", *fld.MaxRows))
		}
	}
	return strings.Join(parts, " "), nil
}

func renderOptions(fld *document.Field) (string, error) {
	parts := make([]string, 0, len(fld.Options))
	for _, opt := range fld.Options {
		if strings.ContainsAny(opt.Label, ":|\n") {
			return "", fmt.Errorf("tag serializer: field %q: option label %q contains a reserved character", fld.ID, opt.Label)
		}
		if opt.Label == "" {
			parts = append(parts, opt.ID)
		} else {
			parts = append(parts, opt.ID+":"+opt.Label)
		}
	}
	return quoteAttr(strings.Join(parts, "|")), nil
}

// renderColumns always declares labels, falling back to the column
// identifier, so a reparsed document never depends on header back-fill.
func renderColumns(fld *document.Field) (string, error) {
	parts := make([]string, 0, len(fld.Columns))
	for _, col := range fld.Columns {
		label := col.Label
		if label == "" {
			label = col.ID
		}
		if strings.ContainsAny(label, ":|\n") {
			return "", fmt.Errorf("tag serializer: field %q: column label %q contains a reserved character", fld.ID, label)
		}
		part := col.ID + ":" + label + ":" + string(col.Kind)
		if col.Required {
			part += ":required"
		}
		parts = append(parts, part)
	}
	return quoteAttr(strings.Join(parts, "|")), nil
}

func writeFenced(out *strings.Builder, info, body string) {
	fence := fenceFor(body)
	out.WriteString(fence + info + "\n")
	if body != "" {
		out.WriteString(body + "\n")
	}
	out.WriteString(fence + "\n")
}
