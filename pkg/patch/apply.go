package patch

import (
	"fmt"

	"github.com/goliatone/go-formdoc/pkg/document"
)

// Apply runs a batch against the document, best effort. Each patch is
// applied independently; the result reports which took effect (in
// normalized form), which were rejected and why, and any coercion
// warnings. The document is mutated in place.
func Apply(form *document.Form, patches []Patch) Result {
	result := Result{Status: StatusApplied}

	for i, p := range patches {
		normalized, warnings, err := applyOne(form, p)
		if err != nil {
			result.Rejected = append(result.Rejected, Rejection{Index: i, Reason: err.Error()})
			continue
		}
		result.Applied = append(result.Applied, normalized)
		result.Warnings = append(result.Warnings, warnings...)
	}

	switch {
	case len(result.Rejected) == 0:
		result.Status = StatusApplied
	case len(result.Applied) == 0:
		result.Status = StatusRejected
	default:
		result.Status = StatusPartial
	}
	return result
}

func applyOne(form *document.Form, p Patch) (Patch, []string, error) {
	if !p.Op.Valid() {
		return Patch{}, nil, fmt.Errorf("unknown operation %q", p.Op)
	}
	fld, ok := form.Field(p.Field)
	if !ok {
		return Patch{}, nil, fmt.Errorf("unknown field %q", p.Field)
	}

	switch p.Op {
	case OpSkipField:
		if fld.Required {
			return Patch{}, nil, fmt.Errorf("field %q is required and cannot be skipped", fld.ID)
		}
		form.SetResponse(fld.ID, document.Response{State: document.StateSkipped, Reason: p.Reason})
		return p, nil, nil
	case OpAbortField:
		form.SetResponse(fld.ID, document.Response{State: document.StateAborted, Reason: p.Reason})
		return p, nil, nil
	case OpClearField:
		form.SetResponse(fld.ID, document.Response{State: document.StateUnanswered})
		return p, nil, nil
	case OpAddNote:
		return applyAddNote(form, p)
	case OpRemoveNote:
		return applyRemoveNote(form, p)
	case OpSetTable:
		return applySetTable(form, fld, p)
	default:
		return applySet(form, fld, p)
	}
}

// applySet handles every set_* operation except set_table. The operation
// must match the field's kind; the value goes through the coercion layer
// before it is stored, and storing replaces the whole response record,
// so a previous skip reason disappears with it.
func applySet(form *document.Form, fld *document.Field, p Patch) (Patch, []string, error) {
	expected := ForKind(fld.Kind)
	if p.Op != expected {
		return Patch{}, nil, fmt.Errorf("operation %s does not apply to %s field %q (want %s)",
			p.Op, fld.Kind, fld.ID, expected)
	}
	if p.Value == nil {
		return Patch{}, nil, fmt.Errorf("operation %s on field %q carries no value", p.Op, fld.ID)
	}
	normalized, warnings, err := coerceValue(fld, p.Value)
	if err != nil {
		return Patch{}, nil, err
	}
	form.SetResponse(fld.ID, document.Response{State: document.StateAnswered, Value: normalized})
	p.Value = normalized
	return p, warnings, nil
}

// applySetTable replaces the full row set atomically; partial row
// updates are not supported. A nil cell value stores the cell as
// skipped, as does a row that omits the column entirely.
func applySetTable(form *document.Form, fld *document.Field, p Patch) (Patch, []string, error) {
	if fld.Kind != document.KindTable {
		return Patch{}, nil, fmt.Errorf("operation set_table does not apply to %s field %q", fld.Kind, fld.ID)
	}
	if p.Rows == nil {
		return Patch{}, nil, fmt.Errorf("set_table on field %q carries no rows", fld.ID)
	}

	var warnings []string
	rows := make([]document.Row, 0, len(p.Rows))
	for r, raw := range p.Rows {
		for key := range raw {
			if _, ok := fld.Column(key); !ok {
				return Patch{}, nil, fmt.Errorf("table %q has no column %q (row %d)", fld.ID, key, r)
			}
		}
		row := make(document.Row, len(fld.Columns))
		for c, col := range fld.Columns {
			value, present := raw[col.ID]
			if !present {
				row[c] = document.SkippedCell()
				continue
			}
			cell, cellWarnings, err := coerceCell(fld, col, value)
			if err != nil {
				return Patch{}, nil, fmt.Errorf("row %d: %w", r, err)
			}
			row[c] = cell
			warnings = append(warnings, cellWarnings...)
		}
		rows = append(rows, row)
	}
	form.SetResponse(fld.ID, document.Response{State: document.StateAnswered, Value: rows})
	return p, warnings, nil
}

func applyAddNote(form *document.Form, p Patch) (Patch, []string, error) {
	if p.Text == "" {
		return Patch{}, nil, fmt.Errorf("add_note on field %q carries no text", p.Field)
	}
	role := p.Role
	if role == "" {
		role = form.Config.DefaultRole
	}
	if role != form.Config.DefaultRole {
		if kind, ok := form.Index.Kind(role); !ok || kind != document.RefRole {
			return Patch{}, nil, fmt.Errorf("add_note on field %q attributed to undeclared role %q", p.Field, role)
		}
	}
	form.Notes = append(form.Notes, document.Note{Target: p.Field, Role: role, Text: p.Text})
	p.Role = role
	return p, nil, nil
}

// applyRemoveNote removes the n-th note attached to the field, counting
// only that field's notes in document order.
func applyRemoveNote(form *document.Form, p Patch) (Patch, []string, error) {
	if p.Index == nil {
		return Patch{}, nil, fmt.Errorf("remove_note on field %q carries no index", p.Field)
	}
	want := *p.Index
	if want < 0 {
		return Patch{}, nil, fmt.Errorf("remove_note on field %q: negative index %d", p.Field, want)
	}
	seen := 0
	for i, note := range form.Notes {
		if note.Target != p.Field {
			continue
		}
		if seen == want {
			form.Notes = append(form.Notes[:i], form.Notes[i+1:]...)
			return p, nil, nil
		}
		seen++
	}
	return Patch{}, nil, fmt.Errorf("remove_note on field %q: index %d out of range (%d notes)", p.Field, want, seen)
}
