// Package validate implements the per-kind structural checks that feed
// the issue inspector. Findings here are the expected steady state of a
// half-filled document, never fatal.
package validate

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-formdoc/pkg/document"
	"github.com/goliatone/go-formdoc/pkg/ref"
)

// FindingKind classifies why a field was flagged; the inspector maps it
// to an issue severity.
type FindingKind string

const (
	// MissingRequired is a required field with no resolved response.
	MissingRequired FindingKind = "missing_required"
	// MissingOptional is an optional field still unanswered.
	MissingOptional FindingKind = "missing_optional"
	// Invalid is an answered value that fails its kind's rules.
	Invalid FindingKind = "invalid"
	// Incomplete is a checklist that has not met its completion
	// predicate.
	Incomplete FindingKind = "incomplete"
)

// Finding is one validator observation about a field or cell.
type Finding struct {
	FieldID string
	// Ref addresses the finding: the field id, or a cell reference for
	// per-cell table findings.
	Ref     string
	Kind    FindingKind
	Message string
}

const dateLayout = "2006-01-02"

// Form runs every check over the document in field order.
func Form(form *document.Form) []Finding {
	var findings []Finding
	for _, id := range form.Order {
		fld := form.Fields[id]
		findings = append(findings, Field(form, fld)...)
	}
	return findings
}

// Field validates a single field's current response.
func Field(form *document.Form, fld *document.Field) []Finding {
	resp := form.Response(fld.ID)

	switch resp.State {
	case document.StateSkipped, document.StateAborted:
		// Deliberately resolved; nothing to report.
		return nil
	case document.StateUnanswered:
		if fld.Kind == document.KindCheckboxes {
			// An untouched checklist reports through its completion
			// predicate so checkpoint messaging stays uniform.
			return checklistFindings(fld, resp)
		}
		if fld.Required {
			return []Finding{{
				FieldID: fld.ID, Ref: fld.ID, Kind: MissingRequired,
				Message: fmt.Sprintf("required field %q is unanswered", fld.ID),
			}}
		}
		return []Finding{{
			FieldID: fld.ID, Ref: fld.ID, Kind: MissingOptional,
			Message: fmt.Sprintf("optional field %q is unanswered", fld.ID),
		}}
	}

	findings := answeredFindings(form, fld, resp)
	findings = append(findings, validatorRefFindings(form, fld)...)
	return findings
}

func answeredFindings(form *document.Form, fld *document.Field, resp *document.Response) []Finding {
	invalid := func(format string, args ...any) []Finding {
		return []Finding{{
			FieldID: fld.ID, Ref: fld.ID, Kind: Invalid,
			Message: fmt.Sprintf("field %q: ", fld.ID) + fmt.Sprintf(format, args...),
		}}
	}

	switch fld.Kind {
	case document.KindString:
		if _, ok := resp.Value.(string); !ok {
			return invalid("expected text, got %T", resp.Value)
		}
		return nil
	case document.KindNumber:
		n, ok := resp.Value.(float64)
		if !ok {
			return invalid("value %v is not a number", resp.Value)
		}
		if fld.Min != nil && n < *fld.Min {
			return invalid("%v is below the minimum %v", n, *fld.Min)
		}
		if fld.Max != nil && n > *fld.Max {
			return invalid("%v is above the maximum %v", n, *fld.Max)
		}
		return nil
	case document.KindYear:
		y, ok := resp.Value.(int)
		if !ok {
			return invalid("value %v is not a year", resp.Value)
		}
		if fld.MinYear != nil && y < *fld.MinYear {
			return invalid("year %d is before %d", y, *fld.MinYear)
		}
		if fld.MaxYear != nil && y > *fld.MaxYear {
			return invalid("year %d is after %d", y, *fld.MaxYear)
		}
		return nil
	case document.KindDate:
		s, ok := resp.Value.(string)
		if !ok {
			return invalid("expected an ISO date, got %T", resp.Value)
		}
		day, err := time.Parse(dateLayout, s)
		if err != nil {
			return invalid("%q is not a valid ISO date", s)
		}
		if fld.MinDate != "" {
			if min, err := time.Parse(dateLayout, fld.MinDate); err == nil && day.Before(min) {
				return invalid("date %s is before %s", s, fld.MinDate)
			}
		}
		if fld.MaxDate != "" {
			if max, err := time.Parse(dateLayout, fld.MaxDate); err == nil && day.After(max) {
				return invalid("date %s is after %s", s, fld.MaxDate)
			}
		}
		return nil
	case document.KindURL:
		s, ok := resp.Value.(string)
		if !ok {
			return invalid("expected a URL, got %T", resp.Value)
		}
		if msg := checkURL(s); msg != "" {
			return invalid("%s", msg)
		}
		return nil
	case document.KindStringList:
		items, ok := resp.Value.([]string)
		if !ok {
			return invalid("expected a list, got %T", resp.Value)
		}
		return lengthFindings(fld, len(items))
	case document.KindURLList:
		items, ok := resp.Value.([]string)
		if !ok {
			return invalid("expected a list, got %T", resp.Value)
		}
		var findings []Finding
		for i, item := range items {
			if msg := checkURL(item); msg != "" {
				findings = append(findings, Finding{
					FieldID: fld.ID, Ref: fld.ID, Kind: Invalid,
					Message: fmt.Sprintf("field %q: item %d: %s", fld.ID, i, msg),
				})
			}
		}
		return append(findings, lengthFindings(fld, len(items))...)
	case document.KindSingleSelect:
		s, ok := resp.Value.(string)
		if !ok {
			return invalid("expected an option identifier, got %T", resp.Value)
		}
		if _, ok := fld.Option(s); !ok {
			return invalid("%q is not a declared option (valid: %s)", s, strings.Join(fld.OptionIDs(), ", "))
		}
		return nil
	case document.KindMultiSelect:
		items, ok := resp.Value.([]string)
		if !ok {
			return invalid("expected option identifiers, got %T", resp.Value)
		}
		var findings []Finding
		seen := make(map[string]bool)
		for _, item := range items {
			if _, ok := fld.Option(item); !ok {
				findings = append(findings, Finding{
					FieldID: fld.ID, Ref: fld.ID, Kind: Invalid,
					Message: fmt.Sprintf("field %q: %q is not a declared option (valid: %s)",
						fld.ID, item, strings.Join(fld.OptionIDs(), ", ")),
				})
			}
			if seen[item] {
				findings = append(findings, Finding{
					FieldID: fld.ID, Ref: fld.ID, Kind: Invalid,
					Message: fmt.Sprintf("field %q: option %q selected twice", fld.ID, item),
				})
			}
			seen[item] = true
		}
		return findings
	case document.KindCheckboxes:
		return checklistFindings(fld, resp)
	case document.KindTable:
		return tableFindings(fld, resp)
	}
	return invalid("unhandled kind %q", fld.Kind)
}

func lengthFindings(fld *document.Field, n int) []Finding {
	if fld.MinItems != nil && n < *fld.MinItems {
		return []Finding{{
			FieldID: fld.ID, Ref: fld.ID, Kind: Invalid,
			Message: fmt.Sprintf("field %q: %d items, minimum is %d", fld.ID, n, *fld.MinItems),
		}}
	}
	if fld.MaxItems != nil && n > *fld.MaxItems {
		return []Finding{{
			FieldID: fld.ID, Ref: fld.ID, Kind: Invalid,
			Message: fmt.Sprintf("field %q: %d items, maximum is %d", fld.ID, n, *fld.MaxItems),
		}}
	}
	return nil
}

func checkURL(s string) string {
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Sprintf("%q is not a well-formed URL", s)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Sprintf("%q must use http or https", s)
	}
	if u.Host == "" {
		return fmt.Sprintf("%q has no host", s)
	}
	return ""
}

// ChecklistComplete evaluates the completion predicate of a checkboxes
// field. An explicit minimum-count override takes precedence over the
// mode's default predicate.
func ChecklistComplete(fld *document.Field, resp *document.Response) bool {
	states, _ := checklistStates(fld, resp)
	done, _ := fld.CheckPair()

	checked := 0
	for _, state := range states {
		if state == done {
			checked++
		}
	}
	if fld.MinChecked != nil {
		return checked >= *fld.MinChecked
	}
	switch fld.Mode {
	case document.ChecklistAll:
		return checked == len(fld.Options)
	case document.ChecklistAny:
		return checked >= 1
	case document.ChecklistExplicit:
		for _, state := range states {
			if state == document.CheckUnanswered {
				return false
			}
		}
		return true
	}
	return false
}

// checklistStates materializes the full option-state map, defaulting
// untouched options to the mode's marker state.
func checklistStates(fld *document.Field, resp *document.Response) (map[string]string, bool) {
	fill := document.CheckTodo
	if fld.Mode == document.ChecklistExplicit {
		fill = document.CheckUnanswered
	}
	states := make(map[string]string, len(fld.Options))
	for _, opt := range fld.Options {
		states[opt.ID] = fill
	}
	answered, ok := resp.Value.(map[string]string)
	if resp.State != document.StateAnswered || !ok {
		return states, false
	}
	for id, state := range answered {
		states[id] = state
	}
	return states, true
}

func checklistFindings(fld *document.Field, resp *document.Response) []Finding {
	if resp.State == document.StateAnswered {
		if _, ok := resp.Value.(map[string]string); !ok {
			return []Finding{{
				FieldID: fld.ID, Ref: fld.ID, Kind: Invalid,
				Message: fmt.Sprintf("field %q: expected checklist states, got %T", fld.ID, resp.Value),
			}}
		}
	}
	if ChecklistComplete(fld, resp) {
		return nil
	}
	var predicate string
	switch {
	case fld.MinChecked != nil:
		predicate = fmt.Sprintf("needs at least %d checked", *fld.MinChecked)
	case fld.Mode == document.ChecklistAll:
		predicate = "every option must be checked"
	case fld.Mode == document.ChecklistAny:
		predicate = "needs at least one checked option"
	default:
		predicate = "every option must be explicitly answered"
	}
	return []Finding{{
		FieldID: fld.ID, Ref: fld.ID, Kind: Incomplete,
		Message: fmt.Sprintf("checklist %q is incomplete: %s", fld.ID, predicate),
	}}
}

func tableFindings(fld *document.Field, resp *document.Response) []Finding {
	rows, ok := resp.Value.([]document.Row)
	if !ok {
		return []Finding{{
			FieldID: fld.ID, Ref: fld.ID, Kind: Invalid,
			Message: fmt.Sprintf("field %q: expected table rows, got %T", fld.ID, resp.Value),
		}}
	}

	var findings []Finding
	if fld.MinRows != nil && len(rows) < *fld.MinRows {
		findings = append(findings, Finding{
			FieldID: fld.ID, Ref: fld.ID, Kind: Invalid,
			Message: fmt.Sprintf("table %q has %d rows, minimum is %d", fld.ID, len(rows), *fld.MinRows),
		})
	}
	if fld.MaxRows != nil && len(rows) > *fld.MaxRows {
		findings = append(findings, Finding{
			FieldID: fld.ID, Ref: fld.ID, Kind: Invalid,
			Message: fmt.Sprintf("table %q has %d rows, maximum is %d", fld.ID, len(rows), *fld.MaxRows),
		})
	}

	for r, row := range rows {
		if len(row) != len(fld.Columns) {
			findings = append(findings, Finding{
				FieldID: fld.ID, Ref: fld.ID, Kind: Invalid,
				Message: fmt.Sprintf("table %q row %d has %d cells for %d columns", fld.ID, r, len(row), len(fld.Columns)),
			})
			continue
		}
		for c, cell := range row {
			col := fld.Columns[c]
			cellRef := fmt.Sprintf("%s.%s[%d]", fld.ID, col.ID, r)
			switch cell.State {
			case document.StateSkipped, document.StateAborted:
				if col.Required && cell.State == document.StateSkipped {
					findings = append(findings, Finding{
						FieldID: fld.ID, Ref: cellRef, Kind: Invalid,
						Message: fmt.Sprintf("cell %s: column %q is required and cannot be skipped", cellRef, col.ID),
					})
				}
			case document.StateAnswered:
				if msg := cellValueProblem(col, cell.Value); msg != "" {
					findings = append(findings, Finding{
						FieldID: fld.ID, Ref: cellRef, Kind: Invalid,
						Message: fmt.Sprintf("cell %s: %s", cellRef, msg),
					})
				}
			default:
				findings = append(findings, Finding{
					FieldID: fld.ID, Ref: cellRef, Kind: Invalid,
					Message: fmt.Sprintf("cell %s: cells cannot be unanswered", cellRef),
				})
			}
		}
	}
	return findings
}

func cellValueProblem(col document.Column, value any) string {
	switch col.Kind {
	case document.KindString:
		if _, ok := value.(string); !ok {
			return fmt.Sprintf("expected text, got %T", value)
		}
	case document.KindNumber:
		if _, ok := value.(float64); !ok {
			return fmt.Sprintf("value %v is not a number", value)
		}
	case document.KindYear:
		if _, ok := value.(int); !ok {
			return fmt.Sprintf("value %v is not a year", value)
		}
	case document.KindDate:
		s, ok := value.(string)
		if !ok {
			return fmt.Sprintf("expected an ISO date, got %T", value)
		}
		if _, err := time.Parse(dateLayout, s); err != nil {
			return fmt.Sprintf("%q is not a valid ISO date", s)
		}
	case document.KindURL:
		s, ok := value.(string)
		if !ok {
			return fmt.Sprintf("expected a URL, got %T", value)
		}
		return checkURL(s)
	default:
		return fmt.Sprintf("column kind %q is not a scalar cell type", col.Kind)
	}
	return ""
}

// validatorRefFindings checks a field's declared validation references:
// once the field is answered, every referenced target must itself be
// satisfied.
func validatorRefFindings(form *document.Form, fld *document.Field) []Finding {
	var findings []Finding
	for _, validator := range fld.Validators {
		target, err := ref.ParseResolve(validator, form, form.RowCounts())
		if err != nil {
			findings = append(findings, Finding{
				FieldID: fld.ID, Ref: fld.ID, Kind: Invalid,
				Message: fmt.Sprintf("field %q: validation reference %q: %v", fld.ID, validator, err),
			})
			continue
		}
		if msg := targetUnsatisfied(form, target); msg != "" {
			findings = append(findings, Finding{
				FieldID: fld.ID, Ref: fld.ID, Kind: Invalid,
				Message: fmt.Sprintf("field %q: validation reference %q: %s", fld.ID, validator, msg),
			})
		}
	}
	return findings
}

func targetUnsatisfied(form *document.Form, target ref.Target) string {
	fld, ok := form.Field(target.Field)
	if !ok {
		return fmt.Sprintf("field %q not found", target.Field)
	}
	resp := form.Response(target.Field)

	switch target.Kind {
	case ref.TargetField:
		if !resp.Resolved() {
			return fmt.Sprintf("field %q is unanswered", target.Field)
		}
	case ref.TargetOption:
		if !optionSelected(fld, resp, target.Qualifier) {
			return fmt.Sprintf("option %q of field %q is not selected", target.Qualifier, target.Field)
		}
	case ref.TargetColumn:
		rows, _ := resp.Value.([]document.Row)
		idx := columnIndex(fld, target.Qualifier)
		for r, row := range rows {
			if idx < 0 || idx >= len(row) || row[idx].State != document.StateAnswered {
				return fmt.Sprintf("column %q of table %q has an unanswered cell in row %d", target.Qualifier, target.Field, r)
			}
		}
	case ref.TargetCell:
		rows, _ := resp.Value.([]document.Row)
		if target.Row >= len(rows) {
			return fmt.Sprintf("table %q has no row %d", target.Field, target.Row)
		}
		idx := columnIndex(fld, target.Qualifier)
		if idx < 0 || idx >= len(rows[target.Row]) || rows[target.Row][idx].State != document.StateAnswered {
			return fmt.Sprintf("cell %s is not answered", target.String())
		}
	}
	return ""
}

func optionSelected(fld *document.Field, resp *document.Response, optionID string) bool {
	if resp.State != document.StateAnswered {
		return false
	}
	switch fld.Kind {
	case document.KindSingleSelect:
		s, _ := resp.Value.(string)
		return s == optionID
	case document.KindMultiSelect:
		items, _ := resp.Value.([]string)
		for _, item := range items {
			if item == optionID {
				return true
			}
		}
	case document.KindCheckboxes:
		states, _ := resp.Value.(map[string]string)
		done, _ := fld.CheckPair()
		return states[optionID] == done
	}
	return false
}

func columnIndex(fld *document.Field, columnID string) int {
	for i, col := range fld.Columns {
		if col.ID == columnID {
			return i
		}
	}
	return -1
}
