package patch

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-formdoc/pkg/document"
)

// coerceValue normalizes a loosely typed patch value to the concrete
// type the field kind stores. Coercions are limited to adjustments that
// preserve intent; each is reported as a warning. Anything that cannot
// preserve meaning is an error, which rejects the patch.
//
// Coercion is idempotent: feeding a previously normalized value back in
// yields the same value and no warning.
func coerceValue(fld *document.Field, value any) (any, []string, error) {
	switch fld.Kind {
	case document.KindString, document.KindDate, document.KindURL, document.KindSingleSelect:
		s, ok := value.(string)
		if !ok {
			return nil, nil, fmt.Errorf("field %q expects text, got %T", fld.ID, value)
		}
		return s, nil, nil
	case document.KindNumber:
		return coerceNumber(fld, value)
	case document.KindYear:
		return coerceYear(fld, value)
	case document.KindStringList, document.KindURLList, document.KindMultiSelect:
		return coerceList(fld, value)
	case document.KindCheckboxes:
		return coerceChecklist(fld, value)
	case document.KindTable:
		return nil, nil, fmt.Errorf("field %q is a table; use set_table with rows", fld.ID)
	}
	return nil, nil, fmt.Errorf("field %q has unhandled kind %q", fld.ID, fld.Kind)
}

func coerceNumber(fld *document.Field, value any) (any, []string, error) {
	switch v := value.(type) {
	case float64:
		return v, nil, nil
	case int:
		return float64(v), nil, nil
	case int64:
		return float64(v), nil, nil
	case string:
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("field %q expects a number, got %q", fld.ID, v)
		}
		return n, []string{fmt.Sprintf("field %q: coerced string %q to number", fld.ID, v)}, nil
	default:
		return nil, nil, fmt.Errorf("field %q expects a number, got %T", fld.ID, value)
	}
}

func coerceYear(fld *document.Field, value any) (any, []string, error) {
	switch v := value.(type) {
	case int:
		return v, nil, nil
	case int64:
		return int(v), nil, nil
	case float64:
		if v != float64(int(v)) {
			return nil, nil, fmt.Errorf("field %q expects a whole year, got %v", fld.ID, v)
		}
		return int(v), nil, nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, nil, fmt.Errorf("field %q expects a year, got %q", fld.ID, v)
		}
		return n, []string{fmt.Sprintf("field %q: coerced string %q to year", fld.ID, v)}, nil
	default:
		return nil, nil, fmt.Errorf("field %q expects a year, got %T", fld.ID, value)
	}
}

// coerceList accepts []string, []any of strings, or a single scalar
// string that gets wrapped into a one-element list with a warning.
func coerceList(fld *document.Field, value any) (any, []string, error) {
	switch v := value.(type) {
	case []string:
		return v, nil, nil
	case []any:
		items := make([]string, 0, len(v))
		for i, raw := range v {
			s, ok := raw.(string)
			if !ok {
				return nil, nil, fmt.Errorf("field %q: list item %d is %T, expected text", fld.ID, i, raw)
			}
			items = append(items, s)
		}
		return items, nil, nil
	case string:
		warning := fmt.Sprintf("field %q: wrapped scalar %q into a one-element list", fld.ID, v)
		return []string{v}, []string{warning}, nil
	default:
		return nil, nil, fmt.Errorf("field %q expects a list, got %T", fld.ID, value)
	}
}

// coerceChecklist accepts the field's own state map, a boolean map
// translated to the field's two-state vocabulary, or an array of option
// identifiers expanded to one done entry each.
func coerceChecklist(fld *document.Field, value any) (any, []string, error) {
	done, notDone := fld.CheckPair()
	fill := notDone
	if fld.Mode == document.ChecklistExplicit {
		fill = document.CheckUnanswered
	}
	allowed := make(map[string]bool)
	for _, state := range fld.CheckStates() {
		allowed[state] = true
	}

	switch v := value.(type) {
	case map[string]string:
		for id, state := range v {
			if _, ok := fld.Option(id); !ok {
				return nil, nil, fmt.Errorf("field %q has no option %q", fld.ID, id)
			}
			if !allowed[state] {
				return nil, nil, fmt.Errorf("field %q: state %q not in vocabulary %s",
					fld.ID, state, strings.Join(fld.CheckStates(), "/"))
			}
		}
		return v, nil, nil
	case map[string]any:
		states := make(map[string]string, len(v))
		booleans := false
		for id, raw := range v {
			if _, ok := fld.Option(id); !ok {
				return nil, nil, fmt.Errorf("field %q has no option %q", fld.ID, id)
			}
			switch s := raw.(type) {
			case string:
				if !allowed[s] {
					return nil, nil, fmt.Errorf("field %q: state %q not in vocabulary %s",
						fld.ID, s, strings.Join(fld.CheckStates(), "/"))
				}
				states[id] = s
			case bool:
				booleans = true
				if s {
					states[id] = done
				} else {
					states[id] = notDone
				}
			default:
				return nil, nil, fmt.Errorf("field %q: option %q holds %T, expected a state or boolean", fld.ID, id, raw)
			}
		}
		var warnings []string
		if booleans {
			warnings = append(warnings, fmt.Sprintf("field %q: translated boolean map to %s/%s vocabulary", fld.ID, done, notDone))
		}
		return states, warnings, nil
	case []any, []string:
		ids, _, err := coerceList(fld, v)
		if err != nil {
			return nil, nil, err
		}
		states := make(map[string]string, len(fld.Options))
		for _, opt := range fld.Options {
			states[opt.ID] = fill
		}
		for _, id := range ids.([]string) {
			if _, ok := fld.Option(id); !ok {
				return nil, nil, fmt.Errorf("field %q has no option %q", fld.ID, id)
			}
			states[id] = done
		}
		warning := fmt.Sprintf("field %q: expanded option list to one %s entry per identifier", fld.ID, done)
		return states, []string{warning}, nil
	default:
		return nil, nil, fmt.Errorf("field %q expects checklist states, got %T", fld.ID, value)
	}
}

// coerceCell normalizes one table cell value against its column. A nil
// value is a request to store the cell as skipped.
func coerceCell(fld *document.Field, col document.Column, value any) (document.Cell, []string, error) {
	if value == nil {
		return document.SkippedCell(), nil, nil
	}
	scalar := &document.Field{ID: fld.ID + "." + col.ID, Kind: col.Kind}
	normalized, warnings, err := coerceValue(scalar, value)
	if err != nil {
		return document.Cell{}, nil, err
	}
	return document.Cell{State: document.StateAnswered, Value: normalized}, warnings, nil
}
