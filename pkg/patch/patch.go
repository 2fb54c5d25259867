// Package patch defines the mutation wire format and the best-effort
// applier. A batch never fails as a whole because one patch is bad:
// every patch is judged on its own, coerced where that preserves
// meaning, and rejected with a reason otherwise.
package patch

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formdoc/pkg/document"
)

// Op names one mutation operation. The set_* ops are keyed by field
// kind.
type Op string

const (
	OpSetString       Op = "set_string"
	OpSetNumber       Op = "set_number"
	OpSetDate         Op = "set_date"
	OpSetYear         Op = "set_year"
	OpSetURL          Op = "set_url"
	OpSetStringList   Op = "set_string_list"
	OpSetURLList      Op = "set_url_list"
	OpSetSingleSelect Op = "set_single_select"
	OpSetMultiSelect  Op = "set_multi_select"
	OpSetCheckboxes   Op = "set_checkboxes"
	OpSetTable        Op = "set_table"
	OpSkipField       Op = "skip_field"
	OpAbortField      Op = "abort_field"
	OpClearField      Op = "clear_field"
	OpAddNote         Op = "add_note"
	OpRemoveNote      Op = "remove_note"
)

// Valid reports whether op names a declared operation.
func (op Op) Valid() bool {
	switch op {
	case OpSetString, OpSetNumber, OpSetDate, OpSetYear, OpSetURL,
		OpSetStringList, OpSetURLList,
		OpSetSingleSelect, OpSetMultiSelect, OpSetCheckboxes, OpSetTable,
		OpSkipField, OpAbortField, OpClearField, OpAddNote, OpRemoveNote:
		return true
	}
	return false
}

// ForKind returns the set_* operation matching a field kind.
func ForKind(kind document.FieldKind) Op {
	switch kind {
	case document.KindString:
		return OpSetString
	case document.KindNumber:
		return OpSetNumber
	case document.KindDate:
		return OpSetDate
	case document.KindYear:
		return OpSetYear
	case document.KindURL:
		return OpSetURL
	case document.KindStringList:
		return OpSetStringList
	case document.KindURLList:
		return OpSetURLList
	case document.KindSingleSelect:
		return OpSetSingleSelect
	case document.KindMultiSelect:
		return OpSetMultiSelect
	case document.KindCheckboxes:
		return OpSetCheckboxes
	case document.KindTable:
		return OpSetTable
	}
	return ""
}

// Patch is one discrete, independently applicable mutation request. The
// populated fields depend on Op: Value for scalar/list/select/checklist
// sets, Rows for set_table, Reason for skip/abort, Role and Text for
// add_note, Index for remove_note.
type Patch struct {
	Op     Op               `json:"op" yaml:"op"`
	Field  string           `json:"field" yaml:"field"`
	Value  any              `json:"value,omitempty" yaml:"value,omitempty"`
	Rows   []map[string]any `json:"rows,omitempty" yaml:"rows,omitempty"`
	Reason string           `json:"reason,omitempty" yaml:"reason,omitempty"`
	Role   string           `json:"role,omitempty" yaml:"role,omitempty"`
	Text   string           `json:"text,omitempty" yaml:"text,omitempty"`
	Index  *int             `json:"index,omitempty" yaml:"index,omitempty"`
}

// Decode reads a JSON patch batch.
func Decode(data []byte) ([]Patch, error) {
	var patches []Patch
	if err := json.Unmarshal(data, &patches); err != nil {
		return nil, fmt.Errorf("patch: decode json: %w", err)
	}
	return patches, nil
}

// DecodeYAML reads a YAML patch batch.
func DecodeYAML(data []byte) ([]Patch, error) {
	var patches []Patch
	if err := yaml.Unmarshal(data, &patches); err != nil {
		return nil, fmt.Errorf("patch: decode yaml: %w", err)
	}
	return patches, nil
}

// Status summarizes a batch outcome.
type Status string

const (
	// StatusApplied means every patch in the batch succeeded.
	StatusApplied Status = "applied"
	// StatusPartial means some patches succeeded and some were rejected.
	StatusPartial Status = "partial"
	// StatusRejected means no patch succeeded.
	StatusRejected Status = "rejected"
)

// Rejection records one refused patch and why.
type Rejection struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// Result reports a batch application. Applied carries the patches that
// took effect in their normalized form, with coerced values substituted.
type Result struct {
	Status   Status      `json:"status"`
	Applied  []Patch     `json:"applied"`
	Rejected []Rejection `json:"rejected,omitempty"`
	Warnings []string    `json:"warnings,omitempty"`
}
