// Package issue computes the outstanding problems of a document: the
// role-filtered, ordered list that drives each fill turn, including
// blocking-checkpoint semantics.
package issue

import (
	"fmt"
	"sort"

	"github.com/goliatone/go-formdoc/internal/validate"
	"github.com/goliatone/go-formdoc/pkg/document"
)

// Severity ranks an issue.
type Severity string

const (
	// SeverityRequired marks issues that keep the document invalid.
	SeverityRequired Severity = "required"
	// SeverityRecommended marks issues a filler may resolve or skip.
	SeverityRecommended Severity = "recommended"
)

// Issue is one surfaced problem in wire form.
type Issue struct {
	// Ref addresses the problem: a field identifier or a cell reference.
	Ref      string   `json:"ref"`
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Priority int      `json:"priority"`
	// BlockedBy names the incomplete checkpoint standing before this
	// field, when one does.
	BlockedBy string `json:"blocked_by,omitempty"`
}

// Options filter and shape the inspection.
type Options struct {
	// Roles restricts issues to fields owned by these roles; empty means
	// every role.
	Roles []string
	// Overwrite re-offers already answered fields as issues.
	Overwrite bool
	// IncludeBlocked lists fields behind an incomplete checkpoint with
	// BlockedBy set instead of dropping them.
	IncludeBlocked bool
}

// Inspect computes the issue list. Fields textually after the first
// incomplete blocking checkpoint are unavailable: dropped by default, or
// annotated when IncludeBlocked is set. The checkpoint itself is always
// available so it can be completed to unblock the rest.
func Inspect(form *document.Form, opts Options) []Issue {
	findings := validate.Form(form)
	byField := make(map[string][]validate.Finding)
	for _, finding := range findings {
		byField[finding.FieldID] = append(byField[finding.FieldID], finding)
	}

	checkpoint, checkpointOrd := FirstIncompleteCheckpoint(form)

	roleAllowed := func(role string) bool {
		if len(opts.Roles) == 0 {
			return true
		}
		for _, r := range opts.Roles {
			if r == role {
				return true
			}
		}
		return false
	}

	var issues []Issue
	for ord, id := range form.Order {
		fld := form.Fields[id]
		if !roleAllowed(fld.Role) {
			continue
		}
		blocked := checkpoint != "" && ord > checkpointOrd
		if blocked && !opts.IncludeBlocked {
			continue
		}

		fieldFindings := byField[id]
		if len(fieldFindings) == 0 && opts.Overwrite && form.Response(id).Answered() {
			issues = append(issues, annotate(Issue{
				Ref:      id,
				Field:    id,
				Message:  fmt.Sprintf("field %q is answered and offered for overwrite", id),
				Severity: SeverityRecommended,
				Priority: fld.Priority,
			}, blocked, checkpoint))
			continue
		}
		for _, finding := range fieldFindings {
			issues = append(issues, annotate(Issue{
				Ref:      finding.Ref,
				Field:    id,
				Message:  finding.Message,
				Severity: severityFor(finding.Kind, fld),
				Priority: fld.Priority,
			}, blocked, checkpoint))
		}
	}

	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Priority > issues[j].Priority
	})
	return issues
}

func annotate(is Issue, blocked bool, checkpoint string) Issue {
	if blocked {
		is.BlockedBy = checkpoint
		is.Message += fmt.Sprintf(" (blocked by checkpoint %q)", checkpoint)
	}
	return is
}

func severityFor(kind validate.FindingKind, fld *document.Field) Severity {
	switch kind {
	case validate.MissingRequired, validate.Invalid:
		return SeverityRequired
	case validate.Incomplete:
		if fld.Required {
			return SeverityRequired
		}
		return SeverityRecommended
	default:
		return SeverityRecommended
	}
}

// FirstIncompleteCheckpoint returns the identifier and document ordinal
// of the first checklist flagged as a checkpoint that has not met its
// completion predicate. Later incomplete checkpoints are irrelevant
// until this one clears.
func FirstIncompleteCheckpoint(form *document.Form) (string, int) {
	for ord, id := range form.Order {
		fld := form.Fields[id]
		if fld.Kind != document.KindCheckboxes || !fld.Checkpoint {
			continue
		}
		if !validate.ChecklistComplete(fld, form.Response(id)) {
			return id, ord
		}
	}
	return "", -1
}

// Blocked reports whether a field is currently unavailable for filling
// because an incomplete checkpoint stands before it.
func Blocked(form *document.Form, fieldID string) bool {
	checkpoint, checkpointOrd := FirstIncompleteCheckpoint(form)
	if checkpoint == "" {
		return false
	}
	ord := form.Ordinal(fieldID)
	return ord > checkpointOrd
}

// Valid reports whether the document as a whole is valid: no missing
// required fields, no invalid values, no incomplete checklists. Optional
// unanswered fields do not count against validity.
func Valid(form *document.Form) bool {
	for _, finding := range validate.Form(form) {
		switch finding.Kind {
		case validate.MissingRequired, validate.Invalid, validate.Incomplete:
			return false
		}
	}
	return true
}
