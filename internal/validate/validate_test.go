package validate

import (
	"strings"
	"testing"

	"github.com/goliatone/go-formdoc/pkg/document"
)

func singleField(t *testing.T, fld *document.Field) *document.Form {
	t.Helper()
	form := document.New(document.DefaultConfig())
	if err := form.AddField("", fld); err != nil {
		t.Fatalf("add field %q: %v", fld.ID, err)
	}
	return form
}

func onlyFinding(t *testing.T, form *document.Form, kind FindingKind) Finding {
	t.Helper()
	findings := Form(form)
	if len(findings) != 1 {
		t.Fatalf("expected exactly one finding, got %v", findings)
	}
	if findings[0].Kind != kind {
		t.Fatalf("expected kind %s, got %+v", kind, findings[0])
	}
	return findings[0]
}

func TestRequiredUnansweredIsMissingRequired(t *testing.T) {
	t.Parallel()

	form := singleField(t, &document.Field{ID: "title", Kind: document.KindString, Required: true})
	onlyFinding(t, form, MissingRequired)
}

func TestOptionalUnansweredIsMissingOptional(t *testing.T) {
	t.Parallel()

	form := singleField(t, &document.Field{ID: "title", Kind: document.KindString})
	onlyFinding(t, form, MissingOptional)
}

func TestSkippedAndAbortedFieldsAreResolved(t *testing.T) {
	t.Parallel()

	form := singleField(t, &document.Field{ID: "title", Kind: document.KindString})
	form.SetResponse("title", document.Response{State: document.StateSkipped, Reason: "later"})
	if findings := Form(form); len(findings) != 0 {
		t.Fatalf("skipped field flagged: %v", findings)
	}
	form.SetResponse("title", document.Response{State: document.StateAborted})
	if findings := Form(form); len(findings) != 0 {
		t.Fatalf("aborted field flagged: %v", findings)
	}
}

func TestNumberBoundsAndRawStrings(t *testing.T) {
	t.Parallel()

	min, max := 0.0, 100.0
	form := singleField(t, &document.Field{ID: "budget", Kind: document.KindNumber, Min: &min, Max: &max})

	form.SetResponse("budget", document.Response{State: document.StateAnswered, Value: 12.5})
	if findings := Form(form); len(findings) != 0 {
		t.Fatalf("in-range number flagged: %v", findings)
	}

	form.SetResponse("budget", document.Response{State: document.StateAnswered, Value: 150.0})
	onlyFinding(t, form, Invalid)

	// A lenient parse keeps unparseable numbers as raw strings; the
	// validator is where they surface.
	form.SetResponse("budget", document.Response{State: document.StateAnswered, Value: "about twelve"})
	finding := onlyFinding(t, form, Invalid)
	if !strings.Contains(finding.Message, "not a number") {
		t.Fatalf("unexpected message: %q", finding.Message)
	}
}

func TestYearBounds(t *testing.T) {
	t.Parallel()

	minYear, maxYear := 2000, 2030
	form := singleField(t, &document.Field{ID: "founded", Kind: document.KindYear, MinYear: &minYear, MaxYear: &maxYear})

	form.SetResponse("founded", document.Response{State: document.StateAnswered, Value: 2024})
	if findings := Form(form); len(findings) != 0 {
		t.Fatalf("in-range year flagged: %v", findings)
	}
	form.SetResponse("founded", document.Response{State: document.StateAnswered, Value: 1999})
	onlyFinding(t, form, Invalid)
}

func TestDateFormatAndBounds(t *testing.T) {
	t.Parallel()

	form := singleField(t, &document.Field{
		ID: "start", Kind: document.KindDate, MinDate: "2026-01-01", MaxDate: "2026-12-31",
	})

	form.SetResponse("start", document.Response{State: document.StateAnswered, Value: "2026-06-15"})
	if findings := Form(form); len(findings) != 0 {
		t.Fatalf("valid date flagged: %v", findings)
	}
	form.SetResponse("start", document.Response{State: document.StateAnswered, Value: "June 15th"})
	onlyFinding(t, form, Invalid)
	form.SetResponse("start", document.Response{State: document.StateAnswered, Value: "2027-01-01"})
	onlyFinding(t, form, Invalid)
}

func TestURLRequiresSchemeAndHost(t *testing.T) {
	t.Parallel()

	form := singleField(t, &document.Field{ID: "homepage", Kind: document.KindURL})

	form.SetResponse("homepage", document.Response{State: document.StateAnswered, Value: "https://example.com/x"})
	if findings := Form(form); len(findings) != 0 {
		t.Fatalf("valid url flagged: %v", findings)
	}
	for _, bad := range []string{"ftp://example.com", "example.com", "https://"} {
		form.SetResponse("homepage", document.Response{State: document.StateAnswered, Value: bad})
		onlyFinding(t, form, Invalid)
	}
}

func TestURLListFlagsEachBadItem(t *testing.T) {
	t.Parallel()

	form := singleField(t, &document.Field{ID: "links", Kind: document.KindURLList})
	form.SetResponse("links", document.Response{State: document.StateAnswered, Value: []string{
		"https://example.com", "nope", "ftp://x.org",
	}})
	findings := Form(form)
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %v", findings)
	}
}

func TestSelectMembershipAndDuplicates(t *testing.T) {
	t.Parallel()

	options := []document.SelectOption{{ID: "open"}, {ID: "closed"}}
	form := singleField(t, &document.Field{ID: "status", Kind: document.KindSingleSelect, Options: options})

	form.SetResponse("status", document.Response{State: document.StateAnswered, Value: "open"})
	if findings := Form(form); len(findings) != 0 {
		t.Fatalf("declared option flagged: %v", findings)
	}
	form.SetResponse("status", document.Response{State: document.StateAnswered, Value: "pending"})
	finding := onlyFinding(t, form, Invalid)
	if !strings.Contains(finding.Message, "valid: open, closed") {
		t.Fatalf("expected the valid options to be listed, got %q", finding.Message)
	}

	multi := document.New(document.DefaultConfig())
	if err := multi.AddField("", &document.Field{ID: "labels", Kind: document.KindMultiSelect, Options: options}); err != nil {
		t.Fatalf("add field: %v", err)
	}
	multi.SetResponse("labels", document.Response{State: document.StateAnswered, Value: []string{"open", "open"}})
	findings := Form(multi)
	if len(findings) != 1 || !strings.Contains(findings[0].Message, "selected twice") {
		t.Fatalf("expected a duplicate-selection finding, got %v", findings)
	}
}

func checklist(mode document.ChecklistMode, minChecked *int) *document.Field {
	return &document.Field{
		ID:   "review",
		Kind: document.KindCheckboxes,
		Mode: mode,
		Options: []document.SelectOption{
			{ID: "scope"}, {ID: "legal"}, {ID: "budget"},
		},
		MinChecked: minChecked,
	}
}

func TestChecklistCompleteModeAll(t *testing.T) {
	t.Parallel()

	fld := checklist(document.ChecklistAll, nil)
	resp := &document.Response{State: document.StateAnswered, Value: map[string]string{
		"scope": "done", "legal": "done", "budget": "todo",
	}}
	if ChecklistComplete(fld, resp) {
		t.Fatalf("mode all complete with one todo")
	}
	resp.Value = map[string]string{"scope": "done", "legal": "done", "budget": "done"}
	if !ChecklistComplete(fld, resp) {
		t.Fatalf("mode all incomplete with everything done")
	}
}

func TestChecklistCompleteModeAny(t *testing.T) {
	t.Parallel()

	fld := checklist(document.ChecklistAny, nil)
	if ChecklistComplete(fld, &document.Response{State: document.StateUnanswered}) {
		t.Fatalf("untouched checklist complete in mode any")
	}
	resp := &document.Response{State: document.StateAnswered, Value: map[string]string{"scope": "done"}}
	if !ChecklistComplete(fld, resp) {
		t.Fatalf("mode any incomplete with one done")
	}
}

func TestChecklistCompleteModeExplicit(t *testing.T) {
	t.Parallel()

	fld := checklist(document.ChecklistExplicit, nil)
	resp := &document.Response{State: document.StateAnswered, Value: map[string]string{
		"scope": "yes", "legal": "no",
	}}
	// budget is still unanswered.
	if ChecklistComplete(fld, resp) {
		t.Fatalf("explicit checklist complete with an unanswered option")
	}
	resp.Value = map[string]string{"scope": "yes", "legal": "no", "budget": "no"}
	if !ChecklistComplete(fld, resp) {
		t.Fatalf("explicit checklist incomplete with every option answered")
	}
}

func TestChecklistMinCheckedOverridesMode(t *testing.T) {
	t.Parallel()

	two := 2
	fld := checklist(document.ChecklistAll, &two)
	resp := &document.Response{State: document.StateAnswered, Value: map[string]string{
		"scope": "done", "legal": "done", "budget": "todo",
	}}
	if !ChecklistComplete(fld, resp) {
		t.Fatalf("min_checked=2 not satisfied by two done entries")
	}
}

func TestUntouchedChecklistReportsIncomplete(t *testing.T) {
	t.Parallel()

	form := singleField(t, checklist(document.ChecklistAll, nil))
	finding := onlyFinding(t, form, Incomplete)
	if !strings.Contains(finding.Message, "every option must be checked") {
		t.Fatalf("unexpected message: %q", finding.Message)
	}
}

func TestTableFindingsUseCellReferences(t *testing.T) {
	t.Parallel()

	minRows := 3
	form := singleField(t, &document.Field{
		ID: "people", Kind: document.KindTable,
		Columns: []document.Column{
			{ID: "name", Kind: document.KindString, Required: true},
			{ID: "age", Kind: document.KindNumber},
		},
		MinRows: &minRows,
	})
	form.SetResponse("people", document.Response{State: document.StateAnswered, Value: []document.Row{
		{
			{State: document.StateSkipped},
			{State: document.StateAnswered, Value: "not a number"},
		},
	}})

	findings := Form(form)
	if len(findings) != 3 {
		t.Fatalf("expected 3 findings (row bound, required skip, bad cell), got %v", findings)
	}
	var refs []string
	for _, f := range findings {
		refs = append(refs, f.Ref)
	}
	joined := strings.Join(refs, " ")
	if !strings.Contains(joined, "people.name[0]") || !strings.Contains(joined, "people.age[0]") {
		t.Fatalf("expected cell references in findings, got %v", refs)
	}
}

func TestValidatorReferenceRequiresSatisfiedTarget(t *testing.T) {
	t.Parallel()

	form := document.New(document.DefaultConfig())
	if err := form.AddField("", checklist(document.ChecklistAll, nil)); err != nil {
		t.Fatalf("add checklist: %v", err)
	}
	if err := form.AddField("", &document.Field{
		ID: "launch", Kind: document.KindDate, Validators: []string{"review.scope"},
	}); err != nil {
		t.Fatalf("add field: %v", err)
	}

	// Unanswered referring field: the reference is not evaluated yet.
	form.SetResponse("launch", document.Response{State: document.StateAnswered, Value: "2026-09-01"})
	findings := Form(form)
	var hit bool
	for _, f := range findings {
		if f.FieldID == "launch" && f.Kind == Invalid && strings.Contains(f.Message, "review.scope") {
			hit = true
		}
	}
	if !hit {
		t.Fatalf("expected an unsatisfied validation reference finding, got %v", findings)
	}

	form.SetResponse("review", document.Response{State: document.StateAnswered, Value: map[string]string{
		"scope": "done", "legal": "done", "budget": "done",
	}})
	for _, f := range Form(form) {
		if f.FieldID == "launch" {
			t.Fatalf("satisfied reference still flagged: %+v", f)
		}
	}
}
