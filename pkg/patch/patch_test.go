package patch

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formdoc/pkg/document"
)

func intakeForm(t *testing.T) *document.Form {
	t.Helper()
	form := document.New(document.DefaultConfig())
	fields := []*document.Field{
		{ID: "title", Kind: document.KindString, Required: true},
		{ID: "budget", Kind: document.KindNumber},
		{ID: "founded", Kind: document.KindYear},
		{ID: "tags", Kind: document.KindStringList},
		{ID: "review", Kind: document.KindCheckboxes, Mode: document.ChecklistAll,
			Options: []document.SelectOption{{ID: "scope"}, {ID: "legal"}}},
		{ID: "people", Kind: document.KindTable, Columns: []document.Column{
			{ID: "name", Kind: document.KindString, Required: true},
			{ID: "age", Kind: document.KindNumber},
		}},
	}
	for _, fld := range fields {
		if err := form.AddField("", fld); err != nil {
			t.Fatalf("add field %q: %v", fld.ID, err)
		}
	}
	return form
}

func TestApplyWrapsScalarIntoListWithWarning(t *testing.T) {
	t.Parallel()
	form := intakeForm(t)

	result := Apply(form, []Patch{{Op: OpSetStringList, Field: "tags", Value: "solo"}})
	if result.Status != StatusApplied || len(result.Applied) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if diff := cmp.Diff([]string{"solo"}, form.Response("tags").Value); diff != "" {
		t.Fatalf("stored value mismatch (-want +got):\n%s", diff)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "wrapped scalar") {
		t.Fatalf("expected one wrap warning, got %v", result.Warnings)
	}
	if diff := cmp.Diff([]string{"solo"}, result.Applied[0].Value); diff != "" {
		t.Fatalf("normalized patch mismatch (-want +got):\n%s", diff)
	}
}

func TestCoercionIsIdempotent(t *testing.T) {
	t.Parallel()
	form := intakeForm(t)

	first := Apply(form, []Patch{{Op: OpSetStringList, Field: "tags", Value: "solo"}})
	// Feeding the normalized value back must not double-wrap or warn.
	second := Apply(form, []Patch{{Op: OpSetStringList, Field: "tags", Value: first.Applied[0].Value}})
	if second.Status != StatusApplied || len(second.Warnings) != 0 {
		t.Fatalf("reapplying a normalized value warned: %+v", second)
	}
	if diff := cmp.Diff([]string{"solo"}, form.Response("tags").Value); diff != "" {
		t.Fatalf("value changed on reapply (-want +got):\n%s", diff)
	}
}

func TestApplyBatchIsBestEffort(t *testing.T) {
	t.Parallel()
	form := intakeForm(t)

	result := Apply(form, []Patch{
		{Op: OpSetString, Field: "title", Value: "Atlas"},
		{Op: OpSetString, Field: "missing", Value: "x"},
		{Op: OpSetNumber, Field: "budget", Value: 12.5},
	})
	if result.Status != StatusPartial {
		t.Fatalf("expected partial status, got %s", result.Status)
	}
	if len(result.Applied) != 2 || len(result.Rejected) != 1 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	rej := result.Rejected[0]
	if rej.Index != 1 || !strings.Contains(rej.Reason, `unknown field "missing"`) {
		t.Fatalf("unexpected rejection: %+v", rej)
	}
	if form.Response("title").Value != "Atlas" || form.Response("budget").Value != 12.5 {
		t.Fatalf("valid patches in a partial batch must still land")
	}
}

func TestApplyAllRejectedBatch(t *testing.T) {
	t.Parallel()
	form := intakeForm(t)

	result := Apply(form, []Patch{
		{Op: "set_everything", Field: "title", Value: "x"},
		{Op: OpSetNumber, Field: "title", Value: 1.0},
	})
	if result.Status != StatusRejected || len(result.Applied) != 0 || len(result.Rejected) != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestApplyRejectsKindMismatchedOperation(t *testing.T) {
	t.Parallel()
	form := intakeForm(t)

	result := Apply(form, []Patch{{Op: OpSetString, Field: "budget", Value: "12"}})
	if result.Status != StatusRejected {
		t.Fatalf("expected a kind mismatch rejection, got %+v", result)
	}
	if !strings.Contains(result.Rejected[0].Reason, "want set_number") {
		t.Fatalf("unexpected reason: %q", result.Rejected[0].Reason)
	}
}

func TestApplyCoercesNumericStringsWithWarning(t *testing.T) {
	t.Parallel()
	form := intakeForm(t)

	result := Apply(form, []Patch{
		{Op: OpSetNumber, Field: "budget", Value: "12.5"},
		{Op: OpSetYear, Field: "founded", Value: "2021"},
	})
	if result.Status != StatusApplied || len(result.Warnings) != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if form.Response("budget").Value != 12.5 {
		t.Fatalf("unexpected budget: %v", form.Response("budget").Value)
	}
	if form.Response("founded").Value != 2021 {
		t.Fatalf("unexpected year: %v", form.Response("founded").Value)
	}
}

func TestApplyRejectsUncoercibleNumber(t *testing.T) {
	t.Parallel()
	form := intakeForm(t)

	result := Apply(form, []Patch{{Op: OpSetNumber, Field: "budget", Value: true}})
	if result.Status != StatusRejected {
		t.Fatalf("expected a rejection, got %+v", result)
	}
}

func TestApplyTranslatesBooleanChecklistMap(t *testing.T) {
	t.Parallel()
	form := intakeForm(t)

	result := Apply(form, []Patch{{Op: OpSetCheckboxes, Field: "review", Value: map[string]any{
		"scope": true, "legal": false,
	}}})
	if result.Status != StatusApplied || len(result.Warnings) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	want := map[string]string{"scope": "done", "legal": "todo"}
	if diff := cmp.Diff(want, form.Response("review").Value); diff != "" {
		t.Fatalf("checklist mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyExpandsOptionArrayToChecklist(t *testing.T) {
	t.Parallel()
	form := intakeForm(t)

	result := Apply(form, []Patch{{Op: OpSetCheckboxes, Field: "review", Value: []any{"scope"}}})
	if result.Status != StatusApplied || len(result.Warnings) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	want := map[string]string{"scope": "done", "legal": "todo"}
	if diff := cmp.Diff(want, form.Response("review").Value); diff != "" {
		t.Fatalf("checklist mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyRejectsUnknownChecklistOptionOrState(t *testing.T) {
	t.Parallel()
	form := intakeForm(t)

	for _, value := range []any{
		map[string]string{"ghost": "done"},
		map[string]string{"scope": "perhaps"},
	} {
		result := Apply(form, []Patch{{Op: OpSetCheckboxes, Field: "review", Value: value}})
		if result.Status != StatusRejected {
			t.Fatalf("expected a rejection for %v, got %+v", value, result)
		}
	}
}

func TestApplyChecklistRejectionListsFullVocabulary(t *testing.T) {
	t.Parallel()
	form := document.New(document.DefaultConfig())
	if err := form.AddField("", &document.Field{
		ID: "signoff", Kind: document.KindCheckboxes, Mode: document.ChecklistExplicit,
		Options: []document.SelectOption{{ID: "scope"}, {ID: "legal"}},
	}); err != nil {
		t.Fatalf("add field: %v", err)
	}

	// The explicit vocabulary admits three states; the rejection must
	// name every one of them so an agent can retry with a legal token.
	for _, value := range []any{
		map[string]string{"scope": "done"},
		map[string]any{"scope": "maybe"},
	} {
		result := Apply(form, []Patch{{Op: OpSetCheckboxes, Field: "signoff", Value: value}})
		if result.Status != StatusRejected {
			t.Fatalf("expected a rejection for %v, got %+v", value, result)
		}
		reason := result.Rejected[0].Reason
		if !strings.Contains(reason, "yes/no/unanswered") {
			t.Fatalf("rejection hides part of the vocabulary: %q", reason)
		}
	}
}

func TestApplySetTableIsAtomic(t *testing.T) {
	t.Parallel()
	form := intakeForm(t)

	result := Apply(form, []Patch{{Op: OpSetTable, Field: "people", Rows: []map[string]any{
		{"name": "Ada", "age": 36},
		{"name": "Grace", "salary": 1.0},
	}}})
	if result.Status != StatusRejected {
		t.Fatalf("expected the whole patch to be rejected, got %+v", result)
	}
	if !strings.Contains(result.Rejected[0].Reason, `no column "salary"`) {
		t.Fatalf("unexpected reason: %q", result.Rejected[0].Reason)
	}
	if form.Response("people").State != document.StateUnanswered {
		t.Fatalf("a rejected set_table must not leave partial rows")
	}
}

func TestApplySetTableFillsMissingCellsAsSkipped(t *testing.T) {
	t.Parallel()
	form := intakeForm(t)

	result := Apply(form, []Patch{{Op: OpSetTable, Field: "people", Rows: []map[string]any{
		{"name": "Ada"},
	}}})
	if result.Status != StatusApplied {
		t.Fatalf("unexpected result: %+v", result)
	}
	rows := form.Response("people").Value.([]document.Row)
	if rows[0][1].State != document.StateSkipped {
		t.Fatalf("expected the omitted cell to be skipped, got %+v", rows[0][1])
	}
}

func TestApplySkipRespectsRequiredFields(t *testing.T) {
	t.Parallel()
	form := intakeForm(t)

	result := Apply(form, []Patch{{Op: OpSkipField, Field: "title", Reason: "later"}})
	if result.Status != StatusRejected {
		t.Fatalf("expected required skip to be rejected, got %+v", result)
	}

	result = Apply(form, []Patch{{Op: OpSkipField, Field: "budget", Reason: "no budget"}})
	if result.Status != StatusApplied {
		t.Fatalf("unexpected result: %+v", result)
	}
	resp := form.Response("budget")
	if resp.State != document.StateSkipped || resp.Reason != "no budget" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestApplyAbortWorksOnRequiredFields(t *testing.T) {
	t.Parallel()
	form := intakeForm(t)

	result := Apply(form, []Patch{{Op: OpAbortField, Field: "title", Reason: "cannot answer"}})
	if result.Status != StatusApplied {
		t.Fatalf("unexpected result: %+v", result)
	}
	if form.Response("title").State != document.StateAborted {
		t.Fatalf("unexpected response: %+v", form.Response("title"))
	}
}

func TestApplyClearDropsTheStoredReason(t *testing.T) {
	t.Parallel()
	form := intakeForm(t)

	Apply(form, []Patch{{Op: OpSkipField, Field: "budget", Reason: "no budget"}})
	Apply(form, []Patch{{Op: OpClearField, Field: "budget"}})
	resp := form.Response("budget")
	if resp.State != document.StateUnanswered || resp.Reason != "" {
		t.Fatalf("clear left residue: %+v", resp)
	}
}

func TestApplyNoteLifecycle(t *testing.T) {
	t.Parallel()
	form := intakeForm(t)

	result := Apply(form, []Patch{
		{Op: OpAddNote, Field: "title", Text: "first"},
		{Op: OpAddNote, Field: "title", Text: "second"},
	})
	if result.Status != StatusApplied {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Applied[0].Role != "human" {
		t.Fatalf("expected the default role to be filled in, got %+v", result.Applied[0])
	}

	zero := 0
	result = Apply(form, []Patch{{Op: OpRemoveNote, Field: "title", Index: &zero}})
	if result.Status != StatusApplied {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(form.Notes) != 1 || form.Notes[0].Text != "second" {
		t.Fatalf("unexpected notes: %+v", form.Notes)
	}

	five := 5
	result = Apply(form, []Patch{{Op: OpRemoveNote, Field: "title", Index: &five}})
	if result.Status != StatusRejected {
		t.Fatalf("expected out-of-range removal to be rejected, got %+v", result)
	}
}

func TestApplyAddNoteRejectsUndeclaredRole(t *testing.T) {
	t.Parallel()
	form := intakeForm(t)

	result := Apply(form, []Patch{{Op: OpAddNote, Field: "title", Role: "ghost", Text: "x"}})
	if result.Status != StatusRejected {
		t.Fatalf("expected an undeclared role rejection, got %+v", result)
	}
}

func TestDecodeJSONAndYAMLBatches(t *testing.T) {
	t.Parallel()

	jsonBatch := []byte(`[{"op":"set_string","field":"title","value":"Atlas"},{"op":"skip_field","field":"budget","reason":"later"}]`)
	patches, err := Decode(jsonBatch)
	if err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if len(patches) != 2 || patches[0].Op != OpSetString || patches[1].Reason != "later" {
		t.Fatalf("unexpected patches: %+v", patches)
	}

	yamlBatch := []byte("- op: set_number\n  field: budget\n  value: 12.5\n")
	patches, err = DecodeYAML(yamlBatch)
	if err != nil {
		t.Fatalf("decode yaml: %v", err)
	}
	if len(patches) != 1 || patches[0].Op != OpSetNumber {
		t.Fatalf("unexpected patches: %+v", patches)
	}
}

func TestForKindCoversEveryKind(t *testing.T) {
	t.Parallel()

	for _, kind := range document.Kinds() {
		if op := ForKind(kind); op == "" || !op.Valid() {
			t.Fatalf("kind %s has no set operation", kind)
		}
	}
}
