package tag

import (
	"strings"
	"testing"

	"github.com/goliatone/go-formdoc/pkg/document"
)

// richDocument exercises every payload shape: inline scalars, fenced
// lists and checklists, table rows, sentinels with and without reasons,
// roles, nested groups, describes, and notes.
func richDocument() string {
	return doc(
		`:::form id=intake title="Project Intake"`,
		``,
		`:::role id=reviewer`,
		fence+`instructions`,
		`Check every entry twice.`,
		fence,
		``,
		`:::field id=title kind=string label="Title" required value="Atlas"`,
		``,
		`:::group id=basics title="Basics"`,
		`:::field id=budget kind=number min=0 max=100 value="12.5"`,
		`:::field id=started kind=date value="2026-01-15"`,
		`:::group id=links`,
		`:::field id=homepage kind=url value="https://example.com"`,
		`:::endgroup`,
		`:::endgroup`,
		``,
		`:::field id=tags kind=string_list min_items=1`,
		fence+`value`,
		`alpha`,
		`beta`,
		fence,
		``,
		`:::field id=status kind=single_select options="open:Open|closed:Closed" value="open"`,
		``,
		`:::field id=review kind=checkboxes options="scope:Scope|legal:Legal" mode=all checkpoint`,
		fence+`value`,
		`scope: done`,
		`legal: todo`,
		fence,
		``,
		`:::field id=people kind=table columns="name:Name:string:required|age:Age:number"`,
		`:::rows`,
		`| Name | Age |`,
		`| --- | --- |`,
		`| Ada | 36 |`,
		`| Grace | |`,
		`:::endrows`,
		``,
		`:::field id=launch kind=date role=reviewer priority=5 validate="review.scope" report`,
		``,
		`:::field id=notes kind=string value="SKIP (not needed (yet))"`,
		`:::field id=legacy kind=string state=aborted`,
		``,
		`:::describe target=budget kind=description`,
		fence+`text`,
		`Budget in thousands.`,
		fence,
		``,
		`:::note target=title role=reviewer`,
		fence+`text`,
		`Looks good.`,
		fence,
		``,
		`:::endform`,
	)
}

func serializeCycle(t *testing.T, cfg document.Config, text string) (first, second string) {
	t.Helper()
	parser := NewParser(cfg)

	form, err := parser.Parse(text)
	if err != nil {
		t.Fatalf("parse source: %v", err)
	}
	first, err = NewSerializer(cfg, cfg.Syntax).Serialize(form)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	reparsed, err := parser.Parse(first)
	if err != nil {
		t.Fatalf("reparse serialized output: %v\n%s", err, first)
	}
	second, err = NewSerializer(cfg, cfg.Syntax).Serialize(reparsed)
	if err != nil {
		t.Fatalf("serialize again: %v", err)
	}
	return first, second
}

func TestSerializeIsIdempotentCanonicalSyntax(t *testing.T) {
	t.Parallel()

	first, second := serializeCycle(t, document.DefaultConfig(), richDocument())
	if first != second {
		t.Fatalf("serialized output is not a fixed point:\n--- first ---\n%s\n--- second ---\n%s", first, second)
	}
}

func TestSerializeIsIdempotentCommentSyntax(t *testing.T) {
	t.Parallel()

	cfg := document.DefaultConfig()
	cfg.Syntax = document.SyntaxComment
	first, second := serializeCycle(t, cfg, richDocument())
	if first != second {
		t.Fatalf("serialized output is not a fixed point:\n--- first ---\n%s\n--- second ---\n%s", first, second)
	}
	if strings.Contains(first, "\n:::") {
		t.Fatalf("comment-syntax output leaked canonical tags:\n%s", first)
	}
	if !strings.Contains(first, "<!-- formdoc: endform -->") {
		t.Fatalf("expected comment-syntax tags:\n%s", first)
	}
}

func TestSerializePreservesEveryResponse(t *testing.T) {
	t.Parallel()

	cfg := document.DefaultConfig()
	form, err := NewParser(cfg).Parse(richDocument())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	text, err := NewSerializer(cfg, cfg.Syntax).Serialize(form)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	reparsed, err := NewParser(cfg).Parse(text)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}

	for _, id := range form.Order {
		before := form.Response(id)
		after := reparsed.Response(id)
		if before.State != after.State || before.Reason != after.Reason {
			t.Fatalf("field %q: response changed across the round trip: %+v vs %+v", id, before, after)
		}
	}
	if reparsed.Response("notes").Reason != "not needed (yet)" {
		t.Fatalf("nested-paren skip reason lost: %+v", reparsed.Response("notes"))
	}
	if got := reparsed.Response("budget").Value; got != 12.5 {
		t.Fatalf("budget value changed: %v", got)
	}
}

func TestSerializeRendersSyntaxConversion(t *testing.T) {
	t.Parallel()

	cfg := document.DefaultConfig()
	form, err := NewParser(cfg).Parse(richDocument())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	// Canonical document rendered as comment syntax and back.
	asComment, err := NewSerializer(cfg, document.SyntaxComment).Serialize(form)
	if err != nil {
		t.Fatalf("serialize comment: %v", err)
	}
	reparsed, err := NewParser(cfg).Parse(asComment)
	if err != nil {
		t.Fatalf("reparse comment output: %v", err)
	}
	if len(reparsed.Order) != len(form.Order) {
		t.Fatalf("field count changed across syntax conversion: %d vs %d", len(reparsed.Order), len(form.Order))
	}
}

func TestSerializeMultilineSkipReasonUsesFencedBlock(t *testing.T) {
	t.Parallel()

	cfg := document.DefaultConfig()
	form := document.New(cfg)
	form.ID = "intake"
	if err := form.AddField("", &document.Field{ID: "notes", Kind: document.KindString}); err != nil {
		t.Fatalf("add field: %v", err)
	}
	form.SetResponse("notes", document.Response{
		State:  document.StateSkipped,
		Reason: "line one\nline two",
	})

	text, err := NewSerializer(cfg, cfg.Syntax).Serialize(form)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	reparsed, err := NewParser(cfg).Parse(text)
	if err != nil {
		t.Fatalf("reparse: %v\n%s", err, text)
	}
	resp := reparsed.Response("notes")
	if resp.State != document.StateSkipped || resp.Reason != "line one\nline two" {
		t.Fatalf("multiline reason lost: %+v", resp)
	}
}

func TestSerializeValueContainingFenceLines(t *testing.T) {
	t.Parallel()

	cfg := document.DefaultConfig()
	form := document.New(cfg)
	form.ID = "intake"
	if err := form.AddField("", &document.Field{ID: "body", Kind: document.KindString}); err != nil {
		t.Fatalf("add field: %v", err)
	}
	body := "intro\n" + fence + "\ncode\n" + fence
	form.SetResponse("body", document.Response{State: document.StateAnswered, Value: body})

	text, err := NewSerializer(cfg, cfg.Syntax).Serialize(form)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	reparsed, err := NewParser(cfg).Parse(text)
	if err != nil {
		t.Fatalf("reparse: %v\n%s", err, text)
	}
	if got := reparsed.Response("body").Value; got != body {
		t.Fatalf("fenced body changed: %q", got)
	}
}

func TestSerializeEscapesPipesInTableCells(t *testing.T) {
	t.Parallel()

	cfg := document.DefaultConfig()
	form := document.New(cfg)
	form.ID = "intake"
	table := &document.Field{ID: "people", Kind: document.KindTable, Columns: []document.Column{
		{ID: "name", Label: "Name", Kind: document.KindString},
	}}
	if err := form.AddField("", table); err != nil {
		t.Fatalf("add table: %v", err)
	}
	form.SetResponse("people", document.Response{State: document.StateAnswered, Value: []document.Row{
		{{State: document.StateAnswered, Value: "a|b"}},
	}})

	text, err := NewSerializer(cfg, cfg.Syntax).Serialize(form)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	reparsed, err := NewParser(cfg).Parse(text)
	if err != nil {
		t.Fatalf("reparse: %v\n%s", err, text)
	}
	rows := reparsed.Response("people").Value.([]document.Row)
	if rows[0][0].Value != "a|b" {
		t.Fatalf("pipe escaping failed: %+v", rows[0][0])
	}
}

func TestSerializePreservesSentinelLookalikeValues(t *testing.T) {
	t.Parallel()

	// Answered text that happens to spell a sentinel must stay answered
	// text: an optional field must not flip to skipped, and a required
	// field's own serialization must stay parseable.
	cases := []struct {
		name  string
		value string
	}{
		{"bare skip token", "SKIP"},
		{"skip token with reason", "SKIP (per review)"},
		{"bare abort token", "ABORT"},
		{"malformed reason", "SKIP (unbalanced"},
		{"leading backslash", `\SKIP`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := document.DefaultConfig()
			form := document.New(cfg)
			form.ID = "intake"
			if err := form.AddField("", &document.Field{ID: "notes", Kind: document.KindString}); err != nil {
				t.Fatalf("add notes: %v", err)
			}
			if err := form.AddField("", &document.Field{ID: "summary", Kind: document.KindString, Required: true}); err != nil {
				t.Fatalf("add summary: %v", err)
			}
			form.SetResponse("notes", document.Response{State: document.StateAnswered, Value: tc.value})
			form.SetResponse("summary", document.Response{State: document.StateAnswered, Value: tc.value})

			first, second := serializeCycle(t, cfg, mustSerialize(t, cfg, form))
			if first != second {
				t.Fatalf("escaped output is not a fixed point:\n--- first ---\n%s\n--- second ---\n%s", first, second)
			}
			reparsed, err := NewParser(cfg).Parse(first)
			if err != nil {
				t.Fatalf("reparse: %v\n%s", err, first)
			}
			for _, id := range []string{"notes", "summary"} {
				resp := reparsed.Response(id)
				if resp.State != document.StateAnswered {
					t.Fatalf("field %q: state changed to %q", id, resp.State)
				}
				if resp.Value != tc.value {
					t.Fatalf("field %q: value changed: %q", id, resp.Value)
				}
			}
		})
	}
}

func TestSerializePreservesSentinelLookalikeTableCell(t *testing.T) {
	t.Parallel()

	cfg := document.DefaultConfig()
	form := document.New(cfg)
	form.ID = "intake"
	table := &document.Field{ID: "people", Kind: document.KindTable, Columns: []document.Column{
		{ID: "name", Label: "Name", Kind: document.KindString},
	}}
	if err := form.AddField("", table); err != nil {
		t.Fatalf("add table: %v", err)
	}
	form.SetResponse("people", document.Response{State: document.StateAnswered, Value: []document.Row{
		{{State: document.StateAnswered, Value: "SKIP"}},
		{{State: document.StateAnswered, Value: "SKIP (per review)"}},
		{{State: document.StateSkipped}},
	}})

	first, second := serializeCycle(t, cfg, mustSerialize(t, cfg, form))
	if first != second {
		t.Fatalf("escaped output is not a fixed point:\n--- first ---\n%s\n--- second ---\n%s", first, second)
	}
	reparsed, err := NewParser(cfg).Parse(first)
	if err != nil {
		t.Fatalf("reparse: %v\n%s", err, first)
	}
	rows := reparsed.Response("people").Value.([]document.Row)
	if rows[0][0].State != document.StateAnswered || rows[0][0].Value != "SKIP" {
		t.Fatalf("answered cell corrupted: %+v", rows[0][0])
	}
	if rows[1][0].State != document.StateAnswered || rows[1][0].Value != "SKIP (per review)" {
		t.Fatalf("answered cell with reason shape corrupted: %+v", rows[1][0])
	}
	if rows[2][0].State != document.StateSkipped {
		t.Fatalf("genuinely skipped cell changed: %+v", rows[2][0])
	}
}

func TestSerializePreservesSentinelLookalikeListBody(t *testing.T) {
	t.Parallel()

	// A one-item list ["SKIP"] serializes to a fenced body that would
	// read as a sentinel; so does a multi-item body whose joined lines
	// spell a reasoned sentinel.
	cfg := document.DefaultConfig()
	form := document.New(cfg)
	form.ID = "intake"
	if err := form.AddField("", &document.Field{ID: "tags", Kind: document.KindStringList}); err != nil {
		t.Fatalf("add tags: %v", err)
	}
	items := []string{"SKIP (first", "second)"}
	form.SetResponse("tags", document.Response{State: document.StateAnswered, Value: items})

	first, second := serializeCycle(t, cfg, mustSerialize(t, cfg, form))
	if first != second {
		t.Fatalf("escaped output is not a fixed point:\n--- first ---\n%s\n--- second ---\n%s", first, second)
	}
	reparsed, err := NewParser(cfg).Parse(first)
	if err != nil {
		t.Fatalf("reparse: %v\n%s", err, first)
	}
	got := reparsed.Response("tags").Value.([]string)
	if len(got) != 2 || got[0] != items[0] || got[1] != items[1] {
		t.Fatalf("list items changed: %q", got)
	}
}

func TestParseEscapedSentinelIsLiteralText(t *testing.T) {
	t.Parallel()

	cfg := document.DefaultConfig()
	form, err := NewParser(cfg).Parse(doc(
		`:::form id=intake`,
		`:::field id=notes kind=string value="\\SKIP"`,
		`:::field id=verdict kind=string value="\\ABORT (no)"`,
		`:::endform`,
	))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if resp := form.Response("notes"); resp.State != document.StateAnswered || resp.Value != "SKIP" {
		t.Fatalf("escaped skip token not literal: %+v", resp)
	}
	if resp := form.Response("verdict"); resp.State != document.StateAnswered || resp.Value != "ABORT (no)" {
		t.Fatalf("escaped abort token not literal: %+v", resp)
	}
}

func mustSerialize(t *testing.T, cfg document.Config, form *document.Form) string {
	t.Helper()
	text, err := NewSerializer(cfg, cfg.Syntax).Serialize(form)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	return text
}

func TestSerializeAlwaysDeclaresColumnLabels(t *testing.T) {
	t.Parallel()

	cfg := document.DefaultConfig()
	form := document.New(cfg)
	form.ID = "intake"
	// Labels left empty: the serializer must fall back to identifiers so
	// a reparse never depends on header back-fill.
	table := &document.Field{ID: "people", Kind: document.KindTable, Columns: []document.Column{
		{ID: "name", Kind: document.KindString},
		{ID: "age", Kind: document.KindNumber},
	}}
	if err := form.AddField("", table); err != nil {
		t.Fatalf("add table: %v", err)
	}
	form.SetResponse("people", document.Response{State: document.StateAnswered, Value: []document.Row{
		{{State: document.StateAnswered, Value: "Ada"}, {State: document.StateAnswered, Value: 36.0}},
	}})

	text, err := NewSerializer(cfg, cfg.Syntax).Serialize(form)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if !strings.Contains(text, `columns="name:name:string|age:age:number"`) {
		t.Fatalf("expected identifier-labeled columns, got:\n%s", text)
	}
	if _, err := NewParser(cfg).Parse(text); err != nil {
		t.Fatalf("reparse: %v\n%s", err, text)
	}
}
