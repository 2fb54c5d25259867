package document

import (
	"fmt"
	"regexp"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// ValidIdentifier reports whether s is usable as a document identifier.
func ValidIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// SelectOption is one declared choice of a select or checkboxes field.
type SelectOption struct {
	ID    string
	Label string
}

// Column describes one column of a table field. Column identifiers are
// unique within their owning table; the cell kind is restricted to the
// scalar subset.
type Column struct {
	ID       string
	Label    string
	Kind     FieldKind
	Required bool
}

// Field is a single typed, addressable slot in the document. The Kind
// discriminates which of the kind-specific attribute sets is meaningful.
type Field struct {
	ID       string
	Kind     FieldKind
	Label    string
	Required bool
	Priority int
	Role     string

	// Validators holds scope references this field depends on; each must
	// resolve against the document schema.
	Validators []string
	// Report marks the field for inclusion in downstream report output.
	Report bool

	// Numeric bounds for number fields.
	Min *float64
	Max *float64

	// Year bounds for year fields.
	MinYear *int
	MaxYear *int

	// ISO date bounds for date fields; empty when unbounded.
	MinDate string
	MaxDate string

	// Item-count bounds for list kinds.
	MinItems *int
	MaxItems *int

	// Options for select and checkboxes kinds.
	Options []SelectOption

	// Checkboxes-specific attributes.
	Mode       ChecklistMode
	MinChecked *int
	// Checkpoint flags the checklist as a blocking checkpoint: while
	// incomplete it makes every later field unavailable for filling.
	Checkpoint bool

	// Table-specific attributes.
	Columns []Column
	MinRows *int
	MaxRows *int
}

// Option returns the declared option with the given identifier.
func (f *Field) Option(id string) (SelectOption, bool) {
	for _, opt := range f.Options {
		if opt.ID == id {
			return opt, true
		}
	}
	return SelectOption{}, false
}

// Column returns the declared column with the given identifier.
func (f *Field) Column(id string) (Column, bool) {
	for _, col := range f.Columns {
		if col.ID == id {
			return col, true
		}
	}
	return Column{}, false
}

// OptionIDs returns the declared option identifiers in order.
func (f *Field) OptionIDs() []string {
	ids := make([]string, 0, len(f.Options))
	for _, opt := range f.Options {
		ids = append(ids, opt.ID)
	}
	return ids
}

// ColumnIDs returns the declared column identifiers in order.
func (f *Field) ColumnIDs() []string {
	ids := make([]string, 0, len(f.Columns))
	for _, col := range f.Columns {
		ids = append(ids, col.ID)
	}
	return ids
}

// CheckPair returns the two-state vocabulary of a checkboxes field: the
// token meaning checked and the token meaning unchecked for its mode.
func (f *Field) CheckPair() (done, notDone string) {
	if f.Mode == ChecklistExplicit {
		return CheckYes, CheckNo
	}
	return CheckDone, CheckTodo
}

// CheckStates lists every state token a checkboxes entry may hold.
func (f *Field) CheckStates() []string {
	done, notDone := f.CheckPair()
	if f.Mode == ChecklistExplicit {
		return []string{done, notDone, CheckUnanswered}
	}
	return []string{done, notDone}
}

// Group is an ordered container of fields and nested groups. A document
// has at most one implicit group collecting fields declared outside any
// explicit group; it serializes without a wrapper tag.
type Group struct {
	ID       string
	Title    string
	Implicit bool
	FieldIDs []string
	Children []Group
}

// DocBlockKind discriminates documentation block flavors.
type DocBlockKind string

const (
	// DocDescription is declarative: what the target is.
	DocDescription DocBlockKind = "description"
	// DocInstructions is actionable guidance for whoever fills the target.
	DocInstructions DocBlockKind = "instructions"
	// DocFreeform is free-form context.
	DocFreeform DocBlockKind = "documentation"
)

// Valid reports whether k names a declared documentation block kind.
func (k DocBlockKind) Valid() bool {
	return k == DocDescription || k == DocInstructions || k == DocFreeform
}

// DocBlock attaches descriptive text to a form, group, or field by
// identifier. Forward references are legal; dangling ones are not.
type DocBlock struct {
	Kind   DocBlockKind
	Target string
	Body   string
}

// Note is a free-standing annotation on a target identifier, attributed
// to an authoring role. Purely informational.
type Note struct {
	Target string
	Role   string
	Text   string
}

// Role names an actor that fills fields, with optional per-role
// instructions.
type Role struct {
	ID           string
	Instructions string
}

// Form is the root aggregate: schema, responses, documentation, notes,
// roles, and the identifier index. It is created once by the parser,
// owned by a single fill session, and mutated in place by the patch
// applier between validation passes.
type Form struct {
	ID    string
	Title string

	Roles  []Role
	Groups []Group

	// Fields is the arena of field definitions keyed by identifier.
	Fields map[string]*Field
	// Order lists field identifiers in document order; blocking
	// checkpoints and issue ordering follow it.
	Order []string
	// Responses owns the current answer of every field.
	Responses map[string]*Response

	Docs  []DocBlock
	Notes []Note

	Index  *Index
	Config Config
}

// New constructs an empty form carrying the supplied configuration.
func New(cfg Config) *Form {
	return &Form{
		Fields:    make(map[string]*Field),
		Responses: make(map[string]*Response),
		Index:     NewIndex(),
		Config:    cfg,
	}
}

// Field returns the field definition for id.
func (f *Form) Field(id string) (*Field, bool) {
	fld, ok := f.Fields[id]
	return fld, ok
}

// Response returns the response record for a field, materializing an
// unanswered record on first access.
func (f *Form) Response(id string) *Response {
	if resp, ok := f.Responses[id]; ok {
		return resp
	}
	resp := &Response{State: StateUnanswered}
	f.Responses[id] = resp
	return resp
}

// SetResponse replaces the whole response record for a field. Replacing
// rather than patching is deliberate: setting a new value on a field
// that held skipped/aborted drops the stored reason with no extra
// cleanup path.
func (f *Form) SetResponse(id string, resp Response) {
	clone := resp
	f.Responses[id] = &clone
}

// RegisterField places a field in the arena, the identifier index, and
// the document order without attaching it to a group. Callers assembling
// group trees themselves attach the identifier where it belongs.
func (f *Form) RegisterField(fld *Field) error {
	if fld == nil {
		return fmt.Errorf("document: nil field")
	}
	if !ValidIdentifier(fld.ID) {
		return fmt.Errorf("document: invalid field identifier %q", fld.ID)
	}
	if !fld.Kind.Valid() {
		return fmt.Errorf("document: field %q has unknown kind %q", fld.ID, fld.Kind)
	}
	if err := f.Index.Add(fld.ID, RefField); err != nil {
		return err
	}
	f.Fields[fld.ID] = fld
	f.Order = append(f.Order, fld.ID)
	f.Responses[fld.ID] = &Response{State: StateUnanswered}
	return nil
}

// AddField registers a field and attaches it to the named group. An
// empty group identifier targets the implicit root group, created on
// demand.
func (f *Form) AddField(groupID string, fld *Field) error {
	if err := f.RegisterField(fld); err != nil {
		return err
	}
	grp := f.group(groupID)
	if grp == nil {
		return fmt.Errorf("document: unknown group %q", groupID)
	}
	grp.FieldIDs = append(grp.FieldIDs, fld.ID)
	return nil
}

// AddGroup registers a top-level group.
func (f *Form) AddGroup(g Group) error {
	if !g.Implicit {
		if !ValidIdentifier(g.ID) {
			return fmt.Errorf("document: invalid group identifier %q", g.ID)
		}
		if err := f.Index.Add(g.ID, RefGroup); err != nil {
			return err
		}
	}
	f.Groups = append(f.Groups, g)
	return nil
}

func (f *Form) group(id string) *Group {
	if id == "" {
		for i := range f.Groups {
			if f.Groups[i].Implicit {
				return &f.Groups[i]
			}
		}
		f.Groups = append(f.Groups, Group{Implicit: true})
		return &f.Groups[len(f.Groups)-1]
	}
	var find func(groups []Group) *Group
	find = func(groups []Group) *Group {
		for i := range groups {
			if !groups[i].Implicit && groups[i].ID == id {
				return &groups[i]
			}
			if g := find(groups[i].Children); g != nil {
				return g
			}
		}
		return nil
	}
	return find(f.Groups)
}

// Ordinal returns the document-order position of a field, or -1 when the
// field is unknown.
func (f *Form) Ordinal(id string) int {
	for i, fid := range f.Order {
		if fid == id {
			return i
		}
	}
	return -1
}

// RowCounts returns the current row count of every table field, keyed by
// field identifier. Used for row-bounds checks during reference
// resolution.
func (f *Form) RowCounts() map[string]int {
	counts := make(map[string]int)
	for id, fld := range f.Fields {
		if fld.Kind != KindTable {
			continue
		}
		counts[id] = 0
		if resp, ok := f.Responses[id]; ok && resp.State == StateAnswered {
			if rows, ok := resp.Value.([]Row); ok {
				counts[id] = len(rows)
			}
		}
	}
	return counts
}

// Values extracts the answered value of every field, keyed by field
// identifier. Skipped, aborted, and unanswered fields are omitted.
func (f *Form) Values() map[string]any {
	values := make(map[string]any)
	for id, resp := range f.Responses {
		if resp.State == StateAnswered {
			values[id] = resp.Value
		}
	}
	return values
}

// RoleInstructions returns the declared instructions for a role.
func (f *Form) RoleInstructions(id string) string {
	for _, role := range f.Roles {
		if role.ID == id {
			return role.Instructions
		}
	}
	return ""
}
