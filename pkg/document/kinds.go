package document

// FieldKind enumerates the closed set of field kinds. Every consumer
// switches exhaustively over this set; adding a kind means visiting each
// switch, which is the point.
type FieldKind string

const (
	KindString       FieldKind = "string"
	KindNumber       FieldKind = "number"
	KindDate         FieldKind = "date"
	KindYear         FieldKind = "year"
	KindURL          FieldKind = "url"
	KindStringList   FieldKind = "string_list"
	KindURLList      FieldKind = "url_list"
	KindSingleSelect FieldKind = "single_select"
	KindMultiSelect  FieldKind = "multi_select"
	KindCheckboxes   FieldKind = "checkboxes"
	KindTable        FieldKind = "table"
)

// Kinds lists every field kind in a stable order.
func Kinds() []FieldKind {
	return []FieldKind{
		KindString, KindNumber, KindDate, KindYear, KindURL,
		KindStringList, KindURLList,
		KindSingleSelect, KindMultiSelect, KindCheckboxes,
		KindTable,
	}
}

// Valid reports whether k names a declared field kind.
func (k FieldKind) Valid() bool {
	switch k {
	case KindString, KindNumber, KindDate, KindYear, KindURL,
		KindStringList, KindURLList,
		KindSingleSelect, KindMultiSelect, KindCheckboxes,
		KindTable:
		return true
	}
	return false
}

// Scalar reports whether k is a scalar kind, the subset permitted for
// table columns.
func (k FieldKind) Scalar() bool {
	switch k {
	case KindString, KindNumber, KindDate, KindYear, KindURL:
		return true
	}
	return false
}

// List reports whether k holds an ordered list of scalar values.
func (k FieldKind) List() bool {
	return k == KindStringList || k == KindURLList
}

// Selectable reports whether k declares an option list.
func (k FieldKind) Selectable() bool {
	return k == KindSingleSelect || k == KindMultiSelect || k == KindCheckboxes
}

// ChecklistMode controls the completion predicate of a checkboxes field.
type ChecklistMode string

const (
	// ChecklistAll requires every option to be checked.
	ChecklistAll ChecklistMode = "all"
	// ChecklistAny requires at least one checked option, or the declared
	// minimum count when one is set.
	ChecklistAny ChecklistMode = "any"
	// ChecklistExplicit requires every option to have been explicitly
	// answered one way or the other.
	ChecklistExplicit ChecklistMode = "explicit"
)

// Valid reports whether m names a declared checklist mode.
func (m ChecklistMode) Valid() bool {
	return m == ChecklistAll || m == ChecklistAny || m == ChecklistExplicit
}

// Checklist state tokens. Modes all/any use the done/todo pair; mode
// explicit uses yes/no with unanswered as the marker state for options
// nobody has touched yet.
const (
	CheckDone       = "done"
	CheckTodo       = "todo"
	CheckYes        = "yes"
	CheckNo         = "no"
	CheckUnanswered = "unanswered"
)
