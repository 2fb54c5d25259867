package document

// ResponseState is the fill state of a field or table cell.
type ResponseState string

const (
	StateUnanswered ResponseState = "unanswered"
	StateAnswered   ResponseState = "answered"
	StateSkipped    ResponseState = "skipped"
	StateAborted    ResponseState = "aborted"
)

// Valid reports whether s names a declared response state.
func (s ResponseState) Valid() bool {
	switch s {
	case StateUnanswered, StateAnswered, StateSkipped, StateAborted:
		return true
	}
	return false
}

// Response is the current answer of a field. Value is meaningful only in
// state answered; Reason only in states skipped and aborted. Required
// fields never hold skipped.
//
// Concrete Value types by field kind:
//
//	string, date, url, single_select  string
//	number                            float64 (raw string when unparseable)
//	year                              int (raw string when unparseable)
//	string_list, url_list             []string
//	multi_select                      []string of option ids
//	checkboxes                        map[string]string, option id to state token
//	table                             []Row
type Response struct {
	State  ResponseState
	Value  any
	Reason string
}

// Answered reports whether the field holds a value.
func (r *Response) Answered() bool {
	return r != nil && r.State == StateAnswered
}

// Resolved reports whether the field needs no further attention from a
// filler: answered, skipped, or aborted.
func (r *Response) Resolved() bool {
	return r != nil && r.State != StateUnanswered
}

// Cell is one table cell. Cells are never unanswered: a row either
// carries a value for the column or records the cell as skipped or
// aborted.
type Cell struct {
	State  ResponseState
	Value  any
	Reason string
}

// Row is one table row, cells in declared column order.
type Row []Cell

// SkippedCell is the canonical empty cell.
func SkippedCell() Cell {
	return Cell{State: StateSkipped}
}
