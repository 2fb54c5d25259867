package tag

import "fmt"

// ParseError is a fatal document error. The whole document is unusable;
// a fill session never starts from one of these.
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("tag parser: line %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("tag parser: %s", e.Reason)
}

func parseErrf(line int, format string, args ...any) error {
	return &ParseError{Line: line, Reason: fmt.Sprintf(format, args...)}
}
