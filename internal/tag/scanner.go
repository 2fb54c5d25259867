package tag

import "strings"

// scanner walks document lines with one-line lookahead. Line numbers are
// 1-based for diagnostics.
type scanner struct {
	lines []string
	pos   int
}

func newScanner(text string) *scanner {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	return &scanner{lines: strings.Split(normalized, "\n")}
}

func (s *scanner) done() bool { return s.pos >= len(s.lines) }

func (s *scanner) peek() (string, bool) {
	if s.done() {
		return "", false
	}
	return s.lines[s.pos], true
}

func (s *scanner) next() (string, bool) {
	line, ok := s.peek()
	if ok {
		s.pos++
	}
	return line, ok
}

// lineno is the 1-based number of the line peek would return.
func (s *scanner) lineno() int { return s.pos + 1 }

// skipBlank advances past blank lines.
func (s *scanner) skipBlank() {
	for {
		line, ok := s.peek()
		if !ok || strings.TrimSpace(line) != "" {
			return
		}
		s.pos++
	}
}

// fenceLen returns the length of a leading backtick fence, or 0 when the
// line is not a fence.
func fenceLen(line string) int {
	trimmed := strings.TrimRight(line, " \t")
	n := 0
	for n < len(trimmed) && trimmed[n] == '`' {
		n++
	}
	if n < 3 {
		return 0
	}
	// An opening fence may carry an info string; a closing fence may not.
	return n
}

// fenceInfo returns the info string following a fence.
func fenceInfo(line string) string {
	trimmed := strings.TrimRight(line, " \t")
	return strings.TrimSpace(strings.TrimLeft(trimmed, "`"))
}

// readFence consumes a fenced block starting at the current line and
// returns its info string and body. The closing fence must be at least
// as long as the opener and carry no info string.
func (s *scanner) readFence() (info, body string, err error) {
	opener, _ := s.next()
	n := fenceLen(opener)
	info = fenceInfo(opener)
	var lines []string
	for {
		line, ok := s.next()
		if !ok {
			return "", "", parseErrf(s.lineno(), "unterminated fenced block (opened with %d backticks)", n)
		}
		if m := fenceLen(line); m >= n && fenceInfo(line) == "" {
			return info, strings.Join(lines, "\n"), nil
		}
		lines = append(lines, line)
	}
}

// atFence reports whether the next line opens a fenced block.
func (s *scanner) atFence() bool {
	line, ok := s.peek()
	return ok && fenceLen(line) > 0
}

// fenceFor picks a fence long enough to wrap body safely.
func fenceFor(body string) string {
	longest := 0
	for _, line := range strings.Split(body, "\n") {
		run := 0
		for run < len(line) && line[run] == '`' {
			run++
		}
		if run > longest {
			longest = run
		}
	}
	n := 3
	if longest >= n {
		n = longest + 1
	}
	return strings.Repeat("`", n)
}
