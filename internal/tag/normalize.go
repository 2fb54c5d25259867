package tag

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	mdast "github.com/yuin/goldmark/ast"
	mdtext "github.com/yuin/goldmark/text"
)

// commentTag matches one comment-syntax tag line.
var commentTag = regexp.MustCompile(`^\s*<!--\s*formdoc:\s*(.*?)\s*-->\s*$`)

// Normalize rewrites comment-syntax tags (`<!-- formdoc: ... -->`) into
// canonical `:::` lines. The transform is pure and line-preserving so
// parser diagnostics keep their line numbers, and it is code-block
// aware: tag-shaped lines inside fenced or indented code blocks are left
// untouched. Canonical input passes through unchanged.
func Normalize(text string) (string, error) {
	if !strings.Contains(text, "formdoc:") {
		return text, nil
	}

	src := []byte(strings.ReplaceAll(text, "\r\n", "\n"))
	spans, err := codeSpans(src)
	if err != nil {
		return "", err
	}

	lines := strings.Split(string(src), "\n")
	offset := 0
	for i, line := range lines {
		start := offset
		offset += len(line) + 1
		if insideSpan(spans, start) {
			continue
		}
		if m := commentTag.FindStringSubmatch(line); m != nil {
			lines[i] = ":::" + m[1]
		}
	}
	return strings.Join(lines, "\n"), nil
}

// codeSpans returns the byte ranges covered by code block bodies in the
// Markdown structure of src.
func codeSpans(src []byte) ([][2]int, error) {
	md := goldmark.New()
	root := md.Parser().Parse(mdtext.NewReader(src))

	var spans [][2]int
	err := mdast.Walk(root, func(n mdast.Node, entering bool) (mdast.WalkStatus, error) {
		if !entering {
			return mdast.WalkContinue, nil
		}
		switch n.Kind() {
		case mdast.KindFencedCodeBlock, mdast.KindCodeBlock:
			lines := n.Lines()
			if lines.Len() > 0 {
				first := lines.At(0)
				last := lines.At(lines.Len() - 1)
				spans = append(spans, [2]int{first.Start, last.Stop})
			}
			return mdast.WalkSkipChildren, nil
		}
		return mdast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}
	return spans, nil
}

func insideSpan(spans [][2]int, pos int) bool {
	for _, span := range spans {
		if pos >= span[0] && pos < span[1] {
			return true
		}
	}
	return false
}
