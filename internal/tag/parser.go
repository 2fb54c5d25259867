package tag

import (
	"strings"

	"github.com/goliatone/go-formdoc/pkg/document"
	"github.com/goliatone/go-formdoc/pkg/ref"
)

// Parser turns raw tag-syntax text into a document form. Comment-syntax
// input is normalized to the canonical syntax first; normalization is
// line-preserving so diagnostics keep their line numbers.
type Parser struct {
	cfg document.Config
}

// NewParser constructs a parser with the supplied vocabulary.
func NewParser(cfg document.Config) *Parser {
	return &Parser{cfg: cfg}
}

// tagName returns the tag of a `:::tag ...` line, or "" for non-tag
// lines.
func tagName(line string) string {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, ":::") {
		return ""
	}
	rest := trimmed[3:]
	if i := strings.IndexAny(rest, " \t"); i >= 0 {
		return rest[:i]
	}
	return rest
}

// tagRest returns everything after the tag token.
func tagRest(line string) string {
	trimmed := strings.TrimSpace(line)
	rest := strings.TrimPrefix(trimmed, ":::")
	if i := strings.IndexAny(rest, " \t"); i >= 0 {
		return rest[i+1:]
	}
	return ""
}

// Parse builds the form or fails with a fatal *ParseError. Soft problems
// (bad formats, incomplete checklists) are left for the validator; only
// structural damage is fatal here.
func (p *Parser) Parse(text string) (*document.Form, error) {
	if err := p.cfg.Validate(); err != nil {
		return nil, err
	}
	normalized, err := Normalize(text)
	if err != nil {
		return nil, err
	}

	s := newScanner(normalized)
	form := document.New(p.cfg)

	s.skipBlank()
	line, ok := s.peek()
	if !ok || tagName(line) != "form" {
		return nil, parseErrf(s.lineno(), "document must open with :::form")
	}
	s.next()
	a, err := parseAttrs(tagRest(line))
	if err != nil {
		return nil, parseErrf(s.lineno()-1, "form: %v", err)
	}
	form.ID, err = a.require("id")
	if err != nil {
		return nil, parseErrf(s.lineno()-1, "form: %v", err)
	}
	if !document.ValidIdentifier(form.ID) {
		return nil, parseErrf(s.lineno()-1, "form: invalid identifier %q", form.ID)
	}
	form.Title, _ = a.get("title")
	if leftover := a.unknown(); len(leftover) > 0 {
		return nil, parseErrf(s.lineno()-1, "form: unknown attributes: %s", strings.Join(leftover, ", "))
	}
	if err := form.Index.Add(form.ID, document.RefForm); err != nil {
		return nil, parseErrf(s.lineno()-1, "%v", err)
	}

	closed := false
	for !closed {
		s.skipBlank()
		line, ok := s.peek()
		if !ok {
			return nil, parseErrf(s.lineno(), "missing :::endform")
		}
		lineno := s.lineno()
		switch name := tagName(line); name {
		case "endform":
			s.next()
			closed = true
		case "role":
			if err := p.parseRole(s, form); err != nil {
				return nil, err
			}
		case "group":
			grp, err := p.parseGroup(s, form, 0)
			if err != nil {
				return nil, err
			}
			form.Groups = append(form.Groups, *grp)
		case "field":
			fld, resp, err := p.parseField(s, form)
			if err != nil {
				return nil, err
			}
			p.attachRoot(form, fld, resp)
		case "describe":
			if err := p.parseDescribe(s, form); err != nil {
				return nil, err
			}
		case "note":
			if err := p.parseNote(s, form); err != nil {
				return nil, err
			}
		case "":
			return nil, parseErrf(lineno, "unexpected content outside a tag: %q", strings.TrimSpace(line))
		default:
			return nil, parseErrf(lineno, "unknown tag %q", name)
		}
	}

	s.skipBlank()
	if trailing, ok := s.peek(); ok {
		return nil, parseErrf(s.lineno(), "content after :::endform: %q", strings.TrimSpace(trailing))
	}

	if err := p.linkCheck(form); err != nil {
		return nil, err
	}
	return form, nil
}

// attachRoot adds a root-level field to the single implicit group,
// creating it in place so serialization keeps document position.
func (p *Parser) attachRoot(form *document.Form, fld *document.Field, resp document.Response) {
	form.Fields[fld.ID] = fld
	form.Order = append(form.Order, fld.ID)
	form.SetResponse(fld.ID, resp)
	for i := range form.Groups {
		if form.Groups[i].Implicit {
			form.Groups[i].FieldIDs = append(form.Groups[i].FieldIDs, fld.ID)
			return
		}
	}
	form.Groups = append(form.Groups, document.Group{Implicit: true, FieldIDs: []string{fld.ID}})
}

func (p *Parser) parseRole(s *scanner, form *document.Form) error {
	lineno := s.lineno()
	line, _ := s.next()
	a, err := parseAttrs(tagRest(line))
	if err != nil {
		return parseErrf(lineno, "role: %v", err)
	}
	id, err := a.require("id")
	if err != nil {
		return parseErrf(lineno, "role: %v", err)
	}
	if !document.ValidIdentifier(id) {
		return parseErrf(lineno, "role: invalid identifier %q", id)
	}
	if leftover := a.unknown(); len(leftover) > 0 {
		return parseErrf(lineno, "role %q: unknown attributes: %s", id, strings.Join(leftover, ", "))
	}
	if err := form.Index.Add(id, document.RefRole); err != nil {
		return parseErrf(lineno, "%v", err)
	}
	role := document.Role{ID: id}
	if s.atFence() {
		info, body, err := s.readFence()
		if err != nil {
			return err
		}
		if info != "instructions" {
			return parseErrf(lineno, "role %q: expected an instructions block, got %q", id, info)
		}
		role.Instructions = body
	}
	form.Roles = append(form.Roles, role)
	return nil
}

const maxGroupDepth = 16

func (p *Parser) parseGroup(s *scanner, form *document.Form, depth int) (*document.Group, error) {
	if depth >= maxGroupDepth {
		return nil, parseErrf(s.lineno(), "groups nested deeper than %d levels", maxGroupDepth)
	}
	lineno := s.lineno()
	line, _ := s.next()
	a, err := parseAttrs(tagRest(line))
	if err != nil {
		return nil, parseErrf(lineno, "group: %v", err)
	}
	id, err := a.require("id")
	if err != nil {
		return nil, parseErrf(lineno, "group: %v", err)
	}
	if !document.ValidIdentifier(id) {
		return nil, parseErrf(lineno, "group: invalid identifier %q", id)
	}
	grp := &document.Group{ID: id}
	grp.Title, _ = a.get("title")
	if leftover := a.unknown(); len(leftover) > 0 {
		return nil, parseErrf(lineno, "group %q: unknown attributes: %s", id, strings.Join(leftover, ", "))
	}
	if err := form.Index.Add(id, document.RefGroup); err != nil {
		return nil, parseErrf(lineno, "%v", err)
	}

	for {
		s.skipBlank()
		line, ok := s.peek()
		if !ok {
			return nil, parseErrf(s.lineno(), "group %q: missing :::endgroup", id)
		}
		switch name := tagName(line); name {
		case "endgroup":
			s.next()
			return grp, nil
		case "field":
			fld, resp, err := p.parseField(s, form)
			if err != nil {
				return nil, err
			}
			form.Fields[fld.ID] = fld
			form.Order = append(form.Order, fld.ID)
			form.SetResponse(fld.ID, resp)
			grp.FieldIDs = append(grp.FieldIDs, fld.ID)
		case "group":
			child, err := p.parseGroup(s, form, depth+1)
			if err != nil {
				return nil, err
			}
			grp.Children = append(grp.Children, *child)
		default:
			return nil, parseErrf(s.lineno(), "group %q: unexpected tag %q", id, name)
		}
	}
}

// parseField reads one :::field line plus its optional payload: an
// inline value attribute, a state marker, an adjacent fenced value
// block, or an adjacent :::rows table.
func (p *Parser) parseField(s *scanner, form *document.Form) (*document.Field, document.Response, error) {
	lineno := s.lineno()
	line, _ := s.next()
	a, err := parseAttrs(tagRest(line))
	if err != nil {
		return nil, document.Response{}, parseErrf(lineno, "field: %v", err)
	}

	inline, hasInline := a.get("value")
	stateAttr, hasState := a.get("state")

	fld, err := parseFieldAttrs(a, p.cfg, lineno)
	if err != nil {
		return nil, document.Response{}, err
	}
	if err := form.Index.Add(fld.ID, document.RefField); err != nil {
		return nil, document.Response{}, parseErrf(lineno, "%v", err)
	}

	resp := document.Response{State: document.StateUnanswered}
	payloads := 0

	if hasState {
		state := document.ResponseState(stateAttr)
		if state != document.StateSkipped && state != document.StateAborted {
			return nil, document.Response{}, parseErrf(lineno, "field %q: state attribute must be skipped or aborted, got %q", fld.ID, stateAttr)
		}
		if fld.Required && state == document.StateSkipped {
			return nil, document.Response{}, parseErrf(lineno, "field %q is required and cannot be skipped", fld.ID)
		}
		resp = document.Response{State: state}
		payloads++
	}

	if hasInline {
		resp, err = payloadToResponse(fld, inline, p.cfg, lineno)
		if err != nil {
			return nil, document.Response{}, err
		}
		payloads++
	}

	if s.atFence() {
		info, body, err := s.readFence()
		if err != nil {
			return nil, document.Response{}, err
		}
		if info != "value" {
			return nil, document.Response{}, parseErrf(lineno, "field %q: expected a value block, got %q", fld.ID, info)
		}
		resp, err = linesToResponse(fld, body, p.cfg, lineno)
		if err != nil {
			return nil, document.Response{}, err
		}
		payloads++
	}

	if next, ok := s.peek(); ok && tagName(next) == "rows" {
		if fld.Kind != document.KindTable {
			return nil, document.Response{}, parseErrf(s.lineno(), "field %q: :::rows requires a table field", fld.ID)
		}
		rows, err := parseRows(s, fld, p.cfg)
		if err != nil {
			return nil, document.Response{}, err
		}
		resp = document.Response{State: document.StateAnswered, Value: rows}
		payloads++
	}

	if payloads > 1 {
		return nil, document.Response{}, parseErrf(lineno, "field %q declares more than one value payload", fld.ID)
	}
	return fld, resp, nil
}

func (p *Parser) parseDescribe(s *scanner, form *document.Form) error {
	lineno := s.lineno()
	line, _ := s.next()
	a, err := parseAttrs(tagRest(line))
	if err != nil {
		return parseErrf(lineno, "describe: %v", err)
	}
	target, err := a.require("target")
	if err != nil {
		return parseErrf(lineno, "describe: %v", err)
	}
	kindRaw, err := a.require("kind")
	if err != nil {
		return parseErrf(lineno, "describe: %v", err)
	}
	kind := document.DocBlockKind(kindRaw)
	if !kind.Valid() {
		return parseErrf(lineno, "describe: unknown kind %q", kindRaw)
	}
	if leftover := a.unknown(); len(leftover) > 0 {
		return parseErrf(lineno, "describe: unknown attributes: %s", strings.Join(leftover, ", "))
	}
	if !s.atFence() {
		return parseErrf(s.lineno(), "describe %s: missing text block", target)
	}
	info, body, err := s.readFence()
	if err != nil {
		return err
	}
	if info != "text" {
		return parseErrf(lineno, "describe %s: expected a text block, got %q", target, info)
	}
	form.Docs = append(form.Docs, document.DocBlock{Kind: kind, Target: target, Body: body})
	return nil
}

func (p *Parser) parseNote(s *scanner, form *document.Form) error {
	lineno := s.lineno()
	line, _ := s.next()
	a, err := parseAttrs(tagRest(line))
	if err != nil {
		return parseErrf(lineno, "note: %v", err)
	}
	target, err := a.require("target")
	if err != nil {
		return parseErrf(lineno, "note: %v", err)
	}
	role, err := a.require("role")
	if err != nil {
		return parseErrf(lineno, "note: %v", err)
	}
	if leftover := a.unknown(); len(leftover) > 0 {
		return parseErrf(lineno, "note: unknown attributes: %s", strings.Join(leftover, ", "))
	}
	if !s.atFence() {
		return parseErrf(s.lineno(), "note on %s: missing text block", target)
	}
	info, body, err := s.readFence()
	if err != nil {
		return err
	}
	if info != "text" {
		return parseErrf(lineno, "note on %s: expected a text block, got %q", target, info)
	}
	form.Notes = append(form.Notes, document.Note{Target: target, Role: role, Text: body})
	return nil
}

// linkCheck runs after the whole document is read, so forward references
// are legal: documentation targets, note targets and roles, field roles,
// and validator references must all land somewhere.
func (p *Parser) linkCheck(form *document.Form) error {
	declaredRole := func(id string) bool {
		if id == p.cfg.DefaultRole {
			return true
		}
		kind, ok := form.Index.Kind(id)
		return ok && kind == document.RefRole
	}

	for _, doc := range form.Docs {
		kind, ok := form.Index.Kind(doc.Target)
		if !ok {
			return parseErrf(0, "describe references unknown identifier %q", doc.Target)
		}
		if kind == document.RefRole {
			return parseErrf(0, "describe target %q is a role; only form, group, or field targets are allowed", doc.Target)
		}
	}
	for _, note := range form.Notes {
		if !form.Index.Has(note.Target) {
			return parseErrf(0, "note references unknown identifier %q", note.Target)
		}
		if !declaredRole(note.Role) {
			return parseErrf(0, "note on %q attributed to undeclared role %q", note.Target, note.Role)
		}
	}
	for _, id := range form.Order {
		fld := form.Fields[id]
		if !declaredRole(fld.Role) {
			return parseErrf(0, "field %q assigned to undeclared role %q", id, fld.Role)
		}
		for _, validator := range fld.Validators {
			if _, err := ref.ParseResolve(validator, form, nil); err != nil {
				return parseErrf(0, "field %q: validator reference: %v", id, err)
			}
		}
	}
	return nil
}
