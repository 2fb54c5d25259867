// Package fill runs the turn loop that drives a document to completion:
// inspect, hand issues to the agent collaborator, apply the returned
// patches, repeat. The loop is single-threaded and cooperative; the only
// suspension point is the agent call, and cancellation is observed once
// per turn boundary.
package fill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/goliatone/go-formdoc/internal/tag"
	"github.com/goliatone/go-formdoc/pkg/document"
	"github.com/goliatone/go-formdoc/pkg/issue"
	"github.com/goliatone/go-formdoc/pkg/logging"
	"github.com/goliatone/go-formdoc/pkg/patch"
)

// Agent is the external collaborator: given the outstanding issues and
// the current document text, produce at most maxPatches patches. The
// engine consumes this interface and never implements it.
type Agent interface {
	Generate(ctx context.Context, issues []issue.Issue, doc string, maxPatches int) ([]patch.Patch, error)
}

// AgentFunc adapts a function to the Agent interface.
type AgentFunc func(ctx context.Context, issues []issue.Issue, doc string, maxPatches int) ([]patch.Patch, error)

// Generate implements Agent.
func (f AgentFunc) Generate(ctx context.Context, issues []issue.Issue, doc string, maxPatches int) ([]patch.Patch, error) {
	return f(ctx, issues, doc, maxPatches)
}

// Mode selects how the session treats fields that already hold a
// response.
type Mode string

const (
	// ModeContinue leaves answered fields alone.
	ModeContinue Mode = "continue"
	// ModeOverwrite re-offers answered fields as issues. Fields owned by
	// roles outside the target set, and incomplete blocking checkpoints,
	// are still protected from clearing.
	ModeOverwrite Mode = "overwrite"
)

// Status is the terminal state of a session.
type Status string

const (
	StatusComplete Status = "complete"
	// StatusMaxTurns means the turn budget ran out before completion.
	StatusMaxTurns Status = "max_turns"
	// StatusBlocked means the issue set is empty but the document is not
	// valid; nothing in the targeted role set can make progress.
	StatusBlocked Status = "blocked"
	StatusCancelled Status = "cancelled"
	StatusError     Status = "error"
)

// Progress is handed to the progress callback after each turn.
type Progress struct {
	Turn     int
	Issues   int
	Applied  int
	Rejected int
}

// Result is the session outcome. The document text and value map are
// populated for every status: the engine never discards partial
// progress.
type Result struct {
	Status   Status
	Document string
	Values   map[string]any
	Turns    int
	Warnings []string
	Err      error
}

const (
	defaultMaxTurns   = 10
	defaultMaxPatches = 20
)

// Option customizes a session.
type Option func(*Session)

// WithRoles restricts the session to fields owned by the given roles.
func WithRoles(roles ...string) Option {
	return func(s *Session) { s.roles = roles }
}

// WithMode selects continue or overwrite behavior.
func WithMode(mode Mode) Option {
	return func(s *Session) { s.mode = mode }
}

// WithMaxTurns caps the number of agent turns.
func WithMaxTurns(n int) Option {
	return func(s *Session) { s.maxTurns = n }
}

// WithMaxPatchesPerTurn caps the patch count accepted from one agent
// call; extra patches are dropped with a warning.
func WithMaxPatchesPerTurn(n int) Option {
	return func(s *Session) { s.maxPatches = n }
}

// WithPreFill seeds field values before the first turn. Pre-fill is
// fail-fast: any value the coercion layer cannot accept aborts the whole
// session before a turn runs.
func WithPreFill(values map[string]any) Option {
	return func(s *Session) { s.prefill = values }
}

// WithLogger sets the session logger; see pkg/logging for fan-out.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithProgress registers a callback invoked synchronously after each
// turn. A callback error is logged, never fatal.
func WithProgress(fn func(Progress) error) Option {
	return func(s *Session) { s.progress = fn }
}

// WithForceCheckpoints permits clearing incomplete blocking checkpoints
// in overwrite mode.
func WithForceCheckpoints() Option {
	return func(s *Session) { s.forceCheckpoints = true }
}

// Session owns one fill run over one document. Sessions are not reused
// and documents are not shared between sessions.
type Session struct {
	form  *document.Form
	agent Agent

	roles            []string
	mode             Mode
	maxTurns         int
	maxPatches       int
	prefill          map[string]any
	logger           *slog.Logger
	progress         func(Progress) error
	forceCheckpoints bool
}

// NewSession constructs a session with defaults applied.
func NewSession(form *document.Form, agent Agent, options ...Option) *Session {
	s := &Session{
		form:       form,
		agent:      agent,
		mode:       ModeContinue,
		maxTurns:   defaultMaxTurns,
		maxPatches: defaultMaxPatches,
		logger:     logging.Discard(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Run executes the loop to a terminal status. The returned error is also
// recorded on the result; callers that only care about the outcome can
// ignore it.
func (s *Session) Run(ctx context.Context) (Result, error) {
	if s.form == nil {
		return Result{Status: StatusError, Err: errors.New("fill: document is required")}, errors.New("fill: document is required")
	}
	if s.agent == nil {
		return s.finish(StatusError, 0, nil, errors.New("fill: agent is required"))
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var warnings []string

	if len(s.prefill) > 0 {
		prefillWarnings, err := s.applyPreFill()
		warnings = append(warnings, prefillWarnings...)
		if err != nil {
			return s.finish(StatusError, 0, warnings, err)
		}
	}

	turns := 0
	for {
		if err := ctx.Err(); err != nil {
			s.logger.Info("fill session cancelled", "turns", turns)
			return s.finish(StatusCancelled, turns, warnings, nil)
		}

		issues := issue.Inspect(s.form, issue.Options{
			Roles:     s.roles,
			Overwrite: s.mode == ModeOverwrite,
		})
		if len(issues) == 0 {
			if issue.Valid(s.form) {
				s.logger.Info("fill session complete", "turns", turns)
				return s.finish(StatusComplete, turns, warnings, nil)
			}
			s.logger.Info("fill session blocked", "turns", turns)
			return s.finish(StatusBlocked, turns, warnings, nil)
		}
		if turns >= s.maxTurns {
			s.logger.Info("fill session hit turn budget", "turns", turns, "open_issues", len(issues))
			return s.finish(StatusMaxTurns, turns, warnings, nil)
		}
		turns++

		text, err := s.serialize()
		if err != nil {
			return s.finish(StatusError, turns, warnings, err)
		}

		s.logger.Debug("fill turn start", "turn", turns, "issues", len(issues))
		patches, err := s.agent.Generate(ctx, issues, text, s.maxPatches)
		if err != nil {
			return s.finish(StatusError, turns, warnings, fmt.Errorf("fill: agent: %w", err))
		}
		if len(patches) > s.maxPatches {
			warnings = append(warnings, fmt.Sprintf("turn %d: agent returned %d patches, kept the first %d", turns, len(patches), s.maxPatches))
			patches = patches[:s.maxPatches]
		}

		kept, guarded := s.guard(patches)
		warnings = append(warnings, guarded...)

		result := patch.Apply(s.form, kept)
		warnings = append(warnings, result.Warnings...)
		for _, rejection := range result.Rejected {
			warnings = append(warnings, fmt.Sprintf("turn %d: patch %d rejected: %s", turns, rejection.Index, rejection.Reason))
		}
		s.logger.Debug("fill turn done",
			"turn", turns, "status", string(result.Status),
			"applied", len(result.Applied), "rejected", len(result.Rejected))

		if s.progress != nil {
			p := Progress{Turn: turns, Issues: len(issues), Applied: len(result.Applied), Rejected: len(result.Rejected)}
			if err := s.progress(p); err != nil {
				s.logger.Warn("progress callback failed", "turn", turns, "error", err)
			}
		}
	}
}

// applyPreFill turns the seed map into set patches and applies them as
// one batch. Unlike in-loop patches, a single rejection is fatal.
func (s *Session) applyPreFill() ([]string, error) {
	ids := make([]string, 0, len(s.prefill))
	for id := range s.prefill {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	patches := make([]patch.Patch, 0, len(ids))
	for _, id := range ids {
		fld, ok := s.form.Field(id)
		if !ok {
			return nil, fmt.Errorf("fill: pre-fill targets unknown field %q", id)
		}
		p := patch.Patch{Op: patch.ForKind(fld.Kind), Field: id}
		if fld.Kind == document.KindTable {
			rows, ok := s.prefill[id].([]map[string]any)
			if !ok {
				return nil, fmt.Errorf("fill: pre-fill for table %q must be row maps, got %T", id, s.prefill[id])
			}
			p.Rows = rows
		} else {
			p.Value = s.prefill[id]
		}
		patches = append(patches, p)
	}

	result := patch.Apply(s.form, patches)
	if len(result.Rejected) > 0 {
		first := result.Rejected[0]
		return result.Warnings, fmt.Errorf("fill: pre-fill rejected for field %q: %s", patches[first.Index].Field, first.Reason)
	}
	return result.Warnings, nil
}

// guard drops patches the session is not allowed to apply: mutations on
// fields outside the targeted role set, and clears of an incomplete
// blocking checkpoint unless forced.
func (s *Session) guard(patches []patch.Patch) ([]patch.Patch, []string) {
	checkpoint, _ := issue.FirstIncompleteCheckpoint(s.form)

	var kept []patch.Patch
	var dropped []string
	for _, p := range patches {
		if len(s.roles) > 0 && p.Op != patch.OpAddNote && p.Op != patch.OpRemoveNote {
			if fld, ok := s.form.Field(p.Field); ok && !s.roleTargeted(fld.Role) {
				dropped = append(dropped, fmt.Sprintf("dropped %s on field %q: owned by role %q outside the session's role set", p.Op, p.Field, fld.Role))
				continue
			}
		}
		if p.Op == patch.OpClearField && p.Field == checkpoint && checkpoint != "" && !s.forceCheckpoints {
			dropped = append(dropped, fmt.Sprintf("dropped clear_field on %q: incomplete blocking checkpoint", p.Field))
			continue
		}
		kept = append(kept, p)
	}
	return kept, dropped
}

func (s *Session) roleTargeted(role string) bool {
	for _, r := range s.roles {
		if r == role {
			return true
		}
	}
	return false
}

func (s *Session) serialize() (string, error) {
	sz := tag.NewSerializer(s.form.Config, s.form.Config.Syntax)
	text, err := sz.Serialize(s.form)
	if err != nil {
		return "", fmt.Errorf("fill: serialize document: %w", err)
	}
	return text, nil
}

// finish assembles the result; the partially filled document is always
// included, whatever the status.
func (s *Session) finish(status Status, turns int, warnings []string, err error) (Result, error) {
	result := Result{
		Status:   status,
		Values:   s.form.Values(),
		Turns:    turns,
		Warnings: warnings,
		Err:      err,
	}
	if text, serr := s.serialize(); serr == nil {
		result.Document = text
	} else if err == nil {
		result.Err = serr
		err = serr
	}
	return result, err
}
