// Package formdoc is the top-level entry point for the form document
// engine: parse a tagged document, inspect and patch it across fill
// turns, and serialize it back losslessly.
package formdoc

import (
	"context"

	"github.com/goliatone/go-formdoc/internal/tag"
	"github.com/goliatone/go-formdoc/pkg/document"
	"github.com/goliatone/go-formdoc/pkg/fill"
	"github.com/goliatone/go-formdoc/pkg/issue"
	"github.com/goliatone/go-formdoc/pkg/patch"
)

// Form re-exports the root document aggregate.
type Form = document.Form

// Config carries the document vocabulary threaded through parse and
// serialize calls.
type Config = document.Config

// Issue is one surfaced problem driving a fill turn.
type Issue = issue.Issue

// Patch is one discrete mutation request.
type Patch = patch.Patch

// Agent is the external collaborator that turns issues into patches.
type Agent = fill.Agent

// AgentFunc adapts a plain function to Agent.
type AgentFunc = fill.AgentFunc

// DefaultConfig returns the stock vocabulary (SKIP/ABORT sentinels,
// human default role, canonical syntax).
func DefaultConfig() Config {
	return document.DefaultConfig()
}

// Parse reads a document in canonical or comment tag syntax using the
// default vocabulary.
func Parse(text string) (*Form, error) {
	return ParseWithConfig(text, document.DefaultConfig())
}

// ParseWithConfig reads a document with an explicit vocabulary.
func ParseWithConfig(text string, cfg Config) (*Form, error) {
	return tag.NewParser(cfg).Parse(text)
}

// Serialize renders a form in its configured syntax.
func Serialize(form *Form) (string, error) {
	return SerializeAs(form, form.Config.Syntax)
}

// SerializeAs renders a form in the requested syntax.
func SerializeAs(form *Form, syntax document.Syntax) (string, error) {
	return tag.NewSerializer(form.Config, syntax).Serialize(form)
}

// Apply mutates a form with a best-effort patch batch.
func Apply(form *Form, patches []Patch) patch.Result {
	return patch.Apply(form, patches)
}

// Inspect computes the current issue list.
func Inspect(form *Form, opts issue.Options) []Issue {
	return issue.Inspect(form, opts)
}

// Fill runs a complete fill session over the form.
func Fill(ctx context.Context, form *Form, agent Agent, options ...fill.Option) (fill.Result, error) {
	return fill.NewSession(form, agent, options...).Run(ctx)
}
