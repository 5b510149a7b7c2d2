// Package report renders the outcome of a compare pass and mails it to operators.
package report

import (
	"fmt"
	"strings"
	"time"

	"catalogsync/internal/mutator"
	"catalogsync/internal/reconcile"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Pass is everything known about a finished compare pass.
type Pass struct {
	RunID     string
	StartedAt time.Time
	Summary   reconcile.Summary
	Outcomes  []mutator.Outcome
	DryRun    bool
	Err       error
}

// Subject is a one line description of the pass, fit for an email subject.
func (p Pass) Subject() string {
	failed := len(mutator.Failures(p.Outcomes))
	status := "ok"
	switch {
	case p.Err != nil:
		status = "failed"
	case failed > 0:
		status = fmt.Sprintf("%d failed", failed)
	}
	return fmt.Sprintf(
		"catalog sync %s: %d updates, %d creates, %d deletes (%s)",
		p.StartedAt.Format("2006-01-02 15:04"),
		p.Summary.Updates,
		p.Summary.Creates,
		p.Summary.Deletes,
		status,
	)
}

// Summary renders a plain text summary of the pass, failed actions are listed
// with their sku and error.
func Summary(p Pass) string {
	var out strings.Builder

	if p.RunID != "" {
		fmt.Fprintf(&out, "run %s\n", p.RunID)
	}
	fmt.Fprintf(&out, "started %s\n", p.StartedAt.Format(time.RFC1123))
	if p.DryRun {
		out.WriteString("dry run, nothing was applied\n")
	}
	if p.Err != nil {
		fmt.Fprintf(&out, "error: %v\n", p.Err)
	}
	out.WriteString("\n")

	counts := table.NewWriter()
	counts.SetStyle(table.StyleLight)
	counts.AppendHeader(table.Row{"Updates", "Creates", "Deletes", "Unchanged"})
	counts.AppendRow(table.Row{p.Summary.Updates, p.Summary.Creates, p.Summary.Deletes, p.Summary.Unchanged})
	out.WriteString(counts.Render())
	out.WriteString("\n")

	failures := mutator.Failures(p.Outcomes)
	if len(failures) == 0 {
		return out.String()
	}

	fmt.Fprintf(&out, "\n%d of %d actions failed:\n", len(failures), len(p.Outcomes))
	failed := table.NewWriter()
	failed.SetStyle(table.StyleLight)
	failed.AppendHeader(table.Row{"Action", "SKU", "Price", "Error"})
	for _, o := range failures {
		failed.AppendRow(table.Row{o.Action.Kind.String(), o.Action.SKU, o.Action.Price.String(), o.Err.Error()})
	}
	out.WriteString(failed.Render())
	out.WriteString("\n")
	return out.String()
}
