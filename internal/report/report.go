// Package report holds the audit trail produced by a translation: one entry
// per observable change, grouped by step, plus record counts.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/roach88/osversion/internal/ir"
)

// Kind identifies what an entry records.
type Kind string

const (
	KindFieldInserted     Kind = "field-inserted"
	KindFieldDeleted      Kind = "field-deleted"
	KindFieldRenamed      Kind = "field-renamed"
	KindFieldRetyped      Kind = "field-retyped"
	KindEnumRemapped      Kind = "enum-remapped"
	KindUnmappedEnumValue Kind = "unmapped-enum-value"
	KindTypeRenamed       Kind = "type-renamed"
	KindRecordSplit       Kind = "record-split"
	KindRecordMerged      Kind = "record-merged"
	KindReferenceRemapped Kind = "reference-remapped"
)

// Entry describes one change to one record during one step.
type Entry struct {
	Step       string    `json:"step"`
	Kind       Kind      `json:"kind"`
	Handle     ir.Handle `json:"handle"`
	RecordType string    `json:"record_type"`
	Field      string    `json:"field,omitempty"`
	Index      int       `json:"index"`
	Old        string    `json:"old,omitempty"`
	New        string    `json:"new,omitempty"`
}

// Warning reports whether the entry is a non-fatal audit flag rather than
// an applied change.
func (e Entry) Warning() bool {
	return e.Kind == KindUnmappedEnumValue
}

// String renders the entry on one line.
func (e Entry) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s", e.Kind, e.RecordType, e.Handle)
	if e.Index >= 0 {
		fmt.Fprintf(&b, " [%d]", e.Index)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " %q", e.Field)
	}
	if e.Old != "" || e.New != "" {
		fmt.Fprintf(&b, ": %q -> %q", e.Old, e.New)
	}
	return b.String()
}

// StepSummary aggregates one step's effect.
type StepSummary struct {
	From     ir.VersionTag `json:"from"`
	To       ir.VersionTag `json:"to"`
	Records  int           `json:"records"`
	Touched  int           `json:"touched"`
	Added    int           `json:"added"`
	Removed  int           `json:"removed"`
	Warnings int           `json:"warnings"`
}

// Name returns the "from->to" step label.
func (s StepSummary) Name() string {
	return s.From.String() + "->" + s.To.String()
}

// Report is the structured outcome of one translate call.
type Report struct {
	From     ir.VersionTag `json:"from"`
	To       ir.VersionTag `json:"to"`
	Steps    []StepSummary `json:"steps"`
	Entries  []Entry       `json:"entries"`
	Added    int           `json:"added"`
	Removed  int           `json:"removed"`
	Modified int           `json:"modified"`
}

// New creates an empty report for a translation from one version to another.
func New(from, to ir.VersionTag) *Report {
	return &Report{From: from, To: to, Steps: []StepSummary{}, Entries: []Entry{}}
}

// Empty reports whether the translation changed nothing.
func (r *Report) Empty() bool {
	return len(r.Steps) == 0 && len(r.Entries) == 0 && r.Added == 0 && r.Removed == 0 && r.Modified == 0
}

// Warnings returns the non-fatal entries in order.
func (r *Report) Warnings() []Entry {
	var out []Entry
	for _, e := range r.Entries {
		if e.Warning() {
			out = append(out, e)
		}
	}
	return out
}

// EntriesFor returns the entries recorded against handle h.
func (r *Report) EntriesFor(h ir.Handle) []Entry {
	var out []Entry
	for _, e := range r.Entries {
		if e.Handle == h {
			out = append(out, e)
		}
	}
	return out
}

// Count returns how many entries have kind k.
func (r *Report) Count(k Kind) int {
	n := 0
	for _, e := range r.Entries {
		if e.Kind == k {
			n++
		}
	}
	return n
}

// WriteText renders the report as plain text.
func (r *Report) WriteText(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "translation %s -> %s\n", r.From, r.To)
	fmt.Fprintf(&b, "added=%d removed=%d modified=%d warnings=%d\n",
		r.Added, r.Removed, r.Modified, len(r.Warnings()))

	for _, s := range r.Steps {
		fmt.Fprintf(&b, "\nstep %s records=%d touched=%d added=%d removed=%d warnings=%d\n",
			s.Name(), s.Records, s.Touched, s.Added, s.Removed, s.Warnings)
		for _, e := range r.Entries {
			if e.Step != s.Name() {
				continue
			}
			prefix := "  "
			if e.Warning() {
				prefix = "! "
			}
			b.WriteString(prefix)
			b.WriteString(e.String())
			b.WriteByte('\n')
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
