// Package report writes the human-readable progress and summary of a seed
// run.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/global-data-controller/countryseed/internal/models"
	"github.com/global-data-controller/countryseed/internal/storage"
	"github.com/global-data-controller/countryseed/internal/transform"
)

// PreviewStates is how many subdivision names a sample line shows.
const PreviewStates = 3

var backendNames = map[string]string{
	storage.BackendMongo:    "MongoDB",
	storage.BackendYDB:      "YDB",
	storage.BackendPostgres: "PostgreSQL",
	storage.BackendSQLite:   "SQLite",
	storage.BackendMemory:   "in-memory store",
}

// DisplayName returns the name used for backend in progress lines.
func DisplayName(backend string) string {
	if name, ok := backendNames[backend]; ok {
		return name
	}
	return backend
}

// Printer writes report lines to w. The first write error is kept and
// later writes are skipped.
type Printer struct {
	w   io.Writer
	err error
}

// New returns a Printer writing to w.
func New(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Err returns the first write error.
func (p *Printer) Err() error {
	return p.err
}

func (p *Printer) printf(format string, args ...interface{}) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *Printer) DryRun() {
	p.printf("🧪 Dry run: records are kept in memory only\n")
}

func (p *Printer) Connecting(backend string) {
	p.printf("🔄 Connecting to %s...\n", DisplayName(backend))
}

func (p *Printer) Connected(backend string) {
	p.printf("✅ %s connected\n", DisplayName(backend))
}

func (p *Printer) Cleared(removed int64) {
	p.printf("🗑️  Cleared existing countries (%d removed)\n", removed)
}

func (p *Printer) AuditWarnings(violations []string) {
	if len(violations) == 0 {
		return
	}
	p.printf("⚠️  Audit reported %d issue(s)\n", len(violations))
}

func (p *Printer) Inserted(n int) {
	p.printf("✅ Successfully inserted %d countries\n", n)
}

// Summary prints the aggregate counts.
func (p *Printer) Summary(s transform.Summary) {
	p.printf("📊 Middle Eastern countries: %d\n", s.MiddleEastern)
	p.printf("📊 Other countries: %d\n", s.Other)
	p.printf("📊 Total states/provinces: %d\n", s.States)
}

// Samples prints one line per sample and, when it has subdivisions, a
// second line with the first few names.
func (p *Printer) Samples(samples []models.Country) {
	p.printf("\n📋 Sample countries with states:\n")
	for _, c := range samples {
		p.printf("%s\n", SampleLine(c))
		if preview := StatesPreview(c.States); preview != "" {
			p.printf("      → %s\n", preview)
		}
	}
}

func (p *Printer) Completed() {
	p.printf("\n✅ Script completed successfully!\n")
}

// SampleLine formats the headline of a sample record.
func SampleLine(c models.Country) string {
	return fmt.Sprintf("   %s %s (%s) - %s | States: %d", c.Flag, c.Names.EN, c.Names.AR, c.ISO2, len(c.States))
}

// StatesPreview joins the first PreviewStates names and appends "..." when
// more exist. It is empty for no states.
func StatesPreview(states []models.State) string {
	if len(states) == 0 {
		return ""
	}

	n := len(states)
	if n > PreviewStates {
		n = PreviewStates
	}

	names := make([]string, 0, n)
	for _, s := range states[:n] {
		names = append(names, s.Name)
	}

	preview := strings.Join(names, ", ")
	if len(states) > PreviewStates {
		preview += "..."
	}
	return preview
}
