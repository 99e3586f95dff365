package report

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/global-data-controller/countryseed/internal/models"
	"github.com/global-data-controller/countryseed/internal/storage"
	"github.com/global-data-controller/countryseed/internal/transform"
)

func states(names ...string) []models.State {
	out := make([]models.State, 0, len(names))
	for _, n := range names {
		out = append(out, models.State{Name: n})
	}
	return out
}

func TestStatesPreview(t *testing.T) {
	tests := []struct {
		name   string
		states []models.State
		want   string
	}{
		{"none", states(), ""},
		{"one", states("Riyadh"), "Riyadh"},
		{"exactly three", states("Riyadh", "Mecca", "Eastern"), "Riyadh, Mecca, Eastern"},
		{"more than three", states("Riyadh", "Mecca", "Eastern", "Asir"), "Riyadh, Mecca, Eastern..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatesPreview(tt.states))
		})
	}
}

func TestSampleLine(t *testing.T) {
	c := models.Country{
		ISO2:   "SA",
		Names:  models.Names{EN: "Saudi Arabia", AR: "السعودية"},
		Flag:   "🇸🇦",
		States: states("Riyadh", "Mecca"),
	}

	assert.Equal(t, "   🇸🇦 Saudi Arabia (السعودية) - SA | States: 2", SampleLine(c))
}

func TestPrinter_FullReport(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf)

	p.Connecting(storage.BackendMongo)
	p.Connected(storage.BackendMongo)
	p.Cleared(250)
	p.AuditWarnings(nil)
	p.Inserted(250)
	p.Summary(transform.Summary{Total: 250, MiddleEastern: 19, Other: 231, States: 321})
	p.Samples([]models.Country{
		{ISO2: "AE", Names: models.Names{EN: "United Arab Emirates", AR: "الإمارات"}, Flag: "🇦🇪", States: states("Abu Dhabi", "Ajman", "Dubai", "Fujairah")},
		{ISO2: "PS", Names: models.Names{EN: "Palestine", AR: "فلسطين"}, Flag: "", States: states()},
	})
	p.Completed()

	want := "🔄 Connecting to MongoDB...\n" +
		"✅ MongoDB connected\n" +
		"🗑️  Cleared existing countries (250 removed)\n" +
		"✅ Successfully inserted 250 countries\n" +
		"📊 Middle Eastern countries: 19\n" +
		"📊 Other countries: 231\n" +
		"📊 Total states/provinces: 321\n" +
		"\n📋 Sample countries with states:\n" +
		"   🇦🇪 United Arab Emirates (الإمارات) - AE | States: 4\n" +
		"      → Abu Dhabi, Ajman, Dubai...\n" +
		"    Palestine (فلسطين) - PS | States: 0\n" +
		"\n✅ Script completed successfully!\n"

	assert.Equal(t, want, buf.String())
	assert.NoError(t, p.Err())
}

func TestPrinter_AuditAndDryRun(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf)

	p.DryRun()
	p.AuditWarnings([]string{"a", "b"})

	assert.Contains(t, buf.String(), "Dry run")
	assert.Contains(t, buf.String(), "Audit reported 2 issue(s)")
}

type failingWriter struct{ calls int }

func (w *failingWriter) Write(p []byte) (int, error) {
	w.calls++
	return 0, errors.New("closed pipe")
}

func TestPrinter_KeepsFirstError(t *testing.T) {
	w := &failingWriter{}
	p := New(w)

	p.Inserted(1)
	p.Completed()

	assert.EqualError(t, p.Err(), "closed pipe")
	assert.Equal(t, 1, w.calls)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "YDB", DisplayName(storage.BackendYDB))
	assert.Equal(t, "custom", DisplayName("custom"))
}
