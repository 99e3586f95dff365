package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/global-data-controller/countryseed/internal/models"
)

func country(iso2, iso3, name string) models.Country {
	return models.Country{
		ISO2:          iso2,
		ISO3:          iso3,
		Names:         models.Names{EN: name, FR: name, GR: name, RS: name, AR: name},
		MiddleEastern: models.IsMiddleEastern(iso2),
		States:        []models.State{},
	}
}

func newAuditor(t *testing.T) *Auditor {
	t.Helper()
	auditor, err := NewAuditor(context.Background(), "")
	require.NoError(t, err)
	return auditor
}

func TestAudit_CleanRecords(t *testing.T) {
	auditor := newAuditor(t)

	violations, err := auditor.Audit(context.Background(), []models.Country{
		country("SA", "SAU", "Saudi Arabia"),
		country("FR", "FRA", "France"),
	})
	require.NoError(t, err)
	assert.Empty(t, violations)
	assert.NoError(t, Enforce(violations))
}

func TestAudit_EmptyInput(t *testing.T) {
	auditor := newAuditor(t)

	violations, err := auditor.Audit(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestAudit_Violations(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func([]models.Country) []models.Country
		contains string
	}{
		{
			name: "lower-case iso2",
			mutate: func(cs []models.Country) []models.Country {
				cs[1].ISO2 = "fr"
				return cs
			},
			contains: `iso2 "fr" is not two upper-case letters`,
		},
		{
			name: "short iso3",
			mutate: func(cs []models.Country) []models.Country {
				cs[1].ISO3 = "FR"
				return cs
			},
			contains: `FR: iso3 "FR" is not three upper-case letters`,
		},
		{
			name: "empty english name",
			mutate: func(cs []models.Country) []models.Country {
				cs[0].Names = models.Names{}
				return cs
			},
			contains: "SA: names.en is empty",
		},
		{
			name: "empty translation",
			mutate: func(cs []models.Country) []models.Country {
				cs[0].Names.AR = ""
				return cs
			},
			contains: "SA: names.ar is empty",
		},
		{
			name: "duplicate iso2",
			mutate: func(cs []models.Country) []models.Country {
				return append(cs, country("SA", "SAU", "Saudi Arabia"))
			},
			contains: `iso2 "SA" is duplicated at positions 0 and 2`,
		},
		{
			name: "flagged outside the set",
			mutate: func(cs []models.Country) []models.Country {
				cs[1].MiddleEastern = true
				return cs
			},
			contains: "FR: flagged middleEastern but not in the fixed set",
		},
		{
			name: "set member not flagged",
			mutate: func(cs []models.Country) []models.Country {
				cs[0].MiddleEastern = false
				return cs
			},
			contains: "SA: in the fixed set but not flagged middleEastern",
		},
	}

	auditor := newAuditor(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := tt.mutate([]models.Country{
				country("SA", "SAU", "Saudi Arabia"),
				country("FR", "FRA", "France"),
			})

			violations, err := auditor.Audit(context.Background(), records)
			require.NoError(t, err)
			assert.Contains(t, violations, tt.contains)

			err = Enforce(violations)
			assert.ErrorIs(t, err, ErrViolations)
		})
	}
}

func TestNewAuditor_CustomModule(t *testing.T) {
	module := `package countryseed.audit

deny contains msg if {
	some c in input.countries
	count(c.states) == 0
	msg := sprintf("%s: no states", [c.iso2])
}
`
	path := filepath.Join(t.TempDir(), "custom.rego")
	require.NoError(t, os.WriteFile(path, []byte(module), 0o600))

	loaded, err := LoadModule(path)
	require.NoError(t, err)

	auditor, err := NewAuditor(context.Background(), loaded)
	require.NoError(t, err)

	violations, err := auditor.Audit(context.Background(), []models.Country{country("FR", "FRA", "France")})
	require.NoError(t, err)
	assert.Equal(t, []string{"FR: no states"}, violations)
}

func TestNewAuditor_InvalidModule(t *testing.T) {
	_, err := NewAuditor(context.Background(), "package countryseed.audit\n\ndeny contains msg if {")
	assert.Error(t, err)
}

func TestLoadModule_Missing(t *testing.T) {
	_, err := LoadModule(filepath.Join(t.TempDir(), "missing.rego"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDefaultModule(t *testing.T) {
	assert.Contains(t, DefaultModule(), "package countryseed.audit")
}
