package storage

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/global-data-controller/countryseed/internal/models"
)

func fixtureCountries() []models.Country {
	country := func(iso2, iso3, name string, states ...string) models.Country {
		c := models.Country{
			ISO2:          iso2,
			ISO3:          iso3,
			Names:         models.Names{EN: name, FR: name, GR: name, RS: name, AR: name},
			MiddleEastern: models.IsMiddleEastern(iso2),
			Flag:          "",
			States:        []models.State{},
		}
		for _, s := range states {
			c.States = append(c.States, models.State{Name: s})
		}
		return c
	}
	return []models.Country{
		country("AE", "ARE", "United Arab Emirates", "Abu Dhabi", "Dubai"),
		country("FR", "FRA", "France"),
		country("SA", "SAU", "Saudi Arabia", "Riyadh", "Mecca"),
		country("EG", "EGY", "Egypt", "Cairo"),
		country("DE", "DEU", "Germany", "Bavaria"),
		country("IQ", "IRQ", "Iraq"),
		country("JO", "JOR", "Jordan"),
		country("KW", "KWT", "Kuwait"),
		country("QA", "QAT", "Qatar"),
	}
}

// runStoreContract exercises the behavior every backend must share.
func runStoreContract(t *testing.T, store Store) {
	ctx := context.Background()
	records := fixtureCountries()

	t.Run("Clear empties the collection", func(t *testing.T) {
		_, err := store.Clear(ctx)
		require.NoError(t, err)
		n, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
	})

	t.Run("InsertMany writes every record", func(t *testing.T) {
		inserted, err := store.InsertMany(ctx, records)
		require.NoError(t, err)
		assert.Equal(t, len(records), inserted)

		n, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(len(records)), n)
	})

	t.Run("SampleMiddleEastern is bounded and filtered", func(t *testing.T) {
		sample, err := store.SampleMiddleEastern(ctx, 5)
		require.NoError(t, err)
		assert.Len(t, sample, 5)
		for _, c := range sample {
			assert.True(t, c.MiddleEastern, c.ISO2)
			assert.NotNil(t, c.States)
		}

		all, err := store.SampleMiddleEastern(ctx, 100)
		require.NoError(t, err)
		assert.Len(t, all, 7)
	})

	t.Run("documents round trip", func(t *testing.T) {
		sample, err := store.SampleMiddleEastern(ctx, 100)
		require.NoError(t, err)
		byCode := make(map[string]models.Country, len(sample))
		for _, c := range sample {
			byCode[c.ISO2] = c
		}
		assert.Equal(t, records[2], byCode["SA"])
		assert.Equal(t, records[5], byCode["IQ"])
	})

	t.Run("Duplicate iso2 fails", func(t *testing.T) {
		_, err := store.InsertMany(ctx, records[:1])
		assert.Error(t, err)
	})

	t.Run("Reloading yields one document per record", func(t *testing.T) {
		for run := 0; run < 2; run++ {
			_, err := store.Clear(ctx)
			require.NoError(t, err, fmt.Sprintf("run %d", run))
			_, err = store.InsertMany(ctx, records)
			require.NoError(t, err, fmt.Sprintf("run %d", run))
		}
		n, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(len(records)), n)
	})

	t.Run("Clear reports removed documents", func(t *testing.T) {
		removed, err := store.Clear(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(len(records)), removed)
	})
}
