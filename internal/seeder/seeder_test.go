package seeder

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/global-data-controller/countryseed/internal/config"
	"github.com/global-data-controller/countryseed/internal/eventbus"
	"github.com/global-data-controller/countryseed/internal/logging"
	"github.com/global-data-controller/countryseed/internal/models"
	"github.com/global-data-controller/countryseed/internal/policy"
	"github.com/global-data-controller/countryseed/internal/storage"
)

func testConfig(uri string) *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{
			URI:            uri,
			Collection:     "countries",
			ConnectTimeout: 5 * time.Second,
		},
		Data:  config.DataConfig{Source: "builtin"},
		Seed:  config.SeedConfig{SampleLimit: 5},
		Audit: config.AuditConfig{Enabled: true},
		Events: config.EventsConfig{
			Subject: eventbus.DefaultSubject,
			Timeout: 2 * time.Second,
		},
	}
}

func testLogger(t *testing.T) logging.Logger {
	return logging.NewFromZap(zaptest.NewLogger(t))
}

// fixedStore hands out the same store so tests can inspect it after Run.
func fixedStore(store storage.Store, calls *int) StoreOpener {
	return func(ctx context.Context, opts storage.Options) (storage.Store, error) {
		if calls != nil {
			*calls++
		}
		return store, nil
	}
}

func TestRun_DryRun(t *testing.T) {
	cfg := testConfig("")
	cfg.Seed.DryRun = true

	var out bytes.Buffer
	result, err := New(cfg, testLogger(t), WithOutput(&out)).Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, storage.BackendMemory, result.Backend)
	assert.Greater(t, result.Inserted, 200)
	assert.Equal(t, result.Inserted, result.Summary.Total)
	assert.Equal(t, 19, result.Summary.MiddleEastern)
	assert.Equal(t, result.Summary.Total-19, result.Summary.Other)

	require.Len(t, result.Samples, 5)
	for _, c := range result.Samples {
		assert.True(t, c.MiddleEastern, c.ISO2)
	}

	report := out.String()
	assert.Contains(t, report, "Dry run")
	assert.Contains(t, report, "🔄 Connecting to in-memory store...")
	assert.Contains(t, report, "📊 Middle Eastern countries: 19")
	assert.Contains(t, report, "📋 Sample countries with states:")
	assert.Contains(t, report, "✅ Script completed successfully!")
}

func TestRun_SaudiArabiaPersisted(t *testing.T) {
	store := storage.NewMemoryStore()
	cfg := testConfig("memory://")
	cfg.Seed.SampleLimit = 100

	result, err := New(cfg, testLogger(t), WithOutput(&bytes.Buffer{}), WithStoreOpener(fixedStore(store, nil))).Run(context.Background())
	require.NoError(t, err)

	var found bool
	for _, c := range result.Samples {
		if c.ISO2 != "SA" {
			continue
		}
		found = true
		assert.Equal(t, "SAU", c.ISO3)
		assert.Contains(t, c.Names.EN, "Saudi")
		assert.NotEmpty(t, c.Names.AR)
		assert.Equal(t, "🇸🇦", c.Flag)
		require.NotEmpty(t, c.States)
		assert.Equal(t, "Riyadh", c.States[0].Name)
	}
	assert.True(t, found, "SA missing from samples")
}

func TestRun_SQLiteTwiceKeepsOneDocumentPerCountry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "countries.db")
	cfg := testConfig("sqlite://" + path)

	ctx := context.Background()
	first, err := New(cfg, testLogger(t), WithOutput(&bytes.Buffer{})).Run(ctx)
	require.NoError(t, err)

	second, err := New(cfg, testLogger(t), WithOutput(&bytes.Buffer{})).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, storage.BackendSQLite, second.Backend)
	assert.Equal(t, int64(first.Inserted), second.Removed)

	store, err := storage.Open(ctx, storage.Options{URI: "sqlite://" + path})
	require.NoError(t, err)
	defer store.Close(ctx)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(second.Inserted), n)
}

func TestRun_MissingConnectionString(t *testing.T) {
	var out bytes.Buffer
	_, err := New(testConfig(""), testLogger(t), WithOutput(&out)).Run(context.Background())

	assert.ErrorIs(t, err, storage.ErrNoConnectionString)
	assert.NotContains(t, out.String(), "connected")
}

func TestRun_UnsupportedScheme(t *testing.T) {
	_, err := New(testConfig("redis://localhost"), testLogger(t), WithOutput(&bytes.Buffer{})).Run(context.Background())
	assert.ErrorIs(t, err, storage.ErrUnsupportedScheme)
}

func TestRun_SourceFailureLeavesStoreUntouched(t *testing.T) {
	store := storage.NewMemoryStore()
	cfg := testConfig("memory://")
	cfg.Data = config.DataConfig{Source: "files", Dir: t.TempDir()}

	calls := 0
	_, err := New(cfg, testLogger(t), WithOutput(&bytes.Buffer{}), WithStoreOpener(fixedStore(store, &calls))).Run(context.Background())

	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, 0, calls)
}

func TestRun_StrictAuditFailureKeepsExistingDocuments(t *testing.T) {
	policyFile := filepath.Join(t.TempDir(), "deny.rego")
	require.NoError(t, os.WriteFile(policyFile, []byte(`package countryseed.audit

deny contains msg if {
	some c in input.countries
	c.iso2 == "SA"
	msg := "SA rejected"
}
`), 0o600))

	store := storage.NewMemoryStore()
	_, err := store.InsertMany(context.Background(), []models.Country{{ISO2: "ZZ", ISO3: "ZZZ"}})
	require.NoError(t, err)

	cfg := testConfig("memory://")
	cfg.Audit.Strict = true
	cfg.Audit.PolicyFile = policyFile

	var out bytes.Buffer
	_, err = New(cfg, testLogger(t), WithOutput(&out), WithStoreOpener(fixedStore(store, nil))).Run(context.Background())
	assert.ErrorIs(t, err, policy.ErrViolations)
	assert.NotContains(t, out.String(), "Cleared existing countries")

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRun_AuditWarningsDoNotFail(t *testing.T) {
	policyFile := filepath.Join(t.TempDir(), "warn.rego")
	require.NoError(t, os.WriteFile(policyFile, []byte(`package countryseed.audit

deny contains "always" if { true }
`), 0o600))

	cfg := testConfig("memory://")
	cfg.Audit.PolicyFile = policyFile

	var out bytes.Buffer
	result, err := New(cfg, testLogger(t), WithOutput(&out)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"always"}, result.Violations)
	assert.Contains(t, out.String(), "Audit reported 1 issue(s)")
}

func TestRun_PublishesCompletionEvent(t *testing.T) {
	s, err := server.NewServer(&server.Options{Host: "127.0.0.1", Port: -1})
	require.NoError(t, err)
	go s.Start()
	if !s.ReadyForConnections(10 * time.Second) {
		t.Fatal("NATS server not ready")
	}
	defer s.Shutdown()

	sub, err := nats.Connect(s.ClientURL())
	require.NoError(t, err)
	defer sub.Close()

	msgs := make(chan *nats.Msg, 1)
	_, err = sub.ChanSubscribe(eventbus.DefaultSubject, msgs)
	require.NoError(t, err)
	require.NoError(t, sub.Flush())

	cfg := testConfig("memory://")
	cfg.Events.URL = s.ClientURL()

	result, err := New(cfg, testLogger(t), WithOutput(&bytes.Buffer{})).Run(context.Background())
	require.NoError(t, err)

	select {
	case msg := <-msgs:
		var event eventbus.SeededEvent
		require.NoError(t, json.Unmarshal(msg.Data, &event))
		assert.Equal(t, result.RunID, event.RunID)
		assert.Equal(t, storage.BackendMemory, event.Backend)
		assert.Equal(t, "countries", event.Collection)
		assert.Equal(t, result.Summary.Total, event.Total)
		assert.Equal(t, 19, event.MiddleEastern)
		assert.Equal(t, result.Summary.States, event.States)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for completion event")
	}
}

func TestRun_PublishFailureIsNotFatal(t *testing.T) {
	cfg := testConfig("memory://")
	cfg.Events.URL = "nats://127.0.0.1:1"
	cfg.Events.Timeout = 200 * time.Millisecond

	_, err := New(cfg, testLogger(t), WithOutput(&bytes.Buffer{})).Run(context.Background())
	assert.NoError(t, err)
}

type recordingPublisher struct {
	events []*eventbus.SeededEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, event *eventbus.SeededEvent) error {
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() {}

func TestRun_SampleLimitZeroSkipsSamples(t *testing.T) {
	cfg := testConfig("memory://")
	cfg.Seed.SampleLimit = 0
	publisher := &recordingPublisher{}

	var out bytes.Buffer
	result, err := New(cfg, testLogger(t), WithOutput(&out), WithPublisher(publisher)).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, result.Samples)
	assert.NotContains(t, out.String(), "Sample countries")
	require.Len(t, publisher.events, 1)
	assert.Equal(t, result.RunID, publisher.events[0].RunID)
}

func TestLoadRecords(t *testing.T) {
	records, err := LoadRecords(config.DataConfig{Source: "builtin"})
	require.NoError(t, err)
	assert.Greater(t, len(records), 200)

	_, err = LoadRecords(config.DataConfig{Source: "ftp"})
	assert.Error(t, err)
}
