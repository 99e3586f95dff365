// Package storage persists country documents into a document store. The
// backend is chosen from the scheme of the connection string.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/global-data-controller/countryseed/internal/models"
)

// Backend names
const (
	BackendMongo    = "mongodb"
	BackendYDB      = "ydb"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

const (
	// DefaultConnectTimeout bounds the initial connection attempt
	DefaultConnectTimeout = 30 * time.Second
	// DefaultCollection is the collection (or table) holding the documents
	DefaultCollection = "countries"
	// DefaultDatabase is used when the connection string names no database
	DefaultDatabase = "test"
)

var (
	// ErrNoConnectionString is returned by Open when no URI is configured
	ErrNoConnectionString = errors.New("document store connection string is not set")
	// ErrUnsupportedScheme is returned by Open for an unknown URI scheme
	ErrUnsupportedScheme = errors.New("unsupported connection string scheme")
	// ErrDuplicateKey is returned when two documents share an iso2 code
	ErrDuplicateKey = errors.New("duplicate iso2 key")
)

// Store is a collection of country documents
type Store interface {
	// Backend names the implementation behind the store
	Backend() string
	// Clear deletes every document and returns how many were removed
	Clear(ctx context.Context) (int64, error)
	// InsertMany writes all records in one bulk operation
	InsertMany(ctx context.Context, records []models.Country) (int, error)
	// SampleMiddleEastern returns up to limit Middle Eastern documents in store order
	SampleMiddleEastern(ctx context.Context, limit int) ([]models.Country, error)
	// Count returns the number of stored documents
	Count(ctx context.Context) (int64, error)
	// Close releases the connection
	Close(ctx context.Context) error
}

// Options locates the document store
type Options struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
	// Token is the access token used by the YDB backend
	Token string
}

func (o Options) withDefaults() Options {
	if o.Collection == "" {
		o.Collection = DefaultCollection
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.Database == "" {
		o.Database = databaseFromURI(o.URI)
	}
	return o
}

// BackendFor maps a connection string to a backend name
func BackendFor(uri string) (string, error) {
	scheme, _, ok := strings.Cut(strings.TrimSpace(uri), "://")
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, redact(uri))
	}
	switch strings.ToLower(scheme) {
	case "mongodb", "mongodb+srv":
		return BackendMongo, nil
	case "grpc", "grpcs":
		return BackendYDB, nil
	case "postgres", "postgresql":
		return BackendPostgres, nil
	case "sqlite":
		return BackendSQLite, nil
	case "memory":
		return BackendMemory, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
}

// Open connects to the store named by opts.URI. Only the connection attempt
// is bounded by opts.ConnectTimeout; later calls run under the caller's ctx.
func Open(ctx context.Context, opts Options) (Store, error) {
	if strings.TrimSpace(opts.URI) == "" {
		return nil, ErrNoConnectionString
	}
	backend, err := BackendFor(opts.URI)
	if err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	connectCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	switch backend {
	case BackendMongo:
		return openMongo(connectCtx, opts)
	case BackendYDB:
		return openYDB(connectCtx, opts)
	case BackendPostgres:
		return openSQL(connectCtx, postgresDialect, opts.URI, opts.Collection)
	case BackendSQLite:
		return openSQL(connectCtx, sqliteDialect, sqlitePath(opts.URI), opts.Collection)
	default:
		return NewMemoryStore(), nil
	}
}

// Redact hides the password of a connection string for logging
func Redact(uri string) string {
	return redact(uri)
}

func redact(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		scheme, _, _ := strings.Cut(uri, "://")
		return scheme + "://<redacted>"
	}
	if u.User == nil {
		return uri
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return DefaultDatabase
	}
	if name := strings.Trim(u.Path, "/"); name != "" {
		return name
	}
	return DefaultDatabase
}
