package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"github.com/ydb-platform/ydb-go-sdk/v3"
	"github.com/ydb-platform/ydb-go-sdk/v3/sugar"
	"github.com/ydb-platform/ydb-go-sdk/v3/table"
	"github.com/ydb-platform/ydb-go-sdk/v3/table/options"
	"github.com/ydb-platform/ydb-go-sdk/v3/table/result/named"
	"github.com/ydb-platform/ydb-go-sdk/v3/table/types"

	"github.com/global-data-controller/countryseed/internal/models"
)

// errAttemptFailed stops the table client retry loop; the SDK treats errors
// it does not recognise as non-retryable.
var errAttemptFailed = errors.New("ydb operation failed")

// sessionRunner is the part of table.Client the store uses
type sessionRunner interface {
	Do(ctx context.Context, op table.Operation, opts ...table.Option) error
}

// doOnce runs op on a pooled session exactly once and returns its own error.
// Session acquisition is still left to the client.
func doOnce(ctx context.Context, c sessionRunner, op table.Operation) error {
	var opErr error
	err := c.Do(ctx, func(ctx context.Context, sess table.Session) error {
		if opErr = op(ctx, sess); opErr != nil {
			return errAttemptFailed
		}
		return nil
	})
	if opErr != nil {
		return opErr
	}
	return err
}

// YDBStore keeps the documents in a YDB row table with a JsonDocument column
type YDBStore struct {
	db        *ydb.Driver
	table     string
	tablePath string
}

func openYDB(ctx context.Context, opts Options) (*YDBStore, error) {
	ydbOpts := []ydb.Option{ydb.WithDialTimeout(opts.ConnectTimeout)}
	if opts.Token != "" {
		ydbOpts = append(ydbOpts, ydb.WithAccessTokenCredentials(opts.Token))
	} else {
		ydbOpts = append(ydbOpts, ydb.WithAnonymousCredentials())
	}

	db, err := ydb.Open(ctx, opts.URI, ydbOpts...)
	if err != nil {
		return nil, fmt.Errorf("connect ydb: %w", err)
	}

	s := &YDBStore{
		db:        db,
		table:     opts.Collection,
		tablePath: path.Join(db.Name(), opts.Collection),
	}
	if err := s.ensureTable(ctx); err != nil {
		_ = db.Close(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *YDBStore) ensureTable(ctx context.Context) error {
	exists, err := sugar.IsTableExists(ctx, s.db.Scheme(), s.tablePath)
	if err != nil {
		return fmt.Errorf("check table %s: %w", s.tablePath, err)
	}
	if exists {
		return nil
	}
	err = doOnce(ctx, s.db.Table(), func(ctx context.Context, sess table.Session) error {
		return sess.CreateTable(ctx, s.tablePath,
			options.WithColumn("iso2", types.Optional(types.TypeUTF8)),
			options.WithColumn("iso3", types.Optional(types.TypeUTF8)),
			options.WithColumn("middle_eastern", types.Optional(types.TypeBool)),
			options.WithColumn("seq", types.Optional(types.TypeUint32)),
			options.WithColumn("doc", types.Optional(types.TypeJSONDocument)),
			options.WithPrimaryKeyColumn("iso2"),
		)
	})
	if err != nil {
		return fmt.Errorf("create table %s: %w", s.tablePath, err)
	}
	return nil
}

// Backend implements Store
func (s *YDBStore) Backend() string { return BackendYDB }

func (s *YDBStore) query(body string) string {
	return fmt.Sprintf("PRAGMA TablePathPrefix(\"%s\");\n%s", s.db.Name(), body)
}

// Clear implements Store. The returned count is taken just before deletion.
func (s *YDBStore) Clear(ctx context.Context) (int64, error) {
	n, err := s.Count(ctx)
	if err != nil {
		return 0, err
	}
	err = doOnce(ctx, s.db.Table(), func(ctx context.Context, sess table.Session) error {
		_, res, err := sess.Execute(ctx, table.DefaultTxControl(),
			s.query(fmt.Sprintf("DELETE FROM `%s`;", s.table)), nil)
		if err != nil {
			return err
		}
		return res.Close()
	})
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", s.table, err)
	}
	return n, nil
}

// InsertMany implements Store. Rows go through one INSERT so an existing
// or repeated iso2 fails the whole batch.
func (s *YDBStore) InsertMany(ctx context.Context, records []models.Country) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	rows := make([]types.Value, 0, len(records))
	for i, record := range records {
		doc, err := json.Marshal(record)
		if err != nil {
			return 0, fmt.Errorf("encode %s: %w", record.ISO2, err)
		}
		rows = append(rows, types.StructValue(
			types.StructFieldValue("iso2", types.UTF8Value(record.ISO2)),
			types.StructFieldValue("iso3", types.UTF8Value(record.ISO3)),
			types.StructFieldValue("middle_eastern", types.BoolValue(record.MiddleEastern)),
			types.StructFieldValue("seq", types.Uint32Value(uint32(i))),
			types.StructFieldValue("doc", types.JSONDocumentValue(string(doc))),
		))
	}

	query := s.query(fmt.Sprintf(`
		DECLARE $rows AS List<Struct<
			iso2: Utf8,
			iso3: Utf8,
			middle_eastern: Bool,
			seq: Uint32,
			doc: JsonDocument
		>>;
		INSERT INTO `+"`%s`"+`
		SELECT iso2, iso3, middle_eastern, seq, doc FROM AS_TABLE($rows);`, s.table))

	err := doOnce(ctx, s.db.Table(), func(ctx context.Context, sess table.Session) error {
		_, res, err := sess.Execute(ctx, table.DefaultTxControl(), query,
			table.NewQueryParameters(table.ValueParam("$rows", types.ListValue(rows...))))
		if err != nil {
			return err
		}
		return res.Close()
	})
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", s.table, err)
	}
	return len(records), nil
}

// SampleMiddleEastern implements Store
func (s *YDBStore) SampleMiddleEastern(ctx context.Context, limit int) ([]models.Country, error) {
	query := s.query(fmt.Sprintf(`
		DECLARE $limit AS Uint64;
		SELECT doc FROM `+"`%s`"+`
		WHERE middle_eastern = true
		ORDER BY seq
		LIMIT $limit;`, s.table))

	out := []models.Country{}
	err := doOnce(ctx, s.db.Table(), func(ctx context.Context, sess table.Session) error {
		out = out[:0]
		_, res, err := sess.Execute(ctx, table.DefaultTxControl(), query,
			table.NewQueryParameters(table.ValueParam("$limit", types.Uint64Value(uint64(limit)))))
		if err != nil {
			return err
		}
		defer func() { _ = res.Close() }()

		for res.NextResultSet(ctx) {
			for res.NextRow() {
				var doc string
				if err := res.ScanNamed(named.OptionalWithDefault("doc", &doc)); err != nil {
					return err
				}
				var country models.Country
				if err := json.Unmarshal([]byte(doc), &country); err != nil {
					return fmt.Errorf("decode document: %w", err)
				}
				out = append(out, country)
			}
		}
		return res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", s.table, err)
	}
	return out, nil
}

// Count implements Store
func (s *YDBStore) Count(ctx context.Context) (int64, error) {
	var n uint64
	err := doOnce(ctx, s.db.Table(), func(ctx context.Context, sess table.Session) error {
		_, res, err := sess.Execute(ctx, table.DefaultTxControl(),
			s.query(fmt.Sprintf("SELECT COUNT(*) AS cnt FROM `%s`;", s.table)), nil)
		if err != nil {
			return err
		}
		defer func() { _ = res.Close() }()

		for res.NextResultSet(ctx) {
			for res.NextRow() {
				if err := res.ScanNamed(named.Required("cnt", &n)); err != nil {
					return err
				}
			}
		}
		return res.Err()
	})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", s.table, err)
	}
	return int64(n), nil
}

// Close implements Store
func (s *YDBStore) Close(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.Close(ctx)
}
