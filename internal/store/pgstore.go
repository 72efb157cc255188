package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pitabwire/cmsadmin/model"
)

const (
	collectionsTable = model.CollectionsPath
	notifyChannel    = "cms_collections"
)

// PgStore is a PostgreSQL-backed CollectionStore using pgx/v5. Change
// notifications come from the trigger installed by the migrations.
type PgStore struct {
	pool *pgxpool.Pool
	sb   squirrel.StatementBuilderType
}

// NewPgStore creates a Postgres collection store.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{
		pool: pool,
		sb:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// List returns every document ordered by id.
func (s *PgStore) List(ctx context.Context) ([]Document, error) {
	query, args, err := s.sb.Select("id", "data", "updated_at").
		From(collectionsTable).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query collections: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collections: %w", err)
	}
	return docs, nil
}

// Get returns the document with the given id.
func (s *PgStore) Get(ctx context.Context, id string) (Document, error) {
	query, args, err := s.sb.Select("id", "data", "updated_at").
		From(collectionsTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return Document{}, fmt.Errorf("build get query: %w", err)
	}

	doc, err := scanDocument(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, model.NewNotFoundError(fmt.Sprintf("collection %q not found", id))
	}
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Set upserts a document.
func (s *PgStore) Set(ctx context.Context, id string, data map[string]any) error {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal collection: %w", err)
	}

	query, args, err := s.sb.Insert(collectionsTable).
		Columns("id", "data", "updated_at").
		Values(id, dataJSON, time.Now().UTC()).
		Suffix("ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert collection %q: %w", id, err)
	}
	return nil
}

// Subscribe listens on the collections channel with a dedicated connection
// and re-lists the table after every notification. The channel is closed
// when ctx is done or the connection fails.
func (s *PgStore) Subscribe(ctx context.Context) (<-chan []Document, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listen connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen %s: %w", notifyChannel, err)
	}

	initial, err := s.List(ctx)
	if err != nil {
		conn.Release()
		return nil, err
	}

	ch := make(chan []Document, 1)
	ch <- initial

	go func() {
		defer close(ch)
		defer func() {
			// The connection goes back to the pool; stop listening first.
			_, _ = conn.Exec(context.Background(), "UNLISTEN *")
			conn.Release()
		}()

		for {
			if _, err := conn.Conn().WaitForNotification(ctx); err != nil {
				return
			}
			docs, err := s.List(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				continue
			}
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- docs:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// Ping checks connectivity for readiness probes.
func (s *PgStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func scanDocument(row pgx.Row) (Document, error) {
	var doc Document
	var dataJSON []byte
	if err := row.Scan(&doc.ID, &dataJSON, &doc.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, err
		}
		return Document{}, fmt.Errorf("scan collection: %w", err)
	}
	if len(dataJSON) > 0 {
		if err := json.Unmarshal(dataJSON, &doc.Data); err != nil {
			return Document{}, fmt.Errorf("unmarshal collection %q: %w", doc.ID, err)
		}
	}
	return doc, nil
}
