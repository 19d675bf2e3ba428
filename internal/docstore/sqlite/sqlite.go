// Package sqlite is a durable docstore backed by a single SQLite table.
// Committed changes fan out to local subscribers and, when a Notifier is
// attached, to other processes sharing the database file.
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"pocketbook/internal/docstore"
	"pocketbook/internal/log"

	_ "modernc.org/sqlite"
)

// Notifier forwards committed changes to other processes.
type Notifier interface {
	NotifyChanges(ctx context.Context, changes []docstore.Change) error
}

type Store struct {
	db     *sql.DB
	hub    *docstore.Hub
	logger *log.Logger
	newID  func() string

	// commitMu orders write transactions, snapshot reads and local fan-out.
	commitMu sync.Mutex
	notifier atomic.Pointer[notifierBox]
	closed   atomic.Bool
}

type notifierBox struct{ n Notifier }

type Option func(*Store)

func WithBuffer(n int) Option {
	return func(s *Store) { s.hub = docstore.NewHub(n) }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.SetNotifier(n) }
}

// DSN returns the connection string used for dbPath.
func DSN(dbPath string) string {
	return "file:" + dbPath + "?_txlock=immediate&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

// Open creates the database directory if needed, applies migrations and
// returns a ready store.
func Open(dbPath string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s := &Store{
		db:     db,
		hub:    docstore.NewHub(docstore.DefaultBuffer),
		logger: log.ForComponent(log.ComponentStore),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SetNotifier attaches or replaces the cross-process notifier. nil detaches.
func (s *Store) SetNotifier(n Notifier) {
	if n == nil {
		s.notifier.Store(nil)
		return
	}
	s.notifier.Store(&notifierBox{n})
}

func (s *Store) Hub() *docstore.Hub { return s.hub }

func (s *Store) Get(ctx context.Context, docPath string) (docstore.Document, error) {
	if s.closed.Load() {
		return docstore.Document{}, docstore.ErrClosed
	}
	coll, id, err := docstore.SplitDoc(docPath)
	if err != nil {
		return docstore.Document{}, err
	}
	return getDocument(ctx, s.db, coll, id)
}

func (s *Store) Append(ctx context.Context, collectionPath string, fields docstore.Fields) (string, error) {
	var id string
	err := s.RunTransaction(ctx, func(_ context.Context, tx docstore.Tx) error {
		var err error
		id, err = tx.Append(collectionPath, fields)
		return err
	})
	return id, err
}

func (s *Store) Update(ctx context.Context, docPath string, fields docstore.Fields) error {
	return s.RunTransaction(ctx, func(_ context.Context, tx docstore.Tx) error {
		return tx.Update(docPath, fields)
	})
}

func (s *Store) Set(ctx context.Context, docPath string, fields docstore.Fields) error {
	return s.RunTransaction(ctx, func(_ context.Context, tx docstore.Tx) error {
		return tx.Set(docPath, fields)
	})
}

func (s *Store) Delete(ctx context.Context, docPath string) error {
	return s.RunTransaction(ctx, func(_ context.Context, t docstore.Tx) error {
		return t.(*tx).delete(docPath)
	})
}

// RunTransaction runs fn inside an immediate SQLite transaction. The write
// lock is taken at BEGIN, so reads inside fn cannot go stale and commits
// never report docstore.ErrConflict.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	if s.closed.Load() {
		return docstore.ErrClosed
	}

	changes, err := s.commit(ctx, fn)
	if err != nil {
		return err
	}
	if len(changes) > 0 {
		s.notify(ctx, changes)
	}
	return nil
}

func (s *Store) commit(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) ([]docstore.Change, error) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	t := &tx{ctx: ctx, tx: sqlTx, newID: s.newID}
	if err := fn(ctx, t); err != nil {
		sqlTx.Rollback()
		return nil, err
	}
	if err := sqlTx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	s.hub.Publish(t.changes)
	for _, c := range t.changes {
		s.logger.DebugContext(ctx, "Document committed",
			log.FieldCollection, c.Collection,
			log.FieldDocID, c.Doc.ID,
			log.FieldVersion, c.Doc.Version,
			"kind", c.Kind)
	}
	return t.changes, nil
}

func (s *Store) notify(ctx context.Context, changes []docstore.Change) {
	box := s.notifier.Load()
	if box == nil {
		return
	}
	if err := box.n.NotifyChanges(context.WithoutCancel(ctx), changes); err != nil {
		// Local subscribers already have the change; peers catch up on their next snapshot.
		s.logger.LogError(ctx, "Failed to publish changes", err, log.OpPublish,
			log.NewFields().WithDocument(changes[0].Collection, changes[0].Doc.ID))
	}
}

// Refresh re-reads one document changed by another process and fans the
// result out to local subscribers.
func (s *Store) Refresh(ctx context.Context, kind docstore.ChangeKind, collection, id string) error {
	if s.closed.Load() {
		return docstore.ErrClosed
	}
	collection, err := docstore.CheckCollection(collection)
	if err != nil {
		return err
	}

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	doc, err := getDocument(ctx, s.db, collection, id)
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		if kind != docstore.Removed {
			// Deleted again before we looked; the removal message follows.
			return nil
		}
		doc = docstore.Document{ID: id, Path: path.Join(collection, id), Fields: docstore.Fields{}}
	case err != nil:
		return fmt.Errorf("refresh %s/%s: %w", collection, id, err)
	case kind == docstore.Removed:
		// Recreated since; the peer's follow-up message carries it.
		return nil
	}

	s.hub.Publish([]docstore.Change{{Kind: kind, Collection: collection, Doc: doc}})
	return nil
}

func (s *Store) Subscribe(ctx context.Context, p string) (*docstore.Subscription, error) {
	if s.closed.Load() {
		return nil, docstore.ErrClosed
	}

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	var snapshot docstore.Batch
	if docstore.IsCollection(p) {
		coll, err := docstore.CheckCollection(p)
		if err != nil {
			return nil, err
		}
		docs, err := listDocuments(ctx, s.db, coll)
		if err != nil {
			return nil, err
		}
		snapshot.Added = docs
	} else {
		coll, id, err := docstore.SplitDoc(p)
		if err != nil {
			return nil, err
		}
		doc, err := getDocument(ctx, s.db, coll, id)
		switch {
		case err == nil:
			snapshot.Added = []docstore.Document{doc}
		case !errors.Is(err, docstore.ErrNotFound):
			return nil, err
		}
	}
	return s.hub.Register(ctx, p, snapshot)
}

func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.hub.Close()
	return s.db.Close()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func getDocument(ctx context.Context, q queryer, coll, id string) (docstore.Document, error) {
	var (
		raw     []byte
		version int64
	)
	err := q.QueryRowContext(ctx,
		`SELECT fields, version FROM documents WHERE collection = ? AND id = ?`, coll, id,
	).Scan(&raw, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.Document{}, docstore.ErrNotFound
	}
	if err != nil {
		return docstore.Document{}, fmt.Errorf("select document: %w", err)
	}
	fields, err := decodeFields(raw)
	if err != nil {
		return docstore.Document{}, err
	}
	return docstore.Document{ID: id, Path: path.Join(coll, id), Fields: fields, Version: version}, nil
}

func listDocuments(ctx context.Context, q queryer, coll string) ([]docstore.Document, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, fields, version FROM documents WHERE collection = ? ORDER BY rowid`, coll)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []docstore.Document
	for rows.Next() {
		var (
			id      string
			raw     []byte
			version int64
		)
		if err := rows.Scan(&id, &raw, &version); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		fields, err := decodeFields(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, docstore.Document{ID: id, Path: path.Join(coll, id), Fields: fields, Version: version})
	}
	return docs, rows.Err()
}

func encodeFields(f docstore.Fields) ([]byte, error) {
	if f == nil {
		f = docstore.Fields{}
	}
	b, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	return b, nil
}

func decodeFields(raw []byte) (docstore.Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var f docstore.Fields
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	if f == nil {
		f = docstore.Fields{}
	}
	return f, nil
}

type tx struct {
	ctx     context.Context
	tx      *sql.Tx
	newID   func() string
	changes []docstore.Change
}

func (t *tx) Get(docPath string) (docstore.Document, error) {
	coll, id, err := docstore.SplitDoc(docPath)
	if err != nil {
		return docstore.Document{}, err
	}
	return getDocument(t.ctx, t.tx, coll, id)
}

func (t *tx) Append(collectionPath string, fields docstore.Fields) (string, error) {
	coll, err := docstore.CheckCollection(collectionPath)
	if err != nil {
		return "", err
	}
	id := t.newID()
	if err := t.insert(coll, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

func (t *tx) Update(docPath string, fields docstore.Fields) error {
	coll, id, err := docstore.SplitDoc(docPath)
	if err != nil {
		return err
	}
	current, err := getDocument(t.ctx, t.tx, coll, id)
	if err != nil {
		return err
	}
	return t.replace(current, current.Fields.Merge(fields))
}

func (t *tx) Set(docPath string, fields docstore.Fields) error {
	coll, id, err := docstore.SplitDoc(docPath)
	if err != nil {
		return err
	}
	current, err := getDocument(t.ctx, t.tx, coll, id)
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		return t.insert(coll, id, fields)
	case err != nil:
		return err
	}
	return t.replace(current, fields)
}

func (t *tx) delete(docPath string) error {
	coll, id, err := docstore.SplitDoc(docPath)
	if err != nil {
		return err
	}
	current, err := getDocument(t.ctx, t.tx, coll, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(t.ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, coll, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	t.changes = append(t.changes, docstore.Change{Kind: docstore.Removed, Collection: coll, Doc: current})
	return nil
}

func (t *tx) insert(coll, id string, fields docstore.Fields) error {
	raw, err := encodeFields(fields)
	if err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO documents (collection, id, fields, version) VALUES (?, ?, ?, 1)`,
		coll, id, string(raw)); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	doc, err := getDocument(t.ctx, t.tx, coll, id)
	if err != nil {
		return err
	}
	t.changes = append(t.changes, docstore.Change{Kind: docstore.Added, Collection: coll, Doc: doc})
	return nil
}

func (t *tx) replace(current docstore.Document, fields docstore.Fields) error {
	raw, err := encodeFields(fields)
	if err != nil {
		return err
	}
	coll, _, _ := docstore.SplitDoc(current.Path)
	if _, err := t.tx.ExecContext(t.ctx,
		`UPDATE documents
		 SET fields = ?, version = version + 1, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		 WHERE collection = ? AND id = ?`,
		string(raw), coll, current.ID); err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	doc, err := getDocument(t.ctx, t.tx, coll, current.ID)
	if err != nil {
		return err
	}
	t.changes = append(t.changes, docstore.Change{Kind: docstore.Modified, Collection: coll, Doc: doc})
	return nil
}
