package mystore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// postgresStore keeps each entity kind in its own single-table JSONB document store:
// uid TEXT PRIMARY KEY, doc JSONB. Filters name Go struct fields, which are resolved
// to the json-tagged keys the stored document actually carries; comparison happens
// on doc->>'field' as text, which works for the RFC3339 timestamps and plain strings
// the services filter on.
type postgresStore[T any] struct {
	db    *sqlx.DB
	table string
}

var allowedCompares = map[string]bool{
	"=":  true,
	">":  true,
	">=": true,
	"<":  true,
	"<=": true,
}

func newPostgresStore[T any](c context.Context) (*postgresStore[T], func(), error) {
	db, err := sqlx.ConnectContext(c, "postgres", os.Getenv("POSTGRES_URL"))
	if err != nil {
		return nil, nil, fmt.Errorf("error connecting to postgres: %s", err)
	}

	table := kindForType[T]()

	_, err = db.ExecContext(c, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %q (uid TEXT PRIMARY KEY, doc JSONB NOT NULL)`, table))
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("error creating table %s: %s", table, err)
	}

	return &postgresStore[T]{
			db:    db,
			table: table,
		}, func() {
			db.Close()
		}, nil
}

func (s *postgresStore[T]) RunInTransaction(c context.Context, f func(c context.Context) error) error {
	tx, err := s.db.BeginTxx(c, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %s", err)
	}

	ctx := context.WithValue(c, ctxTransactionKey{}, tx)

	err = f(ctx)
	if err != nil {
		rollbackError := tx.Rollback()
		if rollbackError != nil {
			log.Printf("error rolling-back transaction: %s", rollbackError)
		}

		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("error committing transaction: %s", err)
	}

	return nil
}

func (s *postgresStore[T]) execer(c context.Context) sqlx.ExtContext {
	if tx, ok := c.Value(ctxTransactionKey{}).(*sqlx.Tx); ok {
		return tx
	}

	return s.db
}

func (s *postgresStore[T]) Put(c context.Context, uid string, value T) error {
	doc, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("error marshalling entity %s with uid %s: %s", s.table, uid, err)
	}

	_, err = s.execer(c).ExecContext(c, fmt.Sprintf(
		`INSERT INTO %q (uid, doc) VALUES ($1, $2)
		 ON CONFLICT (uid) DO UPDATE SET doc = EXCLUDED.doc`, s.table), uid, doc)
	if err != nil {
		return fmt.Errorf("error storing entity %s with uid %s: %s", s.table, uid, err)
	}

	return nil
}

func (s *postgresStore[T]) Get(c context.Context, uid string) (T, bool, error) {
	value := new(T)

	var doc []byte
	err := sqlx.GetContext(c, s.execer(c), &doc, fmt.Sprintf(
		`SELECT doc FROM %q WHERE uid = $1`, s.table), uid)
	if err != nil {
		if err == sql.ErrNoRows {
			return *value, false, nil
		}
		return *value, false, fmt.Errorf("error fetching entity %s with uid %s: %s", s.table, uid, err)
	}

	err = json.Unmarshal(doc, value)
	if err != nil {
		return *value, false, fmt.Errorf("error unmarshalling entity %s with uid %s: %s", s.table, uid, err)
	}

	return *value, true, nil
}

func (s *postgresStore[T]) Remove(c context.Context, uid string) error {
	_, err := s.execer(c).ExecContext(c, fmt.Sprintf(
		`DELETE FROM %q WHERE uid = $1`, s.table), uid)
	if err != nil {
		return fmt.Errorf("error removing entity %s with uid %s: %s", s.table, uid, err)
	}

	return nil
}

func (s *postgresStore[T]) List(c context.Context) ([]T, error) {
	return s.fetch(c, fmt.Sprintf(`SELECT doc FROM %q LIMIT 100`, s.table))
}

func (s *postgresStore[T]) Query(c context.Context, filters []Filter, orderByField string) ([]T, error) {
	query, args, err := s.buildQuery(filters, orderByField)
	if err != nil {
		return nil, err
	}

	return s.fetch(c, query, args...)
}

func (s *postgresStore[T]) buildQuery(filters []Filter, orderByField string) (string, []any, error) {
	query := fmt.Sprintf(`SELECT doc FROM %q`, s.table)
	args := []any{}

	for i, f := range filters {
		if !allowedCompares[f.Compare] {
			return "", nil, fmt.Errorf("unsupported compare operator %q", f.Compare)
		}
		clause := "WHERE"
		if i > 0 {
			clause = "AND"
		}
		query += fmt.Sprintf(" %s doc->>'%s' %s $%d", clause, documentFieldName[T](f.Field), f.Compare, i+1)
		args = append(args, filterValueToText(f.Value))
	}
	if orderByField != "" {
		query += fmt.Sprintf(" ORDER BY doc->>'%s'", documentFieldName[T](orderByField))
	}

	return query, args, nil
}

// documentFieldName maps a Go struct field name onto the key it carries inside
// the marshalled JSONB document: the json tag when the field has one, the Go
// name otherwise.
func documentFieldName[T any](goFieldName string) string {
	entityType := reflect.TypeOf(*new(T))
	if entityType.Kind() != reflect.Struct {
		return goFieldName
	}

	field, found := entityType.FieldByName(goFieldName)
	if !found {
		return goFieldName
	}

	tagName, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	if tagName == "" || tagName == "-" {
		return goFieldName
	}

	return tagName
}

func (s *postgresStore[T]) fetch(c context.Context, query string, args ...any) ([]T, error) {
	var docs [][]byte
	err := sqlx.SelectContext(c, s.execer(c), &docs, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error fetching all entities %s: %s", s.table, err)
	}

	results := make([]T, 0, len(docs))
	for _, doc := range docs {
		value := new(T)
		err = json.Unmarshal(doc, value)
		if err != nil {
			return nil, fmt.Errorf("error unmarshalling entity %s: %s", s.table, err)
		}
		results = append(results, *value)
	}

	return results, nil
}

func filterValueToText(value any) string {
	if t, ok := value.(time.Time); ok {
		// matches the format encoding/json uses for time.Time inside doc
		return t.Format(time.RFC3339Nano)
	}

	return fmt.Sprintf("%v", value)
}
