package sqlschema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/goliatone/go-formkit/pkg/parser"
	"github.com/goliatone/go-formkit/pkg/schema"
)

type sqliteDB struct {
	path string
	db   *sql.DB
}

// openSQLite opens an existing database file read-only; the driver would
// otherwise create a missing file.
func openSQLite(ctx context.Context, path string, _ parser.Options) (introspector, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &schema.NotFoundError{Path: path, Err: err}
		}
		return nil, fmt.Errorf("sqlschema: stat %s: %w", path, err)
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("sqlschema: open %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &schema.ParseError{Input: path, Cause: fmt.Errorf("not a sqlite database: %w", err)}
	}
	return &sqliteDB{path: path, db: db}, nil
}

func (s *sqliteDB) Close() error { return s.db.Close() }

func (s *sqliteDB) database() string {
	return strings.TrimSuffix(filepath.Base(s.path), filepath.Ext(s.path))
}

func (s *sqliteDB) tables(ctx context.Context, filter []string) ([]table, error) {
	names, err := s.tableNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	names, err = keep(names, filter)
	if err != nil {
		return nil, err
	}
	out := make([]table, 0, len(names))
	for _, name := range names {
		t, err := s.table(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", name, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *sqliteDB) tableNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *sqliteDB) table(ctx context.Context, name string) (table, error) {
	t := table{name: name}
	var err error
	if t.columns, err = s.columns(ctx, name); err != nil {
		return t, fmt.Errorf("columns: %w", err)
	}
	refs, err := s.foreignKeys(ctx, name)
	if err != nil {
		return t, fmt.Errorf("foreign keys: %w", err)
	}
	for i := range t.columns {
		if ref, ok := refs[t.columns[i].name]; ok {
			t.columns[i].ref = ref
		}
	}
	if t.indexes, err = s.indexes(ctx, name); err != nil {
		return t, fmt.Errorf("indexes: %w", err)
	}
	return t, nil
}

func (s *sqliteDB) columns(ctx context.Context, name string) ([]column, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(name)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []column
	for rows.Next() {
		var (
			cid          int
			colName      string
			colType      string
			notNull, pk  int
			defaultValue sql.NullString
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &defaultValue, &pk); err != nil {
			return nil, err
		}
		col := column{
			name:     colName,
			dataType: colType,
			notNull:  notNull == 1,
			pk:       pk > 0,
		}
		if defaultValue.Valid {
			v := defaultValue.String
			col.def = &v
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

func (s *sqliteDB) foreignKeys(ctx context.Context, name string) (map[string]*foreignKey, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", quoteIdent(name)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]*foreignKey{}
	for rows.Next() {
		var (
			id, seq                     int
			target, from                string
			to                          sql.NullString
			onUpdate, onDelete, matchBy string
		)
		if err := rows.Scan(&id, &seq, &target, &from, &to, &onUpdate, &onDelete, &matchBy); err != nil {
			return nil, err
		}
		ref := &foreignKey{table: target, column: "id"}
		if to.Valid && to.String != "" {
			ref.column = to.String
		}
		out[from] = ref
	}
	return out, rows.Err()
}

func (s *sqliteDB) indexes(ctx context.Context, name string) ([]index, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_list(%s)", quoteIdent(name)))
	if err != nil {
		return nil, err
	}
	var listed []index
	for rows.Next() {
		var (
			seq, unique, partial int
			idxName, origin      string
		)
		if err := rows.Scan(&seq, &idxName, &unique, &origin, &partial); err != nil {
			rows.Close()
			return nil, err
		}
		if origin == "pk" {
			continue
		}
		listed = append(listed, index{name: idxName, unique: unique == 1})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range listed {
		cols, err := s.indexColumns(ctx, listed[i].name)
		if err != nil {
			return nil, err
		}
		listed[i].columns = cols
	}
	sort.Slice(listed, func(i, j int) bool { return listed[i].name < listed[j].name })
	return listed, nil
}

func (s *sqliteDB) indexColumns(ctx context.Context, indexName string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_info(%s)", quoteIdent(indexName)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			seqno, cid int
			colName    sql.NullString
		)
		if err := rows.Scan(&seqno, &cid, &colName); err != nil {
			return nil, err
		}
		if colName.Valid {
			cols = append(cols, colName.String)
		}
	}
	return cols, rows.Err()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
