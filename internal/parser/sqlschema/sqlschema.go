// Package sqlschema derives forms from live database tables. The sqlite
// parser reads a database file through PRAGMA statements; the postgres
// parser reads information_schema and pg_catalog over pgx.
package sqlschema

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/goliatone/go-formkit/internal/logging"
	"github.com/goliatone/go-formkit/internal/naming"
	"github.com/goliatone/go-formkit/pkg/parser"
	"github.com/goliatone/go-formkit/pkg/schema"
)

// Registry keys.
const (
	SQLiteName   = "sqlite"
	PostgresName = "postgres"
)

// table is the dialect-neutral result of introspecting one table.
type table struct {
	name    string
	columns []column
	indexes []index
}

type column struct {
	name     string
	dataType string
	notNull  bool
	pk       bool
	size     int
	def      *string
	enum     []string
	ref      *foreignKey
}

type foreignKey struct {
	table  string
	column string
}

type index struct {
	name    string
	unique  bool
	columns []string
}

// introspector reads table metadata from one open database.
type introspector interface {
	// database names the catalog, used as the fallback app id.
	database() string
	tables(ctx context.Context, filter []string) ([]table, error)
	Close() error
}

type opener func(ctx context.Context, dsn string, opts parser.Options) (introspector, error)

// Parser implements parser.Parser over a database dialect.
type Parser struct {
	name       string
	extensions []string
	open       opener
	logger     *zap.Logger
}

// NewSQLite returns the parser for SQLite database files.
func NewSQLite(logger *zap.Logger) *Parser {
	return newParser(SQLiteName, []string{".db", ".sqlite", ".sqlite3"}, openSQLite, logger)
}

// NewPostgres returns the parser for Postgres connection URLs. Extra["schema"]
// selects the namespace, "public" by default.
func NewPostgres(logger *zap.Logger) *Parser {
	return newParser(PostgresName, nil, openPostgres, logger)
}

func newParser(name string, exts []string, open opener, logger *zap.Logger) *Parser {
	return &Parser{name: name, extensions: exts, open: open, logger: logging.OrNop(logger)}
}

func (p *Parser) Name() string { return p.name }

func (p *Parser) Extensions() []string { return p.extensions }

// Parse introspects the database named by input. Extra["tables"] restricts
// the result to a comma separated list of tables.
func (p *Parser) Parse(ctx context.Context, input string, opts parser.Options) (*schema.AppSpec, error) {
	db, err := p.open(ctx, input, opts)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	tables, err := db.tables(ctx, splitList(opts.ExtraValue("tables")))
	if err != nil {
		var missing *missingTablesError
		if errors.As(err, &missing) {
			return nil, &schema.ArgumentError{Input: redact(input), Arg: "tables", Reason: missing.Error()}
		}
		return nil, fmt.Errorf("sqlschema: introspect %s: %w", redact(input), err)
	}
	if len(tables) == 0 {
		return nil, &schema.ArgumentError{Input: redact(input), Arg: "tables", Reason: "no tables found"}
	}
	return p.assemble(redact(input), db.database(), tables, opts)
}

func (p *Parser) assemble(input, database string, tables []table, opts parser.Options) (*schema.AppSpec, error) {
	app := &schema.AppSpec{
		Version: opts.VersionOr(""),
		Metadata: schema.Metadata{
			AppID:   firstNonEmpty(opts.AppID, naming.Identifier(database, "app")),
			AppName: opts.AppName,
		},
	}
	if app.Metadata.AppID == "" {
		return nil, &schema.ArgumentError{Input: input, Arg: "app_id", Reason: "not set and the database has no name"}
	}
	hasOverrides := opts.FormID != "" || opts.FormName != "" || opts.Table != ""
	if hasOverrides && len(tables) > 1 {
		return nil, &schema.ArgumentError{Input: input, Arg: "form", Reason: fmt.Sprintf("form overrides need a single table, got %d", len(tables))}
	}

	for _, t := range tables {
		form := formFromTable(t, p.logger)
		if len(form.Fields) == 0 {
			p.logger.Warn("skipping table without usable columns", zap.String("table", t.name))
			continue
		}
		app.Forms = append(app.Forms, form)
	}
	if len(app.Forms) == 1 {
		f := &app.Forms[0]
		f.ID = firstNonEmpty(opts.FormID, f.ID)
		f.Name = firstNonEmpty(opts.FormName, f.Name)
		f.Table = firstNonEmpty(opts.Table, f.Table)
	}
	p.logger.Debug("database introspected",
		zap.String("dialect", p.name),
		zap.String("input", input),
		zap.Strings("forms", app.FormIDs()),
	)
	return parser.Finish(app, input, opts)
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// keep filters names to the requested subset, failing on unknown entries.
func keep(all, filter []string) ([]string, error) {
	if len(filter) == 0 {
		return all, nil
	}
	known := make(map[string]struct{}, len(all))
	for _, name := range all {
		known[name] = struct{}{}
	}
	var missing []string
	for _, name := range filter {
		if _, ok := known[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &missingTablesError{names: missing}
	}
	return filter, nil
}

type missingTablesError struct {
	names []string
}

func (e *missingTablesError) Error() string {
	return "tables not found: " + strings.Join(e.names, ", ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
