package sqlschema

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jackc/pgx/v5"

	"github.com/goliatone/go-formkit/pkg/parser"
	"github.com/goliatone/go-formkit/pkg/schema"
)

const defaultNamespace = "public"

type postgresDB struct {
	conn      *pgx.Conn
	namespace string
}

func openPostgres(ctx context.Context, dsn string, opts parser.Options) (introspector, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, &schema.ArgumentError{Input: redact(dsn), Arg: "input", Reason: "not a postgres connection string"}
	}
	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sqlschema: connect %s: %w", redact(dsn), err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("sqlschema: ping %s: %w", redact(dsn), err)
	}
	return &postgresDB{conn: conn, namespace: firstNonEmpty(opts.ExtraValue("schema"), defaultNamespace)}, nil
}

func (p *postgresDB) Close() error {
	return p.conn.Close(context.Background())
}

func (p *postgresDB) database() string {
	return p.conn.Config().Database
}

func (p *postgresDB) tables(ctx context.Context, filter []string) ([]table, error) {
	names, err := p.tableNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	names, err = keep(names, filter)
	if err != nil {
		return nil, err
	}
	out := make([]table, 0, len(names))
	for _, name := range names {
		t, err := p.table(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", name, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func (p *postgresDB) tableNames(ctx context.Context) ([]string, error) {
	rows, err := p.conn.Query(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`, p.namespace)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (p *postgresDB) table(ctx context.Context, name string) (table, error) {
	t := table{name: name}
	var err error
	if t.columns, err = p.columns(ctx, name); err != nil {
		return t, fmt.Errorf("columns: %w", err)
	}

	pk, err := p.primaryKey(ctx, name)
	if err != nil {
		return t, fmt.Errorf("primary key: %w", err)
	}
	refs, err := p.foreignKeys(ctx, name)
	if err != nil {
		return t, fmt.Errorf("foreign keys: %w", err)
	}
	for i := range t.columns {
		c := &t.columns[i]
		c.pk = pk[c.name]
		c.ref = refs[c.name]
	}

	if t.indexes, err = p.indexes(ctx, name); err != nil {
		return t, fmt.Errorf("indexes: %w", err)
	}
	return t, nil
}

func (p *postgresDB) columns(ctx context.Context, name string) ([]column, error) {
	rows, err := p.conn.Query(ctx, `
		SELECT
			c.column_name,
			c.data_type,
			c.udt_name,
			c.is_nullable,
			c.column_default,
			c.character_maximum_length
		FROM information_schema.columns c
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position
	`, p.namespace, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		cols      []column
		enumTypes []string
	)
	for rows.Next() {
		var (
			col       column
			dataType  string
			udtName   string
			nullable  string
			maxLength *int32
		)
		if err := rows.Scan(&col.name, &dataType, &udtName, &nullable, &col.def, &maxLength); err != nil {
			return nil, err
		}
		col.notNull = nullable == "NO"
		col.dataType = dataType
		if maxLength != nil {
			col.size = int(*maxLength)
		}
		if dataType == "USER-DEFINED" {
			col.dataType = udtName
			enumTypes = append(enumTypes, udtName)
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(enumTypes) == 0 {
		return cols, nil
	}

	values, err := p.enumValues(ctx, enumTypes)
	if err != nil {
		return nil, fmt.Errorf("enum values: %w", err)
	}
	for i := range cols {
		cols[i].enum = values[cols[i].dataType]
	}
	return cols, nil
}

func (p *postgresDB) enumValues(ctx context.Context, typeNames []string) (map[string][]string, error) {
	rows, err := p.conn.Query(ctx, `
		SELECT t.typname, e.enumlabel
		FROM pg_type t
		JOIN pg_enum e ON t.oid = e.enumtypid
		JOIN pg_namespace n ON t.typnamespace = n.oid
		WHERE n.nspname = $1 AND t.typname = ANY($2)
		ORDER BY t.typname, e.enumsortorder
	`, p.namespace, typeNames)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string][]string{}
	for rows.Next() {
		var typName, label string
		if err := rows.Scan(&typName, &label); err != nil {
			return nil, err
		}
		out[typName] = append(out[typName], label)
	}
	return out, rows.Err()
}

func (p *postgresDB) primaryKey(ctx context.Context, name string) (map[string]bool, error) {
	rows, err := p.conn.Query(ctx, `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		WHERE tc.table_schema = $1
			AND tc.table_name = $2
			AND tc.constraint_type = 'PRIMARY KEY'
		ORDER BY kcu.ordinal_position
	`, p.namespace, name)
	if err != nil {
		return nil, err
	}
	cols, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(cols))
	for _, c := range cols {
		out[c] = true
	}
	return out, nil
}

func (p *postgresDB) foreignKeys(ctx context.Context, name string) (map[string]*foreignKey, error) {
	rows, err := p.conn.Query(ctx, `
		SELECT
			kcu.column_name,
			ccu.table_name,
			ccu.column_name
		FROM information_schema.table_constraints AS tc
		JOIN information_schema.key_column_usage AS kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage AS ccu
			ON ccu.constraint_name = tc.constraint_name
			AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
			AND tc.table_schema = $1
			AND tc.table_name = $2
		ORDER BY kcu.ordinal_position
	`, p.namespace, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]*foreignKey{}
	for rows.Next() {
		var from, target, to string
		if err := rows.Scan(&from, &target, &to); err != nil {
			return nil, err
		}
		out[from] = &foreignKey{table: target, column: to}
	}
	return out, rows.Err()
}

func (p *postgresDB) indexes(ctx context.Context, name string) ([]index, error) {
	rows, err := p.conn.Query(ctx, `
		SELECT
			i.relname,
			ix.indisunique,
			array_agg(a.attname::text ORDER BY array_position(ix.indkey, a.attnum))
		FROM pg_class t
		JOIN pg_index ix ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		JOIN pg_namespace n ON n.oid = t.relnamespace
		WHERE t.relkind = 'r'
			AND n.nspname = $1
			AND t.relname = $2
			AND NOT ix.indisprimary
		GROUP BY i.relname, ix.indisunique
		ORDER BY i.relname
	`, p.namespace, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []index
	for rows.Next() {
		var idx index
		if err := rows.Scan(&idx.name, &idx.unique, &idx.columns); err != nil {
			return nil, err
		}
		out = append(out, idx)
	}
	return out, rows.Err()
}

// redact hides the password of connection URLs used in errors and logs.
func redact(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}
