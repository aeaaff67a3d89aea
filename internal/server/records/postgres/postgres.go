// Package postgres stores submission records in PostgreSQL tables.
//
// A target is a table in the current schema. The live schema is read from
// information_schema and pg_enum: enum columns are selects, enum arrays are
// multi-selects and the web_url and email_address domains carry the url
// and email kinds. Option domains are extended with ALTER TYPE.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/photokeeper/internal/dbx"
	"github.com/dmitrijs2005/photokeeper/internal/server/records"
	"github.com/dmitrijs2005/photokeeper/internal/server/records/postgres/migrations"
)

const (
	domainURL   = "web_url"
	domainEmail = "email_address"
)

const columnsQuery = `
	SELECT c.column_name,
	       c.data_type,
	       c.udt_name,
	       COALESCE(c.domain_name, ''),
	       COALESCE(bool_or(tc.constraint_type = 'PRIMARY KEY'), false),
	       COALESCE(bool_or(tc.constraint_type = 'FOREIGN KEY'), false)
	FROM information_schema.columns c
	LEFT JOIN information_schema.key_column_usage k
	       ON k.table_schema = c.table_schema
	      AND k.table_name = c.table_name
	      AND k.column_name = c.column_name
	LEFT JOIN information_schema.table_constraints tc
	       ON tc.constraint_schema = k.constraint_schema
	      AND tc.constraint_name = k.constraint_name
	WHERE c.table_schema = current_schema() AND c.table_name = $1
	GROUP BY c.column_name, c.data_type, c.udt_name, c.domain_name, c.ordinal_position
	ORDER BY c.ordinal_position`

const enumsQuery = `
	SELECT t.typname, e.enumlabel
	FROM pg_type t
	JOIN pg_enum e ON e.enumtypid = t.oid
	JOIN pg_namespace n ON n.oid = t.typnamespace
	WHERE n.nspname = current_schema()
	ORDER BY t.typname, e.enumsortorder`

// Store implements records.Store on a PostgreSQL database.
type Store struct {
	db *sql.DB
}

var _ records.Store = (*Store)(nil)

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects through the pgx database/sql driver.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	return db, nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate creates the default tables, enums and domains.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

type column struct {
	name, dataType, udtName, domain string
	primary, foreign                bool
}

func (s *Store) RetrieveSchema(ctx context.Context, target string) (*records.SchemaView, error) {
	cols, err := s.columns(ctx, target)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("postgres: table %q not found", target)
	}
	enums, err := s.enums(ctx)
	if err != nil {
		return nil, err
	}

	view := &records.SchemaView{Target: target, Properties: make(map[string]records.Property, len(cols))}
	for _, c := range cols {
		if c.primary {
			continue
		}
		p := property(c, enums)
		view.Properties[p.Name] = p
	}
	return view, nil
}

func (s *Store) columns(ctx context.Context, table string) ([]column, error) {
	rows, err := s.db.QueryContext(ctx, columnsQuery, table)
	if err != nil {
		return nil, fmt.Errorf("postgres: read columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []column
	for rows.Next() {
		var c column
		if err := rows.Scan(&c.name, &c.dataType, &c.udtName, &c.domain, &c.primary, &c.foreign); err != nil {
			return nil, fmt.Errorf("postgres: scan column: %w", err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: read columns of %s: %w", table, err)
	}
	return cols, nil
}

func (s *Store) enums(ctx context.Context) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, enumsQuery)
	if err != nil {
		return nil, fmt.Errorf("postgres: read enums: %w", err)
	}
	defer rows.Close()

	enums := make(map[string][]string)
	for rows.Next() {
		var typ, label string
		if err := rows.Scan(&typ, &label); err != nil {
			return nil, fmt.Errorf("postgres: scan enum: %w", err)
		}
		enums[typ] = append(enums[typ], label)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: read enums: %w", err)
	}
	return enums, nil
}

func property(c column, enums map[string][]string) records.Property {
	p := records.Property{Name: c.name, Native: c.dataType, Kind: records.KindUnsupported}
	switch {
	case c.domain == domainURL:
		p.Kind = records.KindURL
	case c.domain == domainEmail:
		p.Kind = records.KindEmail
	case c.foreign:
		p.Kind = records.KindRelation
	case c.dataType == "USER-DEFINED":
		if opts, ok := enums[c.udtName]; ok {
			p.Kind, p.Native, p.Options = records.KindSelect, c.udtName, slices.Clone(opts)
		}
	case c.dataType == "ARRAY":
		elem := strings.TrimPrefix(c.udtName, "_")
		if opts, ok := enums[elem]; ok {
			p.Kind, p.Native, p.Options = records.KindMultiSelect, elem, slices.Clone(opts)
		}
	default:
		p.Kind = kindOf(c.dataType)
	}
	return p
}

func kindOf(dataType string) records.Kind {
	switch dataType {
	case "text", "character varying", "character":
		return records.KindText
	case "smallint", "integer", "bigint", "numeric", "real", "double precision":
		return records.KindNumber
	case "boolean":
		return records.KindCheckbox
	case "date", "timestamp without time zone", "timestamp with time zone":
		return records.KindDate
	case "json", "jsonb":
		return records.KindFiles
	}
	return records.KindUnsupported
}

// ExtendOptions adds the missing labels to the enum type behind prop.
// ADD VALUE IF NOT EXISTS makes concurrent extensions lossless.
func (s *Store) ExtendOptions(ctx context.Context, target string, prop records.Property, missing []string) error {
	if !prop.Kind.Enumerated() || prop.Native == "" {
		return fmt.Errorf("postgres: column %s.%s is not an enum", target, prop.Name)
	}
	typ := pgx.Identifier{prop.Native}.Sanitize()
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, v := range missing {
			q := fmt.Sprintf("ALTER TYPE %s ADD VALUE IF NOT EXISTS %s", typ, quoteLiteral(v))
			if _, err := tx.ExecContext(ctx, q); err != nil {
				return fmt.Errorf("postgres: add %q to %s: %w", v, prop.Native, err)
			}
		}
		return nil
	})
}

func (s *Store) CreateRecord(ctx context.Context, target string, props map[string]records.Value) (string, error) {
	table := pgx.Identifier{target}.Sanitize()
	names := sortedNames(props)

	query := fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING id::text", table)
	var args []any
	if len(names) > 0 {
		cols := make([]string, len(names))
		exprs := make([]string, len(names))
		args = make([]any, len(names))
		for i, name := range names {
			v := props[name]
			arg, err := argument(v)
			if err != nil {
				return "", fmt.Errorf("postgres: column %s: %w", name, err)
			}
			cols[i] = pgx.Identifier{name}.Sanitize()
			exprs[i] = placeholder(i+1, v)
			args[i] = arg
		}
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id::text",
			table, strings.Join(cols, ", "), strings.Join(exprs, ", "))
	}

	var id string
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return "", fmt.Errorf("postgres: insert into %s: %w", target, err)
	}
	return id, nil
}

func (s *Store) UpdateRecord(ctx context.Context, target, recordID string, props map[string]records.Value) error {
	names := sortedNames(props)
	if len(names) == 0 {
		return nil
	}

	sets := make([]string, len(names))
	args := make([]any, 0, len(names)+1)
	for i, name := range names {
		v := props[name]
		arg, err := argument(v)
		if err != nil {
			return fmt.Errorf("postgres: column %s: %w", name, err)
		}
		sets[i] = pgx.Identifier{name}.Sanitize() + " = " + placeholder(i+1, v)
		args = append(args, arg)
	}
	args = append(args, recordID)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d",
		pgx.Identifier{target}.Sanitize(), strings.Join(sets, ", "), len(args))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("postgres: update %s: %w", target, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("postgres: record %s not found in %s", recordID, target)
	}
	return nil
}

// placeholder returns the bind expression for v, cast where the column
// type cannot be inferred from a text parameter.
func placeholder(n int, v records.Value) string {
	p := "$" + strconv.Itoa(n)
	switch v.Kind {
	case records.KindSelect:
		if v.Native != "" {
			return p + "::text::" + pgx.Identifier{v.Native}.Sanitize()
		}
	case records.KindMultiSelect:
		if v.Native != "" {
			return p + "::text[]::" + pgx.Identifier{v.Native}.Sanitize() + "[]"
		}
		return p + "::text[]"
	case records.KindFiles:
		return p + "::jsonb"
	case records.KindRelation:
		if v.Native == "uuid" {
			return p + "::uuid"
		}
	}
	return p
}

type fileJSON struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func argument(v records.Value) (any, error) {
	switch v.Kind {
	case records.KindTitle, records.KindText, records.KindURL, records.KindEmail:
		return v.Text, nil
	case records.KindNumber:
		if v.Number == math.Trunc(v.Number) && math.Abs(v.Number) < 1<<53 {
			return int64(v.Number), nil
		}
		return v.Number, nil
	case records.KindCheckbox:
		return v.Bool, nil
	case records.KindDate:
		return v.Time, nil
	case records.KindSelect:
		if len(v.Options) == 0 {
			return nil, nil
		}
		return v.Options[0], nil
	case records.KindMultiSelect:
		return arrayLiteral(v.Options), nil
	case records.KindFiles:
		files := make([]fileJSON, len(v.Files))
		for i, f := range v.Files {
			files[i] = fileJSON{Name: f.Name, URL: f.URL}
		}
		raw, err := json.Marshal(files)
		if err != nil {
			return nil, err
		}
		return string(raw), nil
	case records.KindRelation:
		if len(v.Relations) == 0 {
			return nil, nil
		}
		return v.Relations[0], nil
	}
	return nil, fmt.Errorf("kind %s cannot be stored", v.Kind)
}

// arrayLiteral renders a text[] literal so the value binds as plain text
// on every driver.
func arrayLiteral(items []string) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, s := range items {
		if i > 0 {
			b.WriteByte(',')
		}
		s = strings.ReplaceAll(s, `\`, `\\`)
		s = strings.ReplaceAll(s, `"`, `\"`)
		b.WriteByte('"')
		b.WriteString(s)
		b.WriteByte('"')
	}
	b.WriteByte('}')
	return b.String()
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func sortedNames(props map[string]records.Value) []string {
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
