// Package csv derives one form from the header row of a CSV file.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/goliatone/go-formkit/internal/logging"
	"github.com/goliatone/go-formkit/internal/naming"
	"github.com/goliatone/go-formkit/pkg/parser"
	"github.com/goliatone/go-formkit/pkg/schema"
)

// Name is the registry key.
const Name = "csv"

// Parser implements parser.Parser for CSV files. The header names the
// columns; data rows are only counted.
type Parser struct {
	logger *zap.Logger
}

// New constructs the parser. A nil logger discards output.
func New(logger *zap.Logger) *Parser {
	return &Parser{logger: logging.OrNop(logger)}
}

func (p *Parser) Name() string { return Name }

func (p *Parser) Extensions() []string { return []string{".csv", ".tsv"} }

// Parse reads the file at input. Options.AppID is required. The form id,
// name and table derive from the file stem unless overridden. Extra["delimiter"]
// overrides the separator (tab for .tsv files, comma otherwise).
func (p *Parser) Parse(ctx context.Context, input string, opts parser.Options) (*schema.AppSpec, error) {
	if opts.AppID == "" {
		return nil, &schema.ArgumentError{Input: input, Arg: "app_id", Reason: "is required for csv input"}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(input)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &schema.NotFoundError{Path: input, Err: err}
		}
		return nil, fmt.Errorf("csv: open %s: %w", input, err)
	}
	defer f.Close()

	delimiter := ','
	if strings.EqualFold(filepath.Ext(input), ".tsv") {
		delimiter = '\t'
	}
	if d := opts.ExtraValue("delimiter"); d != "" {
		delimiter = []rune(d)[0]
	}
	return p.ParseReader(input, f, delimiter, opts)
}

// ParseReader parses CSV content from r; input names it in errors and
// provides the stem used for derived names.
func (p *Parser) ParseReader(input string, r io.Reader, delimiter rune, opts parser.Options) (*schema.AppSpec, error) {
	if opts.AppID == "" {
		return nil, &schema.ArgumentError{Input: input, Arg: "app_id", Reason: "is required for csv input"}
	}

	reader := csv.NewReader(r)
	reader.Comma = delimiter
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &schema.ArgumentError{Input: input, Arg: "input", Reason: "file is empty"}
		}
		return nil, parseError(input, err)
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")

	rows := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, parseError(input, err)
		}
		if !blank(record) {
			rows++
		}
	}
	if rows == 0 {
		return nil, &schema.ArgumentError{Input: input, Arg: "input", Reason: "no data rows"}
	}

	fields, err := fieldsFromHeader(input, header)
	if err != nil {
		return nil, err
	}

	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	formID := firstNonEmpty(opts.FormID, naming.Identifier(stem, "form"))
	form := schema.FormSpec{
		ID:     formID,
		Name:   firstNonEmpty(opts.FormName, naming.Title(stem)),
		Table:  firstNonEmpty(opts.Table, formID),
		Fields: fields,
	}

	p.logger.Debug("csv form derived",
		zap.String("input", input),
		zap.String("form", form.ID),
		zap.Int("fields", len(fields)),
		zap.Int("rows", rows),
	)

	app := &schema.AppSpec{
		Version:  opts.VersionOr(""),
		Metadata: schema.Metadata{AppID: opts.AppID, AppName: opts.AppName},
		Forms:    []schema.FormSpec{form},
	}
	return parser.Finish(app, input, opts)
}

// fieldsFromHeader drops an "id" column, makes "code" (or the first remaining
// column) the primary key and turns every column into a TEXT field.
func fieldsFromHeader(input string, header []string) ([]schema.FieldSpec, error) {
	var columns []string
	for _, name := range header {
		name = strings.TrimSpace(name)
		if strings.EqualFold(name, "id") {
			continue
		}
		columns = append(columns, name)
	}
	if len(columns) == 0 {
		return nil, schema.NewParseError(input, 1, "header has no usable columns")
	}

	pk := 0
	for i, name := range columns {
		if strings.EqualFold(name, "code") {
			pk = i
			break
		}
	}

	fields := make([]schema.FieldSpec, 0, len(columns))
	seen := make(map[string]string, len(columns))
	for i, name := range columns {
		id := naming.Identifier(name, "f")
		if id == "" {
			return nil, schema.NewParseError(input, 1, "column %d (%q) has no usable name", i+1, name)
		}
		if prev, dup := seen[id]; dup {
			return nil, schema.NewParseError(input, 1, "columns %q and %q both map to field %q", prev, name, id)
		}
		seen[id] = name

		field := schema.FieldSpec{
			ID:    id,
			Type:  schema.FieldTypeText,
			Label: naming.Title(strings.ReplaceAll(name, "_", " ")),
		}
		if i == pk {
			field.Required = true
			field.PrimaryKey = true
		}
		fields = append(fields, field)
	}
	return fields, nil
}

func parseError(input string, err error) error {
	var perr *csv.ParseError
	if errors.As(err, &perr) {
		return &schema.ParseError{Input: input, Line: perr.Line, Cause: perr.Err}
	}
	return &schema.ParseError{Input: input, Cause: err}
}

func blank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
