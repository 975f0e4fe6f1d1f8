// Package markdown reads forms described as markdown documents: a level-one
// heading names the application, each level-two heading starts a form and
// the pipe table that follows lists its fields.
package markdown

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/goliatone/go-formkit/internal/logging"
	"github.com/goliatone/go-formkit/internal/naming"
	"github.com/goliatone/go-formkit/pkg/parser"
	"github.com/goliatone/go-formkit/pkg/schema"
)

// Name is the registry key.
const Name = "markdown"

var (
	bulletPattern    = regexp.MustCompile(`^\s*[-*+]\s+([A-Za-z][A-Za-z _-]*?)\s*:\s*(.*?)\s*$`)
	separatorPattern = regexp.MustCompile(`^\s*\|?\s*:?-{2,}:?\s*(\|\s*:?-{2,}:?\s*)*\|?\s*$`)
)

// Parser implements parser.Parser for markdown documents.
type Parser struct {
	logger *zap.Logger
}

// New constructs the parser. A nil logger discards output.
func New(logger *zap.Logger) *Parser {
	return &Parser{logger: logging.OrNop(logger)}
}

func (p *Parser) Name() string { return Name }

func (p *Parser) Extensions() []string { return []string{".md", ".markdown"} }

// Parse reads the markdown file at input.
func (p *Parser) Parse(ctx context.Context, input string, opts parser.Options) (*schema.AppSpec, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(input)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &schema.NotFoundError{Path: input, Err: err}
		}
		return nil, fmt.Errorf("markdown: read %s: %w", input, err)
	}
	return p.ParseBytes(input, data, opts)
}

// ParseBytes parses an in-memory document; input names it in errors.
func (p *Parser) ParseBytes(input string, data []byte, opts parser.Options) (*schema.AppSpec, error) {
	doc, err := scan(input, data)
	if err != nil {
		return nil, err
	}

	app := &schema.AppSpec{
		Version: opts.VersionOr(doc.meta["version"]),
		Metadata: schema.Metadata{
			AppID:   firstNonEmpty(opts.AppID, doc.meta["app_id"], naming.Identifier(doc.title, "app")),
			AppName: firstNonEmpty(opts.AppName, doc.meta["app_name"], doc.title),
		},
	}
	if app.Metadata.AppID == "" {
		return nil, &schema.ArgumentError{Input: input, Arg: "app_id", Reason: "not set by options, metadata bullets or a title heading"}
	}

	if len(doc.sections) == 0 {
		return nil, schema.NewParseError(input, 0, "no form tables found")
	}
	hasOverrides := opts.FormID != "" || opts.FormName != "" || opts.Table != ""
	if hasOverrides && len(doc.sections) > 1 {
		return nil, &schema.ArgumentError{Input: input, Arg: "form", Reason: fmt.Sprintf("form overrides need a single form, document has %d", len(doc.sections))}
	}

	for _, sec := range doc.sections {
		form, err := buildForm(input, doc.title, sec, opts)
		if err != nil {
			return nil, err
		}
		p.logger.Debug("markdown form parsed",
			zap.String("input", input),
			zap.String("form", form.ID),
			zap.Int("fields", len(form.Fields)),
		)
		app.Forms = append(app.Forms, form)
	}
	return parser.Finish(app, input, opts)
}

type section struct {
	heading string
	line    int
	meta    map[string]string
	table   *table
}

type table struct {
	line      int
	header    []string
	separator bool
	rows      []row
}

type row struct {
	line  int
	cells []string
}

type document struct {
	title    string
	meta     map[string]string
	sections []*section
}

// scan splits the document into the title block and form sections.
func scan(input string, data []byte) (*document, error) {
	doc := &document{meta: map[string]string{}}
	var (
		current *section
		tbl     *table
		fenced  bool
		lineNo  int
	)

	closeTable := func() error {
		if tbl == nil {
			return nil
		}
		target := current
		if target == nil {
			target = &section{line: tbl.line, meta: map[string]string{}}
			doc.sections = append(doc.sections, target)
			current = target
		}
		if target.table != nil {
			return schema.NewParseError(input, tbl.line, "form %q has more than one field table", target.heading)
		}
		target.table = tbl
		tbl = nil
		return nil
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			fenced = !fenced
			continue
		}
		if fenced {
			continue
		}

		if strings.HasPrefix(trimmed, "|") {
			cells := splitRow(trimmed)
			switch {
			case tbl == nil:
				tbl = &table{line: lineNo, header: cells}
			case !tbl.separator && len(tbl.rows) == 0 && separatorPattern.MatchString(trimmed):
				tbl.separator = true
			default:
				if len(cells) != len(tbl.header) {
					return nil, schema.NewParseError(input, lineNo, "expected %d cells, got %d", len(tbl.header), len(cells))
				}
				tbl.rows = append(tbl.rows, row{line: lineNo, cells: cells})
			}
			continue
		}
		if err := closeTable(); err != nil {
			return nil, err
		}

		switch {
		case strings.HasPrefix(trimmed, "# "):
			doc.title = cleanText(strings.TrimPrefix(trimmed, "# "))
		case strings.HasPrefix(trimmed, "## "):
			current = &section{
				heading: cleanText(strings.TrimPrefix(trimmed, "## ")),
				line:    lineNo,
				meta:    map[string]string{},
			}
			doc.sections = append(doc.sections, current)
		default:
			if m := bulletPattern.FindStringSubmatch(line); m != nil {
				key := normalizeKey(m[1])
				value := cleanText(m[2])
				if current == nil {
					doc.meta[key] = value
				} else {
					current.meta[key] = value
				}
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, schema.NewParseError(input, lineNo, "read: %v", err)
	}
	if err := closeTable(); err != nil {
		return nil, err
	}

	for _, sec := range doc.sections {
		if sec.table == nil {
			return nil, schema.NewParseError(input, sec.line, "form %q has no field table", sec.heading)
		}
		if !sec.table.separator {
			return nil, schema.NewParseError(input, sec.table.line, "table header is not followed by a separator row")
		}
	}
	return doc, nil
}

// splitRow splits a pipe table row, honouring escaped pipes.
func splitRow(line string) []string {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "|")
	if strings.HasSuffix(line, "|") && !strings.HasSuffix(line, `\|`) {
		line = strings.TrimSuffix(line, "|")
	}
	var (
		cells []string
		cur   strings.Builder
	)
	for i := 0; i < len(line); i++ {
		switch {
		case line[i] == '\\' && i+1 < len(line) && line[i+1] == '|':
			cur.WriteByte('|')
			i++
		case line[i] == '|':
			cells = append(cells, cleanText(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(line[i])
		}
	}
	return append(cells, cleanText(cur.String()))
}

// cleanText strips surrounding whitespace and inline code or emphasis markers.
func cleanText(s string) string {
	s = strings.TrimSpace(s)
	for _, marker := range []string{"**", "`", "*"} {
		if len(s) > 2*len(marker) && strings.HasPrefix(s, marker) && strings.HasSuffix(s, marker) {
			s = strings.TrimSpace(s[len(marker) : len(s)-len(marker)])
		}
	}
	return s
}

func normalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
