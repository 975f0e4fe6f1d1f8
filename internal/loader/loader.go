// Package loader reads canonical documents from files, fs.FS entries or HTTP
// endpoints and maps missing inputs to schema.NotFoundError.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/goliatone/go-formkit/pkg/schema"
)

// Options configures the loader strategies.
type Options struct {
	FileSystem     fs.FS
	HTTPClient     *http.Client
	AllowHTTP      bool
	RequestTimeout time.Duration
}

// Loader delegates to the file, fs.FS or HTTP strategy matching the source.
type Loader struct {
	fs      fs.FS
	http    *http.Client
	timeout time.Duration
}

// New constructs a Loader. HTTP is enabled when a client is supplied or
// AllowHTTP is set.
func New(options Options) *Loader {
	timeout := options.RequestTimeout

	var httpClient *http.Client
	switch {
	case options.HTTPClient != nil:
		clone := *options.HTTPClient
		if timeout > 0 && clone.Timeout == 0 {
			clone.Timeout = timeout
		}
		httpClient = &clone
	case options.AllowHTTP:
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Loader{fs: options.FileSystem, http: httpClient, timeout: timeout}
}

// Load fetches the source and wraps it in a Document.
func (l *Loader) Load(ctx context.Context, src schema.Source) (schema.Document, error) {
	if src == nil {
		return schema.Document{}, errors.New("loader: source is nil")
	}

	var (
		data []byte
		err  error
	)
	switch src.Kind() {
	case schema.SourceKindFile:
		data, err = loadFile(ctx, src.Location())
	case schema.SourceKindFS:
		data, err = loadFromFS(ctx, l.fs, src.Location())
	case schema.SourceKindURL:
		if l.http == nil {
			return schema.Document{}, errors.New("loader: http support disabled")
		}
		data, err = loadHTTP(ctx, l.http, src.Location(), l.timeout)
	default:
		err = fmt.Errorf("loader: unsupported source kind %q", src.Kind())
	}
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return schema.Document{}, &schema.NotFoundError{Path: src.Location(), Err: err}
		}
		return schema.Document{}, err
	}

	doc, err := schema.NewDocument(src, data)
	if err != nil {
		return schema.Document{}, &schema.ParseError{Input: src.Location(), Cause: err}
	}
	return doc, nil
}
