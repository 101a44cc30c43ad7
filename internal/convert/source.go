package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"statbatch/internal/datasource"
	"statbatch/internal/datasource/httpds"
	"statbatch/internal/event"
	"statbatch/internal/source/eventlog"
	"statbatch/internal/source/statfile"
)

// input is an opened event source and whatever must be closed after it.
type input struct {
	src   event.Source
	close func() error
}

// kindOf resolves the configured source kind for the file name.
func kindOf(kind, name string) (string, error) {
	if kind != "" && kind != "auto" {
		return kind, nil
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".ndjson", ".jsonl", ".events":
		return "eventlog", nil
	}
	k, err := statfile.KindOf(name)
	if err != nil {
		return "", err
	}
	return string(k), nil
}

// detect resolves the kind by name and falls back to the leading bytes.
func (c *Converter) detect(ctx context.Context, path string) (string, error) {
	kind, err := kindOf(c.Job.Source.Kind, datasource.Name(path))
	if err == nil {
		return kind, nil
	}
	head, herr := c.head(ctx, path)
	if herr != nil {
		return "", errors.Join(err, herr)
	}
	if k, ok := statfile.Sniff(head); ok {
		return string(k), nil
	}
	return "", err
}

func (c *Converter) client() *httpds.Client {
	if c.HTTP == nil {
		c.HTTP = httpds.NewClient(httpds.Config{})
	}
	return c.HTTP
}

func (c *Converter) head(ctx context.Context, path string) ([]byte, error) {
	if httpds.IsURL(path) {
		return c.client().Head(ctx, path, statfile.SniffLen)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, statfile.SniffLen)
	n, err := io.ReadFull(f, buf)
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		err = nil
	}
	return buf[:n], err
}

func (c *Converter) openInput(ctx context.Context, chunk int, path string) (*input, error) {
	kind, err := c.detect(ctx, path)
	if err != nil {
		return nil, err
	}
	var sfKind statfile.Kind
	switch kind {
	case "eventlog":
	case string(statfile.KindSAS), string(statfile.KindStata):
		sfKind = statfile.Kind(kind)
	default:
		return nil, fmt.Errorf("convert: unknown source kind %q", kind)
	}

	rc, err := datasource.For(path, c.client()).Open(ctx)
	if err != nil {
		return nil, err
	}
	if kind == "eventlog" {
		return &input{src: eventlog.New(rc), close: rc.Close}, nil
	}

	src := c.Job.Source
	readChunk := src.ReadChunk
	if readChunk <= 0 {
		readChunk = min(chunk, statfile.DefaultChunkRows)
	}
	f, err := statfile.NewReader(rc, sfKind, statfile.Options{
		Kind:      sfKind,
		ChunkRows: readChunk,
		RowLimit:  src.RowLimit,
		Encoding:  src.Encoding,
	})
	if err != nil {
		_ = rc.Close()
		return nil, err
	}
	return &input{src: f, close: rc.Close}, nil
}
