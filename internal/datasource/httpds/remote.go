package httpds

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Remote is a datasource.Source for one URL.
type Remote struct {
	URL    string
	Client *Client

	// Dir holds the spooled download; empty means os.TempDir.
	Dir string
}

// NewRemote returns a Remote for url using c, or a default Client when c is
// nil.
func NewRemote(url string, c *Client) *Remote {
	if c == nil {
		c = NewClient(Config{})
	}
	return &Remote{URL: url, Client: c}
}

// Open downloads the resource into a temporary file and returns it
// positioned at the start. Closing it removes the file.
func (r *Remote) Open(ctx context.Context) (io.ReadSeekCloser, error) {
	resp, err := r.Client.Get(ctx, r.URL, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	f, err := os.CreateTemp(r.Dir, "statbatch-*-"+FileName(r.URL))
	if err != nil {
		return nil, fmt.Errorf("httpds: spool %s: %w", r.URL, err)
	}
	tf := &tempFile{File: f}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = tf.Close()
		return nil, fmt.Errorf("httpds: download %s: %w", r.URL, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		_ = tf.Close()
		return nil, fmt.Errorf("httpds: spool %s: %w", r.URL, err)
	}
	return tf, nil
}

// tempFile removes itself on Close.
type tempFile struct {
	*os.File
}

func (t *tempFile) Close() error {
	cerr := t.File.Close()
	rerr := os.Remove(t.File.Name())
	if cerr != nil {
		return cerr
	}
	if rerr != nil && !os.IsNotExist(rerr) {
		return rerr
	}
	return nil
}
