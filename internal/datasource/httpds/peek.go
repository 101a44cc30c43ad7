package httpds

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// Head returns up to n leading bytes of url. It asks for a byte range and
// still caps the read when the server ignores it.
func (c *Client) Head(ctx context.Context, url string, n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("httpds: n must be > 0")
	}
	h := http.Header{}
	h.Set("Range", fmt.Sprintf("bytes=0-%d", n-1))

	resp, err := c.Get(ctx, url, h)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(io.LimitReader(resp.Body, int64(n))); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
