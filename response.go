package h2core

import (
	"bytes"
	"errors"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// ErrResponseNotReady is returned by GetResponse for a stream that has
// not closed yet.
var ErrResponseNotReady = errors.New("h2core: response not ready")

// ErrResponseGarbage is returned by GetResponse for a stream whose
// connection runs with ConnOpts.GarbageOnEnd, which never retains
// response data past stream-finish.
var ErrResponseGarbage = errors.New("h2core: response discarded by GarbageOnEnd")

// Response is the buffered view of one finished stream, returned by
// GetResponse: the decoded header/trailer blocks and the concatenated,
// already-decompressed body.
type Response struct {
	Headers  []HeaderField
	Body     []byte
	Trailers []HeaderField
}

// storedResponse accumulates one stream's headers/body/trailers for
// GetResponse, independently of whatever StreamCallback does with the
// same events. It is written by the connection goroutine as frames
// arrive and read by GetResponse from any goroutine, so it carries its
// own lock rather than the single-owner discipline the rest of stream
// relies on.
type storedResponse struct {
	mu       sync.Mutex
	headers  []HeaderField
	body     []byte
	trailers []HeaderField
	done     bool
	garbage  bool
}

func (r *storedResponse) setHeaders(fields []HeaderField) {
	r.mu.Lock()
	if !r.garbage {
		r.headers = fields
	}
	r.mu.Unlock()
}

func (r *storedResponse) appendBody(p []byte) {
	r.mu.Lock()
	if !r.garbage {
		r.body = append(r.body, p...)
	}
	r.mu.Unlock()
}

func (r *storedResponse) setTrailers(fields []HeaderField) {
	r.mu.Lock()
	if !r.garbage {
		r.trailers = fields
	}
	r.mu.Unlock()
}

func (r *storedResponse) finish(garbage bool) {
	r.mu.Lock()
	r.done = true
	if garbage {
		r.garbage = true
		r.headers = nil
		r.body = nil
		r.trailers = nil
	}
	r.mu.Unlock()
}

// snapshot returns ready, garbage, and a copy of the buffered fields
// safe to hand to the caller.
func (r *storedResponse) snapshot() (resp Response, ready, garbage bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.done {
		return Response{}, false, false
	}
	if r.garbage {
		return Response{}, true, true
	}
	return Response{
		Headers:  append([]HeaderField(nil), r.headers...),
		Body:     append([]byte(nil), r.body...),
		Trailers: append([]HeaderField(nil), r.trailers...),
	}, true, false
}

// decodeBody transparently decompresses resp.Body per its
// content-encoding header, leaving unrecognized encodings untouched.
func decodeBody(resp *Response) error {
	var encoding string
	for i := range resp.Headers {
		if resp.Headers[i].Key() == "content-encoding" {
			encoding = resp.Headers[i].Value()
			break
		}
	}
	if encoding == "" || len(resp.Body) == 0 {
		return nil
	}

	var r io.ReadCloser
	var err error
	switch encoding {
	case "gzip":
		r, err = gzip.NewReader(bytes.NewReader(resp.Body))
	case "deflate", "compress", "zip":
		r, err = zlib.NewReader(bytes.NewReader(resp.Body))
	default:
		return nil
	}
	if err != nil {
		return err
	}
	defer r.Close()

	decoded, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	resp.Body = decoded
	return nil
}

// GetResponse returns the buffered headers/body/trailers for a stream
// that has closed, decompressing the
// body per its Content-Encoding header. It returns ErrResponseNotReady
// if the stream hasn't closed yet, and ErrResponseGarbage if the
// connection is running with ConnOpts.GarbageOnEnd.
func (c *Conn) GetResponse(id uint32) (*Response, error) {
	var s *stream
	var found bool
	if err := c.doSync(func() { s, found = c.streams.Lookup(id) }); err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrResponseNotReady
	}

	resp, ready, garbage := s.resp.snapshot()
	if !ready {
		return nil, ErrResponseNotReady
	}
	if garbage {
		return nil, ErrResponseGarbage
	}
	if err := decodeBody(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
