// Package h2fasthttp adapts h2core connections to fasthttp's
// RequestCtx/RequestHandler model, the same application-layer shape the
// teacher repo this package descends from terminates its own HTTP/2
// frames into.
package h2fasthttp

import (
	"bytes"
	"strconv"

	"github.com/valyala/fasthttp"

	"github.com/flowframe/h2core"
)

var (
	strStatus        = []byte(":status")
	strMethod        = []byte(":method")
	strPath          = []byte(":path")
	strScheme        = []byte(":scheme")
	strAuthority     = []byte(":authority")
	strContentType   = []byte("content-type")
	strContentLength = []byte("content-length")
	strUserAgent     = []byte("user-agent")
)

// requestHeaders copies one decoded header block onto req, translating
// HTTP/2 pseudo-headers into fasthttp's request fields.
func requestHeaders(fields []h2core.HeaderField, req *fasthttp.Request) {
	for i := range fields {
		hf := &fields[i]
		k, v := hf.KeyBytes(), hf.ValueBytes()

		if !hf.IsPseudo() {
			if bytes.Equal(k, strUserAgent) {
				req.Header.SetUserAgentBytes(v)
			} else if bytes.Equal(k, strContentType) {
				req.Header.SetContentTypeBytes(v)
			} else {
				req.Header.AddBytesKV(k, v)
			}
			continue
		}

		switch {
		case bytes.Equal(k, strMethod):
			req.Header.SetMethodBytes(v)
		case bytes.Equal(k, strPath):
			req.URI().SetPathBytes(v)
		case bytes.Equal(k, strScheme):
			req.URI().SetSchemeBytes(v)
		case bytes.Equal(k, strAuthority):
			req.URI().SetHostBytes(v)
			req.Header.AddBytesV("Host", v)
		}
	}
}

// responseHeaders encodes a fasthttp response's status line and header
// set as HTTP/2 header fields, lowercasing names per RFC 7540 §8.1.2.
func responseHeaders(res *fasthttp.Response) []h2core.HeaderField {
	fields := make([]h2core.HeaderField, 0, 8)

	var status h2core.HeaderField
	status.SetKeyBytes(strStatus)
	status.SetValue(strconv.Itoa(res.StatusCode()))
	fields = append(fields, status)

	var cl h2core.HeaderField
	cl.SetKeyBytes(strContentLength)
	cl.SetValue(strconv.Itoa(len(res.Body())))
	fields = append(fields, cl)

	res.Header.VisitAll(func(k, v []byte) {
		var hf h2core.HeaderField
		hf.SetBytes(bytes.ToLower(k), v)
		fields = append(fields, hf)
	})

	return fields
}
