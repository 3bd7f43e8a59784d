package h2fasthttp

import (
	"crypto/tls"
	"net"
	"sync"

	"github.com/valyala/fasthttp"

	"github.com/flowframe/h2core"
)

// Server bridges h2core connections to a fasthttp.RequestHandler: each
// HTTP/2 stream becomes one fasthttp.RequestCtx dispatched through
// Handler, with the response streamed back once the handler returns.
type Server struct {
	Handler fasthttp.RequestHandler

	// ConnOpts configures every connection Serve/ListenAndServeTLS
	// accepts; the zero value falls back to h2core's package defaults.
	ConnOpts h2core.ConnOpts

	// Settings is this endpoint's initial SETTINGS payload; the zero
	// value falls back to h2core.DefaultSettings.
	Settings h2core.Settings

	ctxPool sync.Pool
}

// ListenAndServeTLS accepts TLS connections on addr, requiring ALPN "h2",
// and serves each with Handler.
func (s *Server) ListenAndServeTLS(addr, certFile, keyFile string) error {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return err
	}
	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{h2core.ALPNProto},
	}
	ln, err := tls.Listen("tcp", addr, cfg)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln and runs each as an HTTP/2 endpoint.
func (s *Server) Serve(ln net.Listener) error {
	settings := s.Settings
	if settings.MaxConcurrentStreams == 0 {
		settings = h2core.DefaultSettings()
	}
	return h2core.Serve(ln, s.ConnOpts, settings, &callback{srv: s})
}

func (s *Server) acquireCtx() *fasthttp.RequestCtx {
	if v := s.ctxPool.Get(); v != nil {
		ctx := v.(*fasthttp.RequestCtx)
		ctx.Request.Reset()
		ctx.Response.Reset()
		return ctx
	}
	return &fasthttp.RequestCtx{}
}

func (s *Server) releaseCtx(ctx *fasthttp.RequestCtx) {
	s.ctxPool.Put(ctx)
}

// callback implements h2core.StreamCallback, buffering one stream's
// request into a fasthttp.RequestCtx and invoking Handler once the
// request completes (end_stream on the receive side).
type callback struct {
	srv *Server

	mu      sync.Mutex
	streams map[*h2core.StreamHandle]*requestState
}

type requestState struct {
	ctx *fasthttp.RequestCtx
}

func (cb *callback) state(s *h2core.StreamHandle) *requestState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.streams == nil {
		cb.streams = make(map[*h2core.StreamHandle]*requestState)
	}
	st, ok := cb.streams[s]
	if !ok {
		st = &requestState{ctx: cb.srv.acquireCtx()}
		cb.streams[s] = st
	}
	return st
}

func (cb *callback) drop(s *h2core.StreamHandle) {
	cb.mu.Lock()
	st, ok := cb.streams[s]
	if ok {
		delete(cb.streams, s)
	}
	cb.mu.Unlock()
	if ok {
		cb.srv.releaseCtx(st.ctx)
	}
}

func (cb *callback) OnHeaders(s *h2core.StreamHandle, headers []h2core.HeaderField, endStream bool) {
	st := cb.state(s)
	requestHeaders(headers, &st.ctx.Request)
	if endStream {
		cb.respond(s, st)
	}
}

func (cb *callback) OnData(s *h2core.StreamHandle, data []byte, endStream bool) {
	st := cb.state(s)
	st.ctx.Request.AppendBody(data)
	if endStream {
		cb.respond(s, st)
	}
}

func (cb *callback) OnTrailers(s *h2core.StreamHandle, trailers []h2core.HeaderField) {
	// Trailers on a request are rare and fasthttp.Request has no trailer
	// slot; this keeps them visible to the handler as regular headers.
	st := cb.state(s)
	requestHeaders(trailers, &st.ctx.Request)
}

func (cb *callback) OnReset(s *h2core.StreamHandle, code h2core.ErrorCode) {
	cb.drop(s)
}

func (cb *callback) respond(s *h2core.StreamHandle, st *requestState) {
	cb.srv.Handler(st.ctx)

	fields := responseHeaders(&st.ctx.Response)
	body := st.ctx.Response.Body()

	if err := s.SendHeaders(fields, len(body) == 0); err != nil {
		cb.drop(s)
		return
	}
	if len(body) > 0 {
		_ = s.SendData(body, true)
	}
	cb.drop(s)
}
