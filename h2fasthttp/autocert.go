package h2fasthttp

import (
	"crypto/tls"
	"net/http"

	"golang.org/x/crypto/acme"
	"golang.org/x/crypto/acme/autocert"
)

// ServeAutocert runs s behind Let's Encrypt certificates managed by
// autocert, for the given host names. It starts a plain HTTP listener on
// :80 to answer ACME HTTP-01 challenges and tls-alpn-01 validation on
// the HTTPS listener itself, then blocks serving HTTPS on addr.
func (s *Server) ServeAutocert(addr, cacheDir string, hosts ...string) error {
	m := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(hosts...),
		Cache:      autocert.DirCache(cacheDir),
	}

	go http.ListenAndServe(":80", m.HTTPHandler(nil))

	cfg := &tls.Config{
		GetCertificate: m.GetCertificate,
		NextProtos:     []string{acme.ALPNProto, "h2"},
	}

	ln, err := tls.Listen("tcp", addr, cfg)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}
