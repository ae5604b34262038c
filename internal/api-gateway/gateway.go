package gateway

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
)

// Route mapeia um prefixo público para o serviço interno
type Route struct {
	Prefix string // ex: "/api/ledger"
	Target string // ex: "http://localhost:8083"
}

// NewHandler monta o mux do gateway: cada prefixo é removido antes do proxy
func NewHandler(routes []Route) (http.Handler, error) {
	mux := http.NewServeMux()
	for _, rt := range routes {
		u, err := url.Parse(rt.Target)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid target for %s: %q", rt.Prefix, rt.Target)
		}
		prefix := strings.TrimSuffix(rt.Prefix, "/")
		mux.Handle(prefix+"/", http.StripPrefix(prefix, httputil.NewSingleHostReverseProxy(u)))
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return WithCORS(mux), nil
}

// WithCORS libera chamadas do front; X-User-ID é a identidade do chamador
func WithCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-ID")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
