package metrics

import (
	"net/http"
	"net/http/pprof"

	"transcoding_service/pkg/config"
)

// RegisterPprof 在非 production 環境把 pprof endpoint 掛到 mux 上, 回傳是否啟用
//
//	curl http://localhost:<metrics_port>/debug/pprof/
//	go tool pprof http://localhost:<metrics_port>/debug/pprof/profile?seconds=30
func RegisterPprof(mux *http.ServeMux) bool {
	if config.IsProduction() {
		return false
	}

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return true
}
