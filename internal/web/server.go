// Package web provides the HTTP status page, JSON endpoints and device-key
// protected commands for the garage controller.
package web

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/garage-controller/internal/automation"
	"github.com/sweeney/garage-controller/internal/logstore"
	"github.com/sweeney/garage-controller/internal/options"
	"github.com/sweeney/garage-controller/internal/status"
)

// Controller is the part of the controller the web server drives.
type Controller interface {
	HandleCommand(name, source string) error
	Options() options.Options
	UpdateOptions(values map[string]string) error
	FactoryReset() error
	ReadLog() ([]logstore.Record, error)
	ClearLog() error
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	ctrl       Controller
}

// New creates a Server that reads state from the given tracker. metrics may
// be nil.
func New(addr string, tracker *status.Tracker, ctrl Controller, metrics http.Handler) *Server {
	s := &Server{tracker: tracker, ctrl: ctrl}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/jc", s.handleController)
	mux.HandleFunc("/jl", s.handleLog)
	mux.HandleFunc("/jo", s.handleOptions)
	mux.HandleFunc("/co", s.handleChangeOptions)
	mux.HandleFunc("/cc", s.handleCommand)
	mux.HandleFunc("/clearlog", s.handleClearLog)
	mux.HandleFunc("/resetall", s.handleReset)
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, status.FormatJSON(s.tracker.Snapshot()))
}

func (s *Server) handleController(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, status.FormatController(s.tracker.Snapshot()))
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	recs, err := s.ctrl.ReadLog()
	if err != nil {
		log.Error().Err(err).Msg("read event log")
		writeResult(w, http.StatusInternalServerError, resultIO, err.Error())
		return
	}
	o := s.ctrl.Options()
	snap := s.tracker.Snapshot()
	writeJSON(w, http.StatusOK, formatLog(o.Str(options.Name), snap.StartTime, snap.Now, snap.Config.SwitchInstalled, recs))
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	o := s.ctrl.Options()
	writeJSON(w, http.StatusOK, mustJSON(o.Public()))
}

// authorized checks the dkey parameter against the device key.
func (s *Server) authorized(w http.ResponseWriter, r *http.Request) bool {
	o := s.ctrl.Options()
	want := o.Str(options.DeviceKey)
	got := r.FormValue("dkey")
	if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		log.Warn().Str("remote", r.RemoteAddr).Str("path", r.URL.Path).Msg("device key mismatch")
		writeResult(w, http.StatusUnauthorized, resultUnauthorized, "")
		return false
	}
	return true
}

func (s *Server) handleChangeOptions(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	values := make(map[string]string)
	for name, v := range r.Form {
		k, ok := options.Lookup(name)
		if !ok || len(v) == 0 || k == options.FirmwareVersion || k == options.DeviceKey {
			continue
		}
		values[name] = v[0]
	}

	if nkey := r.FormValue("nkey"); nkey != "" {
		ckey := r.FormValue("ckey")
		if ckey == "" {
			writeResult(w, http.StatusBadRequest, resultMissing, "ckey")
			return
		}
		if ckey != nkey {
			writeResult(w, http.StatusBadRequest, resultMismatch, "ckey")
			return
		}
		values[options.DeviceKey.String()] = nkey
	}

	if len(values) == 0 {
		writeResult(w, http.StatusBadRequest, resultMissing, "")
		return
	}
	if err := s.ctrl.UpdateOptions(values); err != nil {
		if errors.Is(err, options.ErrOutOfRange) {
			writeResult(w, http.StatusBadRequest, resultOutOfRange, err.Error())
			return
		}
		writeResult(w, http.StatusBadRequest, resultFormat, err.Error())
		return
	}
	writeResult(w, http.StatusOK, resultOK, "")
}

// commandParams maps /cc parameters to controller command names.
var commandParams = []struct {
	param, value, command string
}{
	{"click", "1", "click"},
	{"open", "1", "open"},
	{"close", "1", "close"},
	{"light", "toggle", "togglelight"},
	{"lock", "toggle", "togglelock"},
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	for _, p := range commandParams {
		if r.FormValue(p.param) != p.value {
			continue
		}
		if err := s.ctrl.HandleCommand(p.command, "http"); err != nil {
			if errors.Is(err, automation.ErrIllegalAction) {
				writeResult(w, http.StatusConflict, resultNotPermitted, err.Error())
				return
			}
			writeResult(w, http.StatusInternalServerError, resultIO, err.Error())
			return
		}
		writeResult(w, http.StatusOK, resultOK, "")
		return
	}
	writeResult(w, http.StatusBadRequest, resultMissing, "no command given")
}

func (s *Server) handleClearLog(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	if err := s.ctrl.ClearLog(); err != nil {
		writeResult(w, http.StatusInternalServerError, resultIO, err.Error())
		return
	}
	writeResult(w, http.StatusOK, resultOK, "")
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	if err := s.ctrl.FactoryReset(); err != nil {
		writeResult(w, http.StatusInternalServerError, resultIO, err.Error())
		return
	}
	writeResult(w, http.StatusOK, resultOK, "")
}

func writeJSON(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(body)
}
