// Package webui exposes the import workflow over HTTP: a minimal embedded
// form for manual use plus a JSON API that mirrors the orchestrator's
// operations one-to-one.
//
// Routes:
//
//	GET  /                     → form
//	GET  /api/status           → workflow snapshot
//	POST /api/file             → upload a file for a step (multipart)
//	POST /api/mapping          → override one column mapping
//	POST /api/ignore-batch     → flip the inventory batch_id escape hatch
//	POST /api/import           → run the upload action for a step
//	POST /api/reset            → reset the whole workflow
//	GET  /api/recent           → most recent rows of a table (verification)
//	GET  /samples/{table}.csv  → downloadable CSV template
package webui

import (
	_ "embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"fleetseed/internal/importer"
	"fleetseed/internal/parser"
	"fleetseed/internal/schema"
	"fleetseed/internal/store"
	"fleetseed/internal/validate"
)

// Config controls server startup.
type Config struct {
	Addr string
	// DefaultDelimiter is used when an upload does not specify one.
	DefaultDelimiter rune
}

// Server wraps http.Server around one orchestrator.
type Server struct {
	cfg  Config
	orch *importer.Orchestrator
	log  *zap.Logger
	mux  *http.ServeMux
	tmpl *template.Template
}

// NewServer constructs a Server with routes and the embedded template.
func NewServer(cfg Config, orch *importer.Orchestrator, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		cfg:  cfg,
		orch: orch,
		log:  log,
		mux:  http.NewServeMux(),
		tmpl: template.Must(template.New("index").Parse(indexHTML)),
	}
	s.routes()
	return s
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.log.Info("listening", zap.String("addr", s.cfg.Addr))
	return http.ListenAndServe(s.cfg.Addr, s.mux)
}

// Handler returns the route mux, mainly for tests.
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) routes() {
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.HandleFunc("/api/file", s.handleFile)
	s.mux.HandleFunc("/api/mapping", s.handleMapping)
	s.mux.HandleFunc("/api/ignore-batch", s.handleIgnoreBatch)
	s.mux.HandleFunc("/api/import", s.handleImport)
	s.mux.HandleFunc("/api/reset", s.handleReset)
	s.mux.HandleFunc("/api/recent", s.handleRecent)
	s.mux.HandleFunc("/samples/", s.handleSample)
}

// stepView is the JSON shape of one step in the status snapshot.
type stepView struct {
	Table     string            `json:"table"`
	Enabled   bool              `json:"enabled"`
	Completed bool              `json:"completed"`
	FileName  string            `json:"file_name,omitempty"`
	Rows      int               `json:"rows"`
	Warnings  []string          `json:"warnings,omitempty"`
	Mapping   map[string]string `json:"mapping,omitempty"`
	Inserted  int64             `json:"inserted"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if err := s.tmpl.Execute(w, s.statusView()); err != nil {
		s.log.Error("template error", zap.Error(err))
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.statusView())
}

func (s *Server) statusView() map[string]any {
	steps := make([]stepView, 0, len(schema.Tables))
	for _, st := range s.orch.Status() {
		steps = append(steps, stepView{
			Table:     string(st.Table),
			Enabled:   s.orch.Enabled(st.Table),
			Completed: st.Completed,
			FileName:  st.FileName,
			Rows:      len(st.Rows),
			Warnings:  st.Warnings,
			Mapping:   st.Mapping,
			Inserted:  st.Inserted,
		})
	}
	return map[string]any{
		"session":         s.orch.Session().String(),
		"ignore_batch_id": s.orch.IgnoreBatchID(),
		"steps":           steps,
	}
}

// handleFile accepts a multipart upload for one step. Fields: table, file,
// optional delimiter.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	table := schema.Table(r.FormValue("table"))
	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, parser.ErrNoFile)
		return
	}
	defer f.Close()

	delim := s.cfg.DefaultDelimiter
	if d := r.FormValue("delimiter"); d != "" {
		delim = decodeDelimiter(d)
	}

	if err := s.orch.LoadFile(table, hdr.Filename, f, delim); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"preview": s.orch.Preview(table, 10),
		"status":  s.statusView(),
	})
}

func (s *Server) handleMapping(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	table := schema.Table(r.FormValue("table"))
	column := r.FormValue("column")
	source := r.FormValue("source")
	if err := s.orch.SetMapping(table, column, source); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"preview": s.orch.Preview(table, 10)})
}

func (s *Server) handleIgnoreBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	on, err := strconv.ParseBool(r.FormValue("on"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.orch.SetIgnoreBatchID(on)
	writeJSON(w, http.StatusOK, map[string]any{"ignore_batch_id": on})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	table := schema.Table(r.FormValue("table"))
	res, err := s.orch.Upload(r.Context(), table)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"inserted":   res.Inserted,
		"duplicates": res.Duplicates,
		"status":     s.statusView(),
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	s.orch.ResetAll()
	writeJSON(w, http.StatusOK, s.statusView())
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	table := schema.Table(r.URL.Query().Get("table"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	rows, err := s.orch.SampleFetch(r.Context(), table, limit)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

// handleSample serves the static CSV template for /samples/{table}.csv.
func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/samples/"), ".csv")
	body := schema.SampleCSV(schema.Table(name))
	if body == "" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`.csv"`)
	_, _ = w.Write([]byte(body))
}

// decodeDelimiter maps form values onto delimiter runes; "\t" and "tab" both
// mean a tab.
func decodeDelimiter(s string) rune {
	switch s {
	case `\t`, "tab":
		return '\t'
	default:
		return []rune(s)[0]
	}
}

// statusFor maps engine errors onto HTTP statuses: user and validation
// problems are 4xx, store failures are 502.
func statusFor(err error) int {
	var violation *validate.Violation
	var depErr *importer.DependencyError
	var storeErr *store.Error
	switch {
	case errors.Is(err, parser.ErrUnsupported), errors.Is(err, parser.ErrNoFile):
		return http.StatusBadRequest
	case errors.Is(err, importer.ErrStepLocked), errors.Is(err, importer.ErrBusy):
		return http.StatusConflict
	case errors.As(err, &violation), errors.As(err, &depErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &storeErr):
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders an error payload; dependency errors include the full
// per-table missing-key report.
func writeError(w http.ResponseWriter, status int, err error) {
	body := map[string]any{"error": err.Error()}
	var depErr *importer.DependencyError
	if errors.As(err, &depErr) {
		missing := make(map[string][]any)
		for t, vals := range depErr.Report.Missing {
			missing[string(t)] = vals
		}
		body["missing"] = missing
	}
	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		body["code"] = storeErr.Code
	}
	writeJSON(w, status, body)
}

// indexHTML is an embedded, minimal page with vanilla styling.
//
//go:embed index.tmpl.html
var indexHTML string
