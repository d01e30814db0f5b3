package webui

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"fleetseed/internal/coerce"
	"fleetseed/internal/importer"
	"fleetseed/internal/schema"
	"fleetseed/internal/store"
	"fleetseed/pkg/records"
)

type fakeStore struct {
	mu   sync.Mutex
	keys map[schema.Table]map[any]struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{keys: make(map[schema.Table]map[any]struct{})}
}

func (f *fakeStore) Insert(ctx context.Context, t schema.Table, columns []string, rows []coerce.Row) (int64, error) {
	return int64(len(rows)), nil
}

func (f *fakeStore) SelectRecent(ctx context.Context, t schema.Table, opt store.SelectOptions) ([]records.Record, error) {
	return []records.Record{{"table": string(t)}}, nil
}

func (f *fakeStore) ExistingKeys(ctx context.Context, t schema.Table, column string, values []any) (map[any]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	found := make(map[any]struct{})
	for _, v := range values {
		if _, ok := f.keys[t][v]; ok {
			found[v] = struct{}{}
		}
	}
	return found, nil
}

func newTestServer() *Server {
	orch := importer.New(newFakeStore(), nil)
	return NewServer(Config{Addr: ":0", DefaultDelimiter: ','}, orch, nil)
}

func postForm(srv *Server, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func postFile(t *testing.T, srv *Server, table, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("table", table); err != nil {
		t.Fatalf("field: %v", err)
	}
	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("file part: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write: %v", err)
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/file", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Session       string `json:"session"`
		IgnoreBatchID bool   `json:"ignore_batch_id"`
		Steps         []struct {
			Table   string `json:"table"`
			Enabled bool   `json:"enabled"`
		} `json:"steps"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Session == "" || !body.IgnoreBatchID || len(body.Steps) != 4 {
		t.Fatalf("body = %+v", body)
	}
	for _, s := range body.Steps {
		wantEnabled := s.Table == "products" || s.Table == "machines"
		if s.Enabled != wantEnabled {
			t.Errorf("step %s enabled = %v", s.Table, s.Enabled)
		}
	}
}

func TestFileUploadPreviewAndImport(t *testing.T) {
	srv := newTestServer()

	rec := postFile(t, srv, "products", "products.csv",
		"name,price,shelf_life_days\nCola,1.50,180\n")
	if rec.Code != http.StatusOK {
		t.Fatalf("file upload: %d %s", rec.Code, rec.Body.String())
	}
	var upload struct {
		Preview []map[string]any `json:"preview"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&upload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(upload.Preview) != 1 || upload.Preview[0]["name"] != "Cola" {
		t.Fatalf("preview = %#v", upload.Preview)
	}

	rec = postForm(srv, "/api/import", url.Values{"table": {"products"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("import: %d %s", rec.Code, rec.Body.String())
	}
	var result struct {
		Inserted int64 `json:"inserted"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Inserted != 1 {
		t.Fatalf("inserted = %d", result.Inserted)
	}
}

func TestLockedStepConflict(t *testing.T) {
	srv := newTestServer()
	rec := postFile(t, srv, "deliveries", "d.csv", "product_id\n1\n")
	if rec.Code != http.StatusConflict {
		t.Fatalf("locked step = %d, want 409", rec.Code)
	}
}

func TestUnsupportedExtensionBadRequest(t *testing.T) {
	srv := newTestServer()
	rec := postFile(t, srv, "products", "products.xlsx", "junk")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unsupported ext = %d, want 400", rec.Code)
	}
}

func TestValidationUnprocessable(t *testing.T) {
	srv := newTestServer()
	// price column present but non-numeric.
	rec := postFile(t, srv, "products", "p.csv", "name,price,shelf_life_days\nCola,free,180\n")
	if rec.Code != http.StatusOK {
		t.Fatalf("file upload: %d", rec.Code)
	}
	rec = postForm(srv, "/api/import", url.Values{"table": {"products"}})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("violation = %d, want 422 (%s)", rec.Code, rec.Body.String())
	}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(body.Error, "price must be a number") {
		t.Fatalf("error = %q", body.Error)
	}
}

func TestIgnoreBatchToggle(t *testing.T) {
	srv := newTestServer()
	rec := postForm(srv, "/api/ignore-batch", url.Values{"on": {"false"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle = %d", rec.Code)
	}
	if srv.orch.IgnoreBatchID() {
		t.Fatalf("toggle not applied")
	}
	rec = postForm(srv, "/api/ignore-batch", url.Values{"on": {"maybe"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad bool = %d, want 400", rec.Code)
	}
}

func TestResetEndpoint(t *testing.T) {
	srv := newTestServer()
	before := srv.orch.Session()
	rec := postForm(srv, "/api/reset", url.Values{})
	if rec.Code != http.StatusOK {
		t.Fatalf("reset = %d", rec.Code)
	}
	if srv.orch.Session() == before {
		t.Fatalf("session unchanged after reset")
	}
}

func TestRecentEndpoint(t *testing.T) {
	srv := newTestServer()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/recent?table=products", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("recent = %d", rec.Code)
	}
	var body struct {
		Rows []map[string]any `json:"rows"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Rows) != 1 || body.Rows[0]["table"] != "products" {
		t.Fatalf("rows = %#v", body.Rows)
	}
}

func TestSampleDownload(t *testing.T) {
	srv := newTestServer()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/samples/products.csv", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("sample = %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Body.String(), "name,price,shelf_life_days") {
		t.Fatalf("body = %q", rec.Body.String())
	}
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/samples/users.csv", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown sample = %d, want 404", rec.Code)
	}
}

func TestMethodGuards(t *testing.T) {
	srv := newTestServer()
	for _, path := range []string{"/api/file", "/api/import", "/api/reset", "/api/mapping", "/api/ignore-batch"} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("GET %s = %d, want 405", path, rec.Code)
		}
	}
}
