package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tinytelemetry/alertscope/internal/alertsource"
	"github.com/tinytelemetry/alertscope/internal/dashboard"
	"github.com/tinytelemetry/alertscope/internal/duckdb"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testDoc = `[
	{"timestamp":"2023-01-01T10:00:00Z","sourceIp":"1.1.1.1","alertCategory":"scan"},
	{"timestamp":"2023-01-01T11:00:00Z","sourceIp":"1.1.1.1","alertCategory":"dos"},
	{"timestamp":"2023-01-02T09:00:00Z","sourceIp":"2.2.2.2","alertCategory":"scan"}
]`

type testEnv struct {
	path  string
	dash  *dashboard.Dashboard
	store *duckdb.Store
	r     *gin.Engine
}

func newTestServer(t *testing.T, withStore bool) *testEnv {
	t.Helper()

	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte(testDoc), 0644); err != nil {
		t.Fatalf("write data: %v", err)
	}

	env := &testEnv{path: path}
	var conf dashboard.Config
	var store QueryStore
	if withStore {
		s, err := duckdb.NewStore()
		if err != nil {
			t.Fatalf("NewStore: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		env.store = s
		conf.Sink = s
		store = s
	}

	env.dash = dashboard.NewDashboard(alertsource.NewFileSource(path), conf)
	srv := NewServer("", env.dash, store)
	srv.startTime = time.Now()
	env.r = srv.Handler()
	return env
}

func (e *testEnv) load(t *testing.T) {
	t.Helper()
	if _, err := e.dash.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
	return body
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestServer(t, false)

	w := env.do(http.MethodGet, "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", w.Code, http.StatusOK)
	}
	body := decodeBody(t, w)
	if body["status"] != "loading" {
		t.Errorf("status before load = %v, want loading", body["status"])
	}
	if body["loaded_at"] != nil {
		t.Errorf("loaded_at before load = %v, want null", body["loaded_at"])
	}

	env.load(t)
	body = decodeBody(t, env.do(http.MethodGet, "/api/health", ""))
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["records"] != float64(3) {
		t.Errorf("records = %v, want 3", body["records"])
	}
}

func TestHealthEndpoint_WrongMethod(t *testing.T) {
	env := newTestServer(t, false)

	w := env.do(http.MethodPost, "/api/health", "")

	// Gin returns 405 for method not allowed when a route exists but not for this method
	if w.Code != http.StatusMethodNotAllowed && w.Code != http.StatusNotFound {
		t.Errorf("health POST status = %d, want 405 or 404", w.Code)
	}
}

func TestChartsEndpoint(t *testing.T) {
	env := newTestServer(t, false)
	env.load(t)

	w := env.do(http.MethodGet, "/api/charts", "")
	if w.Code != http.StatusOK {
		t.Fatalf("charts status = %d", w.Code)
	}

	want := `{"bar":[{"x":"1.1.1.1","y":2},{"x":"2.2.2.2","y":1}],` +
		`"pie":[{"labels":"scan","values":2},{"labels":"dos","values":1}],` +
		`"timeseries":[{"x":"2023-01-01","y":2},{"x":"2023-01-02","y":1}]}`
	if got := strings.TrimSpace(w.Body.String()); got != want {
		t.Errorf("charts body =\n%s\nwant\n%s", got, want)
	}
}

func TestChartsEndpoint_EmptyBeforeLoad(t *testing.T) {
	env := newTestServer(t, false)

	w := env.do(http.MethodGet, "/api/charts", "")
	want := `{"bar":[],"pie":[],"timeseries":[]}`
	if got := strings.TrimSpace(w.Body.String()); got != want {
		t.Errorf("charts body = %s, want %s", got, want)
	}
}

func TestChartEndpoint_ByName(t *testing.T) {
	env := newTestServer(t, false)
	env.load(t)

	tests := []struct {
		name string
		code int
		body string
	}{
		{"bar", http.StatusOK, `[{"x":"1.1.1.1","y":2},{"x":"2.2.2.2","y":1}]`},
		{"pie", http.StatusOK, `[{"labels":"scan","values":2},{"labels":"dos","values":1}]`},
		{"timeseries", http.StatusOK, `[{"x":"2023-01-01","y":2},{"x":"2023-01-02","y":1}]`},
		{"radar", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		w := env.do(http.MethodGet, "/api/charts/"+tt.name, "")
		if w.Code != tt.code {
			t.Errorf("%s: status = %d, want %d", tt.name, w.Code, tt.code)
			continue
		}
		if tt.body != "" && strings.TrimSpace(w.Body.String()) != tt.body {
			t.Errorf("%s: body = %s, want %s", tt.name, w.Body.String(), tt.body)
		}
	}
}

func TestSummaryEndpoint_PreservesOrder(t *testing.T) {
	env := newTestServer(t, false)
	env.load(t)

	w := env.do(http.MethodGet, "/api/summary", "")
	if w.Code != http.StatusOK {
		t.Fatalf("summary status = %d", w.Code)
	}

	var body struct {
		BySourceIP json.RawMessage `json:"by_source_ip"`
		ByCategory json.RawMessage `json:"by_category"`
		ByDate     json.RawMessage `json:"by_date"`
		Records    int             `json:"records"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(body.BySourceIP) != `{"1.1.1.1":2,"2.2.2.2":1}` {
		t.Errorf("by_source_ip = %s", body.BySourceIP)
	}
	if string(body.ByCategory) != `{"scan":2,"dos":1}` {
		t.Errorf("by_category = %s", body.ByCategory)
	}
	if string(body.ByDate) != `{"2023-01-01":2,"2023-01-02":1}` {
		t.Errorf("by_date = %s", body.ByDate)
	}
	if body.Records != 3 {
		t.Errorf("records = %d, want 3", body.Records)
	}
}

func TestReloadEndpoint(t *testing.T) {
	env := newTestServer(t, false)
	env.load(t)

	next := `[{"timestamp":"2024-01-01T00:00:00Z","sourceIp":"9.9.9.9","alertCategory":"malware"}]`
	if err := os.WriteFile(env.path, []byte(next), 0644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	w := env.do(http.MethodPost, "/api/reload", "")
	if w.Code != http.StatusOK {
		t.Fatalf("reload status = %d: %s", w.Code, w.Body.String())
	}

	w = env.do(http.MethodGet, "/api/charts/bar", "")
	if got := strings.TrimSpace(w.Body.String()); got != `[{"x":"9.9.9.9","y":1}]` {
		t.Errorf("bar after reload = %s", got)
	}
}

func TestReloadEndpoint_FailureKeepsSnapshot(t *testing.T) {
	env := newTestServer(t, false)
	env.load(t)

	if err := os.WriteFile(env.path, []byte("not json"), 0644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	w := env.do(http.MethodPost, "/api/reload", "")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("reload status = %d, want %d", w.Code, http.StatusBadGateway)
	}
	if body := decodeBody(t, w); body["error"] == nil {
		t.Error("expected error in reload response")
	}

	w = env.do(http.MethodGet, "/api/charts/bar", "")
	if got := strings.TrimSpace(w.Body.String()); got != `[{"x":"1.1.1.1","y":2},{"x":"2.2.2.2","y":1}]` {
		t.Errorf("bar after failed reload = %s", got)
	}

	body := decodeBody(t, env.do(http.MethodGet, "/api/health", ""))
	if body["status"] != "degraded" {
		t.Errorf("status = %v, want degraded", body["status"])
	}
}

func TestSQLRoutes_DisabledWithoutStore(t *testing.T) {
	env := newTestServer(t, false)

	if w := env.do(http.MethodPost, "/api/query", `{"sql":"SELECT 1"}`); w.Code != http.StatusNotFound {
		t.Errorf("query status without store = %d, want 404", w.Code)
	}
	if w := env.do(http.MethodGet, "/api/schema", ""); w.Code != http.StatusNotFound {
		t.Errorf("schema status without store = %d, want 404", w.Code)
	}
}

func TestQueryEndpoint_ValidSelect(t *testing.T) {
	env := newTestServer(t, true)
	env.load(t)

	w := env.do(http.MethodPost, "/api/query",
		`{"sql":"SELECT source_ip, COUNT(*) AS n FROM alerts GROUP BY source_ip ORDER BY n DESC"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("query status = %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["row_count"] != float64(2) {
		t.Errorf("row_count = %v, want 2", body["row_count"])
	}
}

func TestQueryEndpoint_ColumnsInSelectOrder(t *testing.T) {
	env := newTestServer(t, true)
	env.load(t)

	want := []string{"source_ip", "alert_category", "seq", "alert_date"}
	// Map iteration would shuffle these at least once across repeated calls.
	for i := 0; i < 20; i++ {
		w := env.do(http.MethodPost, "/api/query",
			`{"sql":"SELECT source_ip, alert_category, seq, alert_date FROM alerts ORDER BY seq"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("query status = %d: %s", w.Code, w.Body.String())
		}
		var body struct {
			Columns []string `json:"columns"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if strings.Join(body.Columns, ",") != strings.Join(want, ",") {
			t.Fatalf("columns = %v, want %v", body.Columns, want)
		}
	}
}

func TestQueryEndpoint_EmptyResultKeepsColumns(t *testing.T) {
	env := newTestServer(t, true)
	env.load(t)

	w := env.do(http.MethodPost, "/api/query",
		`{"sql":"SELECT seq, source_ip FROM alerts WHERE seq < 0"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("query status = %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Columns  []string `json:"columns"`
		RowCount int      `json:"row_count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.RowCount != 0 {
		t.Errorf("row_count = %d, want 0", body.RowCount)
	}
	if strings.Join(body.Columns, ",") != "seq,source_ip" {
		t.Errorf("columns = %v, want [seq source_ip]", body.Columns)
	}
}

func TestQueryEndpoint_Rejected(t *testing.T) {
	env := newTestServer(t, true)

	tests := []string{
		`{"sql":"DROP TABLE alerts"}`,
		`{"sql":"SELECT 1; SELECT 2"}`,
		`{}`,
		`not json`,
	}
	for _, body := range tests {
		if w := env.do(http.MethodPost, "/api/query", body); w.Code != http.StatusBadRequest {
			t.Errorf("query %s: status = %d, want 400", body, w.Code)
		}
	}
}

func TestSchemaEndpoint(t *testing.T) {
	env := newTestServer(t, true)
	env.load(t)

	w := env.do(http.MethodGet, "/api/schema", "")
	if w.Code != http.StatusOK {
		t.Fatalf("schema status = %d", w.Code)
	}

	var body struct {
		Tables    map[string][]map[string]string `json:"tables"`
		RowCounts map[string]int64               `json:"row_counts"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Tables["alerts"]) == 0 {
		t.Error("schema should list alerts columns")
	}
	if body.RowCounts["alerts"] != 3 {
		t.Errorf("alerts row count = %d, want 3", body.RowCounts["alerts"])
	}
}

func TestTopEndpoint(t *testing.T) {
	env := newTestServer(t, true)
	env.load(t)

	w := env.do(http.MethodGet, "/api/top/source_ip?limit=1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("top status = %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Values []struct {
			Key   string `json:"key"`
			Count int    `json:"count"`
		} `json:"values"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Values) != 1 || body.Values[0].Key != "1.1.1.1" || body.Values[0].Count != 2 {
		t.Errorf("top values = %+v", body.Values)
	}

	if w := env.do(http.MethodGet, "/api/top/nope", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown dimension status = %d, want 404", w.Code)
	}
	if w := env.do(http.MethodGet, "/api/top/source_ip?limit=abc", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", w.Code)
	}
}

func TestServer_ServeUntilStop(t *testing.T) {
	env := newTestServer(t, false)
	env.load(t)

	srv := NewServer("127.0.0.1:0", env.dash, nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve() }()

	resp, err := http.Get("http://" + srv.Addr() + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}

	if err := srv.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Serve after Stop = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after Stop")
	}
	if err := srv.Stop(); err != nil {
		t.Errorf("second Stop = %v, want nil", err)
	}
}

func TestServer_ServeBeforeStart(t *testing.T) {
	srv := NewServer("127.0.0.1:0", newTestServer(t, false).dash, nil)
	if err := srv.Serve(); err == nil {
		t.Fatal("Serve without Start should fail")
	}
}
