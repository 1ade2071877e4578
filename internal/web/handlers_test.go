package web

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/JonMunkholm/gridsource/internal/config"
	"github.com/JonMunkholm/gridsource/internal/metrics"
	"github.com/JonMunkholm/gridsource/internal/source"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		Source: config.SourceConfig{
			MaxBodyBytes:       1 << 20,
			CSVCharset:         "utf-8",
			MaxConcurrentLoads: 2,
			LoadWait:           20 * time.Millisecond,
			LoadTimeout:        5 * time.Second,
		},
		Logging: config.LoggingConfig{Level: "error", Format: "text"},
	}
}

type recordedCall struct {
	name   string
	value  float64
	labels metrics.Labels
}

type recorder struct {
	mu       sync.Mutex
	counters []recordedCall
	hists    []recordedCall
}

func (r *recorder) IncCounter(name string, delta float64, labels metrics.Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters = append(r.counters, recordedCall{name, delta, labels})
}

func (r *recorder) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hists = append(r.hists, recordedCall{name, value, labels})
}

func (r *recorder) sum(name, label, value string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total float64
	for _, c := range r.counters {
		if c.name == name && (label == "" || c.labels[label] == value) {
			total += c.value
		}
	}
	return total
}

type inferBody struct {
	ID       string           `json:"id"`
	Hash     string           `json:"hash"`
	RowCount int              `json:"rowCount"`
	Columns  []map[string]any `json:"columns"`
}

func do(t *testing.T, s *Server, method, target, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeInfer(t *testing.T, rec *httptest.ResponseRecorder) inferBody {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out inferBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var out ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// columnTypes maps id to type for guessed columns and to "" for explicit ones.
func columnTypes(cols []map[string]any) ([]string, map[string]string) {
	ids := make([]string, len(cols))
	types := make(map[string]string, len(cols))
	for i, c := range cols {
		id, _ := c["id"].(string)
		typ, _ := c["type"].(string)
		ids[i] = id
		types[id] = typ
	}
	return ids, types
}

func TestHandleInferJSON(t *testing.T) {
	rec := &recorder{}
	s := NewServer(testConfig(), Deps{Metrics: rec})

	body := `[
		{"name": "Ada", "age": 36, "active": true, "joined": "2021-03-04"},
		{"name": "Bob", "age": 41, "active": false, "joined": "2021-05-06 10:00:00", "tags": ["x"]}
	]`
	out := decodeInfer(t, do(t, s, http.MethodPost, "/api/infer?columns=name", body))

	assert.Equal(t, 2, out.RowCount)
	assert.NotEmpty(t, out.ID)
	assert.NotEmpty(t, out.Hash)

	ids, types := columnTypes(out.Columns)
	assert.Equal(t, []string{"name", "age", "active", "joined", "tags"}, ids)
	assert.Equal(t, "", types["name"])
	assert.Equal(t, "number", types["age"])
	assert.Equal(t, "boolean", types["active"])
	assert.Equal(t, "datetime", types["joined"])
	assert.Equal(t, "array", types["tags"])

	guessed := out.Columns[1]
	assert.Equal(t, "age", guessed["title"])
	assert.Equal(t, "age", guessed["field"])
	assert.Equal(t, true, guessed["source"])
	assert.Equal(t, true, guessed["visible"])

	assert.Equal(t, 1.0, rec.sum(metrics.InferencesTotal, "source", "json"))
	assert.Equal(t, 2.0, rec.sum(metrics.RowsScannedTotal, "", ""))
	assert.Equal(t, 4.0, rec.sum(metrics.ColumnsGuessedTotal, "", ""))
	assert.Len(t, rec.hists, 1)
}

func TestHandleInferJSON_HashFollowsColumns(t *testing.T) {
	s := NewServer(testConfig(), Deps{})

	a := decodeInfer(t, do(t, s, http.MethodPost, "/api/infer", `[{"x": 1, "y": 2}]`))
	b := decodeInfer(t, do(t, s, http.MethodPost, "/api/infer", `[{"x": "a", "y": "b"}]`))
	c := decodeInfer(t, do(t, s, http.MethodPost, "/api/infer", `[{"y": 1, "x": 2}]`))

	assert.Equal(t, a.Hash, b.Hash)
	assert.NotEqual(t, a.Hash, c.Hash)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestHandleInferJSON_SampleSize(t *testing.T) {
	s := NewServer(testConfig(), Deps{})
	body := `[{"a": "1"}, {"a": "0"}, {"a": "hello"}]`

	_, full := columnTypes(decodeInfer(t, do(t, s, http.MethodPost, "/api/infer", body)).Columns)
	assert.Equal(t, "text", full["a"])

	_, sampled := columnTypes(decodeInfer(t, do(t, s, http.MethodPost, "/api/infer?sampleSize=2", body)).Columns)
	assert.Equal(t, "boolean", sampled["a"])
}

func TestHandleInferJSON_Empty(t *testing.T) {
	s := NewServer(testConfig(), Deps{})

	out := decodeInfer(t, do(t, s, http.MethodPost, "/api/infer", `[]`))
	assert.Equal(t, 0, out.RowCount)
	assert.Empty(t, out.Columns)
	assert.NotNil(t, out.Columns)
}

func TestHandleInferJSON_Errors(t *testing.T) {
	cfg := testConfig()
	cfg.Source.MaxBodyBytes = 64
	s := NewServer(cfg, Deps{})

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"not an array", `{"a": 1}`, http.StatusBadRequest, "ROW001"},
		{"scalar row", `[{"a": 1}, 5]`, http.StatusBadRequest, "ROW001"},
		{"all rows empty", `[{}, {}]`, http.StatusBadRequest, "ROW002"},
		{"too large", `[` + strings.Repeat(`{"a": 1},`, 20) + `{"a": 1}]`, http.StatusRequestEntityTooLarge, "FILE001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/api/infer", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
		})
	}
}

func TestHandleInferCSV(t *testing.T) {
	s := NewServer(testConfig(), Deps{})

	body := "id;placed;paid;note\n1;2024-01-02;1;first\n2;2024-01-03;0;\n"
	out := decodeInfer(t, do(t, s, http.MethodPost, "/api/infer/csv?comma=%3B&columns=id", body))

	assert.Equal(t, 2, out.RowCount)
	ids, types := columnTypes(out.Columns)
	assert.Equal(t, []string{"id", "placed", "paid", "note"}, ids)
	assert.Equal(t, "date", types["placed"])
	assert.Equal(t, "boolean", types["paid"])
	assert.Equal(t, "text", types["note"])
}

func TestHandleInferCSV_Charset(t *testing.T) {
	s := NewServer(testConfig(), Deps{})

	// "Zürich" in windows-1252.
	body := "city,pop\nZ\xfcrich,400000\n"
	rec := do(t, s, http.MethodPost, "/api/infer/csv?charset=windows-1252", body)
	out := decodeInfer(t, rec)
	ids, types := columnTypes(out.Columns)
	assert.Equal(t, []string{"city", "pop"}, ids)
	assert.Equal(t, "number", types["pop"])
}

func TestHandleInferCSV_Errors(t *testing.T) {
	s := NewServer(testConfig(), Deps{})

	tests := []struct {
		name       string
		target     string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"bad delimiter", "/api/infer/csv?comma=ab", "a,b\n1,2\n", http.StatusBadRequest, "FILE002"},
		{"unknown charset", "/api/infer/csv?charset=klingon", "a,b\n1,2\n", http.StatusBadRequest, "FILE003"},
		{"bare quote when strict", "/api/infer/csv?strictQuotes=true", "a,b\n1,x\"y\n", http.StatusBadRequest, "FILE002"},
		{"unescaped semicolon", "/api/infer/csv?comma=;&columns=id", "id;x\n1;2\n", http.StatusBadRequest, "REQ003"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, tt.target, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
		})
	}
}

func TestHandleInferHTML(t *testing.T) {
	s := NewServer(testConfig(), Deps{})

	page := `<html><body>
		<table id="nav"><tr><td>Home</td></tr></table>
		<table id="orders">
			<tr><th>Order</th><th>Placed</th><th>Total</th></tr>
			<tr><td>A-1</td><td>2024-02-01</td><td>12.50</td></tr>
			<tr><td>A-2</td><td>2024-02-03</td><td>7</td></tr>
		</table>
	</body></html>`

	out := decodeInfer(t, do(t, s, http.MethodPost, "/api/infer/html?selector=%23orders", page))
	assert.Equal(t, 2, out.RowCount)
	ids, types := columnTypes(out.Columns)
	assert.Equal(t, []string{"Order", "Placed", "Total"}, ids)
	assert.Equal(t, "date", types["Placed"])
	assert.Equal(t, "number", types["Total"])

	rec := do(t, s, http.MethodPost, "/api/infer/html?selector=%23missing", page)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "HTML001", decodeError(t, rec).Code)
}

func TestHandleInferParquet(t *testing.T) {
	mem := memory.NewGoAllocator()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "sku", Type: arrow.BinaryTypes.String},
		{Name: "qty", Type: arrow.PrimitiveTypes.Int64},
	}, nil)

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()
	b.Field(0).(*array.StringBuilder).AppendValues([]string{"a-1", "b-2"}, nil)
	b.Field(1).(*array.Int64Builder).AppendValues([]int64{12, 40}, nil)
	rec := b.NewRecord()
	defer rec.Release()

	tbl := array.NewTableFromRecords(schema, []arrow.Record{rec})
	defer tbl.Release()

	var buf bytes.Buffer
	require.NoError(t, pqarrow.WriteTable(tbl, &buf, 1024, parquet.NewWriterProperties(), pqarrow.DefaultWriterProps()))

	s := NewServer(testConfig(), Deps{})
	out := decodeInfer(t, do(t, s, http.MethodPost, "/api/infer/parquet", buf.String()))
	assert.Equal(t, 2, out.RowCount)
	ids, types := columnTypes(out.Columns)
	assert.Equal(t, []string{"sku", "qty"}, ids)
	assert.Equal(t, "text", types["sku"])
	assert.Equal(t, "number", types["qty"])

	bad := do(t, s, http.MethodPost, "/api/infer/parquet", "definitely not parquet")
	assert.Equal(t, http.StatusBadRequest, bad.Code)
	assert.Equal(t, "FILE004", decodeError(t, bad).Code)
}

func openOrdersDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE orders (id INTEGER, placed TEXT, total REAL);
		INSERT INTO orders VALUES (10, '2024-01-02', 12.5), (11, '2024-01-05', 3.25);`)
	require.NoError(t, err)
	return db
}

func ordersCatalog(t *testing.T) *source.Catalog {
	t.Helper()

	cat, err := source.NewCatalog([]source.Definition{
		{Key: "orders", Label: "Orders", Backend: source.BackendSQL, Query: "SELECT id, placed, total FROM orders", Columns: []string{"id"}},
		{Key: "ledger", Backend: source.BackendPostgres, Query: "SELECT 1"},
	})
	require.NoError(t, err)
	return cat
}

func TestHandleListSources(t *testing.T) {
	s := NewServer(testConfig(), Deps{Catalog: ordersCatalog(t)})

	rec := do(t, s, http.MethodGet, "/api/sources", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var out []SourceInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, []SourceInfo{
		{Key: "orders", Label: "Orders", Backend: "sql", Columns: []string{"id"}},
		{Key: "ledger", Label: "ledger", Backend: "postgres", Columns: []string{}},
	}, out)
	assert.NotContains(t, rec.Body.String(), "SELECT")
}

func TestHandleListSources_NoCatalog(t *testing.T) {
	s := NewServer(testConfig(), Deps{})

	rec := do(t, s, http.MethodGet, "/api/sources", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHandleSourceColumns(t *testing.T) {
	rec := &recorder{}
	s := NewServer(testConfig(), Deps{
		Catalog: ordersCatalog(t),
		Runner:  source.Runner{SQL: openOrdersDB(t)},
		Metrics: rec,
	})

	first := decodeInfer(t, do(t, s, http.MethodGet, "/api/sources/orders/columns", ""))
	assert.Equal(t, 2, first.RowCount)
	ids, types := columnTypes(first.Columns)
	assert.Equal(t, []string{"id", "placed", "total"}, ids)
	assert.Equal(t, "", types["id"])
	assert.Equal(t, "date", types["placed"])
	assert.Equal(t, "number", types["total"])

	second := decodeInfer(t, do(t, s, http.MethodGet, "/api/sources/orders/columns", ""))
	assert.Equal(t, first.Hash, second.Hash, "catalog sources keep a stable hash")
	assert.Equal(t, sourceID("orders"), first.Hash)

	assert.Equal(t, 2.0, rec.sum(metrics.InferencesTotal, "source", "orders"))
	assert.Equal(t, 0, s.limiter.ActiveCount())
}

func TestHandleSourceColumns_Errors(t *testing.T) {
	s := NewServer(testConfig(), Deps{
		Catalog: ordersCatalog(t),
		Runner:  source.Runner{SQL: openOrdersDB(t)},
	})

	t.Run("unknown source", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/api/sources/nope/columns", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "SRC001", decodeError(t, rec).Code)
	})

	t.Run("backend not configured", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/api/sources/ledger/columns", "")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "SRC002", decodeError(t, rec).Code)
	})

	t.Run("no free load slot", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, s.limiter.Acquire(ctx))
		require.NoError(t, s.limiter.Acquire(ctx))
		defer s.limiter.Release()
		defer s.limiter.Release()

		rec := do(t, s, http.MethodGet, "/api/sources/orders/columns", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "LOAD001", decodeError(t, rec).Code)
	})
}

func TestHandleHealth(t *testing.T) {
	s := NewServer(testConfig(), Deps{Catalog: ordersCatalog(t)})

	rec := do(t, s, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","sources":2,"loads":{"active":0,"available":2,"maxConcurrent":2}}`, rec.Body.String())
}

func TestParseIntParam(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 7},
		{"n=3", 3},
		{"n=0", 7},
		{"n=-2", 7},
		{"n=abc", 7},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
			assert.Equal(t, tt.want, parseIntParam(r, "n", 7))
		})
	}
}

func TestParseColumns(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?columns=a,%20b,,c", nil)
	cols := parseColumns(r)
	require.Len(t, cols, 3)
	assert.Equal(t, "a", cols[0].ID())
	assert.Equal(t, "b", cols[1].ID())
	assert.Equal(t, "c", cols[2].ID())

	assert.Nil(t, parseColumns(httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestHandleInferCSV_FormulaCells(t *testing.T) {
	s := NewServer(testConfig(), Deps{})

	body := "sku,shipped\nA-1,=\"2018-01-02\"\nB-2,=\"2018-03-04\"\n"
	_, types := columnTypes(decodeInfer(t, do(t, s, http.MethodPost, "/api/infer/csv", body)).Columns)
	assert.Equal(t, "date", types["shipped"])
}
