package web

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/gridsource/internal/core"
	"github.com/JonMunkholm/gridsource/internal/logging"
	"github.com/JonMunkholm/gridsource/internal/metrics"
	"github.com/JonMunkholm/gridsource/internal/source"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Container service names handed to explicit columns during Initialise.
const (
	ServiceLogger  = "logger"
	ServiceMetrics = "metrics"
)

// InferResponse is the reply of every inference endpoint.
type InferResponse struct {
	ID       string        `json:"id"`
	Hash     string        `json:"hash"`
	RowCount int           `json:"rowCount"`
	Columns  []core.Column `json:"columns"`
}

// SourceInfo describes one catalog entry. The query is not exposed.
type SourceInfo struct {
	Key     string   `json:"key"`
	Label   string   `json:"label"`
	Backend string   `json:"backend"`
	Columns []string `json:"columns"`
}

// handleInferJSON infers columns from a JSON array of row objects.
func (s *Server) handleInferJSON(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if _, err := parseQuery(r); err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	data, err := s.readBody(w, r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	vec, err := core.FromJSON(data, parseColumns(r), s.vectorOptions(r, 0)...)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	s.respondInference(w, r, "json", vec, start)
}

// handleInferCSV infers columns from a CSV body with a header row.
func (s *Server) handleInferCSV(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q, err := parseQuery(r)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	comma, err := source.ParseComma(q.Get("comma"))
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}
	charset := q.Get("charset")
	if charset == "" {
		charset = s.cfg.Source.CSVCharset
	}
	strict, _ := strconv.ParseBool(q.Get("strictQuotes"))

	body := http.MaxBytesReader(w, r.Body, s.cfg.Source.MaxBodyBytes)
	rows, err := source.ReadCSV(body, source.CSVOptions{
		Comma:        comma,
		Charset:      charset,
		StrictQuotes: strict,
	})
	if err != nil {
		respondError(w, r, err, loaderStatus(err))
		return
	}
	s.inferRows(w, r, "csv", rows, 0, start)
}

// handleInferHTML infers columns from the first table matching ?selector=.
func (s *Server) handleInferHTML(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if _, err := parseQuery(r); err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	body := http.MaxBytesReader(w, r.Body, s.cfg.Source.MaxBodyBytes)
	rows, err := source.ReadHTMLTable(body, r.URL.Query().Get("selector"))
	if err != nil {
		respondError(w, r, err, loaderStatus(err))
		return
	}
	s.inferRows(w, r, "html", rows, 0, start)
}

// handleInferParquet infers columns from a Parquet file body.
func (s *Server) handleInferParquet(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if _, err := parseQuery(r); err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	data, err := s.readBody(w, r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	rows, err := source.ReadParquet(r.Context(), bytes.NewReader(data))
	if err != nil {
		respondError(w, r, err, loaderStatus(err))
		return
	}
	s.inferRows(w, r, "parquet", rows, 0, start)
}

// handleListSources lists the catalog.
func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	defs := s.catalog.List()
	out := make([]SourceInfo, len(defs))
	for i, d := range defs {
		cols := d.Columns
		if cols == nil {
			cols = []string{}
		}
		out[i] = SourceInfo{Key: d.Key, Label: d.Label, Backend: string(d.Backend), Columns: cols}
	}
	writeJSON(w, r, out)
}

// handleSourceColumns runs a catalog query and infers its columns.
// Loads share a bounded pool of slots and a per-load timeout.
func (s *Server) handleSourceColumns(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	key := chi.URLParam(r, "key")

	def, err := s.catalog.Get(key)
	if err != nil {
		respondError(w, r, err, http.StatusNotFound)
		return
	}

	if err := s.limiter.Acquire(r.Context()); err != nil {
		respondError(w, r, err, http.StatusServiceUnavailable)
		return
	}
	defer s.limiter.Release()

	ctx := r.Context()
	if s.cfg.Source.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Source.LoadTimeout)
		defer cancel()
	}

	log := logging.WithFields(r.Context(), "source", def.Key, "backend", def.Backend)
	log.Debug("loading source")

	rows, err := s.runner.Load(ctx, def)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		respondError(w, r, err, status)
		return
	}
	log.Debug("source loaded", "rows", len(rows))

	vec, err := core.NewVector(rows, def.ExplicitColumns(),
		append(s.vectorOptions(r, def.SampleSize), core.WithID(sourceID(def.Key)))...)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	s.respondInference(w, r, def.Key, vec, start)
}

// handleHealth reports liveness and load slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, map[string]any{
		"status":  "ok",
		"sources": s.catalog.Len(),
		"loads":   s.limiter.Status(),
	})
}

// inferRows builds a Vector from loader output and responds.
func (s *Server) inferRows(w http.ResponseWriter, r *http.Request, src string, rows []core.Row, sample int, start time.Time) {
	vec, err := core.NewVector(rows, parseColumns(r), s.vectorOptions(r, sample)...)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	s.respondInference(w, r, src, vec, start)
}

// respondInference initialises vec, records metrics and writes the column list.
func (s *Server) respondInference(w http.ResponseWriter, r *http.Request, src string, vec *core.Vector, start time.Time) {
	log := logging.FromContext(r.Context())

	reg := core.NewRegistry()
	reg.Register(ServiceLogger, log)
	reg.Register(ServiceMetrics, s.metrics)
	vec.Initialise(reg)

	cols := vec.Columns()
	var guessed []string
	for _, c := range cols {
		if u, ok := c.(*core.UntypedColumn); ok {
			guessed = append(guessed, u.Type.String())
		}
	}

	elapsed := time.Since(start)
	metrics.RecordInference(s.metrics, metrics.Inference{
		Source:   src,
		Rows:     vec.RowCount(),
		Guessed:  guessed,
		Duration: elapsed,
	})
	log.Info("inferred columns",
		"source", src,
		"rows", vec.RowCount(),
		"columns", len(cols),
		"guessed", len(guessed),
		"duration_ms", elapsed.Milliseconds(),
	)

	if cols == nil {
		cols = []core.Column{}
	}
	writeJSON(w, r, InferResponse{
		ID:       uuid.NewString(),
		Hash:     vec.Hash(),
		RowCount: vec.RowCount(),
		Columns:  cols,
	})
}

// vectorOptions applies the sample size: ?sampleSize= wins, then the
// source's own setting, then the configured default.
func (s *Server) vectorOptions(r *http.Request, sourceSample int) []core.Option {
	n := s.cfg.Source.GuessSampleSize
	if sourceSample > 0 {
		n = sourceSample
	}
	n = parseIntParam(r, "sampleSize", n)
	if n <= 0 {
		return nil
	}
	return []core.Option{core.WithSampleSize(n)}
}

// readBody reads the whole body up to the configured limit.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.Source.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}

// parseQuery parses the raw query strictly. r.URL.Query silently drops
// malformed pairs such as an unescaped ';', which would lose a parameter.
func parseQuery(r *http.Request) (url.Values, error) {
	q, err := url.ParseQuery(r.URL.RawQuery)
	if err != nil {
		return nil, fmt.Errorf("invalid query string: %w", err)
	}
	return q, nil
}

// parseColumns reads explicit column ids from ?columns=a,b.
func parseColumns(r *http.Request) []core.Column {
	raw := r.URL.Query().Get("columns")
	if raw == "" {
		return nil
	}
	var cols []core.Column
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			cols = append(cols, core.StaticColumn(id))
		}
	}
	return cols
}

// parseIntParam parses an integer query parameter, keeping defaultVal when
// the parameter is absent or not a positive integer.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// loaderStatus maps body parse failures to 400 unless the body was too large.
func loaderStatus(err error) int {
	if status := statusFor(err); status == http.StatusRequestEntityTooLarge {
		return status
	}
	return http.StatusBadRequest
}

// sourceID is the stable id reported for a catalog source.
func sourceID(key string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:gridsource:source:"+key)).String()
}
