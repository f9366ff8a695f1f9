package checklist

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"

	"github.com/c360studio/checklist/storage"
)

// ChecklistPath is the only path served by the checklist API.
const ChecklistPath = "/checklist"

// Response bodies of the checklist API.
const (
	msgUpdated    = "Checklist updated."
	msgInvalid    = "Invalid JSON."
	msgSaveFailed = "Failed to save checklist."
	msgNotFound   = "Not found."
)

// Handler returns the checklist API:
//
//	GET  /checklist   current checklist as a JSON array
//	POST /checklist   replace the checklist with a JSON array
//
// Every other request target, including /checklist with a query string, and
// every other method is answered with 404.
func (p *Platform) Handler() http.Handler {
	r := mux.NewRouter().SkipClean(true)
	r.Methods(http.MethodGet).Path(ChecklistPath).MatcherFunc(exactTarget).HandlerFunc(p.handleGet)
	r.Methods(http.MethodPost).Path(ChecklistPath).MatcherFunc(exactTarget).HandlerFunc(p.handlePost)
	r.NotFoundHandler = http.HandlerFunc(notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(notFound)

	// Wrapped outside the router so unmatched requests are logged too.
	return p.logRequests(r)
}

// exactTarget rejects request targets that carry a query.
func exactTarget(r *http.Request, _ *mux.RouteMatch) bool {
	return r.URL.RawQuery == "" && !r.URL.ForceQuery
}

func (p *Platform) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		p.metrics.request(r.Method, m.Code)
		p.logger.Debug("handled", "method", r.Method, "path", r.URL.Path, "status", m.Code, "duration", m.Duration)
	})
}

// handleGet returns the checklist.
func (p *Platform) handleGet(w http.ResponseWriter, _ *http.Request) {
	items := p.store.Items()
	if items == nil {
		items = []storage.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

// handlePost replaces the checklist with the posted array. Entries are
// stored as posted, without validation.
func (p *Platform) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		p.logger.Warn("Failed to read request body", "error", err)
		writeText(w, http.StatusBadRequest, msgInvalid)
		return
	}

	items, err := storage.Decode(body)
	if err != nil {
		writeText(w, http.StatusBadRequest, msgInvalid)
		return
	}

	if err := p.Replace(items); err != nil {
		p.logger.Error("Failed to save checklist", "error", err)
		writeText(w, http.StatusInternalServerError, msgSaveFailed)
		return
	}
	writeText(w, http.StatusOK, msgUpdated)
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusNotFound, msgNotFound)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, msg)
}
