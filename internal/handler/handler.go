package handler

import (
	"net/http"
	"sort"

	"github.com/gorilla/mux"

	"github.com/atlekbai/sqlcraft/internal/engine"
)

// Handler serves the plain JSON endpoints next to the Connect service.
type Handler struct {
	engines map[string]*engine.Engine
}

func New(engines map[string]*engine.Engine) *Handler {
	return &Handler{engines: engines}
}

// Router returns a router serving the handler's endpoints.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	h.Routes(r)
	return r
}

// Routes registers the handler's endpoints on r.
func (h *Handler) Routes(r *mux.Router) {
	r.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet)
	r.HandleFunc("/dialects", h.Dialects).Methods(http.MethodGet)
	r.HandleFunc("/dialects/{name}/functions", h.Functions).Methods(http.MethodGet)
}

// Healthz handles GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// DialectInfo summarizes one served dialect.
type DialectInfo struct {
	Name             string `json:"name"`
	ParamPrefix      string `json:"param_prefix,omitempty"`
	InlineParameters bool   `json:"inline_parameters"`
	DummyTable       string `json:"dummy_table,omitempty"`
	Functions        int    `json:"functions"`
	Objects          int    `json:"objects"`
}

// Dialects handles GET /dialects
func (h *Handler) Dialects(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, 0, len(h.engines))
	for n := range h.engines {
		names = append(names, n)
	}
	sort.Strings(names)

	out := make([]DialectInfo, 0, len(names))
	for _, n := range names {
		e := h.engines[n]
		opts := e.Dialect()
		info := DialectInfo{
			Name:             n,
			ParamPrefix:      opts.ParamPrefix,
			InlineParameters: opts.InlineParameters,
			DummyTable:       opts.DummyTable,
			Functions:        len(e.Registry().Names()),
		}
		if cat := e.Catalog(); cat != nil {
			info.Objects = cat.ObjectCount()
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, out)
}

// Functions handles GET /dialects/{name}/functions
func (h *Handler) Functions(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	e, ok := h.engines[name]
	if !ok {
		writeError(w, http.StatusNotFound, "DIALECT_NOT_FOUND",
			"Dialect not found",
			"No dialect served under '"+name+"'")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"dialect":   name,
		"functions": e.Registry().Names(),
	})
}
