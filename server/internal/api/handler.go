package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/mirrormap/mirrormap/pkg/wire"
	"github.com/mirrormap/mirrormap/server/internal/docstore"
)

// Handler is the HTTP handler for all /api/v1/* endpoints. It reads document
// state from the store and returns JSON responses.
type Handler struct {
	store    *docstore.Store
	sessions func() int
	started  time.Time
	router   *mux.Router
}

// New creates a Handler wired to the given store and registers all routes.
// sessions reports the number of attached sessions (the hub's count).
func New(st *docstore.Store, sessions func() int) http.Handler {
	h := &Handler{
		store:    st,
		sessions: sessions,
		started:  time.Now(),
		router:   mux.NewRouter(),
	}

	h.router.HandleFunc("/api/v1/health", h.health).Methods(http.MethodGet)
	h.router.HandleFunc("/api/v1/docs", h.listDocs).Methods(http.MethodGet)
	// Document names may contain slashes, so the var swallows the rest of
	// the path.
	h.router.HandleFunc("/api/v1/docs/{name:.+}", h.getDoc).Methods(http.MethodGet)

	h.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jsonErr(w, http.StatusNotFound, "not found")
	})
	h.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health — liveness plus resident counts.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		Docs:          h.store.Count(),
		Sessions:      h.sessions(),
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
	})
}

// listDocs returns GET /api/v1/docs — all resident documents, sorted.
func (h *Handler) listDocs(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, h.store.Docs())
}

// getDoc returns GET /api/v1/docs/{name} — one document's revision and
// object summaries. Documents not in memory are not found, even when a
// persisted copy exists; attaching revives them.
func (h *Handler) getDoc(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	info, ok := h.store.Info(name)
	if !ok {
		jsonErr(w, http.StatusNotFound, "document not found")
		return
	}
	snap, ok := h.store.Snapshot(name)
	if !ok {
		jsonErr(w, http.StatusNotFound, "document not found")
		return
	}

	resp := DocResponse{
		Name:      snap.Doc,
		Rev:       snap.Rev,
		Sessions:  info.Sessions,
		UpdatedAt: info.UpdatedAt,
		Objects:   make([]ObjectSummary, 0, len(snap.Objects)),
	}
	for _, st := range snap.Objects {
		resp.Objects = append(resp.Objects, summarize(st))
	}
	jsonResp(w, http.StatusOK, resp)
}

// --- helpers ----------------------------------------------------------------

// summarize reduces an object to its identity and size. Size counts map
// entries, list items or text runes.
func summarize(st wire.ObjectState) ObjectSummary {
	s := ObjectSummary{ID: st.ID, Kind: string(st.Kind)}
	switch st.Kind {
	case wire.KindMap:
		s.Size = len(st.Entries)
	case wire.KindList:
		s.Size = len(st.Items)
	case wire.KindText:
		s.Size = len([]rune(st.Text))
	}
	return s
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
