package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/jaym/datamaker/metadata"
	"github.com/jaym/datamaker/objstore"
)

const (
	DefaultSearchLimit = 50
	MaxSearchLimit     = 500
	CuesPageSize       = 25
)

// Catalog is the cue database queried by the handlers.
type Catalog interface {
	Search(ctx context.Context, query string, limit int) ([]metadata.SearchResult, error)
	ListCues(ctx context.Context, season int, episode int, timestamp int64, count int, reverse bool) ([]metadata.CueMetadata, error)
}

type ApiHandler struct {
	db      Catalog
	objects objstore.ObjectReader
}

// NewApiHandler serves the archive in objects. db may be nil, in which case
// the catalog backed endpoints answer 503.
func NewApiHandler(db Catalog, objects objstore.ObjectReader) http.Handler {
	h := &ApiHandler{
		db:      db,
		objects: objects,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(allowCORS)

	r.Get("/search", h.searchHandler)
	r.Get("/cues/{season}/{episode}/{timestamp}", h.cuesHandler)
	r.Get("/thumb/{season}/{episode}/{timestamp}", h.thumbHandler)
	r.Get("/index.json", h.indexHandler)
	r.Get("/images/{dir}/{file}", h.imageHandler)

	return r
}

func allowCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		h.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to write response")
	}
}

func (h *ApiHandler) searchHandler(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		http.Error(w, "Search is not available", http.StatusServiceUnavailable)
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		http.Error(w, "Missing query", http.StatusBadRequest)
		return
	}
	limit := DefaultSearchLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		var err error
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(limit, MaxSearchLimit)
	}

	results, err := h.db.Search(r.Context(), query, limit)
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("Failed to search")
		http.Error(w, "Failed to search", http.StatusInternalServerError)
		return
	}
	if len(results) == 0 {
		results = []metadata.SearchResult{}
	}
	writeJSON(w, results)
}

type cuePosition struct {
	season    int
	episode   int
	timestamp int64
}

func parseCuePosition(w http.ResponseWriter, r *http.Request) (cuePosition, bool) {
	var pos cuePosition
	var err error
	pos.season, err = strconv.Atoi(chi.URLParam(r, "season"))
	if err != nil {
		http.Error(w, "Invalid season", http.StatusBadRequest)
		return pos, false
	}
	pos.episode, err = strconv.Atoi(chi.URLParam(r, "episode"))
	if err != nil {
		http.Error(w, "Invalid episode", http.StatusBadRequest)
		return pos, false
	}
	// strip extension from the timestamp
	timestampStr, _, _ := strings.Cut(chi.URLParam(r, "timestamp"), ".")
	pos.timestamp, err = strconv.ParseInt(timestampStr, 10, 64)
	if err != nil {
		http.Error(w, "Invalid timestamp", http.StatusBadRequest)
		return pos, false
	}
	return pos, true
}

func (h *ApiHandler) cuesHandler(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		http.Error(w, "Cues are not available", http.StatusServiceUnavailable)
		return
	}
	pos, ok := parseCuePosition(w, r)
	if !ok {
		return
	}

	var reverse bool
	if r.URL.Query().Has("reverse") {
		var err error
		reverse, err = strconv.ParseBool(r.URL.Query().Get("reverse"))
		if err != nil {
			http.Error(w, "Invalid reverse", http.StatusBadRequest)
			return
		}
	}

	cues, err := h.db.ListCues(r.Context(), pos.season, pos.episode, pos.timestamp, CuesPageSize, reverse)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list cues")
		http.Error(w, "Failed to list cues", http.StatusInternalServerError)
		return
	}
	if len(cues) == 0 {
		cues = []metadata.CueMetadata{}
	}
	writeJSON(w, cues)
}

// thumbHandler serves the thumbnail of the first cue at or after the
// timestamp.
func (h *ApiHandler) thumbHandler(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		http.Error(w, "Thumbnails are not available", http.StatusServiceUnavailable)
		return
	}
	pos, ok := parseCuePosition(w, r)
	if !ok {
		return
	}

	cues, err := h.db.ListCues(r.Context(), pos.season, pos.episode, pos.timestamp, 1, false)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list cues")
		http.Error(w, "Failed to list cues", http.StatusInternalServerError)
		return
	}
	if len(cues) == 0 {
		http.Error(w, "Thumbnail not found", http.StatusNotFound)
		return
	}

	h.serveObject(w, cues[0].ThumbnailKey)
}

func (h *ApiHandler) indexHandler(w http.ResponseWriter, r *http.Request) {
	h.serveObject(w, "index.json")
}

func (h *ApiHandler) imageHandler(w http.ResponseWriter, r *http.Request) {
	h.serveObject(w, path.Join(chi.URLParam(r, "dir"), chi.URLParam(r, "file")))
}

func (h *ApiHandler) serveObject(w http.ResponseWriter, key string) {
	obj, err := h.objects.Open(key)
	if errors.Is(err, objstore.ErrObjectNotFound) {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to open object")
		http.Error(w, "Failed to read object", http.StatusInternalServerError)
		return
	}
	defer obj.Close()

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to write object")
	}
}
