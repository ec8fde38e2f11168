// Package api is the read-only HTTP boundary: per entity one list operation
// taking the declared filters and one get-by-identifier operation. There are
// no write routes; all writes come through the ingestion worker.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"entree-api/internal/logger"
	"entree-api/internal/query"
	"entree-api/internal/store"
)

type Handler struct {
	DB     *store.DB
	Cache  *Cache
	Logger *logger.Logger
}

func NewHandler(db *store.DB, cache *Cache, log *logger.Logger) *Handler {
	return &Handler{DB: db, Cache: cache, Logger: log}
}

// Routes mounts the five read-only collections.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/concerts", func(r chi.Router) {
		r.Get("/", h.ListConcerts)
		r.Get("/{concertID}", h.GetConcert)
	})
	r.Route("/events", func(r chi.Router) {
		r.Get("/", h.ListEvents)
		r.Get("/{eventID}", h.GetEvent)
	})
	r.Route("/news", func(r chi.Router) {
		r.Get("/", h.ListNews)
		r.Get("/{newsID}", h.GetNews)
	})
	r.Route("/concertgebouw_events", func(r chi.Router) {
		r.Get("/", h.ListConcertgebouwEvents)
		r.Get("/{cgEventID}", h.GetConcertgebouwEvent)
	})
	r.Route("/tickets", func(r chi.Router) {
		r.Get("/", h.ListTickets)
		r.Get("/{ticketID}", h.GetTicket)
		r.Get("/{ticketID}/qr", h.TicketQR)
	})
}

func (h *Handler) ListConcerts(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q, err := store.ConcertFilters.Parse(r.URL.RawQuery)
	if err != nil {
		h.respondError(w, err)
		return
	}
	concerts, err := h.DB.ListConcerts(r.Context(), q)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, concerts)
	h.logRequest(r, http.StatusOK, start)
}

func (h *Handler) GetConcert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "concertID")
	if h.serveCached(w, r, "concert:"+id) {
		return
	}
	concert, err := h.DB.GetConcertByID(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSONCached(w, r, "concert:"+id, concert)
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q, err := store.EventFilters.Parse(r.URL.RawQuery)
	if err != nil {
		h.respondError(w, err)
		return
	}
	events, err := h.DB.ListEvents(r.Context(), q)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, events)
	h.logRequest(r, http.StatusOK, start)
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "eventID")
	if h.serveCached(w, r, "event:"+id) {
		return
	}
	event, err := h.DB.GetEventByID(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSONCached(w, r, "event:"+id, event)
}

func (h *Handler) ListNews(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q, err := store.NewsFilters.Parse(r.URL.RawQuery)
	if err != nil {
		h.respondError(w, err)
		return
	}
	items, err := h.DB.ListNews(r.Context(), q)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, items)
	h.logRequest(r, http.StatusOK, start)
}

func (h *Handler) GetNews(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "newsID")
	if h.serveCached(w, r, "news:"+id) {
		return
	}
	news, err := h.DB.GetNewsByID(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSONCached(w, r, "news:"+id, news)
}

func (h *Handler) ListConcertgebouwEvents(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q, err := store.ConcertgebouwEventFilters.Parse(r.URL.RawQuery)
	if err != nil {
		h.respondError(w, err)
		return
	}
	events, err := h.DB.ListConcertgebouwEvents(r.Context(), q)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, events)
	h.logRequest(r, http.StatusOK, start)
}

func (h *Handler) GetConcertgebouwEvent(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "cgEventID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		h.respondError(w, &store.NotFoundError{Entity: "concertgebouw event", ID: raw})
		return
	}
	event, err := h.DB.GetConcertgebouwEventByID(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, event)
}

func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q, err := store.TicketFilters.Parse(r.URL.RawQuery)
	if err != nil {
		h.respondError(w, err)
		return
	}
	tickets, err := h.DB.ListTickets(r.Context(), q)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, tickets)
	h.logRequest(r, http.StatusOK, start)
}

func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "ticketID")
	if h.serveCached(w, r, "ticket:"+id) {
		return
	}
	ticket, err := h.DB.GetTicketByID(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSONCached(w, r, "ticket:"+id, ticket)
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// respondJSONCached writes the entity and stores the encoded body for the
// next reader of the same identifier.
func (h *Handler) respondJSONCached(w http.ResponseWriter, r *http.Request, key string, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.Cache.Set(r.Context(), key, body)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (h *Handler) serveCached(w http.ResponseWriter, r *http.Request, key string) bool {
	body, ok := h.Cache.Get(r.Context(), key)
	if !ok {
		return false
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var unsupported *query.UnsupportedFilterError
	var notFound *store.NotFoundError

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &unsupported):
		status = http.StatusBadRequest
	case errors.As(err, &notFound):
		status = http.StatusNotFound
	}

	if status == http.StatusInternalServerError && h.Logger != nil {
		h.Logger.Error("API", err.Error())
	}
	h.respondJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *Handler) logRequest(r *http.Request, status int, start time.Time) {
	if h.Logger == nil {
		return
	}
	h.Logger.LogAPI(r.Method, r.URL.Path, strconv.Itoa(status), time.Since(start).String())
}
