// Package api serves the read surface: raw daily metrics and stored
// predictions, addressed by date.
package api

import (
	"encoding/json"
	"net/http"
	"regexp"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/atmolab/atmocast/internal/partition"
	"github.com/atmolab/atmocast/internal/storage"
	"github.com/atmolab/atmocast/pkg/models"
)

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Handler serves partition reads over HTTP.
type Handler struct {
	store  storage.ObjectStore
	logger *logrus.Logger
	now    func() time.Time
}

// NewHandler creates the API handler
func NewHandler(store storage.ObjectStore, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{store: store, logger: logger, now: time.Now}
}

// Register mounts the API routes on router
func (h *Handler) Register(router *mux.Router) {
	router.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/metrics", h.handleMetrics).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/predictions", h.handlePredictions).Methods(http.MethodGet)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleMetrics returns the raw readings partition for ?date= (default:
// today, UTC).
func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	date, ok := h.dateParam(w, r)
	if !ok {
		return
	}
	h.servePartition(w, r, date)
}

// handlePredictions returns the stored forecast partition for ?date=.
func (h *Handler) handlePredictions(w http.ResponseWriter, r *http.Request) {
	date, ok := h.dateParam(w, r)
	if !ok {
		return
	}
	h.servePartition(w, r, partition.PredictionsKey(date))
}

// dateParam validates the optional date query parameter, defaulting to
// today. An empty parameter is different from an invalid one: empty means
// today, invalid is a 400.
func (h *Handler) dateParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	date := r.URL.Query().Get("date")
	if date == "" {
		return h.now().UTC().Format(partition.DateLayout), true
	}
	if !datePattern.MatchString(date) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid date parameter"})
		return "", false
	}
	return date, true
}

func (h *Handler) servePartition(w http.ResponseWriter, r *http.Request, key string) {
	data, found, err := h.store.Get(r.Context(), key)
	if err != nil {
		h.logger.WithError(err).WithField("key", key).Error("Partition fetch failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "failed to fetch data"})
		return
	}
	if !found {
		writeJSON(w, http.StatusOK, models.Partition{Entries: []models.Reading{}})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
