package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"bloodbank/m/domain"
	"bloodbank/m/internal/service"
	"bloodbank/m/internal/sheet"
)

const maxUploadBytes = 10 << 20

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	svc          *service.Service
	log          *zap.Logger
	origins      []string
	forecastDays int
}

// New constructs a Handler.
func New(svc *service.Service, log *zap.Logger, origins []string, forecastDays int) *Handler {
	if forecastDays <= 0 {
		forecastDays = 30
	}
	return &Handler{svc: svc, log: log, origins: origins, forecastDays: forecastDays}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", h.health)

	r.Route("/donors", func(r chi.Router) {
		r.Post("/", h.registerDonor)
		r.Get("/{id}", h.getDonor)
		r.Post("/{id}/donations", h.recordDonation)
	})

	r.Route("/recipients", func(r chi.Router) {
		r.Post("/", h.registerRecipient)
		r.Get("/", h.listRecipients)
		r.Get("/{id}", h.getRecipient)
		r.Get("/{id}/transfusions", h.listTransfusions)
		r.Post("/{id}/transfusion", h.processTransfusion)
	})

	r.Route("/inventory", func(r chi.Router) {
		r.Get("/", h.inventory)
		r.Get("/summary", h.stockSummary)
		r.Post("/allocate", h.allocate)
		r.Post("/import", h.importInventory)
		r.Get("/export", h.exportInventory)
	})

	r.Get("/forecast", h.forecast)

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			h.log.Info("http request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)))
		}()
		next.ServeHTTP(ww, r)
	})
}

// Donor handlers

func (h *Handler) registerDonor(w http.ResponseWriter, r *http.Request) {
	var req service.DonorInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	donor, err := h.svc.RegisterDonor(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, donor)
}

func (h *Handler) getDonor(w http.ResponseWriter, r *http.Request) {
	donor, err := h.svc.GetDonor(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, donor)
}

func (h *Handler) recordDonation(w http.ResponseWriter, r *http.Request) {
	var req service.DonationInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.DonorID = chi.URLParam(r, "id")
	batch, err := h.svc.RecordDonation(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, batch)
}

// Recipient handlers

func (h *Handler) registerRecipient(w http.ResponseWriter, r *http.Request) {
	var req service.RecipientInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	recipient, err := h.svc.RegisterRecipient(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, recipient)
}

func (h *Handler) listRecipients(w http.ResponseWriter, r *http.Request) {
	recipients, err := h.svc.ListRecipients(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, recipients)
}

func (h *Handler) getRecipient(w http.ResponseWriter, r *http.Request) {
	recipient, err := h.svc.GetRecipient(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, recipient)
}

func (h *Handler) listTransfusions(w http.ResponseWriter, r *http.Request) {
	transfusions, err := h.svc.ListTransfusions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, transfusions)
}

func (h *Handler) processTransfusion(w http.ResponseWriter, r *http.Request) {
	transfusion, err := h.svc.ProcessTransfusion(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, transfusion)
}

// Inventory handlers

func (h *Handler) inventory(w http.ResponseWriter, r *http.Request) {
	batches, err := h.svc.Inventory(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if batches == nil {
		batches = []domain.InventoryBatch{}
	}
	respondJSON(w, http.StatusOK, batches)
}

func (h *Handler) stockSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.StockSummary(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (h *Handler) allocate(w http.ResponseWriter, r *http.Request) {
	var req service.AllocationInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	allocations, err := h.svc.Allocate(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"allocations": allocations})
}

func (h *Handler) importInventory(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "multipart form with a file field is required")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	rows, err := sheet.ReadInventory(file)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	n, err := h.svc.ImportBatches(r.Context(), rows)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "imported", "rows": n})
}

func (h *Handler) exportInventory(w http.ResponseWriter, r *http.Request) {
	batches, err := h.svc.Inventory(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := sheet.WriteInventory(&buf, batches); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="inventory.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) forecast(w http.ResponseWriter, r *http.Request) {
	days := h.forecastDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = parsed
	}
	predictions, err := h.svc.Forecast(r.Context(), days)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"days": days, "predictions": predictions})
}

// Helpers

func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		respondError(w, status, "internal error")
		return
	}
	respondError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrAlreadyFulfilled):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
