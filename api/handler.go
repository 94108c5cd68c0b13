package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/facturaIA/invoice-extraction-service/internal/auth"
	"github.com/facturaIA/invoice-extraction-service/internal/db"
	"github.com/facturaIA/invoice-extraction-service/internal/engine"
	"github.com/facturaIA/invoice-extraction-service/internal/models"
	"github.com/facturaIA/invoice-extraction-service/internal/storage"
)

const (
	MaxUploadSize = 10 * 1024 * 1024 // 10MB
	Version       = "3.0.0"

	defaultListLimit = 100
	maxListLimit     = 500
)

// Extractor is the engine surface the handlers use.
type Extractor interface {
	Extract(ctx context.Context, req engine.Request) (*models.ReconciliationOutcome, error)
	PreliminaryCheck(ctx context.Context, req engine.Request) (bool, string, error)
}

// InvoiceStore is the persistence surface the handlers use.
type InvoiceStore interface {
	Available() bool
	EnsureSchema(ctx context.Context, tenant string) error
	FindDuplicate(ctx context.Context, tenant string, inv *db.Invoice) (uuid.UUID, error)
	SaveInvoice(ctx context.Context, tenant string, inv *db.Invoice) error
	GetInvoices(ctx context.Context, tenant string, limit int) ([]db.Invoice, error)
	GetInvoiceByID(ctx context.Context, tenant string, id uuid.UUID) (*db.Invoice, error)
	DeleteInvoice(ctx context.Context, tenant string, id uuid.UUID) error
}

// Handler handles HTTP requests for invoice processing
type Handler struct {
	config   *models.Config
	engine   Extractor
	store    InvoiceStore
	logger   *zap.Logger
	gatherer prometheus.Gatherer
}

// NewHandler creates a new API handler. gatherer backs /metrics and may be nil.
func NewHandler(config *models.Config, eng Extractor, logger *zap.Logger, gatherer prometheus.Gatherer) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		config:   config,
		engine:   eng,
		store:    db.Store{},
		logger:   logger,
		gatherer: gatherer,
	}
}

// SetupRoutes configures the HTTP routes
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	// Main endpoints
	router.HandleFunc("/api/process-invoice", h.ProcessInvoice).Methods("POST")
	router.HandleFunc("/api/preliminary-check", h.PreliminaryCheck).Methods("POST")
	router.HandleFunc("/api/invoices", h.GetInvoices).Methods("GET")

	// Invoice read/delete
	router.HandleFunc("/api/invoice/{id}", h.GetInvoice).Methods("GET")
	router.HandleFunc("/api/invoice/{id}", h.DeleteInvoice).Methods("DELETE")

	// Health check
	router.HandleFunc("/health", h.Health).Methods("GET")
	if h.gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}

	return router
}

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Timestamp  string            `json:"timestamp"`
	Uptime     string            `json:"uptime"`
	Memory     MemoryStats       `json:"memory"`
	Database   ServiceStatus     `json:"database"`
	Storage    ServiceStatus     `json:"storage"`
	AI         map[string]string `json:"ai"`
	Strategies []string          `json:"strategies"`
}

// MemoryStats represents memory usage statistics
type MemoryStats struct {
	Allocated string `json:"allocated"`
	Total     string `json:"total"`
	System    string `json:"system"`
}

// ServiceStatus represents the status of a service dependency
type ServiceStatus struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

var startTime = time.Now()

// Health reports process stats and which optional collaborators are up.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(startTime).String(),
		Memory: MemoryStats{
			Allocated: fmt.Sprintf("%.2f MB", float64(m.Alloc)/1024/1024),
			Total:     fmt.Sprintf("%.2f MB", float64(m.TotalAlloc)/1024/1024),
			System:    fmt.Sprintf("%.2f MB", float64(m.Sys)/1024/1024),
		},
		Database: h.checkDatabase(),
		Storage:  h.checkStorage(),
		AI: map[string]string{
			"defaultProvider": h.config.AI.DefaultProvider,
			"visionProvider":  h.config.AI.VisionProvider,
			"textProvider":    h.config.AI.TextProvider,
		},
		Strategies: h.config.Extraction.Strategies,
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// checkDatabase verifies PostgreSQL connection
func (h *Handler) checkDatabase() ServiceStatus {
	if !h.store.Available() {
		return ServiceStatus{
			Available: false,
			Error:     "database pool not initialized",
		}
	}

	return ServiceStatus{
		Available: true,
		Version:   "PostgreSQL",
	}
}

// checkStorage verifies MinIO connection
func (h *Handler) checkStorage() ServiceStatus {
	if storage.Client == nil {
		return ServiceStatus{
			Available: false,
			Error:     "storage client not initialized",
		}
	}

	return ServiceStatus{
		Available: true,
		Version:   "MinIO S3",
	}
}

// upload is a parsed document upload.
type upload struct {
	data        []byte
	contentType string
	text        string
	previous    *models.ExtractedInvoice
}

// readUpload parses the multipart form. The document comes from the "file"
// or "image" field; "text" may carry pre-extracted text and "previous" an
// earlier partial result as JSON.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		return nil, errors.New("file too large or invalid form data")
	}

	up := &upload{text: r.FormValue("text")}

	file, header, err := r.FormFile("file")
	if err != nil {
		file, header, err = r.FormFile("image")
	}
	if err == nil {
		defer file.Close()
		up.data, err = io.ReadAll(file)
		if err != nil {
			return nil, errors.New("failed to read file")
		}
		up.contentType = header.Header.Get("Content-Type")
	}

	if len(up.data) == 0 && strings.TrimSpace(up.text) == "" {
		return nil, errors.New("no file provided (use 'file' or 'image' field)")
	}

	if prev := r.FormValue("previous"); prev != "" {
		var inv models.ExtractedInvoice
		if err := json.Unmarshal([]byte(prev), &inv); err != nil {
			return nil, fmt.Errorf("invalid previous result: %v", err)
		}
		up.previous = &inv
	}
	return up, nil
}

// ProcessInvoice extracts an uploaded document. Implausible documents are
// answered with 200 and success=false.
func (h *Handler) ProcessInvoice(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	startTime := time.Now()

	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized: "+err.Error())
		return
	}

	up, err := h.readUpload(w, r)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	outcome, err := h.engine.Extract(ctx, engine.Request{
		Data:     up.data,
		MIMEType: up.contentType,
		Text:     up.text,
		Previous: up.previous,
	})
	if err != nil {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	response := models.ProcessResponse{
		Success: outcome.IsPlausibleInvoice,
		Outcome: outcome,
	}
	if !outcome.IsPlausibleInvoice {
		response.Error = outcome.Reason
	}

	if outcome.IsPlausibleInvoice {
		h.persist(ctx, claims, up, outcome, &response)
	}

	response.TotalDuration = time.Since(startTime).Seconds()
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// persist stores the upload and the invoice when the collaborators are
// configured. Failures are logged; the extraction result is still returned.
func (h *Handler) persist(ctx context.Context, claims *auth.Claims, up *upload, outcome *models.ReconciliationOutcome, response *models.ProcessResponse) {
	if !h.store.Available() {
		return
	}
	if err := h.store.EnsureSchema(ctx, claims.Tenant); err != nil {
		h.logger.Error("api.schema.failed", zap.String("tenant", claims.Tenant), zap.Error(err))
		return
	}

	record := db.FromOutcome(outcome, "", claims.UserID)
	dup, err := h.store.FindDuplicate(ctx, claims.Tenant, record)
	if err != nil {
		h.logger.Error("api.duplicate_lookup.failed", zap.String("tenant", claims.Tenant), zap.Error(err))
		return
	}
	if dup != uuid.Nil {
		response.DuplicateOf = dup.String()
		return
	}

	if storage.Client != nil && len(up.data) > 0 {
		path, err := storage.UploadDocument(ctx, claims.Tenant, up.data, up.contentType)
		if err != nil {
			h.logger.Error("api.upload.failed", zap.String("tenant", claims.Tenant), zap.Error(err))
		} else {
			record.ObjectPath = path
			response.ObjectPath = path
		}
	}

	if err := h.store.SaveInvoice(ctx, claims.Tenant, record); err != nil {
		h.logger.Error("api.save.failed", zap.String("tenant", claims.Tenant), zap.Error(err))
		return
	}
	response.InvoiceID = record.ID.String()
}

// PreliminaryCheck tells the caller whether a full extraction is worthwhile.
func (h *Handler) PreliminaryCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	up, err := h.readUpload(w, r)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	proceed, reason, err := h.engine.PreliminaryCheck(r.Context(), engine.Request{
		Data:     up.data,
		MIMEType: up.contentType,
		Text:     up.text,
	})
	if err != nil {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"proceed": proceed,
		"reason":  reason,
	})
}

// GetInvoices returns invoices for the authenticated tenant
func (h *Handler) GetInvoices(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()

	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if !h.tenantReady(ctx, w, claims.Tenant) {
		return
	}

	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.sendError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxListLimit)
	}

	invoices, err := h.store.GetInvoices(ctx, claims.Tenant, limit)
	if err != nil {
		h.logger.Error("api.list.failed", zap.String("tenant", claims.Tenant), zap.Error(err))
		h.sendError(w, http.StatusInternalServerError, "failed to get invoices")
		return
	}

	for i := range invoices {
		h.presign(ctx, &invoices[i])
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":  true,
		"invoices": invoices,
		"count":    len(invoices),
		"tenant":   claims.Tenant,
	})
}

// GetInvoice returns a single invoice
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if !h.tenantReady(ctx, w, claims.Tenant) {
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid invoice id")
		return
	}

	invoice, err := h.store.GetInvoiceByID(ctx, claims.Tenant, id)
	if errors.Is(err, db.ErrNotFound) {
		h.sendError(w, http.StatusNotFound, "invoice not found")
		return
	}
	if err != nil {
		h.logger.Error("api.get.failed", zap.String("tenant", claims.Tenant), zap.Stringer("id", id), zap.Error(err))
		h.sendError(w, http.StatusInternalServerError, "failed to get invoice")
		return
	}
	h.presign(ctx, invoice)

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"invoice": invoice,
		"tenant":  claims.Tenant,
	})
}

// DeleteInvoice removes an invoice and its stored document
func (h *Handler) DeleteInvoice(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if !h.tenantReady(ctx, w, claims.Tenant) {
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid invoice id")
		return
	}

	invoice, err := h.store.GetInvoiceByID(ctx, claims.Tenant, id)
	if errors.Is(err, db.ErrNotFound) {
		h.sendError(w, http.StatusNotFound, "invoice not found")
		return
	}
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "failed to get invoice")
		return
	}

	if err := h.store.DeleteInvoice(ctx, claims.Tenant, id); err != nil {
		h.logger.Error("api.delete.failed", zap.String("tenant", claims.Tenant), zap.Stringer("id", id), zap.Error(err))
		h.sendError(w, http.StatusInternalServerError, "failed to delete invoice")
		return
	}

	if invoice.ObjectPath != "" && storage.Client != nil {
		if err := storage.DeleteDocument(ctx, invoice.ObjectPath); err != nil {
			h.logger.Warn("api.delete.document_failed", zap.String("path", invoice.ObjectPath), zap.Error(err))
		}
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "invoice deleted",
	})
}

// tenantReady answers 503 when no store is configured and bootstraps the
// tenant's tables on first use.
func (h *Handler) tenantReady(ctx context.Context, w http.ResponseWriter, tenant string) bool {
	if !h.store.Available() {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return false
	}
	if err := h.store.EnsureSchema(ctx, tenant); err != nil {
		h.logger.Error("api.schema.failed", zap.String("tenant", tenant), zap.Error(err))
		h.sendError(w, http.StatusInternalServerError, "database not ready")
		return false
	}
	return true
}

// presign swaps the stored object path for a viewable URL.
func (h *Handler) presign(ctx context.Context, inv *db.Invoice) {
	if inv.ObjectPath == "" || storage.Client == nil {
		return
	}
	if url, err := storage.GetPresignedURL(ctx, inv.ObjectPath); err == nil {
		inv.ObjectPath = url
	}
}

// sendError sends an error response
func (h *Handler) sendError(w http.ResponseWriter, statusCode int, message string) {
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
