package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturaIA/invoice-extraction-service/internal/auth"
	"github.com/facturaIA/invoice-extraction-service/internal/db"
	"github.com/facturaIA/invoice-extraction-service/internal/engine"
	"github.com/facturaIA/invoice-extraction-service/internal/metrics"
	"github.com/facturaIA/invoice-extraction-service/internal/models"
	"github.com/facturaIA/invoice-extraction-service/internal/parser"
)

const sampleInvoice = "Invoice INV-2024-001\nDate: 03/15/2024\nDue Date: 04/14/2024\nFrom: Acme Corp\nTo: Beta LLC\nWidget  2  10.00  20.00\nSubtotal 20.00\nTax 2.00\nTotal 22.00"

func newTestServer(t *testing.T) (http.Handler, *prometheus.Registry) {
	t.Helper()
	auth.Init("")
	db.Pool = nil

	cfg := &models.Config{}
	cfg.ApplyDefaults()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	eng := engine.New([]engine.Strategy{parser.NewExtractor(nil)}, engine.Options{Metrics: m})
	h := NewHandler(cfg, eng, nil, reg)
	return auth.JWTMiddleware(h.SetupRoutes()), reg
}

func multipartBody(t *testing.T, fileField, contentType string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	if fileField != "" {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", `form-data; name="`+fileField+`"; filename="doc"`)
		hdr.Set("Content-Type", contentType)
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func post(t *testing.T, srv http.Handler, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestProcessInvoice_TextFile(t *testing.T) {
	srv, _ := newTestServer(t)
	body, ct := multipartBody(t, "file", "text/plain", []byte(sampleInvoice), nil)

	rec := post(t, srv, "/api/process-invoice", body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp models.ProcessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success, resp.Error)
	require.NotNil(t, resp.Outcome)
	assert.Equal(t, "INV-2024-001", resp.Outcome.Invoice.InvoiceNumber)
	assert.Equal(t, "22", resp.Outcome.Invoice.Total.String())
	assert.Empty(t, resp.InvoiceID)
}

func TestProcessInvoice_ImplausibleIsNotAnError(t *testing.T) {
	srv, _ := newTestServer(t)
	text := "First National Bank\nAccount Statement\nOpening Balance 1,000.00\nClosing Balance 1,250.00"
	body, ct := multipartBody(t, "", "", nil, map[string]string{"text": text})

	rec := post(t, srv, "/api/process-invoice", body, ct)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.ProcessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
	require.NotNil(t, resp.Outcome)
	assert.False(t, resp.Outcome.IsPlausibleInvoice)
}

func TestProcessInvoice_PreviousResult(t *testing.T) {
	srv, _ := newTestServer(t)
	text := "Invoice INV-77\nWidget  1  5.00  5.00\nTotal 5.00"
	body, ct := multipartBody(t, "", "", nil, map[string]string{
		"text":     text,
		"previous": `{"vendor": "Acme Corp", "customer": "Beta LLC"}`,
	})

	rec := post(t, srv, "/api/process-invoice", body, ct)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.ProcessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Outcome)
	assert.Equal(t, "Beta LLC", resp.Outcome.Invoice.Customer)
	assert.Contains(t, resp.Outcome.Invoice.ExtractionMethods, models.MethodPrevious)
}

func TestProcessInvoice_BadRequests(t *testing.T) {
	srv, _ := newTestServer(t)

	body, ct := multipartBody(t, "", "", nil, map[string]string{"note": "nothing"})
	rec := post(t, srv, "/api/process-invoice", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, ct = multipartBody(t, "", "", nil, map[string]string{"text": "Invoice 1", "previous": "{"})
	rec = post(t, srv, "/api/process-invoice", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(t, srv, "/api/process-invoice", bytes.NewBufferString("plain"), "text/plain")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreliminaryCheck(t *testing.T) {
	srv, _ := newTestServer(t)
	text := "Account Statement\nOpening Balance 1,000.00\nPayment received 200.00\nClosing Balance 800.00"
	body, ct := multipartBody(t, "image", "text/plain", []byte(text), nil)

	rec := post(t, srv, "/api/preliminary-check", body, ct)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool   `json:"success"`
		Proceed bool   `json:"proceed"`
		Reason  string `json:"reason"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.False(t, resp.Proceed)
	assert.NotEmpty(t, resp.Reason)
}

func TestInvoiceRoutesWithoutDatabase(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/invoices"},
		{http.MethodGet, "/api/invoice/6f1c2b8e-1d7a-4c8e-9a1b-2f3e4d5c6b7a"},
		{http.MethodDelete, "/api/invoice/6f1c2b8e-1d7a-4c8e-9a1b-2f3e4d5c6b7a"},
	} {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, tc.path)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t)

	body, ct := multipartBody(t, "file", "text/plain", []byte(sampleInvoice), nil)
	post(t, srv, "/api/process-invoice", body, ct)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.False(t, health.Database.Available)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "invoice_strategy_attempts_total")
	assert.Contains(t, rec.Body.String(), "invoice_extractions_total")
}

func TestRequiresTokenWhenAuthEnabled(t *testing.T) {
	srv, _ := newTestServer(t)
	auth.Init("secret")
	defer auth.Init("")

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/invoices", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

// memoryStore behaves like a database whose tenant tables exist only after
// EnsureSchema.
type memoryStore struct {
	calls    []string
	ready    map[string]bool
	invoices map[uuid.UUID]db.Invoice
}

func newMemoryStore() *memoryStore {
	return &memoryStore{ready: map[string]bool{}, invoices: map[uuid.UUID]db.Invoice{}}
}

func (s *memoryStore) Available() bool { return true }

func (s *memoryStore) EnsureSchema(_ context.Context, tenant string) error {
	s.calls = append(s.calls, "EnsureSchema")
	s.ready[tenant] = true
	return nil
}

func (s *memoryStore) checkTenant(tenant string) error {
	if !s.ready[tenant] {
		return fmt.Errorf("relation %q does not exist", db.SchemaForTenant(tenant)+".invoices")
	}
	return nil
}

func (s *memoryStore) FindDuplicate(_ context.Context, tenant string, inv *db.Invoice) (uuid.UUID, error) {
	s.calls = append(s.calls, "FindDuplicate")
	if err := s.checkTenant(tenant); err != nil {
		return uuid.Nil, err
	}
	for id, existing := range s.invoices {
		if existing.InvoiceNumber == inv.InvoiceNumber && existing.Vendor == inv.Vendor && existing.TotalCents == inv.TotalCents {
			return id, nil
		}
	}
	return uuid.Nil, nil
}

func (s *memoryStore) SaveInvoice(_ context.Context, tenant string, inv *db.Invoice) error {
	s.calls = append(s.calls, "SaveInvoice")
	if err := s.checkTenant(tenant); err != nil {
		return err
	}
	inv.ID = uuid.New()
	s.invoices[inv.ID] = *inv
	return nil
}

func (s *memoryStore) GetInvoices(_ context.Context, tenant string, _ int) ([]db.Invoice, error) {
	if err := s.checkTenant(tenant); err != nil {
		return nil, err
	}
	out := make([]db.Invoice, 0, len(s.invoices))
	for _, inv := range s.invoices {
		out = append(out, inv)
	}
	return out, nil
}

func (s *memoryStore) GetInvoiceByID(_ context.Context, tenant string, id uuid.UUID) (*db.Invoice, error) {
	if err := s.checkTenant(tenant); err != nil {
		return nil, err
	}
	inv, ok := s.invoices[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &inv, nil
}

func (s *memoryStore) DeleteInvoice(_ context.Context, tenant string, id uuid.UUID) error {
	if err := s.checkTenant(tenant); err != nil {
		return err
	}
	if _, ok := s.invoices[id]; !ok {
		return db.ErrNotFound
	}
	delete(s.invoices, id)
	return nil
}

func newStoreServer(t *testing.T, store InvoiceStore) http.Handler {
	t.Helper()
	auth.Init("")

	cfg := &models.Config{}
	cfg.ApplyDefaults()

	eng := engine.New([]engine.Strategy{parser.NewExtractor(nil)}, engine.Options{})
	h := NewHandler(cfg, eng, nil, nil)
	h.store = store
	return auth.JWTMiddleware(h.SetupRoutes())
}

func TestProcessInvoice_PersistsOnFreshTenant(t *testing.T) {
	store := newMemoryStore()
	srv := newStoreServer(t, store)

	body, ct := multipartBody(t, "file", "text/plain", []byte(sampleInvoice), nil)
	rec := post(t, srv, "/api/process-invoice", body, ct)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.ProcessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success, resp.Error)
	assert.NotEmpty(t, resp.InvoiceID)
	assert.Equal(t, []string{"EnsureSchema", "FindDuplicate", "SaveInvoice"}, store.calls)

	body, ct = multipartBody(t, "file", "text/plain", []byte(sampleInvoice), nil)
	rec = post(t, srv, "/api/process-invoice", body, ct)
	var again models.ProcessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &again))
	assert.Empty(t, again.InvoiceID)
	assert.Equal(t, resp.InvoiceID, again.DuplicateOf)
	assert.Len(t, store.invoices, 1)
}

func TestInvoiceRoutes_FreshTenant(t *testing.T) {
	srv := newStoreServer(t, newMemoryStore())

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/invoices", nil))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/invoice/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
}
