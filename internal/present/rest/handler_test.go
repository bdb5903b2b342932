package rest

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	daas "github.com/totegamma/daas-playground"
	"github.com/totegamma/daas-playground/internal/domain"
	"github.com/totegamma/daas-playground/internal/present/rest/middleware"
	"github.com/totegamma/daas-playground/internal/service"
	"github.com/totegamma/daas-playground/internal/store"
	"github.com/totegamma/daas-playground/internal/usecase"
)

// blockingDeliverer lets the test observe the staged document before the
// asynchronous leg runs.
type blockingDeliverer struct {
	proceed chan struct{}
}

func (m *blockingDeliverer) Deliver(ctx context.Context, doc *daas.Document, topic string) error {
	<-m.proceed
	return nil
}

func (m *blockingDeliverer) DefaultTopic(doc *daas.Document) string {
	return doc.Category + "." + doc.Subcategory + "." + doc.SourceName
}

func agreementHeader(t *testing.T) string {
	t.Helper()

	agreements := []daas.UsageAgreement{
		daas.NewUsageAgreement("billing", "www.dua.org/billing.pdf", 1553988607),
	}
	header, err := json.Marshal(agreements)
	if err != nil {
		t.Fatalf("failed to marshal the agreements: %v", err)
	}
	return string(header)
}

func newTestServer(t *testing.T, root string, deliverer usecase.DocumentDeliverer) *echo.Echo {
	t.Helper()

	ingest := usecase.NewIngestUsecase(store.NewLocalStorage(root), deliverer)
	handler := NewHandler(ingest, middleware.NewAuthorMiddleware(service.NewDefaultAuthor("istore_app")))

	e := echo.New()
	handler.RegisterRoutes(e)
	return e
}

func readStagedDocument(t *testing.T, root string) *daas.Document {
	t.Helper()

	path := filepath.Join(root, "order", "clothing", "iStore", "5000", "order~clothing~iStore~5000~0")
	serialized, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read the staged revision file: %v", err)
	}
	doc, err := daas.FromSerialized(serialized)
	if err != nil {
		t.Fatalf("failed to deserialize the staged document: %v", err)
	}
	return doc
}

func TestHealth(t *testing.T) {
	e := newTestServer(t, t.TempDir(), &blockingDeliverer{proceed: make(chan struct{})})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"OK"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestIngestEndToEnd(t *testing.T) {
	root := t.TempDir()
	deliverer := &blockingDeliverer{proceed: make(chan struct{})}
	e := newTestServer(t, root, deliverer)

	req := httptest.NewRequest(http.MethodPost, "/order/clothing/iStore/5000", bytes.NewReader([]byte(`{"status":"new"}`)))
	req.Header.Set(echo.HeaderContentType, "application/json")
	req.Header.Set(domain.UsageAgreementHeader, agreementHeader(t))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}

	// the response was sent before brokering: revision 0 is staged with
	// process_ind still false
	staged := readStagedDocument(t, root)
	if staged.ProcessInd {
		t.Fatalf("expected process_ind false before the async leg completes")
	}
	if staged.GetMeta("content-type") != "application/json" {
		t.Fatalf("expected the content type to be recorded")
	}
	if staged.Author != "istore_app" {
		t.Fatalf("unexpected author %s", staged.Author)
	}

	// release the broker; the same revision file flips to processed
	close(deliverer.proceed)

	deadline := time.Now().Add(5 * time.Second)
	for !readStagedDocument(t, root).ProcessInd {
		if time.Now().After(deadline) {
			t.Fatalf("expected the staged revision to show process_ind true")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestIngestWithoutAgreements(t *testing.T) {
	root := t.TempDir()
	e := newTestServer(t, root, &blockingDeliverer{proceed: make(chan struct{})})

	req := httptest.NewRequest(http.MethodPost, "/order/clothing/iStore/5000", bytes.NewReader([]byte(`{"status":"new"}`)))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "unable to process data") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}

	if _, err := os.Stat(filepath.Join(root, "order")); !os.IsNotExist(err) {
		t.Fatalf("a rejected document must never be staged")
	}
}

func TestIngestTamperedChain(t *testing.T) {
	e := newTestServer(t, t.TempDir(), &blockingDeliverer{proceed: make(chan struct{})})

	chain := daas.NewProvenanceChain(daas.MakeID("order", "clothing", "iStore", 5000))
	chain.Chain[0].Hash = "00000000000000000000000000000000"
	encoded, err := json.Marshal(chain)
	if err != nil {
		t.Fatalf("failed to marshal the chain: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/order/clothing/iStore/5000", bytes.NewReader([]byte(`{"status":"new"}`)))
	req.Header.Set(domain.UsageAgreementHeader, agreementHeader(t))
	req.Header.Set(domain.ProvenanceChainHeader, base64.StdEncoding.EncodeToString(encoded))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestIngestInvalidSourceUID(t *testing.T) {
	e := newTestServer(t, t.TempDir(), &blockingDeliverer{proceed: make(chan struct{})})

	req := httptest.NewRequest(http.MethodPost, "/order/clothing/iStore/not-a-number", nil)
	req.Header.Set(domain.UsageAgreementHeader, agreementHeader(t))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestIngestUnauthorized(t *testing.T) {
	ingest := usecase.NewIngestUsecase(store.NewLocalStorage(t.TempDir()), &blockingDeliverer{proceed: make(chan struct{})})
	handler := NewHandler(ingest, middleware.NewAuthorMiddleware(service.NewBase64Author()))

	e := echo.New()
	handler.RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodPost, "/order/clothing/iStore/5000", nil)
	req.Header.Set(domain.UsageAgreementHeader, agreementHeader(t))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
