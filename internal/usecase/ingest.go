package usecase

import (
	"context"
	"log/slog"
	"sync/atomic"

	"go.opentelemetry.io/otel"

	daas "github.com/totegamma/daas-playground"
	"github.com/totegamma/daas-playground/internal/domain"
)

var tracer = otel.Tracer("ingest")

// IngestInput is the request-extracted material an inbound document is
// built from.
type IngestInput struct {
	Category    string
	Subcategory string
	SourceName  string
	SourceUID   uint
	Author      string
	Agreements  []daas.UsageAgreement
	Tracker     daas.ProvenanceChain
	ContentType string
	Payload     []byte

	// Topic overrides the document's canonical topic when set.
	Topic string
}

// IngestUsecase sequences validate, persist, acknowledge, broker, and
// mark-processed for each inbound document. The caller-visible latency
// is bounded to the persist step: brokering runs on a detached goroutine
// after Receive returns.
type IngestUsecase struct {
	storage   DocumentStorage
	deliverer DocumentDeliverer

	deliveryFailures atomic.Uint64
}

func NewIngestUsecase(storage DocumentStorage, deliverer DocumentDeliverer) *IngestUsecase {
	return &IngestUsecase{
		storage:   storage,
		deliverer: deliverer,
	}
}

// Receive builds, validates, and durably stages a document, then starts
// its asynchronous broker delivery. The returned document carries the
// assigned revision; any error means nothing was acknowledged and the
// document was not staged.
func (u *IngestUsecase) Receive(ctx context.Context, input IngestInput) (*daas.Document, error) {
	_, span := tracer.Start(ctx, "Ingest.Usecase.Receive")
	defer span.End()

	if len(input.Agreements) == 0 {
		err := domain.MissingAgreementError{ID: daas.MakeID(input.Category, input.Subcategory, input.SourceName, input.SourceUID)}
		span.RecordError(err)
		return nil, err
	}

	doc, err := daas.NewDocument(
		input.SourceName,
		input.SourceUID,
		input.Category,
		input.Subcategory,
		input.Author,
		input.Agreements,
		input.Tracker,
		input.Payload,
	)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if input.ContentType != "" {
		doc.AddMeta("content-type", input.ContentType)
	}

	if _, err := doc.Validate(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	persisted, err := u.storage.Upsert(doc)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	go u.dispatch(persisted, input.Topic)

	return persisted, nil
}

// dispatch runs the asynchronous leg: broker delivery, then recording
// the processed status. The original caller has already been answered,
// so failures are logged and counted here, and the staged document keeps
// process_ind=false for out-of-band reconciliation.
func (u *IngestUsecase) dispatch(doc *daas.Document, topic string) {
	ctx := context.Background()

	if topic == "" {
		topic = u.deliverer.DefaultTopic(doc)
	}

	if err := u.deliverer.Deliver(ctx, doc, topic); err != nil {
		u.deliveryFailures.Add(1)
		slog.Error("could not broker the document",
			slog.String("error", err.Error()),
			slog.String("id", doc.ID),
			slog.String("topic", topic),
			slog.String("module", "ingest"),
		)
		return
	}

	if _, err := u.storage.MarkAsProcessed(doc); err != nil {
		u.deliveryFailures.Add(1)
		slog.Error("could not mark the document as processed",
			slog.String("error", err.Error()),
			slog.String("id", doc.ID),
			slog.String("module", "ingest"),
		)
	}
}

// DeliveryFailures reports how many asynchronous broker or
// mark-processed steps have failed since startup. This is the internal
// observability hook for the one place failures can silently accumulate.
func (u *IngestUsecase) DeliveryFailures() uint64 {
	return u.deliveryFailures.Load()
}
