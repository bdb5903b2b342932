package usecase

import (
	"context"

	daas "github.com/totegamma/daas-playground"
)

// DocumentStorage defines the staging-store operations the orchestrator
// depends on.
type DocumentStorage interface {
	Upsert(doc *daas.Document) (*daas.Document, error)
	GetByID(id string, revision *string) (*daas.Document, error)
	MarkAsProcessed(doc *daas.Document) (*daas.Document, error)
}

// DocumentDeliverer hands a document to a named broker topic.
type DocumentDeliverer interface {
	Deliver(ctx context.Context, doc *daas.Document, topic string) error
	DefaultTopic(doc *daas.Document) string
}
