package consumer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	daas "github.com/totegamma/daas-playground"
	"github.com/totegamma/daas-playground/internal/blob"
	"github.com/totegamma/daas-playground/internal/broker"
)

const seenTTL = 24 * time.Hour

// Message is the envelope handed to a processing callback.
type Message struct {
	Offset    int64
	Partition int
	Topic     string
	Key       []byte
	Doc       *daas.Document
}

// Callback processes one brokered document. A non-nil error withholds
// the offset commit for that message, so it is redelivered on restart.
type Callback[T any] func(ctx context.Context, msg Message, b *broker.Broker, collaborator T) (int, error)

// messageReader is the slice of kafka.Reader the processor uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config holds the consumer-group coordinates. Redis is optional; when
// set, successfully provisioned (id, revision) pairs are remembered so
// redeliveries are committed without re-running the callback.
type Config struct {
	Brokers []string
	Group   string
	Topics  []string
	Redis   *redis.Client
}

// Processor continuously polls broker topics, deserializes each message
// into a document, and invokes a caller-supplied callback, committing
// the consumption offset per message only after the callback succeeds.
type Processor[T any] struct {
	reader       messageReader
	broker       *broker.Broker
	collaborator T
	seen         *redis.Client
}

// New creates a processor reading the configured topics as one consumer
// group. Offsets are committed explicitly, never automatically.
func New[T any](cfg Config, collaborator T) *Processor[T] {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.Group,
		GroupTopics: cfg.Topics,
		StartOffset: kafka.FirstOffset,
	})

	return &Processor[T]{
		reader:       reader,
		broker:       broker.New(cfg.Brokers),
		collaborator: collaborator,
		seen:         cfg.Redis,
	}
}

// Handle controls a running processor.
type Handle struct {
	stop   chan struct{}
	done   chan struct{}
	cancel context.CancelFunc
}

// Stop signals the poll loop and waits for it to exit. The cancellation
// aborts only a blocking fetch; an in-flight callback and its offset
// commit always complete first.
func (h *Handle) Stop() {
	select {
	case <-h.stop:
	default:
		close(h.stop)
	}
	h.cancel()
	<-h.done
}

// Run starts the poll loop on a dedicated goroutine and returns its
// control handle.
func (p *Processor[T]) Run(callback Callback[T]) *Handle {
	fetchCtx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go p.listen(fetchCtx, h, callback)

	return h
}

// listen polls until stopped. Only the blocking fetch runs under the
// cancellable context; once a message is in hand, the callback and its
// commit run under an uncancelled one so they complete even when Stop
// arrives mid-message.
func (p *Processor[T]) listen(fetchCtx context.Context, h *Handle, callback Callback[T]) {
	defer close(h.done)
	defer p.reader.Close()

	for {
		select {
		case <-h.stop:
			slog.Info("shutting down the processor", slog.String("module", "consumer"))
			return
		default:
		}

		msg, err := p.reader.FetchMessage(fetchCtx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				slog.Info("shutting down the processor", slog.String("module", "consumer"))
				return
			}
			slog.Error("could not fetch a message",
				slog.String("error", err.Error()),
				slog.String("module", "consumer"),
			)
			time.Sleep(time.Second)
			continue
		}

		ctx := context.Background()

		doc, err := daas.FromSerialized(msg.Value)
		if err != nil {
			// a malformed payload can never succeed; commit it so it is
			// not redelivered forever
			slog.Warn("skipping a malformed message",
				slog.String("error", err.Error()),
				slog.String("topic", msg.Topic),
				slog.Int64("offset", msg.Offset),
				slog.String("module", "consumer"),
			)
			p.commit(ctx, msg)
			continue
		}

		if p.alreadyProvisioned(ctx, doc) {
			p.commit(ctx, msg)
			continue
		}

		envelope := Message{
			Offset:    msg.Offset,
			Partition: msg.Partition,
			Topic:     msg.Topic,
			Key:       msg.Key,
			Doc:       doc,
		}

		if _, err := callback(ctx, envelope, p.broker, p.collaborator); err != nil {
			slog.Warn("could not process the document",
				slog.String("error", err.Error()),
				slog.String("id", doc.ID),
				slog.String("topic", msg.Topic),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.String("module", "consumer"),
			)
			continue
		}

		p.markProvisioned(ctx, doc)
		p.commit(ctx, msg)
	}
}

func (p *Processor[T]) commit(ctx context.Context, msg kafka.Message) {
	if err := p.reader.CommitMessages(ctx, msg); err != nil {
		slog.Error("could not commit an offset",
			slog.String("error", err.Error()),
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
			slog.String("module", "consumer"),
		)
	}
}

func seenKey(doc *daas.Document) string {
	rev := ""
	if doc.Revision != nil {
		rev = *doc.Revision
	}
	return fmt.Sprintf("daas:provisioned:%s%s%s", doc.ID, daas.Delimiter, rev)
}

func (p *Processor[T]) alreadyProvisioned(ctx context.Context, doc *daas.Document) bool {
	if p.seen == nil {
		return false
	}
	n, err := p.seen.Exists(ctx, seenKey(doc)).Result()
	if err != nil {
		// fail open: reprocessing is safe, skipping is not
		return false
	}
	return n > 0
}

func (p *Processor[T]) markProvisioned(ctx context.Context, doc *daas.Document) {
	if p.seen == nil {
		return
	}
	if err := p.seen.Set(ctx, seenKey(doc), 1, seenTTL).Err(); err != nil {
		slog.Warn("could not record the provisioned marker",
			slog.String("error", err.Error()),
			slog.String("id", doc.ID),
			slog.String("module", "consumer"),
		)
	}
}

// ProvisionDocument is the reference callback: it uploads the serialized
// document to the blob store under {topic}/{id}.daas, then re-brokers it
// to the document's derived topic set. Any failure fails the callback,
// which withholds the offset commit for the message.
func ProvisionDocument(ctx context.Context, msg Message, b *broker.Broker, bucket *blob.S3Store) (int, error) {
	serialized, err := msg.Doc.Serialize()
	if err != nil {
		return 0, err
	}

	key := fmt.Sprintf("%s/%s.daas", msg.Topic, msg.Doc.ID)
	if err := bucket.Upload(ctx, key, serialized); err != nil {
		return 0, err
	}

	if b != nil {
		for _, topic := range broker.DefaultTopics(msg.Doc) {
			if err := b.Deliver(ctx, msg.Doc, topic); err != nil {
				return 0, err
			}
		}
	}

	return 1, nil
}
