package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	daas "github.com/totegamma/daas-playground"
	"github.com/totegamma/daas-playground/internal/domain"
)

const (
	// topology probing on first contact with a cold topic
	topologyAttempts = 3
	topologyWait     = time.Second

	ackTimeout = time.Second
)

// MakeTopic returns the canonical topic name for a document.
func MakeTopic(doc *daas.Document) string {
	return fmt.Sprintf("%s.%s.%s", doc.Category, doc.Subcategory, doc.SourceName)
}

// DefaultTopics returns the derived topic set a document fans out to:
// its canonical topic, its category, its category.subcategory pair, and
// its source name.
func DefaultTopics(doc *daas.Document) []string {
	return []string{
		MakeTopic(doc),
		doc.Category,
		fmt.Sprintf("%s.%s", doc.Category, doc.Subcategory),
		doc.SourceName,
	}
}

// partitionLister loads the partition metadata a broker host reports
// for a topic.
type partitionLister interface {
	ReadPartitions(ctx context.Context, host, topic string) ([]kafka.Partition, error)
}

type kafkaLister struct{}

func (kafkaLister) ReadPartitions(ctx context.Context, host, topic string) ([]kafka.Partition, error) {
	conn, err := kafka.DialContext(ctx, "tcp", host)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return conn.ReadPartitions(topic)
}

// Broker hands serialized documents to topics on a Kafka cluster,
// masking transient cluster-topology unavailability with a bounded
// metadata retry.
type Broker struct {
	hosts  []string
	lister partitionLister
	wait   time.Duration
}

// New creates a broker client for the given host set.
func New(hosts []string) *Broker {
	return &Broker{
		hosts:  hosts,
		lister: kafkaLister{},
		wait:   topologyWait,
	}
}

// Hosts returns the configured broker host set.
func (b *Broker) Hosts() []string {
	return b.hosts
}

// DefaultTopic returns the canonical topic for the document.
func (b *Broker) DefaultTopic(doc *daas.Document) string {
	return MakeTopic(doc)
}

// waitForTopic loads topic metadata up to topologyAttempts times,
// sleeping between attempts, until the topic reports at least one
// partition. Each attempt falls through the host set, so a dead host
// does not mask the rest of the cluster; one successful metadata
// response is authoritative for the whole cluster.
func (b *Broker) waitForTopic(ctx context.Context, topic string) error {
	var lastErr error

	for attempt := 1; attempt <= topologyAttempts; attempt++ {
		for _, host := range b.hosts {
			partitions, err := b.lister.ReadPartitions(ctx, host, topic)
			if err != nil {
				lastErr = err
				continue
			}
			if len(partitions) > 0 {
				return nil
			}
			lastErr = nil
			break
		}

		if attempt == topologyAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.wait):
		}
	}

	if lastErr != nil {
		return errors.Wrapf(lastErr, "Broker.waitForTopic: topic %s unavailable", topic)
	}
	return domain.UnknownTopicError{Topic: topic}
}

// Deliver sends one message to the topic, keyed by the document's
// identity, with the serialized document as value. The producer requires
// acknowledgment from at least one broker within the ack timeout.
func (b *Broker) Deliver(ctx context.Context, doc *daas.Document, topic string) error {
	if err := b.waitForTopic(ctx, topic); err != nil {
		return err
	}

	serialized, err := doc.Serialize()
	if err != nil {
		return errors.Wrap(err, "Broker.Deliver: could not serialize the document")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(b.hosts...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: ackTimeout,
	}
	defer writer.Close()

	err = writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(doc.ID),
		Value: serialized,
	})
	if err != nil {
		return errors.Wrapf(err, "Broker.Deliver: could not deliver document %s to topic %s", doc.ID, topic)
	}

	return nil
}
