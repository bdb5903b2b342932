package domain

import "fmt"

// NotFoundError represents a missing document or revision.
type NotFoundError struct {
	ID       string
	Revision string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return "document not found"
	}
	if e.Revision == "" {
		return fmt.Sprintf("document %s not found", e.ID)
	}
	return fmt.Sprintf("document %s revision %s not found", e.ID, e.Revision)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing documents.
var ErrNotFound = NotFoundError{}

// StaleRevisionError signals a lost-update race: the caller's revision no
// longer matches the latest persisted one. Callers must re-read before
// retrying.
type StaleRevisionError struct {
	ID     string
	Given  string
	Latest string
}

func (e StaleRevisionError) Error() string {
	if e.ID == "" {
		return "stale document revision"
	}
	return fmt.Sprintf("stale revision %s for document %s (latest is %s)", e.Given, e.ID, e.Latest)
}

// Is enables errors.Is matching on StaleRevisionError.
func (e StaleRevisionError) Is(target error) bool {
	_, ok := target.(StaleRevisionError)
	if ok {
		return true
	}
	_, ok = target.(*StaleRevisionError)
	return ok
}

// ErrStaleRevision is the sentinel error for optimistic-concurrency
// failures.
var ErrStaleRevision = StaleRevisionError{}

// MissingAgreementError indicates a document submitted without any usage
// agreement.
type MissingAgreementError struct {
	ID string
}

func (e MissingAgreementError) Error() string {
	if e.ID == "" {
		return "missing usage agreement"
	}
	return fmt.Sprintf("document %s carries no usage agreement", e.ID)
}

// Is enables errors.Is matching on MissingAgreementError.
func (e MissingAgreementError) Is(target error) bool {
	_, ok := target.(MissingAgreementError)
	if ok {
		return true
	}
	_, ok = target.(*MissingAgreementError)
	return ok
}

// ErrMissingAgreement is the sentinel error for the at-least-one-agreement
// business rule.
var ErrMissingAgreement = MissingAgreementError{}

// UnknownTopicError indicates a broker topic that reported no partitions
// after the bounded topology wait.
type UnknownTopicError struct {
	Topic string
}

func (e UnknownTopicError) Error() string {
	if e.Topic == "" {
		return "unknown broker topic"
	}
	return fmt.Sprintf("topic %s reported no partitions", e.Topic)
}

// Is enables errors.Is matching on UnknownTopicError.
func (e UnknownTopicError) Is(target error) bool {
	_, ok := target.(UnknownTopicError)
	if ok {
		return true
	}
	_, ok = target.(*UnknownTopicError)
	return ok
}

// ErrUnknownTopic is the sentinel error for unavailable topics.
var ErrUnknownTopic = UnknownTopicError{}

// MissingAuthorError indicates a request whose author could not be
// resolved by the configured extractor.
type MissingAuthorError struct{}

func (e MissingAuthorError) Error() string {
	return "could not resolve the request author"
}

// ErrMissingAuthor is the sentinel error for author extraction failures.
var ErrMissingAuthor = MissingAuthorError{}
