package daas

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Delimiter separates the identity components inside a document id.
// Identity components must never contain it.
const Delimiter = "~"

// Metadata holds free-form key/value annotations about the data object.
type Metadata = map[string]string

// Document is the unit of work: an opaque payload plus its provenance
// and consent metadata. The payload is never parsed by this layer.
type Document struct {
	ID                  string           `json:"_id"`
	Revision            *string          `json:"_rev"`
	SourceName          string           `json:"source_name"`
	SourceUID           uint             `json:"source_uid"`
	Category            string           `json:"category"`
	Subcategory         string           `json:"subcategory"`
	Author              string           `json:"author"`
	ProcessInd          bool             `json:"process_ind"`
	LastUpdated         uint64           `json:"last_updated"`
	DataUsageAgreements []UsageAgreement `json:"data_usage_agreements"`
	DataTracker         ProvenanceChain  `json:"data_tracker"`
	MetaData            Metadata         `json:"meta_data"`
	Tags                []string         `json:"tags"`
	DataObj             []byte           `json:"data_obj"`
}

// InvalidIdentityError indicates an identity component containing the
// reserved delimiter.
type InvalidIdentityError struct {
	Component string
}

func (e InvalidIdentityError) Error() string {
	return fmt.Sprintf("identity component %q contains the reserved delimiter %q", e.Component, Delimiter)
}

// TamperedDataError indicates a document whose provenance chain failed
// the integrity check.
type TamperedDataError struct {
	ID string
}

func (e TamperedDataError) Error() string {
	return fmt.Sprintf("document %s rejected: tampered data detected", e.ID)
}

// MakeID composes the unique identifier from the four identity components.
func MakeID(category, subcategory, sourceName string, sourceUID uint) string {
	return fmt.Sprintf("%s%s%s%s%s%s%d", category, Delimiter, subcategory, Delimiter, sourceName, Delimiter, sourceUID)
}

// NewDocument constructs an unpersisted document. The revision is absent
// and the process indicator is false until the store and broker advance
// them. Identity components containing the delimiter are rejected here
// and never re-validated later.
func NewDocument(sourceName string, sourceUID uint, category, subcategory, author string, agreements []UsageAgreement, tracker ProvenanceChain, data []byte) (*Document, error) {
	for _, component := range []string{category, subcategory, sourceName} {
		if strings.Contains(component, Delimiter) {
			return nil, InvalidIdentityError{Component: component}
		}
	}

	return &Document{
		ID:                  MakeID(category, subcategory, sourceName, sourceUID),
		Revision:            nil,
		SourceName:          sourceName,
		SourceUID:           sourceUID,
		Category:            category,
		Subcategory:         subcategory,
		Author:              author,
		ProcessInd:          false,
		LastUpdated:         uint64(time.Now().Unix()),
		DataUsageAgreements: agreements,
		DataTracker:         tracker,
		MetaData:            Metadata{},
		Tags:                []string{},
		DataObj:             data,
	}, nil
}

// Validate checks the document's provenance chain and returns the
// document unchanged when the chain is internally consistent.
func (d *Document) Validate() (*Document, error) {
	if !d.DataTracker.Verify() {
		return nil, TamperedDataError{ID: d.ID}
	}
	return d, nil
}

// AddMeta sets a metadata entry.
func (d *Document) AddMeta(key, value string) {
	d.MetaData[key] = value
}

// GetMeta returns a metadata entry, or the empty string when absent.
func (d *Document) GetMeta(key string) string {
	return d.MetaData[key]
}

// AddTag appends a tag. Duplicates are allowed.
func (d *Document) AddTag(tag string) {
	d.Tags = append(d.Tags, tag)
}

// GetTags returns the document's tags.
func (d *Document) GetTags() []string {
	return d.Tags
}

// HasTag reports whether the tag is present, by exact match.
func (d *Document) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Serialize returns the canonical wire form of the document. The payload
// round-trips byte for byte.
func (d *Document) Serialize() ([]byte, error) {
	return json.Marshal(d)
}

// SerializeWithoutRev returns the wire form with the revision omitted,
// for callers that compare documents across store writes.
func (d *Document) SerializeWithoutRev() ([]byte, error) {
	type docNoRev struct {
		ID                  string           `json:"_id"`
		SourceName          string           `json:"source_name"`
		SourceUID           uint             `json:"source_uid"`
		Category            string           `json:"category"`
		Subcategory         string           `json:"subcategory"`
		Author              string           `json:"author"`
		ProcessInd          bool             `json:"process_ind"`
		LastUpdated         uint64           `json:"last_updated"`
		DataUsageAgreements []UsageAgreement `json:"data_usage_agreements"`
		DataObj             []byte           `json:"data_obj"`
	}
	return json.Marshal(docNoRev{
		ID:                  d.ID,
		SourceName:          d.SourceName,
		SourceUID:           d.SourceUID,
		Category:            d.Category,
		Subcategory:         d.Subcategory,
		Author:              d.Author,
		ProcessInd:          d.ProcessInd,
		LastUpdated:         d.LastUpdated,
		DataUsageAgreements: d.DataUsageAgreements,
		DataObj:             d.DataObj,
	})
}

// FromSerialized reconstructs a document from its canonical wire form.
// A form carrying no id is rejected: it cannot address a staged revision
// or a blob key.
func FromSerialized(serialized []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(serialized, &doc); err != nil {
		return nil, err
	}
	if doc.ID == "" {
		return nil, fmt.Errorf("serialized form carries no document id")
	}
	if doc.MetaData == nil {
		doc.MetaData = Metadata{}
	}
	if doc.Tags == nil {
		doc.Tags = []string{}
	}
	return &doc, nil
}
