package daas

import (
	"bytes"
	"errors"
	"testing"
)

func getAgreements() []UsageAgreement {
	return []UsageAgreement{
		NewUsageAgreement("billing", "https://dua.org/agreements/v1/billing.pdf", 1553988607),
	}
}

func getDocument(t *testing.T) *Document {
	t.Helper()

	id := MakeID("order", "clothing", "iStore", 5000)
	doc, err := NewDocument("iStore", 5000, "order", "clothing", "istore_app", getAgreements(), NewProvenanceChain(id), []byte(`{"status":"new"}`))
	if err != nil {
		t.Fatalf("failed to build the document: %v", err)
	}
	return doc
}

func TestMakeID(t *testing.T) {
	id := MakeID("order", "clothing", "iStore", 5000)
	if id != "order~clothing~iStore~5000" {
		t.Fatalf("unexpected id %s", id)
	}
}

func TestNewDocument(t *testing.T) {
	doc := getDocument(t)

	if doc.ID != "order~clothing~iStore~5000" {
		t.Fatalf("unexpected id %s", doc.ID)
	}
	if doc.Revision != nil {
		t.Fatalf("expected no revision on an unpersisted document")
	}
	if doc.ProcessInd {
		t.Fatalf("expected process_ind false on a fresh document")
	}
	if doc.SourceName != "iStore" || doc.SourceUID != 5000 {
		t.Fatalf("unexpected source identity %s/%d", doc.SourceName, doc.SourceUID)
	}
	if doc.LastUpdated == 0 {
		t.Fatalf("expected last_updated to be set")
	}
}

func TestNewDocumentRejectsDelimiter(t *testing.T) {
	_, err := NewDocument("i~Store", 5000, "order", "clothing", "istore_app", getAgreements(), ProvenanceChain{}, nil)
	if err == nil {
		t.Fatalf("expected an identity component with the delimiter to be rejected")
	}

	var invalid InvalidIdentityError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidIdentityError, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	doc := getDocument(t)

	validated, err := doc.Validate()
	if err != nil {
		t.Fatalf("expected a consistent chain to validate: %v", err)
	}
	if validated != doc {
		t.Fatalf("expected the document to be returned unchanged")
	}
}

func TestValidateTampered(t *testing.T) {
	doc := getDocument(t)
	doc.DataTracker.Chain[0].Hash = "00000000000000000000000000000000"

	_, err := doc.Validate()
	if err == nil {
		t.Fatalf("expected a tampered chain to fail validation")
	}

	var tampered TamperedDataError
	if !errors.As(err, &tampered) {
		t.Fatalf("expected TamperedDataError, got %v", err)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	doc := getDocument(t)
	doc.AddMeta("content-type", "application/json")
	doc.AddTag("foo")

	// binary payload must survive byte for byte
	doc.DataObj = []byte{0x00, 0xff, 0x10, 0x80, 0x7f}

	serialized, err := doc.Serialize()
	if err != nil {
		t.Fatalf("failed to serialize: %v", err)
	}

	restored, err := FromSerialized(serialized)
	if err != nil {
		t.Fatalf("failed to deserialize: %v", err)
	}

	if restored.ID != doc.ID {
		t.Fatalf("id changed across the round trip: %s", restored.ID)
	}
	if restored.Revision != nil {
		t.Fatalf("expected no revision after the round trip")
	}
	if !bytes.Equal(restored.DataObj, doc.DataObj) {
		t.Fatalf("payload changed across the round trip: %v", restored.DataObj)
	}
	if restored.GetMeta("content-type") != "application/json" {
		t.Fatalf("metadata lost across the round trip")
	}
	if !restored.HasTag("foo") {
		t.Fatalf("tags lost across the round trip")
	}
	if restored.DataUsageAgreements[0].AgreementName != "billing" {
		t.Fatalf("agreements lost across the round trip")
	}
	if !restored.DataTracker.Verify() {
		t.Fatalf("provenance chain broken across the round trip")
	}
}

func TestFromSerializedRejectsMissingID(t *testing.T) {
	if _, err := FromSerialized([]byte(`{}`)); err == nil {
		t.Fatalf("expected a form without an id to be rejected")
	}
	if _, err := FromSerialized([]byte(`{"author":"istore_app"}`)); err == nil {
		t.Fatalf("expected a form without an id to be rejected")
	}
}

func TestSerializeWithoutRev(t *testing.T) {
	doc := getDocument(t)
	rev := "3"
	doc.Revision = &rev

	serialized, err := doc.SerializeWithoutRev()
	if err != nil {
		t.Fatalf("failed to serialize: %v", err)
	}
	if bytes.Contains(serialized, []byte(`"_rev"`)) {
		t.Fatalf("expected _rev to be omitted: %s", serialized)
	}
}

func TestTagging(t *testing.T) {
	doc := getDocument(t)
	doc.AddTag("foo")
	doc.AddTag("bar")

	if len(doc.GetTags()) != 2 {
		t.Fatalf("expected 2 tags, got %d", len(doc.GetTags()))
	}
	if !doc.HasTag("foo") || doc.HasTag("me") {
		t.Fatalf("unexpected tag membership")
	}
}

func TestMetadata(t *testing.T) {
	doc := getDocument(t)
	doc.AddMeta("foo", "bar")

	if doc.GetMeta("foo") != "bar" {
		t.Fatalf("unexpected metadata value %s", doc.GetMeta("foo"))
	}
	if doc.GetMeta("absent") != "" {
		t.Fatalf("expected empty string for an absent key")
	}
}

func TestAgreementRoundTrip(t *testing.T) {
	agreement := NewUsageAgreement("billing", "www.dua.org/billing.pdf", 1553988607)

	serialized, err := agreement.Serialize()
	if err != nil {
		t.Fatalf("failed to serialize: %v", err)
	}

	restored, err := AgreementFromSerialized(serialized)
	if err != nil {
		t.Fatalf("failed to deserialize: %v", err)
	}
	if restored != agreement {
		t.Fatalf("agreement changed across the round trip: %+v", restored)
	}
}
