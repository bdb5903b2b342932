package daas

import "encoding/json"

// UsageAgreement is a declared consent/licensing term that must accompany
// a document's data. Every document carries at least one.
type UsageAgreement struct {
	AgreementName string `json:"agreement_name"`
	Location      string `json:"location"`
	AgreedDTM     uint64 `json:"agreed_dtm"`
}

// NewUsageAgreement constructs a usage agreement.
func NewUsageAgreement(name, location string, agreedDTM uint64) UsageAgreement {
	return UsageAgreement{
		AgreementName: name,
		Location:      location,
		AgreedDTM:     agreedDTM,
	}
}

// Serialize returns the wire form of the agreement.
func (a UsageAgreement) Serialize() ([]byte, error) {
	return json.Marshal(a)
}

// AgreementFromSerialized reconstructs a usage agreement from its wire form.
func AgreementFromSerialized(serialized []byte) (UsageAgreement, error) {
	var a UsageAgreement
	err := json.Unmarshal(serialized, &a)
	return a, err
}
