package domain

const (
	AuthorCtxKey = "daas-author"
)

const (
	UsageAgreementHeader  = "Data-Usage-Agreement"
	ProvenanceChainHeader = "Data-Tracker-Chain"
)
