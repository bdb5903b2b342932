package daas

import (
	"fmt"
	"time"

	"github.com/zeebo/xxh3"
)

const genesisPreviousHash = "0"

// LinkIdentifier binds a provenance link to a document identity and its
// position in the chain.
type LinkIdentifier struct {
	DataID       string `json:"data_id"`
	Index        uint   `json:"index"`
	Timestamp    uint64 `json:"timestamp"`
	ActorID      string `json:"actor_id"`
	PreviousHash string `json:"previous_hash"`
}

// Link is one step of a document's provenance chain. The hash covers the
// identifier and the nonce, so altering any stored field breaks
// verification of that link and of every link after it.
type Link struct {
	Identifier LinkIdentifier `json:"identifier"`
	Hash       string         `json:"hash"`
	Nonce      uint64         `json:"nonce"`
}

// ProvenanceChain is a tamper-evident hash chain keyed by a document's
// identity, one link per lifecycle step. It is consumed read-only by
// document validation.
type ProvenanceChain struct {
	Chain []Link `json:"chain"`
}

func hashLink(id LinkIdentifier, nonce uint64) string {
	canonical := fmt.Sprintf("%s|%d|%d|%s|%s|%d", id.DataID, id.Index, id.Timestamp, id.ActorID, id.PreviousHash, nonce)
	sum := xxh3.Hash128([]byte(canonical)).Bytes()
	return fmt.Sprintf("%x", sum)
}

func newLink(dataID string, index uint, actorID, previousHash string) Link {
	identifier := LinkIdentifier{
		DataID:       dataID,
		Index:        index,
		Timestamp:    uint64(time.Now().Unix()),
		ActorID:      actorID,
		PreviousHash: previousHash,
	}
	nonce := uint64(index) + 1
	return Link{
		Identifier: identifier,
		Hash:       hashLink(identifier, nonce),
		Nonce:      nonce,
	}
}

// NewProvenanceChain creates a chain holding the genesis link for the
// given document identity.
func NewProvenanceChain(dataID string) ProvenanceChain {
	return ProvenanceChain{
		Chain: []Link{newLink(dataID, 0, "", genesisPreviousHash)},
	}
}

// AddLink appends a lifecycle step performed by the given actor.
func (p *ProvenanceChain) AddLink(actorID string) {
	last := p.Chain[len(p.Chain)-1]
	p.Chain = append(p.Chain, newLink(last.Identifier.DataID, last.Identifier.Index+1, actorID, last.Hash))
}

// Len returns the number of links in the chain.
func (p *ProvenanceChain) Len() int {
	return len(p.Chain)
}

// Verify recomputes every link hash from its stated previous hash and
// payload, in order. It returns false if any stored hash does not
// reproduce, if the previous-hash continuity is broken, or if the chain
// is empty.
func (p *ProvenanceChain) Verify() bool {
	if len(p.Chain) == 0 {
		return false
	}
	for i, link := range p.Chain {
		if hashLink(link.Identifier, link.Nonce) != link.Hash {
			return false
		}
		if i == 0 {
			if link.Identifier.PreviousHash != genesisPreviousHash {
				return false
			}
			continue
		}
		prev := p.Chain[i-1]
		if link.Identifier.PreviousHash != prev.Hash {
			return false
		}
		if link.Identifier.Index != prev.Identifier.Index+1 {
			return false
		}
		if link.Identifier.DataID != prev.Identifier.DataID {
			return false
		}
	}
	return true
}
