package pipeline

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/andrey/invoice-pipeline/internal/domain"
	"github.com/andrey/invoice-pipeline/internal/merkletree"
)

// VerifyResult is the outcome of the verifyInvoice query: whether the
// invoice's CID is provably included in its batch's anchored Merkle
// root, both by local recomputation and, when a chain client is wired,
// by the on-chain verifyInvoiceByCID call.
type VerifyResult struct {
	Invoice      *domain.Invoice
	Batch        *domain.InvoiceBatch
	LocallyValid bool
	OnChainValid *bool // nil when the batch has not yet been anchored
	Metadata     []byte
}

// VerifyInvoice loads an invoice and its batch, recomputes the Merkle
// proof locally, and — when the batch has an anchored root — asks the
// chain client to confirm the same inclusion on-chain.
func (k *Kernel) VerifyInvoice(ctx context.Context, invoiceID int64) (*VerifyResult, error) {
	inv, err := k.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	result := &VerifyResult{Invoice: inv}
	if inv.CID == nil || *inv.CID == "" || inv.BatchID == nil {
		return result, nil
	}

	batch, err := k.batches.GetByID(ctx, *inv.BatchID)
	if err != nil {
		return nil, err
	}
	result.Batch = batch

	if batch.MerkleRoot == nil {
		return result, nil
	}

	result.LocallyValid, err = merkletree.VerifyHex(*inv.CID, inv.MerkleProof, *batch.MerkleRoot)
	if err != nil {
		return nil, fmt.Errorf("pipeline: verify merkle proof locally: %w", err)
	}

	if batch.TxHash != nil && k.chain != nil {
		onChain, err := k.verifyOnChain(ctx, inv, batch)
		if err != nil {
			k.log.Logf("WARN pipeline: on-chain verify invoice %d: %v", invoiceID, err)
		} else {
			result.OnChainValid = &onChain
		}
	}

	if k.ipfs != nil {
		body, err := k.ipfs.GetJSON(ctx, *inv.CID)
		if err != nil {
			k.log.Logf("WARN pipeline: fetch metadata for invoice %d: %v", invoiceID, err)
		} else {
			result.Metadata = body
		}
	}

	return result, nil
}

func (k *Kernel) verifyOnChain(ctx context.Context, inv *domain.Invoice, batch *domain.InvoiceBatch) (bool, error) {
	root, err := decodeRoot(*batch.MerkleRoot)
	if err != nil {
		return false, err
	}
	proof := make([][32]byte, len(inv.MerkleProof))
	for i, p := range inv.MerkleProof {
		h, err := decodeProofElement(p)
		if err != nil {
			return false, err
		}
		proof[i] = h
	}
	return k.chain.VerifyInvoiceByCID(ctx, root, *inv.CID, proof)
}

func decodeProofElement(s string) ([32]byte, error) {
	var out [32]byte
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, fmt.Errorf("pipeline: proof element must decode to 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}
