package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-pkgz/lgr"

	"github.com/andrey/invoice-pipeline/internal/pipeline"
)

// VerifyHandler exposes the verifyInvoice query over HTTP.
type VerifyHandler struct {
	kernel *pipeline.Kernel
	logger lgr.L
}

// NewVerifyHandler builds a VerifyHandler over a wired Kernel.
func NewVerifyHandler(kernel *pipeline.Kernel, logger lgr.L) *VerifyHandler {
	return &VerifyHandler{kernel: kernel, logger: logger}
}

type verifyResponse struct {
	InvoiceID    int64    `json:"invoiceId"`
	Status       string   `json:"status"`
	CID          string   `json:"cid,omitempty"`
	BatchID      string   `json:"batchId,omitempty"`
	MerkleRoot   string   `json:"merkleRoot,omitempty"`
	LocallyValid bool     `json:"locallyValid"`
	OnChainValid *bool    `json:"onChainValid,omitempty"`
	MerkleProof  []string `json:"merkleProof,omitempty"`
}

// HandleVerifyInvoice handles GET /api/invoices/{id}/verify.
func (h *VerifyHandler) HandleVerifyInvoice(w http.ResponseWriter, r *http.Request) {
	idStr := r.PathValue("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeErrorResponse(w, err, "invalid invoice id")
		return
	}

	result, err := h.kernel.VerifyInvoice(r.Context(), id)
	if err != nil {
		h.logger.Logf("ERROR api: verify invoice %d: %v", id, err)
		writeErrorResponse(w, err, "failed to verify invoice")
		return
	}

	resp := verifyResponse{
		InvoiceID:    result.Invoice.ID,
		Status:       result.Invoice.Status.String(),
		LocallyValid: result.LocallyValid,
		OnChainValid: result.OnChainValid,
		MerkleProof:  result.Invoice.MerkleProof,
	}
	if result.Invoice.CID != nil {
		resp.CID = *result.Invoice.CID
	}
	if result.Batch != nil {
		resp.BatchID = result.Batch.BatchID
		if result.Batch.MerkleRoot != nil {
			resp.MerkleRoot = *result.Batch.MerkleRoot
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}
