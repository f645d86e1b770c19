package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-pkgz/lgr"

	"github.com/andrey/invoice-pipeline/internal/pipeline"
)

// JobsHandler exposes manual triggers for the three pipeline jobs plus
// the stale-claim sweep, on demand rather than waiting for the next
// scheduled tick. The three jobs read forceRun/dryRun query parameters;
// the sweep reads dryRun only.
type JobsHandler struct {
	kernel *pipeline.Kernel
	logger lgr.L
}

// NewJobsHandler builds a JobsHandler over a wired Kernel.
func NewJobsHandler(kernel *pipeline.Kernel, logger lgr.L) *JobsHandler {
	return &JobsHandler{kernel: kernel, logger: logger}
}

type jobRunFunc func(ctx context.Context, forceRun, dryRun bool) (*pipeline.Outcome, error)

// HandleTriggerUpload runs UploadToIpfsJob on demand.
func (h *JobsHandler) HandleTriggerUpload(w http.ResponseWriter, r *http.Request) {
	h.runJob(w, r, "upload", h.kernel.UploadToIpfsJob)
}

// HandleTriggerBatch runs CreateBatchJob on demand.
func (h *JobsHandler) HandleTriggerBatch(w http.ResponseWriter, r *http.Request) {
	h.runJob(w, r, "create-batch", h.kernel.CreateBatchJob)
}

// HandleTriggerSubmit runs SubmitToBlockchainJob (including the
// confirmation poller) on demand.
func (h *JobsHandler) HandleTriggerSubmit(w http.ResponseWriter, r *http.Request) {
	h.runJob(w, r, "submit", h.kernel.SubmitToBlockchainJob)
}

// HandleTriggerSweep runs the stale-claim sweep on demand.
func (h *JobsHandler) HandleTriggerSweep(w http.ResponseWriter, r *http.Request) {
	dryRun := r.URL.Query().Get("dryRun") == "true"
	outcome, err := h.kernel.StaleClaimSweepJob(r.Context(), dryRun)
	h.writeOutcome(w, "sweep", outcome, err)
}

// HandleFinalizeBatch moves a confirmed batch's invoices to Finalized.
// This is an administrator action, not one of the three recurring jobs.
func (h *JobsHandler) HandleFinalizeBatch(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeErrorResponse(w, err, "invalid batch id")
		return
	}
	if err := h.kernel.FinalizeBatch(r.Context(), id); err != nil {
		h.logger.Logf("ERROR api: finalize batch %d: %v", id, err)
		writeErrorResponse(w, err, "finalize failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{"batchId": id, "status": "finalized"})
}

func (h *JobsHandler) runJob(w http.ResponseWriter, r *http.Request, name string, run jobRunFunc) {
	forceRun := r.URL.Query().Get("forceRun") == "true"
	dryRun := r.URL.Query().Get("dryRun") == "true"

	h.logger.Logf("INFO api: triggering %s job (forceRun=%v dryRun=%v)", name, forceRun, dryRun)
	outcome, err := run(r.Context(), forceRun, dryRun)
	h.writeOutcome(w, name, outcome, err)
}

func (h *JobsHandler) writeOutcome(w http.ResponseWriter, name string, outcome *pipeline.Outcome, err error) {
	if err != nil {
		h.logger.Logf("ERROR api: %s job failed: %v", name, err)
		writeErrorResponse(w, err, "job failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"job":     name,
		"success": outcome.SuccessCount,
		"failure": outcome.FailureCount,
		"skipped": outcome.SkippedCount,
	})
}
