package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/brojonat/txconfirm/service/config"
	"github.com/brojonat/txconfirm/service/db"
	"github.com/brojonat/txconfirm/service/program"
	"github.com/brojonat/txconfirm/service/temporal"
	"github.com/brojonat/txconfirm/service/txn"
	solanago "github.com/gagliardetto/solana-go"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB - plenty for a submission request
	maxAddressLength   = 100     // Solana addresses are 44 chars, give buffer
	maxSignatureLength = 100     // signatures are 87-88 chars
	minPollInterval    = 100 * time.Millisecond
	maxPollInterval    = time.Minute
	maxAttemptsLimit   = 1000
	maxListLimit       = 500
)

var (
	// Valid Solana address characters: base58 (no 0, O, I, l)
	validBase58Regex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]+$`)

	validOutcomes = []string{"pending", "confirmed", "execution_failed", "timed_out"}
)

// startSubmissionRequest is the body of POST /api/v1/submissions.
// Zero values fall back to the server configuration.
type startSubmissionRequest struct {
	Program      string `json:"program"`
	PollInterval string `json:"poll_interval,omitempty"`
	MaxAttempts  int    `json:"max_attempts,omitempty"`
	Commitment   string `json:"commitment,omitempty"`
}

// startSubmissionResponse is returned when the workflow was started but not awaited.
type startSubmissionResponse struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
	Program    string `json:"program"`
	ProgramID  string `json:"program_id"`
}

// handleStartSubmission returns a handler that starts a SubmitAndConfirmWorkflow.
// POST /api/v1/submissions[?wait=true]
// With wait=true the response is the workflow result; otherwise 202 with the run IDs.
func handleStartSubmission(starter temporal.Starter, cfg *config.Config, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req startSubmissionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				writeError(w, "request body too large", http.StatusBadRequest)
				return
			}
			writeError(w, "invalid request body", http.StatusBadRequest)
			return
		}

		input, err := submissionInput(req, cfg)
		if err != nil {
			logger.Debug("invalid submission request", "program", req.Program, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		wait := r.URL.Query().Get("wait") == "true"
		if window := input.PollInterval * time.Duration(input.MaxAttempts); wait && window > waitBudget(cfg) {
			writeError(w, fmt.Sprintf("confirmation window %s exceeds the %s limit for wait=true; submit without wait and poll the submission",
				window, waitBudget(cfg)), http.StatusBadRequest)
			return
		}

		run, err := starter.StartSubmission(r.Context(), input)
		if err != nil {
			logger.Error("failed to start submission workflow", "program", input.Program, "error", err)
			writeError(w, "failed to start submission", http.StatusInternalServerError)
			return
		}

		logger.Info("submission workflow started",
			"workflow_id", run.WorkflowID,
			"program", input.Program,
		)

		if !wait {
			writeJSON(w, startSubmissionResponse{
				WorkflowID: run.WorkflowID,
				RunID:      run.RunID,
				Program:    input.Program,
				ProgramID:  input.ProgramID,
			}, http.StatusAccepted)
			return
		}

		result, err := starter.GetSubmissionResult(r.Context(), run.WorkflowID)
		if err != nil {
			logger.Error("submission workflow failed", "workflow_id", run.WorkflowID, "error", err)
			writeError(w, fmt.Sprintf("submission failed: %v", err), http.StatusBadGateway)
			return
		}
		writeJSON(w, result, http.StatusOK)
	})
}

// submissionInput validates the request and fills defaults from cfg.
func submissionInput(req startSubmissionRequest, cfg *config.Config) (temporal.SubmitAndConfirmInput, error) {
	var input temporal.SubmitAndConfirmInput

	if err := validateIdentifier("program", req.Program, maxAddressLength); err != nil {
		return input, err
	}
	p, err := program.Lookup(req.Program)
	if err != nil {
		return input, err
	}
	input.Program = p.Name
	input.ProgramID = p.ID.String()

	input.PollInterval = cfg.ConfirmPollInterval
	if req.PollInterval != "" {
		d, err := time.ParseDuration(req.PollInterval)
		if err != nil {
			return input, errorf("invalid poll_interval: %v", err)
		}
		if err := validatePollInterval(d); err != nil {
			return input, err
		}
		input.PollInterval = d
	}

	input.MaxAttempts = cfg.ConfirmMaxAttempts
	if req.MaxAttempts != 0 {
		if req.MaxAttempts < 0 || req.MaxAttempts > maxAttemptsLimit {
			return input, errorf("max_attempts must be between 1 and %d", maxAttemptsLimit)
		}
		input.MaxAttempts = req.MaxAttempts
	}

	input.Commitment = cfg.ConfirmCommitment
	if req.Commitment != "" {
		input.Commitment = req.Commitment
	}
	if _, err := txn.PredicateFor(input.Commitment); err != nil {
		return input, errorf("invalid commitment: must be 'confirmed' or 'finalized'")
	}

	return input, nil
}

// handleGetSubmission returns a handler that retrieves one recorded submission.
// GET /api/v1/submissions/{signature}
func handleGetSubmission(store SubmissionStore, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signature := r.PathValue("signature")

		if err := validateIdentifier("signature", signature, maxSignatureLength); err != nil {
			logger.Debug("invalid signature", "signature", signature, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		sub, err := store.GetSubmission(r.Context(), signature)
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, "submission not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.Error("failed to get submission", "signature", signature, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, sub, http.StatusOK)
	})
}

// listSubmissionsResponse wraps a page of submissions.
type listSubmissionsResponse struct {
	Submissions []*db.Submission `json:"submissions"`
	Count       int              `json:"count"`
	Limit       int              `json:"limit"`
	Offset      int              `json:"offset"`
}

// handleListSubmissions returns a handler that lists recorded submissions.
// GET /api/v1/submissions?program={program}&outcome={outcome}&limit={limit}&offset={offset}
func handleListSubmissions(store SubmissionStore, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		params := db.ListSubmissionsParams{
			Program: query.Get("program"),
			Outcome: query.Get("outcome"),
		}

		if params.Program != "" {
			p, err := program.Lookup(params.Program)
			if err != nil {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
			params.Program = p.Name
		}

		if params.Outcome != "" && !contains(validOutcomes, params.Outcome) {
			writeError(w, "invalid outcome: must be one of "+strings.Join(validOutcomes, ", "), http.StatusBadRequest)
			return
		}

		limit, err := parseQueryInt(query.Get("limit"), 50)
		if err != nil || limit <= 0 || limit > maxListLimit {
			writeError(w, fmt.Sprintf("invalid limit: must be between 1 and %d", maxListLimit), http.StatusBadRequest)
			return
		}
		offset, err := parseQueryInt(query.Get("offset"), 0)
		if err != nil || offset < 0 {
			writeError(w, "invalid offset: must be a non-negative integer", http.StatusBadRequest)
			return
		}
		params.Limit = int32(limit)
		params.Offset = int32(offset)

		subs, err := store.ListSubmissions(r.Context(), params)
		if err != nil {
			logger.Error("failed to list submissions", "program", params.Program, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if subs == nil {
			subs = []*db.Submission{}
		}

		writeJSON(w, listSubmissionsResponse{
			Submissions: subs,
			Count:       len(subs),
			Limit:       limit,
			Offset:      offset,
		}, http.StatusOK)
	})
}

// signatureStatusResponse is one live status observation.
type signatureStatusResponse struct {
	txn.Observation
	Terminal bool `json:"terminal"`
}

// handleSignatureStatus returns a handler that polls a signature once.
// GET /api/v1/signatures/{signature}
func handleSignatureStatus(status StatusReader, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.PathValue("signature")

		if err := validateIdentifier("signature", raw, maxSignatureLength); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		sig, err := solanago.SignatureFromBase58(raw)
		if err != nil {
			writeError(w, "invalid signature: must be a base58-encoded 64-byte signature", http.StatusBadRequest)
			return
		}

		obs, err := status.Status(r.Context(), sig)
		if err != nil {
			logger.Error("failed to get signature status", "signature", raw, "error", err)
			writeError(w, "failed to query cluster", http.StatusBadGateway)
			return
		}

		writeJSON(w, signatureStatusResponse{Observation: obs, Terminal: obs.Level.Terminal()}, http.StatusOK)
	})
}

// programStatusResponse is the deployment state of a program account.
type programStatusResponse struct {
	Program    string `json:"program"`
	ProgramID  string `json:"program_id"`
	Deployed   bool   `json:"deployed"`
	Executable bool   `json:"executable"`
	Owner      string `json:"owner,omitempty"`
	Lamports   uint64 `json:"lamports"`
}

// handleProgramStatus returns a handler that checks a program deployment.
// GET /api/v1/programs/{program}
// An undeployed program is reported with deployed=false, not as an error.
func handleProgramStatus(accounts program.AccountReader, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("program")

		if err := validateIdentifier("program", name, maxAddressLength); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		p, err := program.Lookup(name)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		info, err := program.VerifyDeployed(r.Context(), accounts, p)
		if err != nil && !errors.Is(err, txn.ErrNotDeployed) {
			logger.Error("failed to check program deployment", "program_id", p.ID.String(), "error", err)
			writeError(w, "failed to query cluster", http.StatusBadGateway)
			return
		}

		resp := programStatusResponse{
			Program:    p.Name,
			ProgramID:  p.ID.String(),
			Deployed:   err == nil,
			Executable: info.Executable,
			Lamports:   info.Lamports,
		}
		if info.Exists {
			resp.Owner = info.Owner.String()
		}
		writeJSON(w, resp, http.StatusOK)
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// validateIdentifier checks a base58 address or signature for length and
// character set before it reaches the store or the cluster.
func validateIdentifier(field, value string, maxLength int) error {
	if value == "" {
		return errorf("%s is required", field)
	}

	if len(value) > maxLength {
		return errorf("%s too long: maximum length is %d characters", field, maxLength)
	}

	// Check for null bytes and control characters
	for _, r := range value {
		if r == 0 || unicode.IsControl(r) {
			return errorf("invalid characters in %s: control characters not allowed", field)
		}
	}

	// Workspace program names are allowed alongside base58 addresses.
	if field == "program" {
		if _, err := program.Lookup(value); err == nil {
			return nil
		}
	}

	if !validBase58Regex.MatchString(value) {
		return errorf("invalid %s format: must contain only valid base58 characters", field)
	}

	return nil
}

// validatePollInterval validates a poll interval for reasonable bounds.
func validatePollInterval(interval time.Duration) error {
	if interval <= 0 {
		return errorf("poll_interval must be positive")
	}

	if interval < minPollInterval {
		return errorf("poll_interval must be at least %v", minPollInterval)
	}

	if interval > maxPollInterval {
		return errorf("poll_interval cannot exceed %v", maxPollInterval)
	}

	return nil
}

func parseQueryInt(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

// errorf is a helper to format error strings.
func errorf(format string, args ...interface{}) error {
	return &validationError{msg: strings.TrimSpace(fmt.Sprintf(format, args...))}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}
