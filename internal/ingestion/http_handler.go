package ingestion

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/nukk-pain/smpain-hr/internal/auth"

	"github.com/google/uuid"
)

const maxUploadBytes = 32 << 20

// Handler exposes the Preview/Confirm flow over HTTP.
type Handler struct {
	coordinator *Coordinator
	mux         *http.ServeMux
}

// NewHTTPHandler mounts the payroll ingestion endpoints.
func NewHTTPHandler(coordinator *Coordinator) http.Handler {
	h := &Handler{coordinator: coordinator, mux: http.NewServeMux()}
	h.mux.HandleFunc("/api/payroll/preview", h.handlePreview)
	h.mux.HandleFunc("/api/payroll/confirm", h.handleConfirm)
	h.mux.HandleFunc("/api/payroll/records", h.handleRecords)
	h.mux.HandleFunc("/api/payroll/history", h.handleHistory)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, fmt.Sprintf("invalid form data: %v", err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Sprintf("file required: %v", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	callerID, err := callerFromForm(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	year, err := strconv.Atoi(strings.TrimSpace(r.FormValue("year")))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid year: %v", err), http.StatusBadRequest)
		return
	}
	month, err := strconv.Atoi(strings.TrimSpace(r.FormValue("month")))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid month: %v", err), http.StatusBadRequest)
		return
	}

	payload, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read file: %v", err), http.StatusBadRequest)
		return
	}

	resp, err := h.coordinator.Preview(r.Context(), PreviewRequest{
		CallerID:             callerID,
		FileName:             header.Filename,
		Year:                 year,
		Month:                month,
		Payload:              payload,
		IncludeRecoveryGuide: r.FormValue("recoveryGuide") != "false",
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	status := http.StatusOK
	if !resp.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, resp)
}

type confirmBody struct {
	CallerID        string `json:"callerId"`
	PreviewToken    string `json:"previewToken"`
	IdempotencyKey  string `json:"idempotencyKey"`
	RollbackPreview bool   `json:"rollbackPreview"`
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body confirmBody
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&body); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	callerID, err := uuid.Parse(strings.TrimSpace(body.CallerID))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid caller id: %v", err), http.StatusBadRequest)
		return
	}
	if err := auth.EnforceCallerScope(r.Context(), callerID); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	resp, err := h.coordinator.Confirm(r.Context(), ConfirmRequest{
		CallerID:        callerID,
		PreviewToken:    body.PreviewToken,
		IdempotencyKey:  body.IdempotencyKey,
		RollbackPreview: body.RollbackPreview,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, confirmStatus(resp), resp)
}

// confirmStatus maps a confirm outcome onto an HTTP status. Failed
// domain outcomes are still well-formed JSON responses, not bare errors.
func confirmStatus(resp *ConfirmResponse) int {
	if resp.Success {
		return http.StatusOK
	}
	switch resp.ErrorType {
	case ErrTypeTokenInvalid, ErrTypeTokenExpired:
		return http.StatusUnauthorized
	case ErrTypeNotOwner:
		return http.StatusForbidden
	case ErrTypeSessionExpired:
		return http.StatusGone
	case ErrTypeConfirmInProgress:
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

func (h *Handler) handleRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	year, month, err := periodFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	records, err := h.coordinator.Records(r.Context(), year, month)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	callerID, err := uuid.Parse(strings.TrimSpace(r.URL.Query().Get("callerId")))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid caller id: %v", err), http.StatusBadRequest)
		return
	}
	if err := auth.EnforceCallerScope(r.Context(), callerID); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	year, month, err := periodFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	entries, err := h.coordinator.History(r.Context(), callerID, year, month, limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func periodFromQuery(r *http.Request) (int, int, error) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid year: %v", err)
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month: %v", err)
	}
	return year, month, nil
}

func callerFromForm(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(r.FormValue("callerId"))
	callerID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid caller id: %v", err)
	}
	if err := auth.EnforceCallerScope(r.Context(), callerID); err != nil {
		return uuid.Nil, err
	}
	return callerID, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
