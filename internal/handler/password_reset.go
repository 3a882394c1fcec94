package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/basylab/balug/internal/ctxkeys"
	"github.com/basylab/balug/internal/model"
	"github.com/basylab/balug/internal/service"
	"github.com/basylab/balug/internal/validation"
)

const maxBodyBytes = 4 << 10

// PasswordResetService is the part of service.PasswordResetService the HTTP
// layer needs.
type PasswordResetService interface {
	ValidateEmail(ctx context.Context, email string) (*model.ResetAccount, error)
	Status(ctx context.Context, email string) (*model.ResetStatus, error)
	Resend(ctx context.Context, email string) (*model.ResendResult, error)
	Verify(ctx context.Context, email, code string) error
	Confirm(ctx context.Context, email, code, newPassword string) error
}

type passwordResetHandler struct {
	resetService PasswordResetService
}

func NewPasswordResetHandler(resetService PasswordResetService) *passwordResetHandler {
	return &passwordResetHandler{
		resetService: resetService,
	}
}

type resetRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"newPassword"`
}

type errorResponse struct {
	Error             string `json:"error"`
	Code              string `json:"code"`
	RetryAfter        int    `json:"retryAfter,omitempty"`
	RemainingAttempts *int   `json:"remainingAttempts,omitempty"`
}

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func (h *passwordResetHandler) ValidateEmail(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeResetRequest(w, r, false)
	if !ok {
		return
	}

	account, err := h.resetService.ValidateEmail(r.Context(), req.Email)
	if err != nil {
		writeResetError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, account)
}

func (h *passwordResetHandler) Status(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeResetRequest(w, r, false)
	if !ok {
		return
	}

	status, err := h.resetService.Status(r.Context(), req.Email)
	if err != nil {
		writeResetError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func (h *passwordResetHandler) Resend(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeResetRequest(w, r, false)
	if !ok {
		return
	}

	result, err := h.resetService.Resend(r.Context(), req.Email)
	if err != nil {
		writeResetError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *passwordResetHandler) Verify(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeResetRequest(w, r, true)
	if !ok {
		return
	}

	err := h.resetService.Verify(r.Context(), req.Email, req.Code)
	if err != nil {
		writeResetError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (h *passwordResetHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeResetRequest(w, r, true)
	if !ok {
		return
	}

	if req.NewPassword == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "new password is required", Code: "VALIDATION_ERROR"})
		return
	}

	err := h.resetService.Confirm(r.Context(), req.Email, req.Code, req.NewPassword)
	if err != nil {
		writeResetError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{
		Success: true,
		Message: "Password changed. You can now sign in with your new password.",
	})
}

func decodeResetRequest(w http.ResponseWriter, r *http.Request, needCode bool) (*resetRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req resetRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body", Code: "VALIDATION_ERROR"})
		return nil, false
	}

	req.Email = strings.TrimSpace(req.Email)
	err = validation.ValidateEmail(req.Email)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "VALIDATION_ERROR"})
		return nil, false
	}

	req.Code = strings.TrimSpace(req.Code)
	if needCode {
		err = validation.ValidateResetCode(req.Code)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "VALIDATION_ERROR"})
			return nil, false
		}
	}

	return &req, true
}

// writeResetError maps service errors to HTTP responses
func writeResetError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL_ERROR"
	switch {
	case errors.Is(err, service.ErrAccountNotFound):
		status, code = http.StatusNotFound, "ACCOUNT_NOT_FOUND"
	case errors.Is(err, service.ErrVerificationRequired):
		status, code = http.StatusForbidden, "EMAIL_NOT_VERIFIED"
	case errors.Is(err, service.ErrTooManyAttempts):
		status, code = http.StatusTooManyRequests, "TOO_MANY_ATTEMPTS"
	case errors.Is(err, service.ErrNotificationFailed):
		status, code = http.StatusBadGateway, "EMAIL_SEND_FAILED"
	case errors.Is(err, service.ErrInvalidCode):
		status, code = http.StatusBadRequest, "INVALID_CODE"
	case errors.Is(err, service.ErrCodeNotFound):
		status, code = http.StatusBadRequest, "CODE_NOT_FOUND"
	case errors.Is(err, service.ErrWeakPassword):
		status, code = http.StatusBadRequest, "WEAK_PASSWORD"
	case errors.Is(err, service.ErrResetConflict):
		status, code = http.StatusConflict, "CONFLICT"
	}

	resp := errorResponse{Error: err.Error(), Code: code}

	var resetErr *service.ResetError
	if errors.As(err, &resetErr) {
		if resetErr.RetryAfter > 0 {
			seconds := int(math.Ceil(resetErr.RetryAfter.Seconds()))
			resp.RetryAfter = seconds
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
		}
		// A spent code is the only refusal without a retry time.
		spent := resetErr.Kind == service.ErrTooManyAttempts && resetErr.RetryAfter == 0
		if resetErr.Kind == service.ErrInvalidCode || resetErr.RemainingAttempts > 0 || spent {
			remaining := resetErr.RemainingAttempts
			resp.RemainingAttempts = &remaining
		}
	}

	if status == http.StatusInternalServerError {
		slog.Error("password reset request failed", "error", err, "path", r.URL.Path, "request_id", ctxkeys.RequestID(r.Context()))
		resp.Error = "internal server error"
	}
	if status == http.StatusBadGateway {
		resp.Error = service.ErrNotificationFailed.Error()
	}

	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
