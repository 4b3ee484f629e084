package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/Stewz00/go-auth-service/internal/middleware"
	"github.com/Stewz00/go-auth-service/internal/model"
	"github.com/Stewz00/go-auth-service/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/samber/oops"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type AuthHandler struct {
	authService *service.AuthService
	logger      *slog.Logger
}

func NewAuthHandler(authService *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// Routes mounts the auth endpoints. Mount the result under /api/auth.
func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/forgot-password", h.ForgotPassword)
	r.Post("/reset-password", h.ResetPassword)
	r.Post("/unlock-account", h.UnlockAccount)
	r.Get("/status/{email}", h.GetAccountStatus)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(h.authService))
		r.Get("/me", h.Me)
	})
	return r
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type EmailRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email"`
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type RegisterResponse struct {
	MessageResponse
	User model.Profile `json:"user"`
}

type LoginResponse struct {
	MessageResponse
	Token string                `json:"token"`
	User  model.SessionIdentity `json:"user"`
}

type ForgotPasswordResponse struct {
	MessageResponse
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type ErrorResponse struct {
	Error     string     `json:"error"`
	Message   string     `json:"message"`
	LockUntil *time.Time `json:"lockUntil,omitempty"`
}

// Register handles user registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	if resp, ok := validate(service.KindMissingFields,
		field{"email", req.Email, true},
		field{"password", req.Password, false},
		field{"name", req.Name, false},
	); !ok {
		sendJSONError(w, http.StatusBadRequest, resp)
		return
	}

	profile, err := h.authService.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		h.sendServiceError(w, r, err, false)
		return
	}

	sendJSON(w, http.StatusCreated, RegisterResponse{
		MessageResponse: MessageResponse{Success: true, Message: "User registered successfully"},
		User:            profile,
	})
}

// Login handles user authentication and returns a JWT token
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decode(w, r, &req) {
		return
	}
	if resp, ok := validate(service.KindMissingFields, field{"email", req.Email, true}, field{"password", req.Password, false}); !ok {
		sendJSONError(w, http.StatusBadRequest, resp)
		return
	}

	result, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.sendServiceError(w, r, err, false)
		return
	}

	sendJSON(w, http.StatusOK, LoginResponse{
		MessageResponse: MessageResponse{Success: true, Message: "Login successful"},
		Token:           result.Token,
		User:            model.SessionIdentity{Identity: result.Identity, DisplayName: result.DisplayName},
	})
}

// ForgotPassword issues a reset token. Delivery is not handled here, so the
// token goes back in the response body.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !decode(w, r, &req) {
		return
	}
	if resp, ok := validate(service.KindMissingIdentity, field{"email", req.Email, true}); !ok {
		sendJSONError(w, http.StatusBadRequest, resp)
		return
	}

	issued, err := h.authService.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		h.sendServiceError(w, r, err, false)
		return
	}

	sendJSON(w, http.StatusOK, ForgotPasswordResponse{
		MessageResponse: MessageResponse{Success: true, Message: "Password reset token issued"},
		Token:           issued.Token,
		ExpiresAt:       issued.ExpiresAt,
	})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if resp, ok := validate(service.KindMissingFields,
		field{"email", req.Email, true},
		field{"token", req.Token, false},
		field{"newPassword", req.NewPassword, false},
	); !ok {
		sendJSONError(w, http.StatusBadRequest, resp)
		return
	}

	if err := h.authService.ResetPassword(r.Context(), req.Email, req.Token, req.NewPassword); err != nil {
		h.sendServiceError(w, r, err, true)
		return
	}

	sendJSON(w, http.StatusOK, MessageResponse{Success: true, Message: "Password reset successfully"})
}

func (h *AuthHandler) UnlockAccount(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !decode(w, r, &req) {
		return
	}
	if resp, ok := validate(service.KindMissingIdentity, field{"email", req.Email, true}); !ok {
		sendJSONError(w, http.StatusBadRequest, resp)
		return
	}

	if err := h.authService.UnlockAccount(r.Context(), req.Email); err != nil {
		h.sendServiceError(w, r, err, false)
		return
	}

	sendJSON(w, http.StatusOK, MessageResponse{Success: true, Message: "Account unlocked successfully"})
}

func (h *AuthHandler) GetAccountStatus(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	if !emailPattern.MatchString(email) {
		sendJSONError(w, http.StatusBadRequest, ErrorResponse{Error: "InvalidEmail", Message: "invalid email format"})
		return
	}

	status, err := h.authService.GetAccountStatus(r.Context(), email)
	if err != nil {
		h.sendServiceError(w, r, err, false)
		return
	}

	sendJSON(w, http.StatusOK, status)
}

// Me returns the identity behind the bearer token.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	who, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		sendJSONError(w, http.StatusUnauthorized, ErrorResponse{Error: service.KindInvalidToken.String(), Message: "invalid token"})
		return
	}
	sendJSON(w, http.StatusOK, who)
}

// StatusFor maps a failure kind to an HTTP status. resetFlow selects the
// reset-token meaning of the token kinds.
func StatusFor(kind service.Kind, resetFlow bool) int {
	switch kind {
	case service.KindMissingFields, service.KindMissingIdentity, service.KindTooShortPassword, service.KindNotLocked:
		return http.StatusBadRequest
	case service.KindInvalidCredentials:
		return http.StatusUnauthorized
	case service.KindAccountLocked:
		return http.StatusLocked
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindDuplicateIdentity:
		return http.StatusConflict
	case service.KindNoToken, service.KindExpiredToken:
		return http.StatusNotFound
	case service.KindInvalidToken:
		if resetFlow {
			return http.StatusNotFound
		}
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (h *AuthHandler) sendServiceError(w http.ResponseWriter, r *http.Request, err error, resetFlow bool) {
	kind := service.KindOf(err)
	code := StatusFor(kind, resetFlow)

	if code == http.StatusInternalServerError {
		h.logError(r, err)
		sendJSONError(w, code, ErrorResponse{Error: service.KindInternal.String(), Message: "internal server error"})
		return
	}

	resp := ErrorResponse{Error: kind.String(), Message: err.Error()}
	if lockUntil, ok := service.LockUntilOf(err); ok {
		resp.LockUntil = &lockUntil
	}
	sendJSONError(w, code, resp)
}

func (h *AuthHandler) logError(r *http.Request, err error) {
	attrs := []any{"path", r.URL.Path, "error", err.Error()}
	if oopsErr, ok := oops.AsOops(err); ok {
		if code := oopsErr.Code(); code != nil {
			attrs = append(attrs, "code", code)
		}
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			attrs = append(attrs, "context", ctx)
		}
	}
	h.logger.ErrorContext(r.Context(), "request failed", attrs...)
}

type field struct {
	name  string
	value string
	email bool
}

// validate checks that every field is a non-blank string and that email
// fields look like addresses. missingKind names the error for blank fields.
func validate(missingKind service.Kind, fields ...field) (ErrorResponse, bool) {
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return ErrorResponse{Error: missingKind.String(), Message: strings.Join(missing, ", ") + " required"}, false
	}
	for _, f := range fields {
		if f.email && !emailPattern.MatchString(f.value) {
			return ErrorResponse{Error: "InvalidEmail", Message: "invalid email format"}, false
		}
	}
	return ErrorResponse{}, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		sendJSONError(w, http.StatusBadRequest, ErrorResponse{Error: "InvalidBody", Message: "invalid request body"})
		return false
	}
	return true
}

func sendJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// Helper function to send JSON error responses
func sendJSONError(w http.ResponseWriter, code int, resp ErrorResponse) {
	sendJSON(w, code, resp)
}
