package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"authcore/cmd/internal/auth/codec"
	"authcore/cmd/internal/auth/session"
)

// Sessions is the part of *session.Service the HTTP layer drives.
type Sessions interface {
	Login(ctx context.Context, identifier, password string) (session.Grant, error)
	Register(ctx context.Context, in session.RegisterInput) (session.Grant, error)
	Refresh(ctx context.Context, refreshToken string) (session.Grant, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, ownerID string) error
	ChangePassword(ctx context.Context, ownerID, current, next string) error
	Authenticate(ctx context.Context, accessToken string) (codec.Claims, error)
	ValidateToken(ctx context.Context, accessToken string) bool
	ListActiveSessions(ctx context.Context, ownerID string) ([]session.SessionView, error)
	RevokeSession(ctx context.Context, ownerID, tokenID string) error
	DisableAccount(ctx context.Context, ownerID string) error
	Profile(ctx context.Context, ownerID string) (session.PublicUser, error)
}

// Handler wires HTTP auth endpoints to the session service.
type Handler struct {
	log      *slog.Logger
	cfg      Config
	sessions Sessions
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, sessions Sessions) (*Handler, error) {
	if sessions == nil {
		return nil, errors.New("auth: nil session service")
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}
	return &Handler{log: log, cfg: cfg, sessions: sessions}, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("POST /auth/login", h.handleLogin)
	mux.HandleFunc("POST /auth/register", h.handleRegister)
	mux.HandleFunc("POST /auth/refresh", h.handleRefresh)
	mux.HandleFunc("POST /auth/logout", h.handleLogout)
	mux.HandleFunc("POST /auth/logout_all", h.RequireAuth(h.handleLogoutAll))
	mux.HandleFunc("POST /auth/password", h.RequireAuth(h.handleChangePassword))
	mux.HandleFunc("GET /auth/sessions", h.RequireAuth(h.handleListSessions))
	mux.HandleFunc("DELETE /auth/sessions/{id}", h.RequireAuth(h.handleRevokeSession))
	mux.HandleFunc("GET /auth/validate", h.handleValidate)
	mux.HandleFunc("GET /me", h.RequireAuth(h.handleMe))
	mux.HandleFunc("POST /admin/users/{id}/disable", h.RequireAdmin(h.handleDisableUser))
}

// ---- handlers ----

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" {
		identifier = strings.TrimSpace(req.Email)
	}

	ctx := r.Context()
	g, err := h.sessions.Login(ctx, identifier, req.Password)
	if err != nil {
		if session.KindOf(err) == session.KindAuthentication {
			h.audit(ctx, r, "auth.login.failed", "")
		}
		h.writeServiceError(w, "auth.login", err)
		return
	}

	h.audit(ctx, r, "auth.login.success", g.User.ID, slog.String("session_id", g.SessionID))
	writeJSON(w, http.StatusOK, toGrantResponse(g))
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	ctx := r.Context()
	g, err := h.sessions.Register(ctx, session.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		h.writeServiceError(w, "auth.register", err)
		return
	}

	h.audit(ctx, r, "auth.signup", g.User.ID)
	writeJSON(w, http.StatusCreated, toGrantResponse(g))
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}

	g, err := h.sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeServiceError(w, "auth.refresh", err)
		return
	}
	writeJSON(w, http.StatusOK, toGrantResponse(g))
}

// handleLogout answers 204 whether or not the token was known.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	ctx := r.Context()
	if err := h.sessions.Logout(ctx, req.RefreshToken); err != nil {
		h.writeServiceError(w, "auth.logout", err)
		return
	}
	h.audit(ctx, r, "auth.logout", "")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, _ := ClaimsFrom(ctx)

	if err := h.sessions.LogoutAll(ctx, claims.OwnerID); err != nil {
		h.writeServiceError(w, "auth.logout_all", err)
		return
	}
	h.audit(ctx, r, "auth.logout_all", claims.OwnerID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	ctx := r.Context()
	claims, _ := ClaimsFrom(ctx)
	if err := h.sessions.ChangePassword(ctx, claims.OwnerID, req.CurrentPassword, req.NewPassword); err != nil {
		h.writeServiceError(w, "auth.password", err)
		return
	}
	h.audit(ctx, r, "auth.password.changed", claims.OwnerID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, _ := ClaimsFrom(ctx)

	views, err := h.sessions.ListActiveSessions(ctx, claims.OwnerID)
	if err != nil {
		h.writeServiceError(w, "auth.sessions", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionsResponse(views))
}

func (h *Handler) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, _ := ClaimsFrom(ctx)
	id := strings.TrimSpace(r.PathValue("id"))

	if err := h.sessions.RevokeSession(ctx, claims.OwnerID, id); err != nil {
		h.writeServiceError(w, "auth.sessions.revoke", err)
		return
	}
	h.audit(ctx, r, "auth.session.revoked", claims.OwnerID, slog.String("session_id", id))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, validateResponse{Valid: h.sessions.ValidateToken(r.Context(), bearerToken(r))})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, _ := ClaimsFrom(ctx)

	u, err := h.sessions.Profile(ctx, claims.OwnerID)
	if err != nil {
		if session.KindOf(err) == session.KindNotFound {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}
		h.writeServiceError(w, "auth.me", err)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{User: toUserResponse(u)})
}

func (h *Handler) handleDisableUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, _ := ClaimsFrom(ctx)
	target := strings.TrimSpace(r.PathValue("id"))

	if err := h.sessions.DisableAccount(ctx, target); err != nil {
		h.writeServiceError(w, "admin.users.disable", err)
		return
	}
	h.audit(ctx, r, "admin.user.disabled", claims.OwnerID, slog.String("target_user_id", target))
	w.WriteHeader(http.StatusNoContent)
}

// ---- helpers ----

// writeServiceError maps the session error taxonomy onto HTTP. Every
// authentication failure gets the same body.
func (h *Handler) writeServiceError(w http.ResponseWriter, event string, err error) {
	switch session.KindOf(err) {
	case session.KindAuthentication:
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
	case session.KindConflict:
		msg := "already exists"
		var ce session.ConflictError
		if errors.As(err, &ce) && ce.Field != "" {
			msg = ce.Field + " already exists"
		}
		writeError(w, http.StatusConflict, "conflict", msg)
	case session.KindValidation:
		body := errorResponse{Error: apiError{Code: "validation_failed", Message: "invalid input"}}
		var ve session.ValidationError
		if errors.As(err, &ve) {
			body.Error.Violations = ve.Violations
		}
		writeJSON(w, http.StatusUnprocessableEntity, body)
	case session.KindNotFound:
		writeError(w, http.StatusNotFound, "not_found", "not found")
	default:
		h.log.Error(event+".fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}
