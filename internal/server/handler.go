package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gourdian25/gourdianauth"
	"github.com/gourdian25/gourdianauth/internal/users"
)

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	login := strings.TrimSpace(req.Login)
	if login == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "login and password are required")
		return
	}

	ctx := r.Context()
	principal, err := h.auth.Authenticate(ctx, login, req.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid login or password")
			return
		}
		h.log.Error("auth.login.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	pair, err := h.tokens.IssueInitialPair(ctx, principal)
	if err != nil {
		h.log.Error("auth.login.issue.fail", "user_id", principal.ID.String(), "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.setRefreshCookie(w, pair.Refresh.Token, pair.Refresh.ExpiresAt)
	writeJSON(w, http.StatusOK, toTokenResponse(pair, principal))
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	refreshToken, ok := h.refreshTokenFromCookie(r)
	if !ok {
		h.rejectRefresh(w, "missing refresh token")
		return
	}

	ctx := r.Context()
	ownerID, err := h.tokens.SessionOwner(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, gourdianauth.ErrRotationFailed) {
			h.rejectRefresh(w, "session not active")
			return
		}
		h.log.Error("auth.refresh.lookup.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	principal, err := h.auth.Principal(ctx, ownerID)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			// The account is gone; the session must not outlive it.
			if err := h.tokens.Logout(ctx, refreshToken); err != nil {
				h.log.Error("auth.refresh.logout.fail", "err", err)
			}
			h.rejectRefresh(w, "session not active")
			return
		}
		h.log.Error("auth.refresh.reload.fail", "user_id", ownerID.String(), "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	pair, err := h.tokens.Rotate(ctx, refreshToken, principal)
	if err != nil {
		switch {
		case errors.Is(err, gourdianauth.ErrRotationFailed), errors.Is(err, gourdianauth.ErrIdentityMismatch):
			h.rejectRefresh(w, "session not active")
		default:
			h.log.Error("auth.refresh.fail", "user_id", principal.ID.String(), "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.setRefreshCookie(w, pair.Refresh.Token, pair.Refresh.ExpiresAt)
	writeJSON(w, http.StatusOK, toTokenResponse(pair, principal))
}

func (h *Handler) rejectRefresh(w http.ResponseWriter, msg string) {
	h.clearRefreshCookie(w)
	writeError(w, http.StatusUnauthorized, "session_not_active", msg)
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	claims, err := h.tokens.VerifyClaims(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
		return
	}

	writeJSON(w, http.StatusOK, validateResponse{
		UserID:    claims.PrincipalID.String(),
		Login:     claims.Subject,
		Role:      claims.Role,
		ExpiresAt: claims.ExpiresAt,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if refreshToken, ok := h.refreshTokenFromCookie(r); ok {
		if err := h.tokens.Logout(r.Context(), refreshToken); err != nil {
			h.log.Error("auth.logout.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
	}

	h.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}
