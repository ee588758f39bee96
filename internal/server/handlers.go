package server

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/kindredhq/kindred/internal/config"
	"github.com/kindredhq/kindred/internal/logger"
	"github.com/kindredhq/kindred/internal/oauth"
	"github.com/kindredhq/kindred/internal/utils"
	"go.uber.org/zap"
)

// UserHeader carries the authenticated CRM user. The session layer in front
// of this service is responsible for setting it.
const UserHeader = "X-Kindred-User"

const (
	defaultSuccessURL = "/settings/mail?connected=1"
	defaultErrorURL   = "/settings/mail/error"
)

// Handler exposes the mail credential lifecycle over HTTP.
type Handler struct {
	svc        *oauth.Service
	successURL string
	errorURL   string
}

// NewHandler creates a new Handler instance
func NewHandler(svc *oauth.Service, cfg *config.MailConfig) *Handler {
	successURL := cfg.SuccessURL
	if successURL == "" {
		successURL = defaultSuccessURL
	}
	errorURL := cfg.ErrorURL
	if errorURL == "" {
		errorURL = defaultErrorURL
	}

	return &Handler{
		svc:        svc,
		successURL: successURL,
		errorURL:   errorURL,
	}
}

// RegisterRoutes registers all mail-linking routes
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/mail/connect", h.HandleConnect)
	mux.HandleFunc("/mail/oauth/callback", h.HandleCallback)
	mux.HandleFunc("/mail/status", h.HandleStatus)
	mux.HandleFunc("/mail/connection", h.HandleDisconnect)
}

// HandleConnect starts the authorization flow and sends the user to the
// provider's consent screen.
func (h *Handler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := r.Header.Get(UserHeader)
	if userID == "" {
		utils.WriteError(w, "unauthorized", "Authentication required", http.StatusUnauthorized)
		return
	}

	authURL, err := h.svc.BeginAuthorization(r.Context(), userID)
	if err != nil {
		logger.Error("Failed to begin mail authorization", zap.Error(err))
		utils.WriteError(w, "server_error", "Failed to start authorization", http.StatusInternalServerError)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		utils.WriteJSON(w, map[string]string{"authorization_url": authURL})
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// HandleCallback processes the provider redirect. Exactly one of code or
// error must be present; a provider-reported error short-circuits to the
// error page without touching the lifecycle service.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	state := query.Get("state")
	code := query.Get("code")
	errParam := query.Get("error")

	if state == "" {
		utils.WriteError(w, "invalid_request", "State is required", http.StatusBadRequest)
		return
	}

	if errParam != "" {
		description := query.Get("error_description")
		if description == "" {
			description = errParam
		}
		logger.Warn("Provider reported authorization error", zap.String("error", errParam))
		h.redirectError(w, r, description)
		return
	}

	if code == "" {
		utils.WriteError(w, "invalid_request", "Either code or error must be present", http.StatusBadRequest)
		return
	}

	if _, err := h.svc.CompleteCallback(r.Context(), state, code); err != nil {
		logger.Warn("Mail authorization callback failed", zap.Error(err))
		h.redirectError(w, r, callbackErrorMessage(err))
		return
	}

	http.Redirect(w, r, h.successURL, http.StatusFound)
}

// HandleStatus returns the connection projection for the current user.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := r.Header.Get(UserHeader)
	if userID == "" {
		utils.WriteError(w, "unauthorized", "Authentication required", http.StatusUnauthorized)
		return
	}

	status, err := h.svc.ConnectionStatus(r.Context(), userID)
	if err != nil {
		logger.Error("Failed to load connection status", zap.Error(err))
		utils.WriteError(w, "server_error", "Failed to load connection status", http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, status)
}

// HandleDisconnect removes the linked account.
func (h *Handler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := r.Header.Get(UserHeader)
	if userID == "" {
		utils.WriteError(w, "unauthorized", "Authentication required", http.StatusUnauthorized)
		return
	}

	if err := h.svc.Disconnect(r.Context(), userID); err != nil {
		if errors.Is(err, oauth.ErrNotConnected) {
			utils.WriteError(w, "not_connected", "No mail account is connected", http.StatusNotFound)
			return
		}
		logger.Error("Failed to disconnect mail account", zap.Error(err))
		utils.WriteError(w, "server_error", "Failed to disconnect", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, map[string]bool{"disconnected": true})
}

func (h *Handler) redirectError(w http.ResponseWriter, r *http.Request, description string) {
	separator := "?"
	if strings.Contains(h.errorURL, "?") {
		separator = "&"
	}
	http.Redirect(w, r, h.errorURL+separator+"error="+url.QueryEscape(description), http.StatusFound)
}

// callbackErrorMessage maps lifecycle errors onto user-facing text. Provider
// diagnostics stay in the logs; secrets are in neither.
func callbackErrorMessage(err error) string {
	switch {
	case errors.Is(err, oauth.ErrStateExpired):
		return "The authorization request expired, please try again"
	case errors.Is(err, oauth.ErrAuthorizationFailed):
		return "The authorization request could not be verified, please try again"
	case errors.Is(err, oauth.ErrIncompleteGrant):
		return "The provider did not grant the required access"
	default:
		return "Linking the mail account failed, please try again"
	}
}
