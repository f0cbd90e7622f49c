package httpx

import (
	"log/slog"
	"net/http"

	"github.com/ariefcatur/go-voice-storefront/internal/logx"
	"github.com/ariefcatur/go-voice-storefront/internal/token"
	"github.com/go-chi/chi/v5"
)

type TokenHandler struct {
	Issuer *token.Issuer
	Log    *slog.Logger
}

type TokenResponse struct {
	Token string `json:"token"`
}

func (h *TokenHandler) Register(r chi.Router) {
	r.Get("/api/token", h.issue)
}

func (h *TokenHandler) issue(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	q := r.URL.Query()
	g, err := h.Issuer.Issue(q.Get("room"), q.Get("username"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	logx.FromRequest(r.Context(), h.Log).Info("room token issued",
		logx.Room, g.Room, logx.Identity, g.Identity)
	writeJSON(w, http.StatusOK, TokenResponse{Token: g.Token})
}
