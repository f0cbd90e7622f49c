package httpx

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ariefcatur/go-voice-storefront/internal/apperr"
	"github.com/ariefcatur/go-voice-storefront/internal/logx"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

var validate = validator.New()

type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to its status and writes only the caller-facing message.
func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	kind := apperr.KindOf(err)
	code := apperr.HTTPStatus(kind)
	if code >= http.StatusInternalServerError {
		logx.FromRequest(r.Context(), log).Error("request failed",
			slog.String("path", r.URL.Path), slog.String("kind", string(kind)), logx.Err(err))
	}
	writeJSON(w, code, ErrorResponse{Error: apperr.Message(err)})
}

// decode reads a JSON body into dst and validates it.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.InvalidRequest("invalid json")
	}
	if err := validate.Struct(dst); err != nil {
		return apperr.Wrap(apperr.KindInvalidRequest, "missing or invalid fields", err)
	}
	return nil
}
