package setting

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/linkhoard/service-auth-go/internal/httpx"
	"github.com/ovaphlow/linkhoard/service-auth-go/internal/setting/entity"
)

// Handler exposes the security-settings endpoints. The router mounts them
// behind the admin gate.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// GetSecurity returns the current snapshot, defaults included.
func (h *Handler) GetSecurity(w http.ResponseWriter, r *http.Request) {
	sec, err := h.svc.LoadSecurity(r.Context())
	if err != nil {
		httpx.ServerError(w, h.logger, "settings: load", err)
		return
	}
	httpx.OK(w, "", sec)
}

// UpdateSecurity validates and persists a full snapshot. Any field out of
// bounds rejects the whole update with 400.
func (h *Handler) UpdateSecurity(w http.ResponseWriter, r *http.Request) {
	var sec entity.Security
	if err := json.NewDecoder(r.Body).Decode(&sec); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := h.svc.UpdateSecurity(r.Context(), sec); err != nil {
		if errors.Is(err, ErrOutOfBounds) {
			httpx.Fail(w, http.StatusBadRequest, err.Error())
			return
		}
		httpx.ServerError(w, h.logger, "settings: update", err)
		return
	}
	httpx.OK(w, "settings updated", sec)
}
