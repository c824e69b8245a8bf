package public

import (
	"encoding/json"
	"errors"
	"net/http"

	contactapp "github.com/sngm3741/contact-form-services/api/internal/contact/application"
	"github.com/sngm3741/contact-form-services/api/internal/contact/domain"
	"github.com/sngm3741/contact-form-services/api/internal/interfaces/http/common"
)

// contactHandler accepts one contact-form submission. Only four outcomes
// reach the caller; causes are logged, never echoed.
func (h *Handler) contactHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		var req contactRequest
		decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, common.MaxContactRequestBody))
		if err := decoder.Decode(&req); err != nil {
			h.logger.Debug().Err(err).Msg("malformed contact request body")
			common.WriteJSON(h.logger, w, http.StatusBadRequest, errorResponse{Error: msgFieldsRequired})
			return
		}

		_, err := h.submissions.Submit(r.Context(), contactapp.SubmitContactCommand{
			Name:    req.Name,
			Email:   req.Email,
			Phone:   req.Phone,
			Message: req.Message,
		})
		switch {
		case err == nil:
			common.WriteJSON(h.logger, w, http.StatusCreated, submitResponse{Success: true, Message: msgSubmitted})
		case errors.Is(err, domain.ErrValidation):
			common.WriteJSON(h.logger, w, http.StatusBadRequest, errorResponse{Error: msgFieldsRequired})
		case errors.Is(err, domain.ErrNotification):
			common.WriteJSON(h.logger, w, http.StatusInternalServerError, submitResponse{Success: false, Error: msgNotifyFailed})
		case errors.Is(err, domain.ErrPersistence):
			common.WriteJSON(h.logger, w, http.StatusInternalServerError, errorResponse{Error: msgSaveFailed})
		default:
			h.logger.Error().Err(err).Msg("unexpected contact submission error")
			common.WriteJSON(h.logger, w, http.StatusInternalServerError, errorResponse{Error: msgSaveFailed})
		}
	}
}
