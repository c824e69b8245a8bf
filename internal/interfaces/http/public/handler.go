package public

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	contactapp "github.com/sngm3741/contact-form-services/api/internal/contact/application"
	"github.com/sngm3741/contact-form-services/api/internal/interfaces/http/common"
)

// Handler wires public HTTP endpoints to application services.
type Handler struct {
	logger      zerolog.Logger
	submissions contactapp.SubmissionService
}

// Config defines dependencies required by Handler.
type Config struct {
	Logger      zerolog.Logger
	Submissions contactapp.SubmissionService
}

// NewHandler constructs a public HTTP handler set.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		logger:      cfg.Logger,
		submissions: cfg.Submissions,
	}
}

// Register mounts all public routes onto the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/", h.welcomeHandler())
	r.Get("/healthz", h.healthHandler())
	r.Post("/contact", h.contactHandler())
	r.Post("/api/contact", h.contactHandler())
}

func (h *Handler) welcomeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		common.WriteText(w, http.StatusOK, welcomeMessage)
	}
}

// healthHandler is a pure liveness probe; it never touches the store.
func (h *Handler) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		common.WriteText(w, http.StatusOK, "OK")
	}
}
