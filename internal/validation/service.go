package validation

import (
	"log/slog"

	"github.com/mmynk/billtx/internal/models"
)

// Service exposes a Validator as a standalone collaborator, so callers can
// validate through a separate component instead of a local helper.
type Service struct {
	validator *Validator
	logger    *slog.Logger
}

// NewService wraps v.
func NewService(v *Validator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{validator: v, logger: logger}
}

// ValidateBill panics with a *ValidationError when in is invalid.
func (s *Service) ValidateBill(in models.BillInput) {
	if err := s.validator.Validate(in); err != nil {
		s.logger.Debug("Bill rejected", "type", in.Type, "date", in.Date.Format(models.DateLayout), "error", err)
		panic(err)
	}
}
