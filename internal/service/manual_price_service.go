package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/apperrors"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/api/request"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/logging"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/model"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/repository"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/validation"
)

// ManualPriceService manages user supplied price overrides.
type ManualPriceService struct {
	overrideRepo *repository.ManualPriceRepository
	logger       *logging.Logger
	now          func() time.Time
}

// NewManualPriceService creates a new ManualPriceService.
func NewManualPriceService(overrideRepo *repository.ManualPriceRepository, logger *logging.Logger) *ManualPriceService {
	return &ManualPriceService{
		overrideRepo: overrideRepo,
		logger:       logger.Component("manual_prices"),
		now:          time.Now,
	}
}

// SetOverride stores or replaces the user's override for ticker.
func (s *ManualPriceService) SetOverride(ctx context.Context, userID, ticker string, req request.SetManualPriceRequest) (model.ManualPriceOverride, error) {
	if err := validation.ValidateUserID(userID); err != nil {
		return model.ManualPriceOverride{}, err
	}
	t, err := validation.ValidateTicker(ticker)
	if err != nil {
		return model.ManualPriceOverride{}, err
	}
	if err := validation.ValidateSetManualPrice(req); err != nil {
		return model.ManualPriceOverride{}, err
	}

	now := s.now().UTC()
	o := model.ManualPriceOverride{
		ID:        uuid.New().String(),
		UserID:    userID,
		Ticker:    t,
		Price:     req.Price,
		Reason:    req.Reason,
		CreatedAt: now,
	}
	if req.ExpiresHours != nil {
		expires := now.Add(time.Duration(*req.ExpiresHours * float64(time.Hour)))
		o.ExpiresAt = &expires
	}

	if err := s.overrideRepo.Upsert(ctx, o); err != nil {
		return model.ManualPriceOverride{}, err
	}

	s.logger.Info().Str("user_id", userID).Str("ticker", t).Str("price", o.Price.String()).Msg("manual price set")
	return o, nil
}

// ListActive returns the user's overrides that have not expired.
func (s *ManualPriceService) ListActive(ctx context.Context, userID string) ([]model.ManualPriceOverride, error) {
	if err := validation.ValidateUserID(userID); err != nil {
		return nil, err
	}
	all, err := s.overrideRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToRetrieveOverrides, err)
	}

	now := s.now()
	active := make([]model.ManualPriceOverride, 0, len(all))
	for _, o := range all {
		if o.ActiveAt(now) {
			active = append(active, o)
		}
	}
	return active, nil
}

// RemoveOverride deletes the user's override for ticker.
func (s *ManualPriceService) RemoveOverride(ctx context.Context, userID, ticker string) error {
	if err := validation.ValidateUserID(userID); err != nil {
		return err
	}
	t, err := validation.ValidateTicker(ticker)
	if err != nil {
		return err
	}
	return s.overrideRepo.Delete(ctx, userID, t)
}
