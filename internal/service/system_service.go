package service

import (
	"context"
	"database/sql"

	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/database"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/model"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/pricecache"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/pricesource"
)

// AppVersion is overridden at build time with -ldflags "-X .../internal/service.AppVersion=...".
var AppVersion = "dev"

// SourceStatusProvider reports the health of the price sources.
type SourceStatusProvider interface {
	Status() []pricesource.SourceStatus
}

// SystemStatus summarises the price pipeline for operators.
type SystemStatus struct {
	Sources      []pricesource.SourceStatus `json:"sources"`
	CachedQuotes int                        `json:"cachedQuotes"`
}

// SystemService handles system-related operations
type SystemService struct {
	db       *sql.DB
	migrator *database.Migrator
	sources  SourceStatusProvider
	cache    *pricecache.Cache
	features map[string]bool
}

// NewSystemService creates a new SystemService
func NewSystemService(
	db *sql.DB,
	migrator *database.Migrator,
	sources SourceStatusProvider,
	cache *pricecache.Cache,
	features map[string]bool,
) *SystemService {
	return &SystemService{
		db:       db,
		migrator: migrator,
		sources:  sources,
		cache:    cache,
		features: features,
	}
}

// CheckHealth checks the health of the system
func (s *SystemService) CheckHealth() error {
	return database.HealthCheck(s.db)
}

// CheckVersion returns the application and schema versions.
func (s *SystemService) CheckVersion(ctx context.Context) (model.VersionInfo, error) {
	dbVersion, err := s.migrator.Version(ctx)
	if err != nil {
		return model.VersionInfo{}, err
	}
	pending, err := s.migrator.HasPending(ctx)
	if err != nil {
		return model.VersionInfo{}, err
	}

	features := make(map[string]bool, len(s.features))
	for k, v := range s.features {
		features[k] = v
	}

	return model.VersionInfo{
		AppVersion:      AppVersion,
		DbVersion:       dbVersion,
		Features:        features,
		MigrationNeeded: pending,
	}, nil
}

// Status reports source health and the size of the memory tier.
func (s *SystemService) Status() SystemStatus {
	return SystemStatus{
		Sources:      s.sources.Status(),
		CachedQuotes: s.cache.Len(),
	}
}
