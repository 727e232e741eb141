// Package cellschema implements the schema management endpoint of a
// multi-tenant cell-based OData service. Each cell/box/collection triple
// owns an isolated schema of EntityTypes, ComplexTypes and Properties, plus
// the user data records conforming to it.
package cellschema

import (
	"fmt"
	"log/slog"
	"net/http"

	"gorm.io/gorm"

	"github.com/celldav/cellschema/internal/edm"
	"github.com/celldav/cellschema/internal/handlers"
	"github.com/celldav/cellschema/internal/observability"
	"github.com/celldav/cellschema/internal/property"
	"github.com/celldav/cellschema/internal/schema"
	"github.com/celldav/cellschema/internal/userdata"
)

// DefaultMaxPropertiesPerEntityType is the declared-property ceiling applied
// when ServiceConfig leaves it unset.
const DefaultMaxPropertiesPerEntityType = property.DefaultMaxPropertiesPerEntityType

// ServiceConfig controls optional service behaviours.
type ServiceConfig struct {
	// MaxPropertiesPerEntityType caps the number of properties (declared
	// plus dynamic) a single EntityType may carry. Zero means the default.
	MaxPropertiesPerEntityType int

	// DateTimeBounds overrides the accepted Edm.DateTime range. The zero
	// value means the platform default range.
	DateTimeBounds edm.DateTimeBounds

	// Observability configures tracing and metrics. Nil disables both.
	Observability *observability.Config

	// Logger is used for structured logging throughout the service.
	// Nil means slog.Default().
	Logger *slog.Logger
}

// Service serves the schema resources of every cell hosted on one database.
type Service struct {
	db            *gorm.DB
	schemas       *schema.Store
	records       *userdata.Store
	engine        *property.Engine
	handler       *handlers.SchemaHandler
	observability *observability.Config
	logger        *slog.Logger
}

// NewService creates a schema service over the given database connection,
// migrating the backing tables. It panics on setup failure; use
// NewServiceWithConfig for explicit error handling.
func NewService(db *gorm.DB) *Service {
	service, err := NewServiceWithConfig(db, ServiceConfig{})
	if err != nil {
		panic(err)
	}
	return service
}

// NewServiceWithConfig creates a schema service with additional configuration.
func NewServiceWithConfig(db *gorm.DB, cfg ServiceConfig) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("cellschema: database handle is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	schemas := schema.NewStore(db)
	if err := schemas.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("cellschema: migrating schema tables: %w", err)
	}
	records := userdata.NewStore(db)
	if err := records.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("cellschema: migrating user data tables: %w", err)
	}

	obs := cfg.Observability
	if obs != nil {
		if err := obs.Initialize(); err != nil {
			return nil, fmt.Errorf("cellschema: initializing observability: %w", err)
		}
		if err := observability.RegisterGORMCallbacks(db, obs); err != nil {
			return nil, fmt.Errorf("cellschema: registering tracing callbacks: %w", err)
		}
		if obs.ServerTimingEnabled() {
			if err := observability.RegisterServerTimingCallbacks(db); err != nil {
				return nil, fmt.Errorf("cellschema: registering timing callbacks: %w", err)
			}
		}
	}

	engine := property.NewEngine(schemas, records, property.Config{
		MaxPropertiesPerEntityType: cfg.MaxPropertiesPerEntityType,
		DateTimeBounds:             cfg.DateTimeBounds,
		Observability:              obs,
	}, logger)

	return &Service{
		db:            db,
		schemas:       schemas,
		records:       records,
		engine:        engine,
		handler:       handlers.NewSchemaHandler(engine, schemas, records, obs, logger),
		observability: obs,
		logger:        logger,
	}, nil
}

// SetLogger replaces the service logger.
func (s *Service) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	s.logger = logger
}

// Handler returns the service wrapped in the observability middleware.
func (s *Service) Handler() http.Handler {
	return observability.HTTPMiddleware(s.observability)(s)
}
