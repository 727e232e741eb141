package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const (
	gormSpanKey             = "cellschema:gorm:span"
	gormStartTimeKey        = "cellschema:gorm:start"
	gormTimingStartKey      = "cellschema:gorm:timing_start"
	gormTimingCallbacksName = "cellschema_server_timing"
)

// RegisterGORMCallbacks registers GORM callbacks for database query
// tracing. Call after GORM is initialized and observability is configured.
func RegisterGORMCallbacks(db *gorm.DB, cfg *Config) error {
	if cfg == nil || cfg.TracerProvider == nil || !cfg.EnableDetailedDBTracing {
		return nil
	}

	tracer := cfg.Tracer()

	if err := db.Callback().Query().Before("gorm:query").Register("cellschema:before_query", beforeCallback(tracer, "SELECT")); err != nil {
		return err
	}
	if err := db.Callback().Query().After("gorm:query").Register("cellschema:after_query", afterCallback(tracer, cfg, "SELECT")); err != nil {
		return err
	}

	if err := db.Callback().Create().Before("gorm:create").Register("cellschema:before_create", beforeCallback(tracer, "INSERT")); err != nil {
		return err
	}
	if err := db.Callback().Create().After("gorm:create").Register("cellschema:after_create", afterCallback(tracer, cfg, "INSERT")); err != nil {
		return err
	}

	if err := db.Callback().Update().Before("gorm:update").Register("cellschema:before_update", beforeCallback(tracer, "UPDATE")); err != nil {
		return err
	}
	if err := db.Callback().Update().After("gorm:update").Register("cellschema:after_update", afterCallback(tracer, cfg, "UPDATE")); err != nil {
		return err
	}

	if err := db.Callback().Delete().Before("gorm:delete").Register("cellschema:before_delete", beforeCallback(tracer, "DELETE")); err != nil {
		return err
	}
	if err := db.Callback().Delete().After("gorm:delete").Register("cellschema:after_delete", afterCallback(tracer, cfg, "DELETE")); err != nil {
		return err
	}

	return nil
}

// RegisterServerTimingCallbacks registers GORM callbacks that accumulate
// database time into the request's Server-Timing "db" metric. Independent
// of tracing; works without OpenTelemetry.
func RegisterServerTimingCallbacks(db *gorm.DB) error {
	if err := db.Callback().Query().Before("gorm:query").Register(gormTimingCallbacksName+":before_query", beforeTiming); err != nil {
		return err
	}
	if err := db.Callback().Query().After("gorm:query").Register(gormTimingCallbacksName+":after_query", afterTiming); err != nil {
		return err
	}

	if err := db.Callback().Create().Before("gorm:create").Register(gormTimingCallbacksName+":before_create", beforeTiming); err != nil {
		return err
	}
	if err := db.Callback().Create().After("gorm:create").Register(gormTimingCallbacksName+":after_create", afterTiming); err != nil {
		return err
	}

	if err := db.Callback().Update().Before("gorm:update").Register(gormTimingCallbacksName+":before_update", beforeTiming); err != nil {
		return err
	}
	if err := db.Callback().Update().After("gorm:update").Register(gormTimingCallbacksName+":after_update", afterTiming); err != nil {
		return err
	}

	if err := db.Callback().Delete().Before("gorm:delete").Register(gormTimingCallbacksName+":before_delete", beforeTiming); err != nil {
		return err
	}
	if err := db.Callback().Delete().After("gorm:delete").Register(gormTimingCallbacksName+":after_delete", afterTiming); err != nil {
		return err
	}

	return nil
}

func beforeTiming(db *gorm.DB) {
	db.InstanceSet(gormTimingStartKey, time.Now())
}

func afterTiming(db *gorm.DB) {
	startTimeVal, ok := db.InstanceGet(gormTimingStartKey)
	if !ok {
		return
	}
	startTime, ok := startTimeVal.(time.Time)
	if !ok {
		return
	}
	if db.Statement != nil && db.Statement.Context != nil {
		AddDBTime(db.Statement.Context, time.Since(startTime))
	}
}

func beforeCallback(tracer *Tracer, operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		ctx, span := tracer.StartDBQuery(ctx, operation)
		span.SetAttributes(attribute.String("db.system", "gorm"))
		db.Statement.Context = ctx
		db.InstanceSet(gormSpanKey, span)
		db.InstanceSet(gormStartTimeKey, time.Now())
	}
}

func afterCallback(tracer *Tracer, cfg *Config, operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		spanVal, ok := db.InstanceGet(gormSpanKey)
		if !ok {
			return
		}
		span, ok := spanVal.(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		if db.Statement != nil {
			if db.Statement.Table != "" {
				span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
			}
			span.SetAttributes(attribute.Int64("db.rows_affected", db.RowsAffected))
		}

		if db.Error != nil {
			tracer.RecordError(span, db.Error)
			span.SetStatus(codes.Error, db.Error.Error())
		}

		if startTimeVal, ok := db.InstanceGet(gormStartTimeKey); ok {
			if startTime, ok := startTimeVal.(time.Time); ok {
				cfg.Metrics().RecordDBQuery(db.Statement.Context, operation, time.Since(startTime))
			}
		}
	}
}
