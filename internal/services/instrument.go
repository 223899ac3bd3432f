package services

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/occhealth/pcmso-backend/internal/observability"
	"github.com/occhealth/pcmso-backend/internal/platform/apierr"
	"github.com/occhealth/pcmso-backend/internal/platform/dbctx"
)

type operation struct {
	name    string
	start   time.Time
	span    trace.Span
	metrics *observability.Metrics
}

// startOperation opens a span named name and returns dbc rebound to the span context.
func startOperation(dbc dbctx.Context, m *observability.Metrics, name string, attrs ...attribute.KeyValue) (dbctx.Context, *operation) {
	ctx := dbc.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := observability.StartSpan(ctx, name, attrs...)
	return dbctx.Context{Ctx: ctx, Tx: dbc.Tx}, &operation{name: name, start: time.Now(), span: span, metrics: m}
}

func (o *operation) end(err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(apierr.KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	o.metrics.ObserveOperation(o.name, outcome, time.Since(o.start))
	observability.EndSpan(o.span, err)
}

type txCommitter interface {
	Commit() error
	Rollback() error
}

func isDBTransaction(db *gorm.DB) bool {
	if db == nil || db.Statement == nil || db.Statement.ConnPool == nil {
		return false
	}
	_, ok := db.Statement.ConnPool.(txCommitter)
	return ok
}

// inTx runs fn in the caller's transaction when there is one, otherwise in a new one.
func inTx(dbc dbctx.Context, db *gorm.DB, fn func(dbctx.Context) error) error {
	if isDBTransaction(dbc.Tx) {
		return fn(dbc)
	}
	return db.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbc.WithTx(tx))
	})
}

func idAttr(key string, v interface{ String() string }) attribute.KeyValue {
	return attribute.String(key, v.String())
}
