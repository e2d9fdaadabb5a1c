// Package service runs the redemption and procurement operations: it loads
// records from storage, drives the workflow view models and persists the
// results.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"abastecimiento/events"
	"abastecimiento/idempotency"
	"abastecimiento/storage"
)

var (
	ErrValidacion          = errors.New("invalid request")
	ErrTransicionInvalida  = errors.New("invalid state transition")
	ErrPuntosInsuficientes = storage.ErrPuntosInsuficientes
)

// DD-MM-YYYY, the layout of fecha_requerida
const formatoFecha = "02-01-2006"

func invalido(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidacion, fmt.Sprintf(format, args...))
}

func invalidTransition(from, to string) error {
	return fmt.Errorf("%w: %s -> %s", ErrTransicionInvalida, from, to)
}

// transicion converts a lost compare-and-set in storage into
// ErrTransicionInvalida.
func transicion(err error) error {
	if errors.Is(err, storage.ErrConflict) {
		return fmt.Errorf("%w: %w", ErrTransicionInvalida, err)
	}
	return err
}

type base struct {
	store storage.Storage
	pub   events.Publisher
	idem  idempotency.Store
	log   *slog.Logger
	now   func() time.Time
}

func newBase(store storage.Storage, pub events.Publisher, idem idempotency.Store, log *slog.Logger) base {
	if log == nil {
		log = slog.Default()
	}
	if pub == nil {
		pub = events.NewLogPublisher(log)
	}
	return base{store: store, pub: pub, idem: idem, log: log, now: time.Now}
}

// reservar claims the idempotency key of a request. The returned func gives
// the key back and must be called when the write it guards fails.
func (b base) reservar(ctx context.Context, key string) (func(), error) {
	if err := idempotency.Check(ctx, b.idem, key); err != nil {
		return nil, err
	}
	return func() {
		if err := idempotency.Release(context.WithoutCancel(ctx), b.idem, key); err != nil {
			b.log.Error("failed to release idempotent key",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
	}, nil
}

// publicar never fails the operation: the record is already committed.
func (b base) publicar(ctx context.Context, tipo, id string, payload any) {
	if err := b.pub.Publish(ctx, tipo, id, payload); err != nil {
		b.log.Error("failed to publish event",
			slog.String("tipo", tipo),
			slog.String("id", id),
			slog.String("error", err.Error()))
	}
}
