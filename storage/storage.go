// Package storage persists the loyalty and procurement records in a SQL
// database. The same queries run on postgres and sqlite3; placeholders are
// rebound per driver.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"abastecimiento/models"
)

var (
	ErrNotFound            = errors.New("record not found")
	ErrConflict            = errors.New("record changed concurrently")
	ErrPuntosInsuficientes = errors.New("insufficient points")
	ErrPuntosInvalidos     = errors.New("points spent must be positive")
)

type Storage interface {
	Init(ctx context.Context) error

	ListMaestros(ctx context.Context) ([]models.Maestro, error)
	GetMaestro(ctx context.Context, id string) (*models.Maestro, error)
	UpsertMaestro(ctx context.Context, m models.Maestro) error
	ListPremios(ctx context.Context) ([]models.Premio, error)
	UpsertPremio(ctx context.Context, p models.Premio) error
	CreateCanje(ctx context.Context, c *models.Canje) error
	ListCanjesByMaestro(ctx context.Context, maestroID string) ([]models.Canje, error)

	ListProductos(ctx context.Context) ([]models.Product, error)
	UpsertProducto(ctx context.Context, p models.Product) error
	ListProveedores(ctx context.Context) ([]models.Provider, error)
	UpsertProveedor(ctx context.Context, p models.Provider) error

	ListPedidos(ctx context.Context) ([]models.Pedido, error)
	GetPedido(ctx context.Context, id string) (*models.Pedido, error)
	UpsertPedido(ctx context.Context, p models.Pedido) error
	UpdatePedidoEstado(ctx context.Context, id string, from, to models.EstadoPedido) error

	ListSolicitudes(ctx context.Context) ([]models.SolicitudCotizacion, error)
	GetSolicitud(ctx context.Context, id string) (*models.SolicitudCotizacion, error)
	CreateSolicitud(ctx context.Context, s *models.SolicitudCotizacion) error
	UpsertSolicitud(ctx context.Context, s models.SolicitudCotizacion) error
	UpdateSolicitud(ctx context.Context, s models.SolicitudCotizacion, from models.EstadoSolicitud) error
	AgregarCotizacion(ctx context.Context, solicitudID string, c models.CotizacionRecibida) (*models.SolicitudCotizacion, error)
	AdjudicarSolicitud(ctx context.Context, solicitudID string, ordenes []models.OrdenCompra) ([]models.OrdenCompra, error)
	ListOrdenesCompra(ctx context.Context, solicitudID string) ([]models.OrdenCompra, error)
}

type SQLStorage struct {
	db  *sqlx.DB
	log *slog.Logger
}

// New opens and pings a database. driver is "postgres" or "sqlite3".
func New(driver, dsn string, log *slog.Logger) (*SQLStorage, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite3" {
		// in-memory databases live and die with their connection
		db.SetMaxOpenConns(1)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &SQLStorage{db: db, log: log}, nil
}

func (s *SQLStorage) Close() error {
	return s.db.Close()
}

func (s *SQLStorage) TransactionDecorator(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				s.log.Error("rollback failed", slog.String("error", rollbackErr.Error()))
			}
			return
		}
		if commitErr := tx.Commit(); commitErr != nil {
			s.log.Error("commit failed", slog.String("error", commitErr.Error()))
			err = commitErr
		}
	}()

	return fn(tx)
}

// maxIntentos bounds how often an insert that lost its code to a concurrent
// insert is retried.
const maxIntentos = 3

// esDuplicado reports a primary key or unique constraint violation.
func esDuplicado(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// conCodigoNuevo runs fn in a transaction and runs it again when it fails on
// a code already taken by a concurrent insert. fn must compute the code
// inside the transaction.
func (s *SQLStorage) conCodigoNuevo(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	var err error
	for intento := 1; intento <= maxIntentos; intento++ {
		err = s.TransactionDecorator(ctx, fn)
		if err == nil || !esDuplicado(err) {
			return err
		}
		s.log.Warn("code taken by a concurrent insert, retrying",
			slog.Int("intento", intento),
			slog.String("error", err.Error()))
	}
	return err
}

// bloqueo is appended to a SELECT that must lock its rows until the end of
// the transaction. sqlite serializes transactions on its single connection.
func (s *SQLStorage) bloqueo() string {
	if s.db.DriverName() == "postgres" {
		return " FOR UPDATE"
	}
	return ""
}

func (s *SQLStorage) Init(ctx context.Context) error {
	if err := s.CreateMaestroTable(ctx); err != nil {
		return fmt.Errorf("failed to create maestros table: %w", err)
	}
	if err := s.CreatePremioTable(ctx); err != nil {
		return fmt.Errorf("failed to create premios table: %w", err)
	}
	if err := s.CreateCanjeTable(ctx); err != nil {
		return fmt.Errorf("failed to create canjes table: %w", err)
	}
	if err := s.CreateProductoTable(ctx); err != nil {
		return fmt.Errorf("failed to create productos table: %w", err)
	}
	if err := s.CreateProveedorTable(ctx); err != nil {
		return fmt.Errorf("failed to create proveedores table: %w", err)
	}
	if err := s.CreatePedidoTable(ctx); err != nil {
		return fmt.Errorf("failed to create pedidos table: %w", err)
	}
	if err := s.CreateSolicitudTable(ctx); err != nil {
		return fmt.Errorf("failed to create solicitudes table: %w", err)
	}
	if err := s.CreateOrdenCompraTable(ctx); err != nil {
		return fmt.Errorf("failed to create ordenes_compra table: %w", err)
	}
	return nil
}

func (s *SQLStorage) exec(ctx context.Context, query string, args ...any) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	return err
}
