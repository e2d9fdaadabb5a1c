package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"abastecimiento/models"
)

func (s *SQLStorage) ListMaestros(ctx context.Context) ([]models.Maestro, error) {
	maestros := []models.Maestro{}
	err := s.db.SelectContext(ctx, &maestros, `SELECT * FROM maestros ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list maestros: %w", err)
	}
	return maestros, nil
}

func (s *SQLStorage) GetMaestro(ctx context.Context, id string) (*models.Maestro, error) {
	var m models.Maestro
	err := s.db.GetContext(ctx, &m, s.db.Rebind(`SELECT * FROM maestros WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("maestro %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get maestro %s: %w", id, err)
	}
	return &m, nil
}

func (s *SQLStorage) UpsertMaestro(ctx context.Context, m models.Maestro) error {
	query := `
INSERT INTO maestros (id, nombre, apellidos, ruc, distrito, direccion, telefono, correo, especialidad, fecha_registro, puntos)
VALUES (:id, :nombre, :apellidos, :ruc, :distrito, :direccion, :telefono, :correo, :especialidad, :fecha_registro, :puntos)
ON CONFLICT (id) DO UPDATE SET
    nombre = excluded.nombre,
    apellidos = excluded.apellidos,
    ruc = excluded.ruc,
    distrito = excluded.distrito,
    direccion = excluded.direccion,
    telefono = excluded.telefono,
    correo = excluded.correo,
    especialidad = excluded.especialidad,
    fecha_registro = excluded.fecha_registro,
    puntos = excluded.puntos`
	if _, err := s.db.NamedExecContext(ctx, query, m); err != nil {
		return fmt.Errorf("failed to upsert maestro %s: %w", m.ID, err)
	}
	return nil
}

func (s *SQLStorage) ListPremios(ctx context.Context) ([]models.Premio, error) {
	premios := []models.Premio{}
	err := s.db.SelectContext(ctx, &premios, `SELECT * FROM premios ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list premios: %w", err)
	}
	return premios, nil
}

func (s *SQLStorage) UpsertPremio(ctx context.Context, p models.Premio) error {
	query := `
INSERT INTO premios (id, nombre, descripcion, costo, categoria)
VALUES (:id, :nombre, :descripcion, :costo, :categoria)
ON CONFLICT (id) DO UPDATE SET
    nombre = excluded.nombre,
    descripcion = excluded.descripcion,
    costo = excluded.costo,
    categoria = excluded.categoria`
	if _, err := s.db.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("failed to upsert premio %s: %w", p.ID, err)
	}
	return nil
}

type canjeRow struct {
	ID             string         `db:"id"`
	Codigo         string         `db:"codigo"`
	MaestroID      string         `db:"maestro_id"`
	Operador       string         `db:"operador"`
	Fecha          string         `db:"fecha"`
	Premios        types.JSONText `db:"premios"`
	PuntosGastados int            `db:"puntos_gastados"`
	Estado         string         `db:"estado"`
}

func (r canjeRow) toModel() (models.Canje, error) {
	c := models.Canje{
		ID:             r.ID,
		Codigo:         r.Codigo,
		MaestroID:      r.MaestroID,
		Operador:       r.Operador,
		PuntosGastados: r.PuntosGastados,
		Estado:         models.EstadoCanje(r.Estado),
	}
	fecha, err := time.Parse(formatoFecha, r.Fecha)
	if err != nil {
		return c, fmt.Errorf("canje %s fecha: %w", r.ID, err)
	}
	c.Fecha = fecha
	if err := r.Premios.Unmarshal(&c.Premios); err != nil {
		return c, fmt.Errorf("canje %s premios: %w", r.ID, err)
	}
	return c, nil
}

// CreateCanje stores a redemption and debits the maestro's points in the
// same transaction. ID and Codigo are assigned here.
func (s *SQLStorage) CreateCanje(ctx context.Context, c *models.Canje) error {
	if c.PuntosGastados <= 0 {
		return fmt.Errorf("canje of %s: %w (%d)", c.MaestroID, ErrPuntosInvalidos, c.PuntosGastados)
	}
	premios, err := jsonText(c.Premios)
	if err != nil {
		return err
	}
	if c.Fecha.IsZero() {
		c.Fecha = time.Now()
	}
	if c.Estado == "" {
		c.Estado = models.CanjeRegistrado
	}

	return s.conCodigoNuevo(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			tx.Rebind(`UPDATE maestros SET puntos = puntos - ? WHERE id = ? AND puntos >= ?`),
			c.PuntosGastados, c.MaestroID, c.PuntosGastados)
		if err != nil {
			return fmt.Errorf("failed to debit points: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			var count int
			if err := tx.GetContext(ctx, &count, tx.Rebind(`SELECT COUNT(*) FROM maestros WHERE id = ?`), c.MaestroID); err != nil {
				return err
			}
			if count == 0 {
				return fmt.Errorf("maestro %s: %w", c.MaestroID, ErrNotFound)
			}
			return ErrPuntosInsuficientes
		}

		ultimo, err := ultimoCodigo(ctx, tx, `SELECT codigo FROM canjes`)
		if err != nil {
			return fmt.Errorf("failed to compute canje code: %w", err)
		}
		c.ID = uuid.NewString()
		c.Codigo = fmt.Sprintf("C-%03d", ultimo+1)

		_, err = tx.ExecContext(ctx, tx.Rebind(`
INSERT INTO canjes (id, codigo, maestro_id, operador, fecha, premios, puntos_gastados, estado)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			c.ID, c.Codigo, c.MaestroID, c.Operador, c.Fecha.UTC().Format(formatoFecha),
			premios.String(), c.PuntosGastados, string(c.Estado))
		if err != nil {
			return fmt.Errorf("failed to insert canje: %w", err)
		}
		return nil
	})
}

func (s *SQLStorage) ListCanjesByMaestro(ctx context.Context, maestroID string) ([]models.Canje, error) {
	var rows []canjeRow
	err := s.db.SelectContext(ctx, &rows,
		s.db.Rebind(`SELECT * FROM canjes WHERE maestro_id = ? ORDER BY fecha DESC, codigo DESC`), maestroID)
	if err != nil {
		return nil, fmt.Errorf("failed to list canjes of %s: %w", maestroID, err)
	}
	canjes := make([]models.Canje, 0, len(rows))
	for _, r := range rows {
		c, err := r.toModel()
		if err != nil {
			return nil, err
		}
		canjes = append(canjes, c)
	}
	return canjes, nil
}
