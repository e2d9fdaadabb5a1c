package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"

	"abastecimiento/models"
)

// fixed width so that stored timestamps sort as text
const formatoFecha = "2006-01-02T15:04:05.000000Z07:00"

func jsonText(v any) (types.JSONText, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", v, err)
	}
	return types.JSONText(b), nil
}

// ultimoCodigo returns the highest numeric suffix among the ids selected by
// query, 0 when there are none.
func ultimoCodigo(ctx context.Context, tx *sqlx.Tx, query string) (int, error) {
	var ids []string
	if err := tx.SelectContext(ctx, &ids, query); err != nil {
		return 0, err
	}
	ultimo := 0
	for _, id := range ids {
		if n := models.Codigo(id); n > ultimo {
			ultimo = n
		}
	}
	return ultimo, nil
}

// estadoCambiado tells a missing row from a row whose state moved on.
func estadoCambiado(ctx context.Context, q sqlx.QueryerContext, query, id string) error {
	var count int
	if err := sqlx.GetContext(ctx, q, &count, query, id); err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", id, ErrConflict)
}

func (s *SQLStorage) ListProductos(ctx context.Context) ([]models.Product, error) {
	productos := []models.Product{}
	err := s.db.SelectContext(ctx, &productos, `SELECT * FROM productos ORDER BY id_producto`)
	if err != nil {
		return nil, fmt.Errorf("failed to list productos: %w", err)
	}
	return productos, nil
}

func (s *SQLStorage) UpsertProducto(ctx context.Context, p models.Product) error {
	query := `
INSERT INTO productos (id_producto, nombre, rubro, familia, clase, marca, unidad, precio_base)
VALUES (:id_producto, :nombre, :rubro, :familia, :clase, :marca, :unidad, :precio_base)
ON CONFLICT (id_producto) DO UPDATE SET
    nombre = excluded.nombre,
    rubro = excluded.rubro,
    familia = excluded.familia,
    clase = excluded.clase,
    marca = excluded.marca,
    unidad = excluded.unidad,
    precio_base = excluded.precio_base`
	if _, err := s.db.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("failed to upsert producto %s: %w", p.IDProducto, err)
	}
	return nil
}

func (s *SQLStorage) ListProveedores(ctx context.Context) ([]models.Provider, error) {
	proveedores := []models.Provider{}
	err := s.db.SelectContext(ctx, &proveedores, `SELECT * FROM proveedores ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list proveedores: %w", err)
	}
	return proveedores, nil
}

func (s *SQLStorage) UpsertProveedor(ctx context.Context, p models.Provider) error {
	query := `
INSERT INTO proveedores (id, nombre, razon_social, ruc, telefono, correo, direccion, rubro)
VALUES (:id, :nombre, :razon_social, :ruc, :telefono, :correo, :direccion, :rubro)
ON CONFLICT (id) DO UPDATE SET
    nombre = excluded.nombre,
    razon_social = excluded.razon_social,
    ruc = excluded.ruc,
    telefono = excluded.telefono,
    correo = excluded.correo,
    direccion = excluded.direccion,
    rubro = excluded.rubro`
	if _, err := s.db.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("failed to upsert proveedor %s: %w", p.ID, err)
	}
	return nil
}

type pedidoRow struct {
	IDPedido     string         `db:"id_pedido"`
	FechaPedido  string         `db:"fecha_pedido"`
	HoraPedido   string         `db:"hora_pedido"`
	EstadoPedido string         `db:"estado_pedido"`
	Empleado     types.JSONText `db:"empleado"`
	Productos    types.JSONText `db:"productos"`
}

func (r pedidoRow) toModel() (models.Pedido, error) {
	p := models.Pedido{
		IDPedido:     r.IDPedido,
		FechaPedido:  r.FechaPedido,
		HoraPedido:   r.HoraPedido,
		EstadoPedido: models.EstadoPedido(r.EstadoPedido),
		Productos:    []models.ProductoPedido{},
	}
	if err := r.Empleado.Unmarshal(&p.EmpleadoGenerador); err != nil {
		return p, fmt.Errorf("pedido %s empleado: %w", r.IDPedido, err)
	}
	if err := r.Productos.Unmarshal(&p.Productos); err != nil {
		return p, fmt.Errorf("pedido %s productos: %w", r.IDPedido, err)
	}
	return p, nil
}

func (s *SQLStorage) ListPedidos(ctx context.Context) ([]models.Pedido, error) {
	var rows []pedidoRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM pedidos ORDER BY id_pedido`); err != nil {
		return nil, fmt.Errorf("failed to list pedidos: %w", err)
	}
	pedidos := make([]models.Pedido, 0, len(rows))
	for _, r := range rows {
		p, err := r.toModel()
		if err != nil {
			return nil, err
		}
		pedidos = append(pedidos, p)
	}
	return pedidos, nil
}

func (s *SQLStorage) GetPedido(ctx context.Context, id string) (*models.Pedido, error) {
	var r pedidoRow
	err := s.db.GetContext(ctx, &r, s.db.Rebind(`SELECT * FROM pedidos WHERE id_pedido = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("pedido %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pedido %s: %w", id, err)
	}
	p, err := r.toModel()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLStorage) UpsertPedido(ctx context.Context, p models.Pedido) error {
	empleado, err := jsonText(p.EmpleadoGenerador)
	if err != nil {
		return err
	}
	productos, err := jsonText(p.Productos)
	if err != nil {
		return err
	}
	query := `
INSERT INTO pedidos (id_pedido, fecha_pedido, hora_pedido, estado_pedido, empleado, productos)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (id_pedido) DO UPDATE SET
    fecha_pedido = excluded.fecha_pedido,
    hora_pedido = excluded.hora_pedido,
    estado_pedido = excluded.estado_pedido,
    empleado = excluded.empleado,
    productos = excluded.productos`
	err = s.exec(ctx, query, p.IDPedido, p.FechaPedido, p.HoraPedido, string(p.EstadoPedido),
		empleado.String(), productos.String())
	if err != nil {
		return fmt.Errorf("failed to upsert pedido %s: %w", p.IDPedido, err)
	}
	return nil
}

// UpdatePedidoEstado moves a pedido from one status to another. It fails with
// ErrConflict when the pedido is no longer in from.
func (s *SQLStorage) UpdatePedidoEstado(ctx context.Context, id string, from, to models.EstadoPedido) error {
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind(`UPDATE pedidos SET estado_pedido = ? WHERE id_pedido = ? AND estado_pedido = ?`),
		string(to), id, string(from))
	if err != nil {
		return fmt.Errorf("failed to update pedido %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return estadoCambiado(ctx, s.db, s.db.Rebind(`SELECT COUNT(*) FROM pedidos WHERE id_pedido = ?`), id)
	}
	return nil
}

type solicitudRow struct {
	IDSolicitud         string         `db:"id_solicitud"`
	FechaEmision        string         `db:"fecha_emision"`
	Estado              string         `db:"estado"`
	Items               types.JSONText `db:"items"`
	ProveedoresEnviados types.JSONText `db:"proveedores_enviados"`
	Cotizaciones        types.JSONText `db:"cotizaciones"`
}

func (r solicitudRow) toModel() (models.SolicitudCotizacion, error) {
	s := models.SolicitudCotizacion{
		IDSolicitud:           r.IDSolicitud,
		FechaEmisionSolicitud: r.FechaEmision,
		Estado:                models.EstadoSolicitud(r.Estado),
		Items:                 []models.ItemPendiente{},
	}
	if err := r.Items.Unmarshal(&s.Items); err != nil {
		return s, fmt.Errorf("solicitud %s items: %w", r.IDSolicitud, err)
	}
	if err := r.ProveedoresEnviados.Unmarshal(&s.ProveedoresEnviados); err != nil {
		return s, fmt.Errorf("solicitud %s proveedores: %w", r.IDSolicitud, err)
	}
	if err := r.Cotizaciones.Unmarshal(&s.CotizacionesRecibidas); err != nil {
		return s, fmt.Errorf("solicitud %s cotizaciones: %w", r.IDSolicitud, err)
	}
	return s, nil
}

func solicitudArgs(s models.SolicitudCotizacion) (items, proveedores, cotizaciones string, err error) {
	it, err := jsonText(s.Items)
	if err != nil {
		return
	}
	pr, err := jsonText(s.ProveedoresEnviados)
	if err != nil {
		return
	}
	co, err := jsonText(s.CotizacionesRecibidas)
	if err != nil {
		return
	}
	return it.String(), pr.String(), co.String(), nil
}

func (s *SQLStorage) ListSolicitudes(ctx context.Context) ([]models.SolicitudCotizacion, error) {
	var rows []solicitudRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM solicitudes ORDER BY id_solicitud`); err != nil {
		return nil, fmt.Errorf("failed to list solicitudes: %w", err)
	}
	solicitudes := make([]models.SolicitudCotizacion, 0, len(rows))
	for _, r := range rows {
		sol, err := r.toModel()
		if err != nil {
			return nil, err
		}
		solicitudes = append(solicitudes, sol)
	}
	return solicitudes, nil
}

func (s *SQLStorage) GetSolicitud(ctx context.Context, id string) (*models.SolicitudCotizacion, error) {
	var r solicitudRow
	err := s.db.GetContext(ctx, &r, s.db.Rebind(`SELECT * FROM solicitudes WHERE id_solicitud = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("solicitud %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get solicitud %s: %w", id, err)
	}
	sol, err := r.toModel()
	if err != nil {
		return nil, err
	}
	return &sol, nil
}

// CreateSolicitud inserts a new solicitud under the next SOL-NNN id.
func (s *SQLStorage) CreateSolicitud(ctx context.Context, sol *models.SolicitudCotizacion) error {
	if sol.Estado == "" {
		sol.Estado = models.SolicitudGenerada
	}
	items, proveedores, cotizaciones, err := solicitudArgs(*sol)
	if err != nil {
		return err
	}
	return s.conCodigoNuevo(ctx, func(tx *sqlx.Tx) error {
		ultimo, err := ultimoCodigo(ctx, tx, `SELECT id_solicitud FROM solicitudes`)
		if err != nil {
			return fmt.Errorf("failed to compute solicitud id: %w", err)
		}
		sol.IDSolicitud = fmt.Sprintf("SOL-%03d", ultimo+1)
		_, err = tx.ExecContext(ctx, tx.Rebind(`
INSERT INTO solicitudes (id_solicitud, fecha_emision, estado, items, proveedores_enviados, cotizaciones)
VALUES (?, ?, ?, ?, ?, ?)`),
			sol.IDSolicitud, sol.FechaEmisionSolicitud, string(sol.Estado), items, proveedores, cotizaciones)
		if err != nil {
			return fmt.Errorf("failed to insert solicitud: %w", err)
		}
		return nil
	})
}

func (s *SQLStorage) UpsertSolicitud(ctx context.Context, sol models.SolicitudCotizacion) error {
	items, proveedores, cotizaciones, err := solicitudArgs(sol)
	if err != nil {
		return err
	}
	query := `
INSERT INTO solicitudes (id_solicitud, fecha_emision, estado, items, proveedores_enviados, cotizaciones)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (id_solicitud) DO UPDATE SET
    fecha_emision = excluded.fecha_emision,
    estado = excluded.estado,
    items = excluded.items,
    proveedores_enviados = excluded.proveedores_enviados,
    cotizaciones = excluded.cotizaciones`
	err = s.exec(ctx, query, sol.IDSolicitud, sol.FechaEmisionSolicitud, string(sol.Estado), items, proveedores, cotizaciones)
	if err != nil {
		return fmt.Errorf("failed to upsert solicitud %s: %w", sol.IDSolicitud, err)
	}
	return nil
}

// UpdateSolicitud writes the status, invited providers and received quotes
// of sol, provided the stored status is still from.
func (s *SQLStorage) UpdateSolicitud(ctx context.Context, sol models.SolicitudCotizacion, from models.EstadoSolicitud) error {
	_, proveedores, cotizaciones, err := solicitudArgs(sol)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
UPDATE solicitudes SET estado = ?, proveedores_enviados = ?, cotizaciones = ?
WHERE id_solicitud = ? AND estado = ?`),
		string(sol.Estado), proveedores, cotizaciones, sol.IDSolicitud, string(from))
	if err != nil {
		return fmt.Errorf("failed to update solicitud %s: %w", sol.IDSolicitud, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return estadoCambiado(ctx, s.db,
			s.db.Rebind(`SELECT COUNT(*) FROM solicitudes WHERE id_solicitud = ?`), sol.IDSolicitud)
	}
	return nil
}

// AgregarCotizacion appends a provider's quote to an Enviada or Cotizada
// solicitud and marks it Cotizada. The solicitud is read and written in one
// transaction holding its row lock, so concurrent quotes are applied one after
// the other and a provider that already quoted is rejected with ErrConflict.
func (s *SQLStorage) AgregarCotizacion(ctx context.Context, solicitudID string, c models.CotizacionRecibida) (*models.SolicitudCotizacion, error) {
	var sol models.SolicitudCotizacion
	err := s.TransactionDecorator(ctx, func(tx *sqlx.Tx) error {
		var r solicitudRow
		err := tx.GetContext(ctx, &r,
			tx.Rebind(`SELECT * FROM solicitudes WHERE id_solicitud = ?`+s.bloqueo()), solicitudID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("solicitud %s: %w", solicitudID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to lock solicitud %s: %w", solicitudID, err)
		}
		if sol, err = r.toModel(); err != nil {
			return err
		}

		if sol.Estado != models.SolicitudEnviada && sol.Estado != models.SolicitudCotizada {
			return fmt.Errorf("solicitud %s is %s: %w", solicitudID, sol.Estado, ErrConflict)
		}
		if len(sol.ProveedoresEnviados) > 0 && !slices.Contains(sol.ProveedoresEnviados, c.IDProveedor) {
			return fmt.Errorf("proveedor %s was not invited to %s: %w", c.IDProveedor, solicitudID, ErrConflict)
		}
		for _, previa := range sol.CotizacionesRecibidas {
			if previa.IDProveedor == c.IDProveedor {
				return fmt.Errorf("proveedor %s already quoted %s: %w", c.IDProveedor, solicitudID, ErrConflict)
			}
		}

		sol.CotizacionesRecibidas = append(sol.CotizacionesRecibidas, c)
		sol.Estado = models.SolicitudCotizada
		_, _, cotizaciones, err := solicitudArgs(sol)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			tx.Rebind(`UPDATE solicitudes SET estado = ?, cotizaciones = ? WHERE id_solicitud = ?`),
			string(sol.Estado), cotizaciones, solicitudID)
		if err != nil {
			return fmt.Errorf("failed to store quote for %s: %w", solicitudID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &sol, nil
}

type ordenRow struct {
	ID              string          `db:"id"`
	IDSolicitud     string          `db:"id_solicitud"`
	IDProveedor     string          `db:"id_proveedor"`
	NombreProveedor string          `db:"nombre_proveedor"`
	ModalidadPago   string          `db:"modalidad_pago"`
	PlazoEntrega    string          `db:"plazo_entrega"`
	MontoTotal      decimal.Decimal `db:"monto_total"`
	Items           types.JSONText  `db:"items"`
	FechaEmision    string          `db:"fecha_emision"`
}

func (r ordenRow) toModel() (models.OrdenCompra, error) {
	oc := models.OrdenCompra{
		ID:              r.ID,
		IDSolicitud:     r.IDSolicitud,
		IDProveedor:     r.IDProveedor,
		NombreProveedor: r.NombreProveedor,
		ModalidadPago:   models.ModalidadPago(r.ModalidadPago),
		PlazoEntrega:    r.PlazoEntrega,
		MontoTotal:      r.MontoTotal,
	}
	fecha, err := time.Parse(formatoFecha, r.FechaEmision)
	if err != nil {
		return oc, fmt.Errorf("orden %s fecha: %w", r.ID, err)
	}
	oc.FechaEmision = fecha
	if err := r.Items.Unmarshal(&oc.Items); err != nil {
		return oc, fmt.Errorf("orden %s items: %w", r.ID, err)
	}
	return oc, nil
}

// AdjudicarSolicitud marks a Cotizada solicitud as Adjudicada and stores its
// purchase orders, numbering them OC-NNN, in one transaction.
func (s *SQLStorage) AdjudicarSolicitud(ctx context.Context, solicitudID string, ordenes []models.OrdenCompra) ([]models.OrdenCompra, error) {
	out := make([]models.OrdenCompra, len(ordenes))
	copy(out, ordenes)

	err := s.conCodigoNuevo(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			tx.Rebind(`UPDATE solicitudes SET estado = ? WHERE id_solicitud = ? AND estado = ?`),
			string(models.SolicitudAdjudicada), solicitudID, string(models.SolicitudCotizada))
		if err != nil {
			return fmt.Errorf("failed to update solicitud %s: %w", solicitudID, err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return estadoCambiado(ctx, tx,
				tx.Rebind(`SELECT COUNT(*) FROM solicitudes WHERE id_solicitud = ?`), solicitudID)
		}

		ultimo, err := ultimoCodigo(ctx, tx, `SELECT id FROM ordenes_compra`)
		if err != nil {
			return fmt.Errorf("failed to compute orden id: %w", err)
		}
		ahora := time.Now()
		for i := range out {
			oc := &out[i]
			ultimo++
			oc.ID = fmt.Sprintf("OC-%03d", ultimo)
			oc.IDSolicitud = solicitudID
			if oc.FechaEmision.IsZero() {
				oc.FechaEmision = ahora
			}
			items, err := jsonText(oc.Items)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, tx.Rebind(`
INSERT INTO ordenes_compra (id, id_solicitud, id_proveedor, nombre_proveedor, modalidad_pago, plazo_entrega, monto_total, items, fecha_emision)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
				oc.ID, oc.IDSolicitud, oc.IDProveedor, oc.NombreProveedor, string(oc.ModalidadPago),
				oc.PlazoEntrega, oc.MontoTotal.String(), items.String(), oc.FechaEmision.UTC().Format(formatoFecha))
			if err != nil {
				return fmt.Errorf("failed to insert orden %s: %w", oc.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListOrdenesCompra lists purchase orders, all of them when solicitudID is
// empty.
func (s *SQLStorage) ListOrdenesCompra(ctx context.Context, solicitudID string) ([]models.OrdenCompra, error) {
	var rows []ordenRow
	var err error
	if solicitudID == "" {
		err = s.db.SelectContext(ctx, &rows, `SELECT * FROM ordenes_compra ORDER BY id`)
	} else {
		err = s.db.SelectContext(ctx, &rows,
			s.db.Rebind(`SELECT * FROM ordenes_compra WHERE id_solicitud = ? ORDER BY id`), solicitudID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list ordenes de compra: %w", err)
	}
	ordenes := make([]models.OrdenCompra, 0, len(rows))
	for _, r := range rows {
		oc, err := r.toModel()
		if err != nil {
			return nil, err
		}
		ordenes = append(ordenes, oc)
	}
	return ordenes, nil
}
