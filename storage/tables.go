package storage

import "context"

func (s *SQLStorage) CreateMaestroTable(ctx context.Context) error {
	query := `
CREATE TABLE IF NOT EXISTS maestros (
    id TEXT PRIMARY KEY,
    nombre TEXT NOT NULL,
    apellidos TEXT NOT NULL DEFAULT '',
    ruc TEXT NOT NULL DEFAULT '',
    distrito TEXT NOT NULL DEFAULT '',
    direccion TEXT NOT NULL DEFAULT '',
    telefono TEXT NOT NULL DEFAULT '',
    correo TEXT NOT NULL DEFAULT '',
    especialidad TEXT NOT NULL DEFAULT '',
    fecha_registro TEXT NOT NULL DEFAULT '',
    puntos INTEGER NOT NULL DEFAULT 0 CHECK (puntos >= 0)
);`
	return s.exec(ctx, query)
}

func (s *SQLStorage) CreatePremioTable(ctx context.Context) error {
	query := `
CREATE TABLE IF NOT EXISTS premios (
    id TEXT PRIMARY KEY,
    nombre TEXT NOT NULL,
    descripcion TEXT NOT NULL DEFAULT '',
    costo INTEGER NOT NULL CHECK (costo >= 0),
    categoria TEXT NOT NULL DEFAULT ''
);`
	return s.exec(ctx, query)
}

func (s *SQLStorage) CreateCanjeTable(ctx context.Context) error {
	query := `
CREATE TABLE IF NOT EXISTS canjes (
    id TEXT PRIMARY KEY,
    codigo TEXT UNIQUE NOT NULL,
    maestro_id TEXT NOT NULL REFERENCES maestros(id) ON DELETE CASCADE,
    operador TEXT NOT NULL DEFAULT '',
    fecha TEXT NOT NULL,
    premios TEXT NOT NULL,
    puntos_gastados INTEGER NOT NULL,
    estado TEXT NOT NULL
);`
	return s.exec(ctx, query)
}

func (s *SQLStorage) CreateProductoTable(ctx context.Context) error {
	query := `
CREATE TABLE IF NOT EXISTS productos (
    id_producto TEXT PRIMARY KEY,
    nombre TEXT NOT NULL,
    rubro TEXT NOT NULL DEFAULT '',
    familia TEXT NOT NULL DEFAULT '',
    clase TEXT NOT NULL DEFAULT '',
    marca TEXT NOT NULL DEFAULT '',
    unidad TEXT NOT NULL DEFAULT '',
    precio_base TEXT NOT NULL DEFAULT '0'
);`
	return s.exec(ctx, query)
}

func (s *SQLStorage) CreateProveedorTable(ctx context.Context) error {
	query := `
CREATE TABLE IF NOT EXISTS proveedores (
    id TEXT PRIMARY KEY,
    nombre TEXT NOT NULL,
    razon_social TEXT NOT NULL DEFAULT '',
    ruc TEXT NOT NULL DEFAULT '',
    telefono TEXT NOT NULL DEFAULT '',
    correo TEXT NOT NULL DEFAULT '',
    direccion TEXT NOT NULL DEFAULT '',
    rubro TEXT NOT NULL DEFAULT ''
);`
	return s.exec(ctx, query)
}

func (s *SQLStorage) CreatePedidoTable(ctx context.Context) error {
	query := `
CREATE TABLE IF NOT EXISTS pedidos (
    id_pedido TEXT PRIMARY KEY,
    fecha_pedido TEXT NOT NULL DEFAULT '',
    hora_pedido TEXT NOT NULL DEFAULT '',
    estado_pedido TEXT NOT NULL,
    empleado TEXT NOT NULL,
    productos TEXT NOT NULL
);`
	return s.exec(ctx, query)
}

func (s *SQLStorage) CreateSolicitudTable(ctx context.Context) error {
	query := `
CREATE TABLE IF NOT EXISTS solicitudes (
    id_solicitud TEXT PRIMARY KEY,
    fecha_emision TEXT NOT NULL DEFAULT '',
    estado TEXT NOT NULL,
    items TEXT NOT NULL,
    proveedores_enviados TEXT NOT NULL,
    cotizaciones TEXT NOT NULL
);`
	return s.exec(ctx, query)
}

func (s *SQLStorage) CreateOrdenCompraTable(ctx context.Context) error {
	query := `
CREATE TABLE IF NOT EXISTS ordenes_compra (
    id TEXT PRIMARY KEY,
    id_solicitud TEXT NOT NULL REFERENCES solicitudes(id_solicitud) ON DELETE CASCADE,
    id_proveedor TEXT NOT NULL,
    nombre_proveedor TEXT NOT NULL DEFAULT '',
    modalidad_pago TEXT NOT NULL,
    plazo_entrega TEXT NOT NULL DEFAULT '',
    monto_total TEXT NOT NULL,
    items TEXT NOT NULL,
    fecha_emision TEXT NOT NULL
);`
	return s.exec(ctx, query)
}
