package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"abastecimiento/idempotency"
	"abastecimiento/models"
	"abastecimiento/storage"
	"abastecimiento/workflow"
)

type evento struct {
	tipo, id string
}

type recorder struct {
	mu     sync.Mutex
	evs    []evento
	failed bool
}

func (r *recorder) Publish(_ context.Context, tipo, id string, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failed {
		return errors.New("broker down")
	}
	r.evs = append(r.evs, evento{tipo, id})
	return nil
}

func (r *recorder) Close() error { return nil }

var fechaFija = time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *storage.SQLStorage {
	t.Helper()
	ctx := context.Background()
	s, err := storage.New("sqlite3", ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Init(ctx))

	require.NoError(t, s.UpsertMaestro(ctx, models.Maestro{ID: "M-001", Nombre: "Juan", Puntos: 200}))
	require.NoError(t, s.UpsertPremio(ctx, models.Premio{ID: "PR-014", Nombre: "Pala", Costo: 35}))
	require.NoError(t, s.UpsertPremio(ctx, models.Premio{ID: "PR-001", Nombre: "Casco", Costo: 60}))

	for _, p := range []models.Provider{
		{ID: "PROV-001", Nombre: "Aceros del Sur", RazonSocial: "Aceros del Sur S.A.C.", Ruc: "20100000001"},
		{ID: "PROV-002", Nombre: "Cementos Lima", RazonSocial: "Unión Andina", Ruc: "20100000002"},
	} {
		require.NoError(t, s.UpsertProveedor(ctx, p))
	}
	pedidos := []models.Pedido{
		{IDPedido: "PED-001", EstadoPedido: models.PedidoRevisado, Productos: []models.ProductoPedido{
			{ItemPendiente: models.ItemPendiente{NombreProducto: "Cemento", CantidadRequerida: 10, UnidadMedida: "bolsa", FechaRequerida: "15-01-2025"}},
			{ItemPendiente: models.ItemPendiente{NombreProducto: "Arena", CantidadRequerida: 2, UnidadMedida: "m3", FechaRequerida: "20-02-2025"}},
		}},
		{IDPedido: "PED-002", EstadoPedido: models.PedidoRevisado, Productos: []models.ProductoPedido{
			{ItemPendiente: models.ItemPendiente{NombreProducto: "Fierro", CantidadRequerida: 4, UnidadMedida: "varilla", FechaRequerida: "20-01-2025"}},
		}},
		{IDPedido: "PED-003", EstadoPedido: models.PedidoPendiente, Productos: []models.ProductoPedido{
			{ItemPendiente: models.ItemPendiente{NombreProducto: "Yeso", CantidadRequerida: 1, FechaRequerida: "01-01-2025"}},
		}},
	}
	for _, p := range pedidos {
		require.NoError(t, s.UpsertPedido(ctx, p))
	}
	return s
}

func silencioso() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newCanjeService(t *testing.T) (*CanjeService, *recorder) {
	rec := &recorder{}
	s := NewCanjeService(newStore(t), rec, idempotency.NewMemoryStore(time.Hour), silencioso())
	s.now = func() time.Time { return fechaFija }
	return s, rec
}

func newCompraService(t *testing.T) (*CompraService, *recorder) {
	rec := &recorder{}
	s := NewCompraService(newStore(t), rec, idempotency.NewMemoryStore(time.Hour), silencioso())
	s.now = func() time.Time { return fechaFija }
	return s, rec
}

func TestPrevisualizarFusionaCantidades(t *testing.T) {
	s, _ := newCanjeService(t)
	p, err := s.Previsualizar(context.Background(), "M-001", []LineaCanje{
		{PremioID: "PR-014", Cantidad: "2"},
		{PremioID: "PR-014", Cantidad: "3"},
		{PremioID: "PR-001", Cantidad: "abc"},
	})
	require.NoError(t, err)
	require.Len(t, p.Premios, 1)
	assert.Equal(t, 5, p.Premios[0].Cantidad)
	assert.Equal(t, 175, p.Total)
	require.NotNil(t, p.Resumen)
	assert.Equal(t, 25, p.Resumen.NuevoTotal)
}

func TestPrevisualizarPremioDesconocido(t *testing.T) {
	s, _ := newCanjeService(t)
	_, err := s.Previsualizar(context.Background(), "", []LineaCanje{{PremioID: "PR-999"}})
	assert.ErrorIs(t, err, ErrValidacion)
}

func TestRegistrarCanje(t *testing.T) {
	ctx := context.Background()
	s, rec := newCanjeService(t)

	c, err := s.Registrar(ctx, "M-001", "ana", "key-1", []LineaCanje{{PremioID: "PR-014", Cantidad: ""}, {PremioID: "PR-001", Cantidad: "2"}})
	require.NoError(t, err)
	assert.Equal(t, "C-001", c.Codigo)
	assert.Equal(t, 155, c.PuntosGastados)
	assert.Equal(t, "ana", c.Operador)
	assert.Equal(t, fechaFija, c.Fecha)
	assert.Equal(t, []evento{{"canje-registrado", "C-001"}}, rec.evs)

	_, err = s.Registrar(ctx, "M-001", "ana", "key-1", []LineaCanje{{PremioID: "PR-014"}})
	assert.ErrorIs(t, err, idempotency.ErrDuplicateKey)

	perfil, err := s.Perfil(ctx, "M-001")
	require.NoError(t, err)
	assert.Equal(t, 45, perfil.Maestro.Puntos)
	assert.Equal(t, 1, perfil.TotalCanjes)
	assert.Equal(t, 155, perfil.PuntosCanjeados)
}

func TestRegistrarCanjeRechazos(t *testing.T) {
	ctx := context.Background()
	s, rec := newCanjeService(t)

	_, err := s.Registrar(ctx, "M-001", "", "", nil)
	assert.ErrorIs(t, err, ErrValidacion)

	_, err = s.Registrar(ctx, "M-001", "", "", []LineaCanje{{PremioID: "PR-014", Cantidad: "0"}})
	assert.ErrorIs(t, err, ErrValidacion, "zero quantities leave the selection empty")

	_, err = s.Registrar(ctx, "M-001", "", "", []LineaCanje{{PremioID: "PR-001", Cantidad: "4"}})
	assert.ErrorIs(t, err, ErrPuntosInsuficientes)

	_, err = s.Registrar(ctx, "M-404", "", "", []LineaCanje{{PremioID: "PR-001"}})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.Empty(t, rec.evs)
}

func TestRegistrarCanjeCantidadDesbordada(t *testing.T) {
	ctx := context.Background()
	s, rec := newCanjeService(t)

	_, err := s.Registrar(ctx, "M-001", "ana", "", []LineaCanje{{PremioID: "PR-014", Cantidad: "5270498306774157576"}})
	assert.ErrorIs(t, err, ErrValidacion)

	_, err = s.Registrar(ctx, "M-001", "ana", "", []LineaCanje{
		{PremioID: "PR-014", Cantidad: "9000"},
		{PremioID: "PR-014", Cantidad: "9000"},
	})
	assert.ErrorIs(t, err, ErrPuntosInsuficientes, "the second line is ignored and 9000 units still cost too much")

	require.NoError(t, s.store.UpsertPremio(ctx, models.Premio{ID: "PR-000", Nombre: "Sticker", Costo: 0}))
	_, err = s.Registrar(ctx, "M-001", "ana", "", []LineaCanje{{PremioID: "PR-000"}})
	assert.ErrorIs(t, err, ErrValidacion, "a canje must spend points")

	m, err := s.store.GetMaestro(ctx, "M-001")
	require.NoError(t, err)
	assert.Equal(t, 200, m.Puntos)
	assert.Empty(t, rec.evs)
}

func TestRegistrarCanjeConPublicadorCaido(t *testing.T) {
	s, rec := newCanjeService(t)
	rec.failed = true
	_, err := s.Registrar(context.Background(), "M-001", "", "", []LineaCanje{{PremioID: "PR-014"}})
	assert.NoError(t, err)
}

func TestListPedidosOrdenados(t *testing.T) {
	s, _ := newCompraService(t)
	pedidos, err := s.ListPedidos(context.Background())
	require.NoError(t, err)
	require.Len(t, pedidos, 3)
	assert.Equal(t, "PED-003", pedidos[0].IDPedido)
}

func TestRevisarPedido(t *testing.T) {
	ctx := context.Background()
	s, _ := newCompraService(t)

	p, err := s.RevisarPedido(ctx, "PED-003")
	require.NoError(t, err)
	assert.Equal(t, models.PedidoRevisado, p.EstadoPedido)

	_, err = s.RevisarPedido(ctx, "PED-003")
	assert.ErrorIs(t, err, ErrTransicionInvalida)

	_, err = s.RevisarPedido(ctx, "PED-404")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	items, err := s.ItemsPendientes(ctx, FiltroItems{})
	require.NoError(t, err)
	assert.Len(t, items, 4, "reviewed pedido items become pending")
}

func TestItemsPendientesFiltro(t *testing.T) {
	s, _ := newCompraService(t)
	items, err := s.ItemsPendientes(context.Background(), FiltroItems{Desde: "2025-01-01", Hasta: "2025-01-31", Orden: workflow.Descendente})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Fierro", items[0].NombreProducto)
	assert.Equal(t, "PED-002-Fierro-4-20-01-2025", items[0].Clave)

	_, err = s.ItemsPendientes(context.Background(), FiltroItems{Desde: "01/01/2025"})
	assert.ErrorIs(t, err, ErrValidacion)
	_, err = s.ItemsPendientes(context.Background(), FiltroItems{Orden: "random"})
	assert.ErrorIs(t, err, ErrValidacion)
}

// flujoHastaCotizada groups Cemento and Fierro, sends the solicitud to both
// providers and registers one quote from each.
func flujoHastaCotizada(t *testing.T, s *CompraService) *models.SolicitudCotizacion {
	t.Helper()
	ctx := context.Background()

	sol, err := s.AgruparItems(ctx, FiltroItems{Desde: "2025-01-01", Hasta: "2025-01-31"},
		[]string{"PED-001-Cemento-10-15-01-2025", "PED-002-Fierro-4-20-01-2025"}, "")
	require.NoError(t, err)
	require.Equal(t, "SOL-001", sol.IDSolicitud)

	_, err = s.EnviarSolicitud(ctx, sol.IDSolicitud, []string{"PROV-001", "PROV-002", "PROV-001"})
	require.NoError(t, err)

	_, err = s.RegistrarCotizacion(ctx, sol.IDSolicitud, Cotizacion{
		ProveedorID: "PROV-001", FechaEmision: "2025-01-11", FechaGarantia: "2025-06-11", PlazoEntrega: "5 días",
		Lineas: []LineaCotizacion{
			{Monto: "250", Modalidad: models.PagoCredito},
			{Monto: "100", Modalidad: models.PagoAmbos},
		},
	}, "")
	require.NoError(t, err)

	sol, err = s.RegistrarCotizacion(ctx, sol.IDSolicitud, Cotizacion{
		ProveedorID: "PROV-002", FechaEmision: "2025-01-12", FechaGarantia: "2025-03-12", PlazoEntrega: "2 días",
		Lineas: []LineaCotizacion{
			{Monto: "240.50"},
			{NoCotizado: true, Monto: "999"},
		},
	}, "")
	require.NoError(t, err)
	return sol
}

func TestFlujoCompraCompleto(t *testing.T) {
	ctx := context.Background()
	s, rec := newCompraService(t)

	sol := flujoHastaCotizada(t, s)
	assert.Equal(t, models.SolicitudCotizada, sol.Estado)
	assert.Equal(t, "10-01-2025", sol.FechaEmisionSolicitud)
	require.Len(t, sol.CotizacionesRecibidas, 2)
	assert.Len(t, sol.CotizacionesRecibidas[1].Items, 1)
	assert.True(t, sol.CotizacionesRecibidas[1].MontoTotal.Equal(decimal.RequireFromString("240.50")))

	pendientes, err := s.ItemsPendientes(ctx, FiltroItems{})
	require.NoError(t, err)
	require.Len(t, pendientes, 1, "grouped items leave the pending list")
	assert.Equal(t, "Arena", pendientes[0].NombreProducto)

	disponibles, err := s.ProveedoresDisponibles(ctx, "SOL-001")
	require.NoError(t, err)
	assert.Empty(t, disponibles)

	ordenes, err := s.Adjudicar(ctx, "SOL-001", []Asignacion{
		{NombreProducto: "Cemento", ProveedorID: "PROV-002"},
		{NombreProducto: "Fierro", ProveedorID: "PROV-001", Modalidad: models.PagoCredito},
	}, "adj-1")
	require.NoError(t, err)
	require.Len(t, ordenes, 2)
	assert.Equal(t, "OC-001", ordenes[0].ID)
	assert.Equal(t, "PROV-002", ordenes[0].IDProveedor)
	assert.Equal(t, models.PagoContado, ordenes[0].ModalidadPago)
	assert.Equal(t, models.PagoCredito, ordenes[1].ModalidadPago)
	assert.Equal(t, fechaFija, ordenes[1].FechaEmision)

	got, err := s.GetSolicitud(ctx, "SOL-001")
	require.NoError(t, err)
	assert.Equal(t, models.SolicitudAdjudicada, got.Estado)

	stored, err := s.ListOrdenesCompra(ctx, "SOL-001")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
	assert.Contains(t, rec.evs, evento{"solicitud-adjudicada", "SOL-001"})

	_, err = s.Adjudicar(ctx, "SOL-001", nil, "")
	assert.ErrorIs(t, err, ErrTransicionInvalida)
}

func TestAdjudicarRechazos(t *testing.T) {
	ctx := context.Background()
	s, _ := newCompraService(t)
	flujoHastaCotizada(t, s)

	_, err := s.Adjudicar(ctx, "SOL-001", []Asignacion{{NombreProducto: "Cemento", ProveedorID: "PROV-002"}}, "")
	assert.ErrorIs(t, err, workflow.ErrAdjudicacionIncompleta)

	_, err = s.Adjudicar(ctx, "SOL-001", []Asignacion{
		{NombreProducto: "Cemento", ProveedorID: "PROV-002"},
		{NombreProducto: "Cemento", ProveedorID: "PROV-001"},
	}, "")
	assert.ErrorIs(t, err, workflow.ErrItemBloqueado)

	_, err = s.Adjudicar(ctx, "SOL-001", []Asignacion{{NombreProducto: "Fierro", ProveedorID: "PROV-002"}}, "")
	assert.ErrorIs(t, err, workflow.ErrItemNoOfertado)

	_, err = s.Adjudicar(ctx, "SOL-001", []Asignacion{{NombreProducto: "Cemento", ProveedorID: "PROV-001", Modalidad: models.PagoContado}}, "")
	assert.ErrorIs(t, err, workflow.ErrModalidadNoOfrecida)

	got, err := s.GetSolicitud(ctx, "SOL-001")
	require.NoError(t, err)
	assert.Equal(t, models.SolicitudCotizada, got.Estado)
}

func TestRegistrarCotizacionRechazos(t *testing.T) {
	ctx := context.Background()
	s, _ := newCompraService(t)

	sol, err := s.AgruparItems(ctx, FiltroItems{}, []string{"PED-001-Cemento-10-15-01-2025"}, "")
	require.NoError(t, err)

	valida := Cotizacion{
		ProveedorID: "PROV-001", FechaEmision: "2025-01-11", FechaGarantia: "2025-06-11", PlazoEntrega: "5 días",
		Lineas: []LineaCotizacion{{Monto: "10"}},
	}
	_, err = s.RegistrarCotizacion(ctx, sol.IDSolicitud, valida, "")
	assert.ErrorIs(t, err, ErrTransicionInvalida, "Generada solicitudes do not accept quotes")

	_, err = s.EnviarSolicitud(ctx, sol.IDSolicitud, []string{"PROV-001"})
	require.NoError(t, err)

	fuera := valida
	fuera.ProveedorID = "PROV-002"
	_, err = s.RegistrarCotizacion(ctx, sol.IDSolicitud, fuera, "")
	assert.ErrorIs(t, err, ErrValidacion, "provider was not invited")

	incompleta := valida
	incompleta.PlazoEntrega = ""
	_, err = s.RegistrarCotizacion(ctx, sol.IDSolicitud, incompleta, "")
	assert.ErrorIs(t, err, workflow.ErrFormularioInvalido)

	lineas := valida
	lineas.Lineas = nil
	_, err = s.RegistrarCotizacion(ctx, sol.IDSolicitud, lineas, "")
	assert.ErrorIs(t, err, ErrValidacion)

	_, err = s.RegistrarCotizacion(ctx, sol.IDSolicitud, valida, "")
	require.NoError(t, err)
	_, err = s.RegistrarCotizacion(ctx, sol.IDSolicitud, valida, "")
	assert.ErrorIs(t, err, ErrValidacion, "a provider quotes once")
}

func TestAgruparItemsRechazos(t *testing.T) {
	ctx := context.Background()
	s, _ := newCompraService(t)

	_, err := s.AgruparItems(ctx, FiltroItems{}, nil, "")
	assert.ErrorIs(t, err, ErrValidacion)

	_, err = s.AgruparItems(ctx, FiltroItems{Desde: "2025-02-01"}, []string{"PED-001-Cemento-10-15-01-2025"}, "")
	assert.ErrorIs(t, err, ErrValidacion, "selection outside the filter is not generated")

	_, err = s.EnviarSolicitud(ctx, "SOL-404", []string{"PROV-001"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAgruparItemsProductoRepetido(t *testing.T) {
	ctx := context.Background()
	s, _ := newCompraService(t)
	require.NoError(t, s.store.UpsertPedido(ctx, models.Pedido{IDPedido: "PED-009", EstadoPedido: models.PedidoRevisado, Productos: []models.ProductoPedido{
		{ItemPendiente: models.ItemPendiente{NombreProducto: "Cemento", CantidadRequerida: 5, UnidadMedida: "bolsa", FechaRequerida: "18-01-2025"}},
	}}))

	_, err := s.AgruparItems(ctx, FiltroItems{}, []string{"PED-001-Cemento-10-15-01-2025", "PED-009-Cemento-5-18-01-2025"}, "")
	assert.ErrorIs(t, err, ErrValidacion)

	sols, err := s.ListSolicitudes(ctx)
	require.NoError(t, err)
	assert.Empty(t, sols)

	// each pedido's Cemento can still go out on its own
	_, err = s.AgruparItems(ctx, FiltroItems{}, []string{"PED-001-Cemento-10-15-01-2025"}, "")
	require.NoError(t, err)
	_, err = s.AgruparItems(ctx, FiltroItems{}, []string{"PED-009-Cemento-5-18-01-2025"}, "")
	require.NoError(t, err)
}

// fallaUnaVez fails the next write it is asked to do.
type fallaUnaVez struct {
	storage.Storage
	fallas int
}

func (f *fallaUnaVez) fallar() error {
	if f.fallas > 0 {
		f.fallas--
		return errors.New("connection reset by peer")
	}
	return nil
}

func (f *fallaUnaVez) CreateCanje(ctx context.Context, c *models.Canje) error {
	if err := f.fallar(); err != nil {
		return err
	}
	return f.Storage.CreateCanje(ctx, c)
}

func (f *fallaUnaVez) CreateSolicitud(ctx context.Context, sol *models.SolicitudCotizacion) error {
	if err := f.fallar(); err != nil {
		return err
	}
	return f.Storage.CreateSolicitud(ctx, sol)
}

func TestClaveLiberadaTrasFalloDeEscritura(t *testing.T) {
	ctx := context.Background()
	store := &fallaUnaVez{Storage: newStore(t), fallas: 1}
	idem := idempotency.NewMemoryStore(time.Hour)
	canjes := NewCanjeService(store, &recorder{}, idem, silencioso())

	_, err := canjes.Registrar(ctx, "M-001", "ana", "k-canje", []LineaCanje{{PremioID: "PR-014"}})
	require.Error(t, err)
	c, err := canjes.Registrar(ctx, "M-001", "ana", "k-canje", []LineaCanje{{PremioID: "PR-014"}})
	require.NoError(t, err, "a failed write does not burn the key")
	assert.Equal(t, 35, c.PuntosGastados)
	_, err = canjes.Registrar(ctx, "M-001", "ana", "k-canje", []LineaCanje{{PremioID: "PR-014"}})
	assert.ErrorIs(t, err, idempotency.ErrDuplicateKey)

	store.fallas = 1
	compras := NewCompraService(store, &recorder{}, idem, silencioso())
	_, err = compras.AgruparItems(ctx, FiltroItems{}, []string{"PED-002-Fierro-4-20-01-2025"}, "k-sol")
	require.Error(t, err)
	sol, err := compras.AgruparItems(ctx, FiltroItems{}, []string{"PED-002-Fierro-4-20-01-2025"}, "k-sol")
	require.NoError(t, err)
	assert.Equal(t, "SOL-001", sol.IDSolicitud)
}

func TestEnviarSolicitudRechazos(t *testing.T) {
	ctx := context.Background()
	s, _ := newCompraService(t)
	sol, err := s.AgruparItems(ctx, FiltroItems{}, []string{"PED-001-Cemento-10-15-01-2025"}, "")
	require.NoError(t, err)

	_, err = s.EnviarSolicitud(ctx, sol.IDSolicitud, nil)
	assert.ErrorIs(t, err, ErrValidacion)
	_, err = s.EnviarSolicitud(ctx, sol.IDSolicitud, []string{"PROV-404"})
	assert.ErrorIs(t, err, ErrValidacion)

	_, err = s.EnviarSolicitud(ctx, sol.IDSolicitud, []string{"PROV-001"})
	require.NoError(t, err)
	_, err = s.EnviarSolicitud(ctx, sol.IDSolicitud, []string{"PROV-001"})
	assert.ErrorIs(t, err, ErrTransicionInvalida)
}

func TestBuscarProveedores(t *testing.T) {
	s, _ := newCompraService(t)
	got, err := s.BuscarProveedores(context.Background(), "andina")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "PROV-002", got[0].ID)

	got, err = s.BuscarProveedores(context.Background(), "nada")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
