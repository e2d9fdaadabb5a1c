package service

import (
	"context"
	"log/slog"

	"abastecimiento/events"
	"abastecimiento/idempotency"
	"abastecimiento/models"
	"abastecimiento/storage"
	"abastecimiento/workflow"
)

// FiltroItems narrows the pending items view. Dates use YYYY-MM-DD.
type FiltroItems struct {
	Desde string
	Hasta string
	Orden workflow.Orden
}

type ItemVisible struct {
	models.ItemPendiente
	Clave string `json:"clave"`
}

type LineaCotizacion struct {
	Monto      string
	Modalidad  models.ModalidadPago
	NoCotizado bool
}

type Cotizacion struct {
	ProveedorID   string
	FechaEmision  string
	FechaGarantia string
	PlazoEntrega  string
	Lineas        []LineaCotizacion
}

// Asignacion awards one product to the quote of one provider. An empty
// Modalidad keeps the default derived from the offer.
type Asignacion struct {
	NombreProducto string
	ProveedorID    string
	Modalidad      models.ModalidadPago
}

type CompraService struct {
	base
}

func NewCompraService(store storage.Storage, pub events.Publisher, idem idempotency.Store, log *slog.Logger) *CompraService {
	return &CompraService{base: newBase(store, pub, idem, log)}
}

func (s *CompraService) ListProductos(ctx context.Context) ([]models.Product, error) {
	return s.store.ListProductos(ctx)
}

func (s *CompraService) BuscarProveedores(ctx context.Context, term string) ([]models.Provider, error) {
	providers, err := s.store.ListProveedores(ctx)
	if err != nil {
		return nil, err
	}
	found := workflow.BuscarProveedores(providers, term)
	if found == nil {
		found = []models.Provider{}
	}
	return found, nil
}

func (s *CompraService) ListPedidos(ctx context.Context) ([]models.Pedido, error) {
	pedidos, err := s.store.ListPedidos(ctx)
	if err != nil {
		return nil, err
	}
	return workflow.OrdenarPedidos(pedidos), nil
}

func (s *CompraService) GetPedido(ctx context.Context, id string) (*models.Pedido, error) {
	return s.store.GetPedido(ctx, id)
}

// RevisarPedido moves a Pendiente pedido to Revisado.
func (s *CompraService) RevisarPedido(ctx context.Context, id string) (*models.Pedido, error) {
	p, err := s.store.GetPedido(ctx, id)
	if err != nil {
		return nil, err
	}
	if !workflow.PuedeRevisar(*p) {
		return nil, invalidTransition(string(p.EstadoPedido), string(models.PedidoRevisado))
	}
	if err := s.store.UpdatePedidoEstado(ctx, id, models.PedidoPendiente, models.PedidoRevisado); err != nil {
		return nil, transicion(err)
	}
	p.EstadoPedido = models.PedidoRevisado
	return p, nil
}

func (s *CompraService) agrupacion(ctx context.Context, f FiltroItems) (*workflow.Agrupacion, error) {
	pedidos, err := s.store.ListPedidos(ctx)
	if err != nil {
		return nil, err
	}
	solicitudes, err := s.store.ListSolicitudes(ctx)
	if err != nil {
		return nil, err
	}
	a := workflow.NuevaAgrupacion(workflow.SinAgrupar(workflow.ItemsPendientes(pedidos), solicitudes))
	switch f.Orden {
	case "", workflow.Ascendente, workflow.Descendente:
		a.SetOrden(f.Orden)
	default:
		return nil, invalido("orden %q", f.Orden)
	}
	if err := a.SetDesde(f.Desde); err != nil {
		return nil, invalido("desde: %s", err)
	}
	if err := a.SetHasta(f.Hasta); err != nil {
		return nil, invalido("hasta: %s", err)
	}
	return a, nil
}

// ItemsPendientes lists the items of reviewed pedidos not yet grouped into a
// solicitud, filtered and sorted by fecha_requerida.
func (s *CompraService) ItemsPendientes(ctx context.Context, f FiltroItems) ([]ItemVisible, error) {
	a, err := s.agrupacion(ctx, f)
	if err != nil {
		return nil, err
	}
	visibles := a.Visibles()
	out := make([]ItemVisible, len(visibles))
	for i, it := range visibles {
		out[i] = ItemVisible{ItemPendiente: it, Clave: workflow.ClaveItem(it)}
	}
	return out, nil
}

// AgruparItems creates a Generada solicitud from the selected items that are
// visible under f.
func (s *CompraService) AgruparItems(ctx context.Context, f FiltroItems, claves []string, idemKey string) (*models.SolicitudCotizacion, error) {
	const op = "service.CompraService.AgruparItems"

	a, err := s.agrupacion(ctx, f)
	if err != nil {
		return nil, err
	}
	a.SeleccionarPorClave(claves...)
	if !a.PuedeGenerar() {
		return nil, invalido("no pending items selected")
	}
	items := a.Generar()
	if len(items) == 0 {
		return nil, invalido("selected items are outside the date range")
	}
	// quotes and awards are matched by product name
	productos := make(map[string]string, len(items))
	for _, it := range items {
		if origen, dup := productos[it.NombreProducto]; dup {
			return nil, invalido("%q is requested by both %s and %s; group them in separate solicitudes",
				it.NombreProducto, origen, it.OrigenPedidoID)
		}
		productos[it.NombreProducto] = it.OrigenPedidoID
	}
	liberar, err := s.reservar(ctx, idemKey)
	if err != nil {
		return nil, err
	}

	sol := &models.SolicitudCotizacion{
		FechaEmisionSolicitud: s.now().Format(formatoFecha),
		Estado:                models.SolicitudGenerada,
		Items:                 items,
	}
	if err := s.store.CreateSolicitud(ctx, sol); err != nil {
		liberar()
		s.log.Error("failed to create solicitud", slog.String("op", op), slog.String("error", err.Error()))
		return nil, err
	}
	s.log.Info("solicitud generated", slog.String("op", op), slog.String("id", sol.IDSolicitud), slog.Int("items", len(items)))
	return sol, nil
}

func (s *CompraService) ListSolicitudes(ctx context.Context) ([]models.SolicitudCotizacion, error) {
	return s.store.ListSolicitudes(ctx)
}

func (s *CompraService) GetSolicitud(ctx context.Context, id string) (*models.SolicitudCotizacion, error) {
	return s.store.GetSolicitud(ctx, id)
}

// EnviarSolicitud sends a Generada solicitud to the given providers.
func (s *CompraService) EnviarSolicitud(ctx context.Context, id string, proveedorIDs []string) (*models.SolicitudCotizacion, error) {
	sol, err := s.store.GetSolicitud(ctx, id)
	if err != nil {
		return nil, err
	}
	if sol.Estado != models.SolicitudGenerada {
		return nil, invalidTransition(string(sol.Estado), string(models.SolicitudEnviada))
	}
	if len(proveedorIDs) == 0 {
		return nil, invalido("at least one provider is required")
	}
	providers, err := s.store.ListProveedores(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(providers))
	for _, p := range providers {
		known[p.ID] = struct{}{}
	}
	seen := make(map[string]struct{}, len(proveedorIDs))
	enviados := make([]string, 0, len(proveedorIDs))
	for _, pid := range proveedorIDs {
		if _, ok := known[pid]; !ok {
			return nil, invalido("provider %q does not exist", pid)
		}
		if _, dup := seen[pid]; dup {
			continue
		}
		seen[pid] = struct{}{}
		enviados = append(enviados, pid)
	}

	sol.Estado = models.SolicitudEnviada
	sol.ProveedoresEnviados = enviados
	if err := s.store.UpdateSolicitud(ctx, *sol, models.SolicitudGenerada); err != nil {
		return nil, transicion(err)
	}
	return sol, nil
}

func (s *CompraService) ProveedoresDisponibles(ctx context.Context, id string) ([]models.Provider, error) {
	sol, err := s.store.GetSolicitud(ctx, id)
	if err != nil {
		return nil, err
	}
	providers, err := s.store.ListProveedores(ctx)
	if err != nil {
		return nil, err
	}
	disponibles := workflow.ProveedoresDisponibles(*sol, providers)
	if disponibles == nil {
		disponibles = []models.Provider{}
	}
	return disponibles, nil
}

// RegistrarCotizacion records a provider's quote and moves the solicitud to
// Cotizada. Lines follow the order of the solicitud items.
func (s *CompraService) RegistrarCotizacion(ctx context.Context, id string, c Cotizacion, idemKey string) (*models.SolicitudCotizacion, error) {
	const op = "service.CompraService.RegistrarCotizacion"

	sol, err := s.store.GetSolicitud(ctx, id)
	if err != nil {
		return nil, err
	}
	if !workflow.PuedeCotizar(*sol) {
		return nil, invalidTransition(string(sol.Estado), string(models.SolicitudCotizada))
	}
	if len(c.Lineas) != len(sol.Items) {
		return nil, invalido("expected %d lines, got %d", len(sol.Items), len(c.Lineas))
	}
	providers, err := s.store.ListProveedores(ctx)
	if err != nil {
		return nil, err
	}
	disponible := false
	for _, p := range workflow.ProveedoresDisponibles(*sol, providers) {
		if p.ID == c.ProveedorID {
			disponible = true
			break
		}
	}
	if !disponible {
		return nil, invalido("provider %q cannot quote this solicitud", c.ProveedorID)
	}

	form := workflow.NuevoFormulario(*sol)
	form.ProveedorID = c.ProveedorID
	form.FechaEmision = c.FechaEmision
	form.FechaGarantia = c.FechaGarantia
	form.PlazoEntrega = c.PlazoEntrega
	for i, l := range c.Lineas {
		form.SetMonto(i, l.Monto)
		if l.Modalidad != "" {
			form.SetModalidad(i, l.Modalidad)
		}
		if l.NoCotizado {
			form.MarcarNoCotizado(i)
		}
	}
	cot, err := form.Enviar(providers)
	if err != nil {
		return nil, err
	}
	liberar, err := s.reservar(ctx, idemKey)
	if err != nil {
		return nil, err
	}

	sol, err = s.store.AgregarCotizacion(ctx, id, cot)
	if err != nil {
		liberar()
		s.log.Error("failed to store quote", slog.String("op", op), slog.String("id", id), slog.String("error", err.Error()))
		return nil, transicion(err)
	}
	s.log.Info("quote registered", slog.String("op", op), slog.String("id", id),
		slog.String("proveedor", cot.IDProveedor), slog.String("monto", cot.MontoTotal.String()))
	return sol, nil
}

// Adjudicar awards every item of a Cotizada solicitud and issues the
// resulting purchase orders.
func (s *CompraService) Adjudicar(ctx context.Context, id string, asignaciones []Asignacion, idemKey string) ([]models.OrdenCompra, error) {
	const op = "service.CompraService.Adjudicar"

	sol, err := s.store.GetSolicitud(ctx, id)
	if err != nil {
		return nil, err
	}
	if !workflow.PuedeEvaluar(*sol) {
		return nil, invalidTransition(string(sol.Estado), string(models.SolicitudAdjudicada))
	}

	a := workflow.NuevaAdjudicacion(*sol)
	for _, asig := range asignaciones {
		if err := a.VerProveedor(asig.ProveedorID); err != nil {
			return nil, err
		}
		if err := a.Adjudicar(asig.NombreProducto, true); err != nil {
			return nil, err
		}
		if asig.Modalidad != "" {
			if err := a.CambiarModalidad(asig.NombreProducto, asig.Modalidad); err != nil {
				return nil, err
			}
		}
	}
	ordenes, err := a.OrdenesCompra()
	if err != nil {
		return nil, err
	}
	liberar, err := s.reservar(ctx, idemKey)
	if err != nil {
		return nil, err
	}

	now := s.now()
	for i := range ordenes {
		ordenes[i].FechaEmision = now
	}
	ordenes, err = s.store.AdjudicarSolicitud(ctx, id, ordenes)
	if err != nil {
		liberar()
		s.log.Error("failed to adjudicate", slog.String("op", op), slog.String("id", id), slog.String("error", err.Error()))
		return nil, transicion(err)
	}
	s.log.Info("solicitud adjudicated", slog.String("op", op), slog.String("id", id), slog.Int("ordenes", len(ordenes)))
	s.publicar(ctx, events.SolicitudAdjudicada, id, map[string]any{
		"id_solicitud": id,
		"adjudicados":  a.Adjudicados(),
		"ordenes":      ordenes,
	})
	return ordenes, nil
}

func (s *CompraService) ListOrdenesCompra(ctx context.Context, solicitudID string) ([]models.OrdenCompra, error) {
	return s.store.ListOrdenesCompra(ctx, solicitudID)
}
