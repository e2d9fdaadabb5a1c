package service

import (
	"context"
	"errors"
	"log/slog"

	"abastecimiento/events"
	"abastecimiento/idempotency"
	"abastecimiento/models"
	"abastecimiento/storage"
	"abastecimiento/workflow"
)

// LineaCanje is one premio requested for redemption. Cantidad is the text
// typed by the operator; empty means one.
type LineaCanje struct {
	PremioID string
	Cantidad string
}

type PerfilMaestro struct {
	Maestro         models.Maestro `json:"maestro"`
	Canjes          []models.Canje `json:"canjes"`
	TotalCanjes     int            `json:"total_canjes"`
	PuntosCanjeados int            `json:"puntos_canjeados"`
}

type Previsualizacion struct {
	Premios []models.PremioSeleccionado `json:"premios"`
	Total   int                         `json:"total"`
	Resumen *workflow.ResumenPuntos     `json:"resumen,omitempty"`
}

type CanjeService struct {
	base
}

func NewCanjeService(store storage.Storage, pub events.Publisher, idem idempotency.Store, log *slog.Logger) *CanjeService {
	return &CanjeService{base: newBase(store, pub, idem, log)}
}

func (s *CanjeService) ListMaestros(ctx context.Context) ([]models.Maestro, error) {
	return s.store.ListMaestros(ctx)
}

func (s *CanjeService) ListPremios(ctx context.Context) ([]models.Premio, error) {
	return s.store.ListPremios(ctx)
}

func (s *CanjeService) Perfil(ctx context.Context, maestroID string) (*PerfilMaestro, error) {
	m, err := s.store.GetMaestro(ctx, maestroID)
	if err != nil {
		return nil, err
	}
	canjes, err := s.store.ListCanjesByMaestro(ctx, maestroID)
	if err != nil {
		return nil, err
	}
	p := &PerfilMaestro{Maestro: *m, Canjes: canjes, TotalCanjes: len(canjes)}
	for _, c := range canjes {
		if c.Estado != models.CanjeAnulado {
			p.PuntosCanjeados += c.PuntosGastados
		}
	}
	return p, nil
}

func (s *CanjeService) seleccion(ctx context.Context, lineas []LineaCanje) (*workflow.Seleccion, error) {
	premios, err := s.store.ListPremios(ctx)
	if err != nil {
		return nil, err
	}
	catalogo := make(map[string]models.Premio, len(premios))
	for _, p := range premios {
		catalogo[p.ID] = p
	}

	sel := workflow.NuevaSeleccion()
	for _, l := range lineas {
		p, ok := catalogo[l.PremioID]
		if !ok {
			return nil, invalido("premio %q does not exist", l.PremioID)
		}
		sel.Agregar(p, workflow.ParseCantidad(l.Cantidad))
	}
	return sel, nil
}

// Previsualizar totals a prospective selection. With a maestroID the points
// summary is included as well.
func (s *CanjeService) Previsualizar(ctx context.Context, maestroID string, lineas []LineaCanje) (*Previsualizacion, error) {
	sel, err := s.seleccion(ctx, lineas)
	if err != nil {
		return nil, err
	}
	out := &Previsualizacion{Premios: sel.Items(), Total: sel.Total()}
	if maestroID != "" {
		m, err := s.store.GetMaestro(ctx, maestroID)
		if err != nil {
			return nil, err
		}
		r := workflow.Resumen(m.Puntos, sel)
		out.Resumen = &r
	}
	return out, nil
}

// Registrar redeems the selected premios for a maestro, debiting points.
func (s *CanjeService) Registrar(ctx context.Context, maestroID, operador, idemKey string, lineas []LineaCanje) (*models.Canje, error) {
	const op = "service.CanjeService.Registrar"
	log := s.log.With(slog.String("op", op), slog.String("maestro", maestroID))

	m, err := s.store.GetMaestro(ctx, maestroID)
	if err != nil {
		return nil, err
	}
	sel, err := s.seleccion(ctx, lineas)
	if err != nil {
		return nil, err
	}
	if sel.Vacia() {
		return nil, invalido("no premios selected")
	}
	resumen := workflow.Resumen(m.Puntos, sel)
	if resumen.Gastados <= 0 {
		return nil, invalido("a canje must spend points, got %d", resumen.Gastados)
	}
	if !resumen.Alcanza() {
		return nil, ErrPuntosInsuficientes
	}
	liberar, err := s.reservar(ctx, idemKey)
	if err != nil {
		return nil, err
	}

	var canje *models.Canje
	sel.Confirmar(func(items []models.PremioSeleccionado) {
		canje = &models.Canje{
			MaestroID:      maestroID,
			Operador:       operador,
			Fecha:          s.now(),
			Premios:        items,
			PuntosGastados: resumen.Gastados,
			Estado:         models.CanjeRegistrado,
		}
	})
	if err := s.store.CreateCanje(ctx, canje); err != nil {
		liberar()
		if !errors.Is(err, ErrPuntosInsuficientes) {
			log.Error("failed to register canje", slog.String("error", err.Error()))
		}
		return nil, err
	}

	log.Info("canje registered", slog.String("codigo", canje.Codigo), slog.Int("puntos", canje.PuntosGastados))
	s.publicar(ctx, events.CanjeRegistrado, canje.Codigo, canje)
	return canje, nil
}
