package workflow

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"abastecimiento/models"
)

var (
	ErrItemBloqueado          = errors.New("ítem ya adjudicado a otro proveedor")
	ErrItemNoOfertado         = errors.New("el proveedor no cotizó el ítem")
	ErrModalidadNoOfrecida    = errors.New("modalidad de pago no ofrecida")
	ErrProveedorSinCotizacion = errors.New("proveedor sin cotización registrada")
	ErrAdjudicacionIncompleta = errors.New("debe adjudicar todos los ítems")
)

type EstadoItem int

const (
	ItemLibre EstadoItem = iota
	ItemAdjudicadoActual
	ItemAdjudicadoOtro
)

// OpcionesPago lists the payment methods an award may use given what the
// provider offered.
func OpcionesPago(ofrecida models.ModalidadPago) []models.ModalidadPago {
	if ofrecida == models.PagoAmbos {
		return []models.ModalidadPago{models.PagoContado, models.PagoCredito}
	}
	return []models.ModalidadPago{ofrecida}
}

func modalidadInicial(ofrecida models.ModalidadPago) models.ModalidadPago {
	if ofrecida == models.PagoAmbos || ofrecida == models.PagoContado {
		return models.PagoContado
	}
	return models.PagoCredito
}

// Adjudicacion is the state of the quote evaluation screen: the provider
// whose quote is being viewed and the awards made so far, keyed by product
// name.
type Adjudicacion struct {
	solicitud models.SolicitudCotizacion
	proveedor string
	orden     []string
	awards    map[string]models.AdjudicatedItem
}

func NuevaAdjudicacion(s models.SolicitudCotizacion) *Adjudicacion {
	a := &Adjudicacion{
		solicitud: s,
		awards:    make(map[string]models.AdjudicatedItem),
	}
	if len(s.CotizacionesRecibidas) > 0 {
		a.proveedor = s.CotizacionesRecibidas[0].IDProveedor
	}
	return a
}

func (a *Adjudicacion) Proveedor() string {
	return a.proveedor
}

func (a *Adjudicacion) VerProveedor(id string) error {
	if a.cotizacion(id) == nil {
		return fmt.Errorf("%w: %s", ErrProveedorSinCotizacion, id)
	}
	a.proveedor = id
	return nil
}

func (a *Adjudicacion) cotizacion(id string) *models.CotizacionRecibida {
	for i := range a.solicitud.CotizacionesRecibidas {
		if a.solicitud.CotizacionesRecibidas[i].IDProveedor == id {
			return &a.solicitud.CotizacionesRecibidas[i]
		}
	}
	return nil
}

// CotizacionActual is the quote of the provider being viewed.
func (a *Adjudicacion) CotizacionActual() *models.CotizacionRecibida {
	return a.cotizacion(a.proveedor)
}

func (a *Adjudicacion) EstadoItem(nombre string) EstadoItem {
	aw, ok := a.awards[nombre]
	switch {
	case !ok:
		return ItemLibre
	case aw.ProviderID == a.proveedor:
		return ItemAdjudicadoActual
	default:
		return ItemAdjudicadoOtro
	}
}

// Adjudicar awards (marcar) or un-awards the named product under the viewed
// provider's quote. A product held by another provider is locked.
func (a *Adjudicacion) Adjudicar(nombre string, marcar bool) error {
	switch a.EstadoItem(nombre) {
	case ItemAdjudicadoOtro:
		return fmt.Errorf("%w: %s", ErrItemBloqueado, nombre)
	case ItemAdjudicadoActual:
		if !marcar {
			a.quitar(nombre)
		}
		return nil
	}
	if !marcar {
		return nil
	}

	cot := a.CotizacionActual()
	if cot == nil {
		return ErrProveedorSinCotizacion
	}
	for _, it := range cot.Items {
		if it.NombreProducto != nombre {
			continue
		}
		a.orden = append(a.orden, nombre)
		a.awards[nombre] = models.AdjudicatedItem{
			ProviderID:         cot.IDProveedor,
			ProviderName:       cot.NombreProveedor,
			FinalPaymentMethod: modalidadInicial(it.ModalidadPagoOfrecida),
			ItemDetails:        it,
			PlazoEntrega:       cot.PlazoEntrega,
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrItemNoOfertado, nombre)
}

func (a *Adjudicacion) quitar(nombre string) {
	delete(a.awards, nombre)
	for i, n := range a.orden {
		if n == nombre {
			a.orden = append(a.orden[:i], a.orden[i+1:]...)
			return
		}
	}
}

// CambiarModalidad changes the payment method of an award held by the viewed
// provider. Only the options implied by the offer are accepted.
func (a *Adjudicacion) CambiarModalidad(nombre string, m models.ModalidadPago) error {
	if a.EstadoItem(nombre) != ItemAdjudicadoActual {
		return fmt.Errorf("%w: %s", ErrItemNoOfertado, nombre)
	}
	aw := a.awards[nombre]
	for _, opt := range OpcionesPago(aw.ItemDetails.ModalidadPagoOfrecida) {
		if opt == m {
			aw.FinalPaymentMethod = m
			a.awards[nombre] = aw
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrModalidadNoOfrecida, m)
}

func (a *Adjudicacion) Adjudicados() []models.AdjudicatedItem {
	out := make([]models.AdjudicatedItem, 0, len(a.orden))
	for _, n := range a.orden {
		out = append(out, a.awards[n])
	}
	return out
}

func (a *Adjudicacion) Mapa() map[string]models.AdjudicatedItem {
	out := make(map[string]models.AdjudicatedItem, len(a.awards))
	for k, v := range a.awards {
		out[k] = v
	}
	return out
}

func (a *Adjudicacion) Cantidad() int {
	return len(a.awards)
}

// Completa reports whether every item of the solicitud has an award.
func (a *Adjudicacion) Completa() bool {
	if len(a.solicitud.Items) == 0 || len(a.awards) != len(a.solicitud.Items) {
		return false
	}
	for _, it := range a.solicitud.Items {
		if _, ok := a.awards[it.NombreProducto]; !ok {
			return false
		}
	}
	return true
}

// OrdenesCompra drafts one purchase order per provider and payment method.
// IDs and emission dates are left to the caller.
func (a *Adjudicacion) OrdenesCompra() ([]models.OrdenCompra, error) {
	if !a.Completa() {
		return nil, ErrAdjudicacionIncompleta
	}
	type clave struct {
		proveedor string
		modalidad models.ModalidadPago
	}
	idx := make(map[clave]int)
	var ordenes []models.OrdenCompra
	for _, aw := range a.Adjudicados() {
		k := clave{aw.ProviderID, aw.FinalPaymentMethod}
		i, ok := idx[k]
		if !ok {
			i = len(ordenes)
			idx[k] = i
			ordenes = append(ordenes, models.OrdenCompra{
				IDSolicitud:     a.solicitud.IDSolicitud,
				IDProveedor:     aw.ProviderID,
				NombreProveedor: aw.ProviderName,
				ModalidadPago:   aw.FinalPaymentMethod,
				PlazoEntrega:    aw.PlazoEntrega,
				MontoTotal:      decimal.Zero,
			})
		}
		oc := &ordenes[i]
		oc.Items = append(oc.Items, aw.ItemDetails)
		oc.MontoTotal = oc.MontoTotal.Add(aw.ItemDetails.MontoTotalOfertado)
	}
	return ordenes, nil
}
