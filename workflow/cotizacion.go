package workflow

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"abastecimiento/models"
)

var ErrFormularioInvalido = errors.New("formulario de cotización incompleto o inválido")

// ProveedoresDisponibles lists the providers that may still quote the
// solicitud: those without a registered quote, restricted to the invited
// providers when an invitation list exists.
func ProveedoresDisponibles(s models.SolicitudCotizacion, providers []models.Provider) []models.Provider {
	cotizaron := make(map[string]struct{}, len(s.CotizacionesRecibidas))
	for _, c := range s.CotizacionesRecibidas {
		cotizaron[c.IDProveedor] = struct{}{}
	}
	var invitados map[string]struct{}
	if len(s.ProveedoresEnviados) > 0 {
		invitados = make(map[string]struct{}, len(s.ProveedoresEnviados))
		for _, id := range s.ProveedoresEnviados {
			invitados[id] = struct{}{}
		}
	}

	out := make([]models.Provider, 0, len(providers))
	for _, p := range providers {
		if _, ok := cotizaron[p.ID]; ok {
			continue
		}
		if invitados != nil {
			if _, ok := invitados[p.ID]; !ok {
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

type LineaCotizacion struct {
	Monto      string
	Modalidad  models.ModalidadPago
	NoCotizado bool
}

// FormularioCotizacion is the state of the quote registration form for one
// solicitud. Lines are indexed like the solicitud items.
type FormularioCotizacion struct {
	solicitud models.SolicitudCotizacion

	ProveedorID   string
	FechaEmision  string
	FechaGarantia string
	PlazoEntrega  string

	lineas []LineaCotizacion
}

func NuevoFormulario(s models.SolicitudCotizacion) *FormularioCotizacion {
	lineas := make([]LineaCotizacion, len(s.Items))
	for i := range lineas {
		lineas[i].Modalidad = models.PagoContado
	}
	return &FormularioCotizacion{solicitud: s, lineas: lineas}
}

func (f *FormularioCotizacion) Lineas() []LineaCotizacion {
	out := make([]LineaCotizacion, len(f.lineas))
	copy(out, f.lineas)
	return out
}

func (f *FormularioCotizacion) SetMonto(i int, v string) {
	if i < 0 || i >= len(f.lineas) {
		return
	}
	f.lineas[i].Monto = v
}

func (f *FormularioCotizacion) SetModalidad(i int, m models.ModalidadPago) {
	if i < 0 || i >= len(f.lineas) {
		return
	}
	f.lineas[i].Modalidad = m
}

// MarcarNoCotizado toggles the "not quoted" flag of a line. Marking a line
// clears its amount.
func (f *FormularioCotizacion) MarcarNoCotizado(i int) {
	if i < 0 || i >= len(f.lineas) {
		return
	}
	l := &f.lineas[i]
	l.NoCotizado = !l.NoCotizado
	if l.NoCotizado {
		l.Monto = ""
	}
}

func (f *FormularioCotizacion) NoCotizado(i int) bool {
	if i < 0 || i >= len(f.lineas) {
		return false
	}
	return f.lineas[i].NoCotizado
}

// montoLinea parses a line amount. Malformed input counts as zero.
func montoLinea(v string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// MontoTotal sums the quoted lines as currently typed.
func (f *FormularioCotizacion) MontoTotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range f.lineas {
		if l.NoCotizado {
			continue
		}
		total = total.Add(montoLinea(l.Monto))
	}
	return total
}

// PrecioUnitario is the per-unit price shown next to a line amount.
func (f *FormularioCotizacion) PrecioUnitario(i int) decimal.Decimal {
	if i < 0 || i >= len(f.lineas) {
		return decimal.Zero
	}
	cant := f.solicitud.Items[i].CantidadRequerida
	if cant <= 0 {
		return decimal.Zero
	}
	return montoLinea(f.lineas[i].Monto).Div(decimal.NewFromInt(int64(cant)))
}

// LineaValida reports whether a quoted line has a non-negative amount and a
// payment method. Lines marked as not quoted are always valid.
func (f *FormularioCotizacion) LineaValida(i int) bool {
	l := f.lineas[i]
	if l.NoCotizado {
		return true
	}
	d, err := decimal.NewFromString(strings.TrimSpace(l.Monto))
	if err != nil {
		return false
	}
	return !d.IsNegative() && l.Modalidad.Valida()
}

// Valido reports whether the form may be submitted.
func (f *FormularioCotizacion) Valido() bool {
	if f.ProveedorID == "" || f.FechaEmision == "" || f.FechaGarantia == "" || f.PlazoEntrega == "" {
		return false
	}
	for i := range f.lineas {
		if !f.LineaValida(i) {
			return false
		}
	}
	return true
}

// Enviar builds the quote from the quoted lines. The total is recomputed from
// those lines only.
func (f *FormularioCotizacion) Enviar(providers []models.Provider) (models.CotizacionRecibida, error) {
	if !f.Valido() {
		return models.CotizacionRecibida{}, ErrFormularioInvalido
	}
	var proveedor *models.Provider
	for i := range providers {
		if providers[i].ID == f.ProveedorID {
			proveedor = &providers[i]
			break
		}
	}
	if proveedor == nil {
		return models.CotizacionRecibida{}, ErrFormularioInvalido
	}

	items := make([]models.CotizacionRecibidaItem, 0, len(f.lineas))
	total := decimal.Zero
	for i, l := range f.lineas {
		if l.NoCotizado {
			continue
		}
		src := f.solicitud.Items[i]
		monto := montoLinea(l.Monto)
		items = append(items, models.CotizacionRecibidaItem{
			NombreProducto:        src.NombreProducto,
			CantidadRequerida:     src.CantidadRequerida,
			UnidadMedida:          src.UnidadMedida,
			MontoTotalOfertado:    monto,
			ModalidadPagoOfrecida: l.Modalidad,
		})
		total = total.Add(monto)
	}

	return models.CotizacionRecibida{
		IDProveedor:            proveedor.ID,
		NombreProveedor:        proveedor.Nombre,
		FechaEmisionCotizacion: f.FechaEmision,
		FechaGarantia:          f.FechaGarantia,
		PlazoEntrega:           f.PlazoEntrega,
		MontoTotal:             total,
		Items:                  items,
	}, nil
}
