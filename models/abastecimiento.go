package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type EstadoPedido string

const (
	PedidoPendiente EstadoPedido = "Pendiente"
	PedidoRevisado  EstadoPedido = "Revisado"
	PedidoEnProceso EstadoPedido = "En Proceso"
	PedidoAtendido  EstadoPedido = "Atendido"
	PedidoCancelado EstadoPedido = "Cancelado"
)

const prioridadDesconocida = 99

var prioridadPedido = map[EstadoPedido]int{
	PedidoPendiente: 1,
	PedidoRevisado:  2,
	PedidoEnProceso: 3,
	PedidoAtendido:  4,
	PedidoCancelado: 5,
}

// Prioridad is the position of the status in pedido listings. Unknown
// statuses sort after every known one.
func (e EstadoPedido) Prioridad() int {
	if p, ok := prioridadPedido[e]; ok {
		return p
	}
	return prioridadDesconocida
}

func (e EstadoPedido) Valido() bool {
	_, ok := prioridadPedido[e]
	return ok
}

type Empleado struct {
	Nombre string `json:"nombre"`
	Area   string `json:"area"`
}

type ItemPendiente struct {
	OrigenPedidoID    string `json:"origen_pedido_id"`
	NombreProducto    string `json:"nombre_producto"`
	CantidadRequerida int    `json:"cantidad_requerida"`
	UnidadMedida      string `json:"unidad_medida"`
	FechaRequerida    string `json:"fecha_requerida"` // DD-MM-YYYY
}

type ProductoPedido struct {
	ItemPendiente
	TipoDestino string `json:"tipo_destino"`
	Direccion   string `json:"direccion,omitempty"`
}

type Pedido struct {
	IDPedido          string           `json:"id_pedido"`
	FechaPedido       string           `json:"fecha_pedido"`
	HoraPedido        string           `json:"hora_pedido"`
	EstadoPedido      EstadoPedido     `json:"estado_pedido"`
	EmpleadoGenerador Empleado         `json:"empleadoGenerador"`
	Productos         []ProductoPedido `json:"productos"`
}

type Product struct {
	IDProducto string          `json:"id_producto" db:"id_producto"`
	Nombre     string          `json:"nombre" db:"nombre"`
	Rubro      string          `json:"rubro" db:"rubro"`
	Familia    string          `json:"familia" db:"familia"`
	Clase      string          `json:"clase" db:"clase"`
	Marca      string          `json:"marca,omitempty" db:"marca"`
	Unidad     string          `json:"unidad" db:"unidad"`
	PrecioBase decimal.Decimal `json:"precio_base" db:"precio_base"`
}

type Provider struct {
	ID          string `json:"id" db:"id"`
	Nombre      string `json:"nombre" db:"nombre"`
	RazonSocial string `json:"razonSocial" db:"razon_social"`
	Ruc         string `json:"ruc" db:"ruc"`
	Telefono    string `json:"telefono,omitempty" db:"telefono"`
	Correo      string `json:"correo,omitempty" db:"correo"`
	Direccion   string `json:"direccion,omitempty" db:"direccion"`
	Rubro       string `json:"rubro,omitempty" db:"rubro"`
}

type EstadoSolicitud string

const (
	SolicitudGenerada   EstadoSolicitud = "Generada"
	SolicitudEnviada    EstadoSolicitud = "Enviada"
	SolicitudCotizada   EstadoSolicitud = "Cotizada"
	SolicitudAdjudicada EstadoSolicitud = "Adjudicada"
)

type ModalidadPago string

const (
	PagoContado ModalidadPago = "Contado"
	PagoCredito ModalidadPago = "Crédito"
	PagoAmbos   ModalidadPago = "Ambos"
)

func (m ModalidadPago) Valida() bool {
	switch m {
	case PagoContado, PagoCredito, PagoAmbos:
		return true
	default:
		return false
	}
}

type SolicitudCotizacion struct {
	IDSolicitud           string               `json:"id_solicitud"`
	FechaEmisionSolicitud string               `json:"fecha_emision_solicitud"`
	Estado                EstadoSolicitud      `json:"estado"`
	Items                 []ItemPendiente      `json:"items"`
	ProveedoresEnviados   []string             `json:"proveedores_enviados_ids,omitempty"`
	CotizacionesRecibidas []CotizacionRecibida `json:"cotizaciones_recibidas,omitempty"`
}

type CotizacionRecibidaItem struct {
	NombreProducto        string          `json:"nombre_producto"`
	CantidadRequerida     int             `json:"cantidad_requerida"`
	UnidadMedida          string          `json:"unidad_medida"`
	MontoTotalOfertado    decimal.Decimal `json:"monto_total_ofertado"`
	ModalidadPagoOfrecida ModalidadPago   `json:"modalidad_pago_ofrecida"`
}

// PrecioUnitario is the offered amount per requested unit, zero when the
// requested quantity is not positive.
func (i CotizacionRecibidaItem) PrecioUnitario() decimal.Decimal {
	if i.CantidadRequerida <= 0 {
		return decimal.Zero
	}
	return i.MontoTotalOfertado.Div(decimal.NewFromInt(int64(i.CantidadRequerida)))
}

type CotizacionRecibida struct {
	IDProveedor            string                   `json:"id_proveedor"`
	NombreProveedor        string                   `json:"nombre_proveedor"`
	FechaEmisionCotizacion string                   `json:"fecha_emision_cotizacion"`
	FechaGarantia          string                   `json:"fecha_garantia"`
	PlazoEntrega           string                   `json:"plazo_entrega"`
	MontoTotal             decimal.Decimal          `json:"monto_total"`
	Items                  []CotizacionRecibidaItem `json:"items"`
}

type AdjudicatedItem struct {
	ProviderID         string                 `json:"providerId"`
	ProviderName       string                 `json:"providerName"`
	FinalPaymentMethod ModalidadPago          `json:"finalPaymentMethod"`
	ItemDetails        CotizacionRecibidaItem `json:"itemDetails"`
	PlazoEntrega       string                 `json:"plazo_entrega"`
}

type OrdenCompra struct {
	ID              string                   `json:"id"`
	IDSolicitud     string                   `json:"id_solicitud"`
	IDProveedor     string                   `json:"id_proveedor"`
	NombreProveedor string                   `json:"nombre_proveedor"`
	ModalidadPago   ModalidadPago            `json:"modalidad_pago"`
	PlazoEntrega    string                   `json:"plazo_entrega"`
	MontoTotal      decimal.Decimal          `json:"monto_total"`
	Items           []CotizacionRecibidaItem `json:"items"`
	FechaEmision    time.Time                `json:"fecha_emision"`
}

// Codigo extracts the numeric part of identifiers such as "PED-012" or
// "SOL-3". It returns 0 when the id has no parseable suffix.
func Codigo(id string) int {
	_, num, ok := strings.Cut(id, "-")
	if !ok {
		return 0
	}
	if i := strings.IndexByte(num, '-'); i >= 0 {
		num = num[:i]
	}
	n, err := strconv.Atoi(num)
	if err != nil {
		return 0
	}
	return n
}
