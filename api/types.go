package api

import (
	"bytes"
	"encoding/json"

	"abastecimiento/models"
	"abastecimiento/service"
)

// textoNumerico accepts either a JSON number or a JSON string and keeps the
// raw text, so malformed input reaches the workflow parsers untouched.
type textoNumerico string

func (t *textoNumerico) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = textoNumerico(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*t = textoNumerico(n.String())
	return nil
}

type LineaCanjeRequest struct {
	PremioID string        `json:"premio_id"`
	Cantidad textoNumerico `json:"cantidad"`
}

type PreviewCanjeRequest struct {
	MaestroID string              `json:"maestro_id"`
	Premios   []LineaCanjeRequest `json:"premios"`
}

type CanjeRequest struct {
	Operador string              `json:"operador"`
	Premios  []LineaCanjeRequest `json:"premios"`
}

func lineasCanje(reqs []LineaCanjeRequest) []service.LineaCanje {
	lineas := make([]service.LineaCanje, len(reqs))
	for i, l := range reqs {
		lineas[i] = service.LineaCanje{PremioID: l.PremioID, Cantidad: string(l.Cantidad)}
	}
	return lineas
}

type AgruparRequest struct {
	Desde  string   `json:"desde"`
	Hasta  string   `json:"hasta"`
	Orden  string   `json:"orden"`
	Claves []string `json:"claves"`
}

type EnviarRequest struct {
	ProveedoresIDs []string `json:"proveedores_ids"`
}

type LineaCotizacionRequest struct {
	MontoTotalOfertado    textoNumerico        `json:"monto_total_ofertado"`
	ModalidadPagoOfrecida models.ModalidadPago `json:"modalidad_pago_ofrecida"`
	NoCotizado            bool                 `json:"no_cotizado"`
}

type CotizacionRequest struct {
	IDProveedor            string                   `json:"id_proveedor"`
	FechaEmisionCotizacion string                   `json:"fecha_emision_cotizacion"`
	FechaGarantia          string                   `json:"fecha_garantia"`
	PlazoEntrega           string                   `json:"plazo_entrega"`
	Items                  []LineaCotizacionRequest `json:"items"`
}

func (c CotizacionRequest) cotizacion() service.Cotizacion {
	out := service.Cotizacion{
		ProveedorID:   c.IDProveedor,
		FechaEmision:  c.FechaEmisionCotizacion,
		FechaGarantia: c.FechaGarantia,
		PlazoEntrega:  c.PlazoEntrega,
		Lineas:        make([]service.LineaCotizacion, len(c.Items)),
	}
	for i, it := range c.Items {
		out.Lineas[i] = service.LineaCotizacion{
			Monto:      string(it.MontoTotalOfertado),
			Modalidad:  it.ModalidadPagoOfrecida,
			NoCotizado: it.NoCotizado,
		}
	}
	return out
}

type AsignacionRequest struct {
	NombreProducto     string               `json:"nombre_producto"`
	ProviderID         string               `json:"providerId"`
	FinalPaymentMethod models.ModalidadPago `json:"finalPaymentMethod"`
}

type AdjudicacionRequest struct {
	Adjudicaciones []AsignacionRequest `json:"adjudicaciones"`
}

func (a AdjudicacionRequest) asignaciones() []service.Asignacion {
	out := make([]service.Asignacion, len(a.Adjudicaciones))
	for i, as := range a.Adjudicaciones {
		out[i] = service.Asignacion{
			NombreProducto: as.NombreProducto,
			ProveedorID:    as.ProviderID,
			Modalidad:      as.FinalPaymentMethod,
		}
	}
	return out
}

type ItemsPendientesResponse struct {
	Items []service.ItemVisible `json:"items"`
	Total int                   `json:"total"`
}

type AdjudicacionResponse struct {
	IDSolicitud string               `json:"id_solicitud"`
	Ordenes     []models.OrdenCompra `json:"ordenes"`
}
