package workflow

import (
	"sort"
	"strings"

	"abastecimiento/models"
)

// OrdenarPedidos sorts by status priority, then by id.
func OrdenarPedidos(pedidos []models.Pedido) []models.Pedido {
	out := make([]models.Pedido, len(pedidos))
	copy(out, pedidos)
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := out[i].EstadoPedido.Prioridad(), out[j].EstadoPedido.Prioridad()
		if pi != pj {
			return pi < pj
		}
		return out[i].IDPedido < out[j].IDPedido
	})
	return out
}

// BuscarProveedores filters providers whose nombre, razón social or RUC
// contains term, ignoring case.
func BuscarProveedores(providers []models.Provider, term string) []models.Provider {
	if term == "" {
		return providers
	}
	term = strings.ToLower(term)
	var out []models.Provider
	for _, p := range providers {
		if strings.Contains(strings.ToLower(p.Nombre), term) ||
			strings.Contains(strings.ToLower(p.RazonSocial), term) ||
			strings.Contains(strings.ToLower(p.Ruc), term) {
			out = append(out, p)
		}
	}
	return out
}

func PuedeRevisar(p models.Pedido) bool {
	return p.EstadoPedido == models.PedidoPendiente
}

// PuedeCotizar reports whether quotes may be registered for the solicitud.
func PuedeCotizar(s models.SolicitudCotizacion) bool {
	return s.Estado == models.SolicitudEnviada || s.Estado == models.SolicitudCotizada
}

func PuedeEvaluar(s models.SolicitudCotizacion) bool {
	return s.Estado == models.SolicitudCotizada && len(s.CotizacionesRecibidas) > 0
}

// ItemsPendientes collects the products of reviewed pedidos, the ones
// waiting to be grouped into a quotation request.
func ItemsPendientes(pedidos []models.Pedido) []models.ItemPendiente {
	var out []models.ItemPendiente
	for _, p := range pedidos {
		if p.EstadoPedido != models.PedidoRevisado {
			continue
		}
		for _, prod := range p.Productos {
			it := prod.ItemPendiente
			if it.OrigenPedidoID == "" {
				it.OrigenPedidoID = p.IDPedido
			}
			out = append(out, it)
		}
	}
	return out
}

// SinAgrupar drops the items already included in an existing solicitud.
func SinAgrupar(items []models.ItemPendiente, solicitudes []models.SolicitudCotizacion) []models.ItemPendiente {
	usados := make(map[string]struct{})
	for _, s := range solicitudes {
		for _, it := range s.Items {
			usados[ClaveItem(it)] = struct{}{}
		}
	}
	var out []models.ItemPendiente
	for _, it := range items {
		if _, ok := usados[ClaveItem(it)]; !ok {
			out = append(out, it)
		}
	}
	return out
}
