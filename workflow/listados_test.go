package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"abastecimiento/models"
)

func TestOrdenarPedidos(t *testing.T) {
	pedidos := []models.Pedido{
		{IDPedido: "PED-004", EstadoPedido: models.PedidoAtendido},
		{IDPedido: "PED-003", EstadoPedido: models.PedidoPendiente},
		{IDPedido: "PED-010", EstadoPedido: models.PedidoCancelado},
		{IDPedido: "PED-001", EstadoPedido: models.PedidoPendiente},
		{IDPedido: "PED-002", EstadoPedido: models.PedidoRevisado},
		{IDPedido: "PED-005", EstadoPedido: models.PedidoEnProceso},
	}
	got := OrdenarPedidos(pedidos)

	var ids []string
	for _, p := range got {
		ids = append(ids, p.IDPedido)
	}
	assert.Equal(t, []string{"PED-001", "PED-003", "PED-002", "PED-005", "PED-004", "PED-010"}, ids)
	assert.Equal(t, "PED-004", pedidos[0].IDPedido, "input must not be reordered")
}

func TestBuscarProveedores(t *testing.T) {
	assert.Len(t, BuscarProveedores(proveedores, ""), 3)
	assert.Equal(t, []string{"PROV-002"}, provIDs(BuscarProveedores(proveedores, "ANDINA")))
	assert.Equal(t, []string{"PROV-003"}, provIDs(BuscarProveedores(proveedores, "20555")))
	assert.Equal(t, []string{"PROV-001"}, provIDs(BuscarProveedores(proveedores, "aceros")))
	assert.Empty(t, BuscarProveedores(proveedores, "zzz"))
}

func TestAccionesPorEstado(t *testing.T) {
	assert.True(t, PuedeRevisar(models.Pedido{EstadoPedido: models.PedidoPendiente}))
	assert.False(t, PuedeRevisar(models.Pedido{EstadoPedido: models.PedidoRevisado}))

	s := solicitudEnviada()
	assert.True(t, PuedeCotizar(s))
	assert.False(t, PuedeEvaluar(s))

	s = solicitudCotizada()
	assert.True(t, PuedeEvaluar(s))
	s.Estado = models.SolicitudAdjudicada
	assert.False(t, PuedeCotizar(s))
}

func TestItemsPendientes(t *testing.T) {
	pedidos := []models.Pedido{
		{IDPedido: "PED-001", EstadoPedido: models.PedidoPendiente, Productos: []models.ProductoPedido{
			{ItemPendiente: models.ItemPendiente{NombreProducto: "Arena"}},
		}},
		{IDPedido: "PED-002", EstadoPedido: models.PedidoRevisado, Productos: []models.ProductoPedido{
			{ItemPendiente: models.ItemPendiente{NombreProducto: "Cemento", CantidadRequerida: 3, FechaRequerida: "01-02-2025"}},
			{ItemPendiente: models.ItemPendiente{NombreProducto: "Fierro", CantidadRequerida: 1, FechaRequerida: "02-02-2025"}},
		}},
	}
	items := ItemsPendientes(pedidos)
	assert.Equal(t, []string{"Cemento", "Fierro"}, nombres(items))
	assert.Equal(t, "PED-002", items[0].OrigenPedidoID)

	sols := []models.SolicitudCotizacion{{Items: items[:1]}}
	assert.Equal(t, []string{"Fierro"}, nombres(SinAgrupar(items, sols)))
}
