package workflow

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"abastecimiento/models"
)

var proveedores = []models.Provider{
	{ID: "PROV-001", Nombre: "Aceros del Sur", RazonSocial: "Aceros del Sur S.A.C.", Ruc: "20100000001"},
	{ID: "PROV-002", Nombre: "Cementos Lima", RazonSocial: "Unión Andina de Cementos", Ruc: "20100000002"},
	{ID: "PROV-003", Nombre: "Ferretería Central", RazonSocial: "Central E.I.R.L.", Ruc: "20555555555"},
}

func solicitudEnviada() models.SolicitudCotizacion {
	return models.SolicitudCotizacion{
		IDSolicitud: "SOL-001",
		Estado:      models.SolicitudEnviada,
		Items: []models.ItemPendiente{
			{OrigenPedidoID: "PED-001", NombreProducto: "Cemento", CantidadRequerida: 10, UnidadMedida: "bolsa", FechaRequerida: "15-01-2025"},
			{OrigenPedidoID: "PED-002", NombreProducto: "Fierro", CantidadRequerida: 4, UnidadMedida: "varilla", FechaRequerida: "20-01-2025"},
		},
	}
}

func formularioCompleto() *FormularioCotizacion {
	f := NuevoFormulario(solicitudEnviada())
	f.ProveedorID = "PROV-001"
	f.FechaEmision = "2025-01-10"
	f.FechaGarantia = "2025-06-10"
	f.PlazoEntrega = "5 días"
	f.SetMonto(0, "250.50")
	f.SetMonto(1, "100")
	return f
}

func TestProveedoresDisponibles(t *testing.T) {
	s := solicitudEnviada()
	s.CotizacionesRecibidas = []models.CotizacionRecibida{{IDProveedor: "PROV-002"}}

	got := ProveedoresDisponibles(s, proveedores)
	assert.Equal(t, []string{"PROV-001", "PROV-003"}, provIDs(got))

	s.ProveedoresEnviados = []string{"PROV-002", "PROV-003"}
	got = ProveedoresDisponibles(s, proveedores)
	assert.Equal(t, []string{"PROV-003"}, provIDs(got))
}

func TestFormularioValido(t *testing.T) {
	f := formularioCompleto()
	assert.True(t, f.Valido())

	f.PlazoEntrega = ""
	assert.False(t, f.Valido())
}

func TestFormularioRequiereProveedor(t *testing.T) {
	f := formularioCompleto()
	f.ProveedorID = ""
	assert.False(t, f.Valido())
}

func TestFormularioMontoInvalido(t *testing.T) {
	cases := map[string]bool{
		"":      false,
		"abc":   false,
		"-1":    false,
		"0":     true,
		"12.75": true,
	}
	for monto, want := range cases {
		f := formularioCompleto()
		f.SetMonto(1, monto)
		assert.Equal(t, want, f.Valido(), "monto %q", monto)
	}
}

func TestFormularioModalidadInvalida(t *testing.T) {
	f := formularioCompleto()
	f.SetModalidad(0, "Trueque")
	assert.False(t, f.Valido())
	f.SetModalidad(0, models.PagoAmbos)
	assert.True(t, f.Valido())
}

func TestNoCotizadoExcluyeDeValidacionYTotal(t *testing.T) {
	f := formularioCompleto()
	f.SetMonto(1, "xyz")
	assert.False(t, f.Valido())

	f.MarcarNoCotizado(1)
	assert.True(t, f.NoCotizado(1))
	assert.True(t, f.Valido())
	assert.True(t, f.MontoTotal().Equal(decimal.RequireFromString("250.50")))
	assert.Equal(t, "", f.Lineas()[1].Monto)

	f.MarcarNoCotizado(1)
	assert.False(t, f.NoCotizado(1))
	assert.False(t, f.Valido())
}

func TestMontoTotalIgnoraMalformados(t *testing.T) {
	f := formularioCompleto()
	f.SetMonto(1, "1,000")
	assert.True(t, f.MontoTotal().Equal(decimal.RequireFromString("250.5")))
}

func TestPrecioUnitario(t *testing.T) {
	f := formularioCompleto()
	assert.True(t, f.PrecioUnitario(0).Equal(decimal.RequireFromString("25.05")))
	assert.True(t, f.PrecioUnitario(1).Equal(decimal.NewFromInt(25)))
	assert.True(t, f.PrecioUnitario(9).IsZero())
}

func TestEnviarRecalculaTotal(t *testing.T) {
	f := formularioCompleto()
	f.SetModalidad(1, models.PagoCredito)

	cot, err := f.Enviar(proveedores)
	require.NoError(t, err)
	assert.Equal(t, "PROV-001", cot.IDProveedor)
	assert.Equal(t, "Aceros del Sur", cot.NombreProveedor)
	require.Len(t, cot.Items, 2)
	assert.Equal(t, models.PagoCredito, cot.Items[1].ModalidadPagoOfrecida)
	assert.True(t, cot.MontoTotal.Equal(decimal.RequireFromString("350.50")))

	f.MarcarNoCotizado(0)
	cot, err = f.Enviar(proveedores)
	require.NoError(t, err)
	require.Len(t, cot.Items, 1)
	assert.Equal(t, "Fierro", cot.Items[0].NombreProducto)
	assert.True(t, cot.MontoTotal.Equal(decimal.NewFromInt(100)))
}

func TestEnviarInvalido(t *testing.T) {
	f := formularioCompleto()
	f.FechaGarantia = ""
	_, err := f.Enviar(proveedores)
	assert.ErrorIs(t, err, ErrFormularioInvalido)

	f = formularioCompleto()
	f.ProveedorID = "PROV-404"
	_, err = f.Enviar(proveedores)
	assert.ErrorIs(t, err, ErrFormularioInvalido)
}

func provIDs(ps []models.Provider) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}
