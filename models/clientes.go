package models

import "time"

type Maestro struct {
	ID            string `json:"id" db:"id"`
	Nombre        string `json:"nombre" db:"nombre"`
	Apellidos     string `json:"apellidos" db:"apellidos"`
	Ruc           string `json:"ruc" db:"ruc"`
	Distrito      string `json:"distrito" db:"distrito"`
	Direccion     string `json:"direccion" db:"direccion"`
	Telefono      string `json:"telefono" db:"telefono"`
	Correo        string `json:"correo" db:"correo"`
	Especialidad  string `json:"especialidad" db:"especialidad"`
	FechaRegistro string `json:"fechaRegistro" db:"fecha_registro"`
	Puntos        int    `json:"puntos" db:"puntos"`
}

// NombreCompleto renders the "Nombre, Apellidos" form used in tables.
func (m Maestro) NombreCompleto() string {
	if m.Apellidos == "" {
		return m.Nombre
	}
	return m.Nombre + ", " + m.Apellidos
}

type Premio struct {
	ID          string `json:"id" db:"id"`
	Nombre      string `json:"nombre" db:"nombre"`
	Descripcion string `json:"descripcion" db:"descripcion"`
	Costo       int    `json:"costo" db:"costo"`
	Categoria   string `json:"categoria" db:"categoria"`
}

// PremioSeleccionado is a Premio picked for redemption with its quantity.
type PremioSeleccionado struct {
	Premio
	Cantidad int `json:"cantidad"`
}

func (p PremioSeleccionado) Subtotal() int {
	return p.Costo * p.Cantidad
}

type EstadoCanje string

const (
	CanjeRegistrado EstadoCanje = "Registrado"
	CanjeEntregado  EstadoCanje = "Entregado"
	CanjeAnulado    EstadoCanje = "Anulado"
)

type Canje struct {
	ID             string               `json:"id"`
	Codigo         string               `json:"codigo"`
	MaestroID      string               `json:"maestro_id"`
	Operador       string               `json:"operador"`
	Fecha          time.Time            `json:"fecha"`
	Premios        []PremioSeleccionado `json:"premios"`
	PuntosGastados int                  `json:"puntos_gastados"`
	Estado         EstadoCanje          `json:"estado"`
}
