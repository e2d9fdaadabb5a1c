// Package workflow holds the view-model state behind the redemption and
// procurement screens. Everything here is in-memory and synchronous; derived
// values are recomputed on every call.
package workflow

import (
	"strconv"
	"strings"

	"abastecimiento/models"
)

// Seleccion is the set of premios picked for a canje, keyed by premio id and
// kept in the order they were first added.
type Seleccion struct {
	orden []string
	items map[string]models.PremioSeleccionado
}

func NuevaSeleccion() *Seleccion {
	return &Seleccion{items: make(map[string]models.PremioSeleccionado)}
}

// MaxCantidad bounds the quantity of a single premio in a selection.
const MaxCantidad = 9999

// Agregar adds cantidad units of premio. Adding an already selected premio
// increments its quantity. Non-positive quantities, and additions that would
// take a premio past MaxCantidad, are ignored.
func (s *Seleccion) Agregar(premio models.Premio, cantidad int) {
	if cantidad <= 0 || cantidad > MaxCantidad {
		return
	}
	if s.items == nil {
		s.items = make(map[string]models.PremioSeleccionado)
	}
	if actual, ok := s.items[premio.ID]; ok {
		if actual.Cantidad+cantidad > MaxCantidad {
			return
		}
		actual.Cantidad += cantidad
		s.items[premio.ID] = actual
		return
	}
	s.orden = append(s.orden, premio.ID)
	s.items[premio.ID] = models.PremioSeleccionado{Premio: premio, Cantidad: cantidad}
}

// Fusionar merges an already confirmed batch into the selection using the
// same increment rule as Agregar.
func (s *Seleccion) Fusionar(nuevos []models.PremioSeleccionado) {
	for _, p := range nuevos {
		s.Agregar(p.Premio, p.Cantidad)
	}
}

func (s *Seleccion) Quitar(id string) {
	if _, ok := s.items[id]; !ok {
		return
	}
	delete(s.items, id)
	for i, v := range s.orden {
		if v == id {
			s.orden = append(s.orden[:i], s.orden[i+1:]...)
			break
		}
	}
}

func (s *Seleccion) Items() []models.PremioSeleccionado {
	out := make([]models.PremioSeleccionado, 0, len(s.orden))
	for _, id := range s.orden {
		out = append(out, s.items[id])
	}
	return out
}

func (s *Seleccion) Cantidad(id string) int {
	return s.items[id].Cantidad
}

func (s *Seleccion) Len() int {
	return len(s.orden)
}

func (s *Seleccion) Vacia() bool {
	return len(s.orden) == 0
}

// Total is the sum of costo × cantidad over the selection.
func (s *Seleccion) Total() int {
	total := 0
	for _, p := range s.items {
		total += p.Subtotal()
	}
	return total
}

// Confirmar hands the current items to fn and clears the selection.
func (s *Seleccion) Confirmar(fn func([]models.PremioSeleccionado)) {
	items := s.Items()
	if fn != nil {
		fn(items)
	}
	s.Cancelar()
}

// Cancelar clears the selection without notifying anyone.
func (s *Seleccion) Cancelar() {
	s.orden = nil
	s.items = make(map[string]models.PremioSeleccionado)
}

// ParseCantidad reads a quantity typed in a form field. An empty field means
// the default of one; anything that is not an integer, or is above
// MaxCantidad, counts as zero.
func ParseCantidad(v string) int {
	v = strings.TrimSpace(v)
	if v == "" {
		return 1
	}
	n, err := strconv.Atoi(v)
	if err != nil || n > MaxCantidad {
		return 0
	}
	return n
}

type ResumenPuntos struct {
	Disponibles int `json:"puntos_disponibles"`
	Gastados    int `json:"puntos_gastados"`
	NuevoTotal  int `json:"nuevo_total"`
}

func Resumen(disponibles int, s *Seleccion) ResumenPuntos {
	gastados := s.Total()
	return ResumenPuntos{
		Disponibles: disponibles,
		Gastados:    gastados,
		NuevoTotal:  disponibles - gastados,
	}
}

// Alcanza reports whether the points balance covers the selection.
func (r ResumenPuntos) Alcanza() bool {
	return r.NuevoTotal >= 0
}
