package workflow

import (
	"fmt"
	"sort"
	"time"

	"abastecimiento/models"
)

const (
	formatoFechaItem   = "02-01-2006"
	formatoFechaFiltro = "2006-01-02"
)

type Orden string

const (
	Ascendente  Orden = "asc"
	Descendente Orden = "desc"
)

// ClaveItem identifies a pending item row. Pending items have no id of their
// own, so the row is keyed by origin, product, quantity and date.
func ClaveItem(item models.ItemPendiente) string {
	return fmt.Sprintf("%s-%s-%d-%s", item.OrigenPedidoID, item.NombreProducto, item.CantidadRequerida, item.FechaRequerida)
}

// ParseFechaItem parses the DD-MM-YYYY dates carried by pending items.
func ParseFechaItem(v string) (time.Time, error) {
	return time.ParseInLocation(formatoFechaItem, v, time.UTC)
}

// Agrupacion is the state of the "group pending items into a quotation
// request" screen.
type Agrupacion struct {
	items     []models.ItemPendiente
	seleccion map[string]struct{}
	orden     Orden
	desde     *time.Time
	hasta     *time.Time
}

func NuevaAgrupacion(items []models.ItemPendiente) *Agrupacion {
	return &Agrupacion{
		items:     items,
		seleccion: make(map[string]struct{}),
		orden:     Ascendente,
	}
}

func (a *Agrupacion) Orden() Orden {
	return a.orden
}

func (a *Agrupacion) AlternarOrden() {
	if a.orden == Ascendente {
		a.orden = Descendente
	} else {
		a.orden = Ascendente
	}
}

func (a *Agrupacion) SetOrden(o Orden) {
	if o == Descendente {
		a.orden = Descendente
		return
	}
	a.orden = Ascendente
}

// SetDesde sets the inclusive lower bound from a YYYY-MM-DD value. An empty
// value clears the bound.
func (a *Agrupacion) SetDesde(v string) error {
	if v == "" {
		a.desde = nil
		return nil
	}
	t, err := time.ParseInLocation(formatoFechaFiltro, v, time.UTC)
	if err != nil {
		return fmt.Errorf("fecha desde %q: %w", v, err)
	}
	a.desde = &t
	return nil
}

// SetHasta sets the inclusive upper bound; the whole end day is included.
func (a *Agrupacion) SetHasta(v string) error {
	if v == "" {
		a.hasta = nil
		return nil
	}
	t, err := time.ParseInLocation(formatoFechaFiltro, v, time.UTC)
	if err != nil {
		return fmt.Errorf("fecha hasta %q: %w", v, err)
	}
	fin := t.Add(24*time.Hour - time.Millisecond)
	a.hasta = &fin
	return nil
}

type itemFechado struct {
	item  models.ItemPendiente
	fecha time.Time
	ok    bool
}

// Visibles returns the items passing the date filter, sorted by required
// date in the current direction.
func (a *Agrupacion) Visibles() []models.ItemPendiente {
	filtrados := make([]itemFechado, 0, len(a.items))
	for _, it := range a.items {
		f, err := ParseFechaItem(it.FechaRequerida)
		fi := itemFechado{item: it, fecha: f, ok: err == nil}
		if a.desde != nil && (!fi.ok || fi.fecha.Before(*a.desde)) {
			continue
		}
		if a.hasta != nil && (!fi.ok || fi.fecha.After(*a.hasta)) {
			continue
		}
		filtrados = append(filtrados, fi)
	}

	sort.SliceStable(filtrados, func(i, j int) bool {
		x, y := filtrados[i], filtrados[j]
		if x.ok != y.ok {
			return x.ok
		}
		if a.orden == Descendente {
			return x.fecha.After(y.fecha)
		}
		return x.fecha.Before(y.fecha)
	})

	out := make([]models.ItemPendiente, len(filtrados))
	for i, fi := range filtrados {
		out[i] = fi.item
	}
	return out
}

func (a *Agrupacion) Seleccionado(item models.ItemPendiente) bool {
	_, ok := a.seleccion[ClaveItem(item)]
	return ok
}

func (a *Agrupacion) Alternar(item models.ItemPendiente) {
	k := ClaveItem(item)
	if _, ok := a.seleccion[k]; ok {
		delete(a.seleccion, k)
		return
	}
	a.seleccion[k] = struct{}{}
}

// SeleccionarPorClave marks the rows with the given keys as selected.
// Unknown keys are kept as well: they only matter if a matching row exists.
func (a *Agrupacion) SeleccionarPorClave(claves ...string) {
	for _, k := range claves {
		a.seleccion[k] = struct{}{}
	}
}

// SeleccionarTodo selects exactly the visible rows, or clears the selection.
func (a *Agrupacion) SeleccionarTodo(marcar bool) {
	a.seleccion = make(map[string]struct{})
	if !marcar {
		return
	}
	for _, it := range a.Visibles() {
		a.seleccion[ClaveItem(it)] = struct{}{}
	}
}

func (a *Agrupacion) CantidadSeleccionada() int {
	return len(a.seleccion)
}

// TodoSeleccionado mirrors the header checkbox state.
func (a *Agrupacion) TodoSeleccionado() bool {
	visibles := a.Visibles()
	return len(a.seleccion) > 0 && len(visibles) > 0 && len(a.seleccion) == len(visibles)
}

func (a *Agrupacion) PuedeGenerar() bool {
	return len(a.seleccion) > 0
}

// Generar returns the selected rows that are currently visible, in visible
// order.
func (a *Agrupacion) Generar() []models.ItemPendiente {
	var out []models.ItemPendiente
	for _, it := range a.Visibles() {
		if a.Seleccionado(it) {
			out = append(out, it)
		}
	}
	return out
}
