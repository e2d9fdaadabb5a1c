package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"abastecimiento/service"
	"abastecimiento/workflow"
)

func (v *APIServer) handleProductos(w http.ResponseWriter, r *http.Request) error {
	if r.Method == http.MethodGet {
		productos, err := v.compras.ListProductos(r.Context())
		if err != nil {
			return err
		}
		return WriteJSON(w, http.StatusOK, productos)
	}
	return methodNotAllowed(r)
}

func (v *APIServer) handleProveedores(w http.ResponseWriter, r *http.Request) error {
	if r.Method == http.MethodGet {
		proveedores, err := v.compras.BuscarProveedores(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			return err
		}
		return WriteJSON(w, http.StatusOK, proveedores)
	}
	return methodNotAllowed(r)
}

func (v *APIServer) handlePedidos(w http.ResponseWriter, r *http.Request) error {
	if r.Method == http.MethodGet {
		pedidos, err := v.compras.ListPedidos(r.Context())
		if err != nil {
			return err
		}
		return WriteJSON(w, http.StatusOK, pedidos)
	}
	return methodNotAllowed(r)
}

func (v *APIServer) handlePedido(w http.ResponseWriter, r *http.Request) error {
	if r.Method == http.MethodGet {
		pedido, err := v.compras.GetPedido(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			return err
		}
		return WriteJSON(w, http.StatusOK, pedido)
	}
	return methodNotAllowed(r)
}

func (v *APIServer) handleRevisarPedido(w http.ResponseWriter, r *http.Request) error {
	if r.Method == http.MethodPut {
		pedido, err := v.compras.RevisarPedido(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			return err
		}
		return WriteJSON(w, http.StatusOK, pedido)
	}
	return methodNotAllowed(r)
}

func filtroFromQuery(r *http.Request) service.FiltroItems {
	q := r.URL.Query()
	return service.FiltroItems{
		Desde: q.Get("desde"),
		Hasta: q.Get("hasta"),
		Orden: workflow.Orden(q.Get("orden")),
	}
}

func (v *APIServer) handleItemsPendientes(w http.ResponseWriter, r *http.Request) error {
	if r.Method == http.MethodGet {
		items, err := v.compras.ItemsPendientes(r.Context(), filtroFromQuery(r))
		if err != nil {
			return err
		}
		return WriteJSON(w, http.StatusOK, ItemsPendientesResponse{Items: items, Total: len(items)})
	}
	return methodNotAllowed(r)
}

func (v *APIServer) handleSolicitudes(w http.ResponseWriter, r *http.Request) error {
	switch r.Method {
	case http.MethodGet:
		solicitudes, err := v.compras.ListSolicitudes(r.Context())
		if err != nil {
			return err
		}
		return WriteJSON(w, http.StatusOK, solicitudes)
	case http.MethodPost:
		var req AgruparRequest
		if err := decodeJSON(r, &req); err != nil {
			return err
		}
		f := service.FiltroItems{Desde: req.Desde, Hasta: req.Hasta, Orden: workflow.Orden(req.Orden)}
		sol, err := v.compras.AgruparItems(r.Context(), f, req.Claves, r.Header.Get(idempotencyHeader))
		if err != nil {
			return err
		}
		return WriteJSON(w, http.StatusCreated, sol)
	}
	return methodNotAllowed(r)
}

func (v *APIServer) handleSolicitud(w http.ResponseWriter, r *http.Request) error {
	if r.Method == http.MethodGet {
		sol, err := v.compras.GetSolicitud(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			return err
		}
		return WriteJSON(w, http.StatusOK, sol)
	}
	return methodNotAllowed(r)
}

func (v *APIServer) handleEnviarSolicitud(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodPut {
		return methodNotAllowed(r)
	}
	var req EnviarRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	sol, err := v.compras.EnviarSolicitud(r.Context(), mux.Vars(r)["id"], req.ProveedoresIDs)
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, sol)
}

func (v *APIServer) handleProveedoresDisponibles(w http.ResponseWriter, r *http.Request) error {
	if r.Method == http.MethodGet {
		proveedores, err := v.compras.ProveedoresDisponibles(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			return err
		}
		return WriteJSON(w, http.StatusOK, proveedores)
	}
	return methodNotAllowed(r)
}

func (v *APIServer) handleRegistrarCotizacion(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodPost {
		return methodNotAllowed(r)
	}
	var req CotizacionRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	sol, err := v.compras.RegistrarCotizacion(r.Context(), mux.Vars(r)["id"], req.cotizacion(),
		r.Header.Get(idempotencyHeader))
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusCreated, sol)
}

func (v *APIServer) handleAdjudicacion(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodPost {
		return methodNotAllowed(r)
	}
	var req AdjudicacionRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	id := mux.Vars(r)["id"]
	ordenes, err := v.compras.Adjudicar(r.Context(), id, req.asignaciones(), r.Header.Get(idempotencyHeader))
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusCreated, AdjudicacionResponse{IDSolicitud: id, Ordenes: ordenes})
}

func (v *APIServer) handleOrdenesCompra(w http.ResponseWriter, r *http.Request) error {
	if r.Method == http.MethodGet {
		ordenes, err := v.compras.ListOrdenesCompra(r.Context(), r.URL.Query().Get("solicitud"))
		if err != nil {
			return err
		}
		return WriteJSON(w, http.StatusOK, ordenes)
	}
	return methodNotAllowed(r)
}
