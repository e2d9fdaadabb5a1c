package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

const idempotencyHeader = "Idempotency-Key"

func (v *APIServer) handleMaestros(w http.ResponseWriter, r *http.Request) error {
	if r.Method == http.MethodGet {
		maestros, err := v.canjes.ListMaestros(r.Context())
		if err != nil {
			return err
		}
		return WriteJSON(w, http.StatusOK, maestros)
	}
	return methodNotAllowed(r)
}

func (v *APIServer) handleMaestroPerfil(w http.ResponseWriter, r *http.Request) error {
	if r.Method == http.MethodGet {
		perfil, err := v.canjes.Perfil(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			return err
		}
		return WriteJSON(w, http.StatusOK, perfil)
	}
	return methodNotAllowed(r)
}

func (v *APIServer) handlePremios(w http.ResponseWriter, r *http.Request) error {
	if r.Method == http.MethodGet {
		premios, err := v.canjes.ListPremios(r.Context())
		if err != nil {
			return err
		}
		return WriteJSON(w, http.StatusOK, premios)
	}
	return methodNotAllowed(r)
}

func (v *APIServer) handlePreviewCanje(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodPost {
		return methodNotAllowed(r)
	}
	var req PreviewCanjeRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	preview, err := v.canjes.Previsualizar(r.Context(), req.MaestroID, lineasCanje(req.Premios))
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, preview)
}

func (v *APIServer) handleRegistrarCanje(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodPost {
		return methodNotAllowed(r)
	}
	var req CanjeRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	operador := req.Operador
	if name, ok := operadorFromContext(r.Context()); ok {
		operador = name
	}
	if operador == "" {
		return badRequest("operador is required")
	}

	canje, err := v.canjes.Registrar(r.Context(), mux.Vars(r)["id"], operador,
		r.Header.Get(idempotencyHeader), lineasCanje(req.Premios))
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusCreated, canje)
}
