package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"abastecimiento/idempotency"
	"abastecimiento/models"
	"abastecimiento/service"
	"abastecimiento/storage"
	"abastecimiento/workflow"
)

type Canjes interface {
	ListMaestros(ctx context.Context) ([]models.Maestro, error)
	ListPremios(ctx context.Context) ([]models.Premio, error)
	Perfil(ctx context.Context, maestroID string) (*service.PerfilMaestro, error)
	Previsualizar(ctx context.Context, maestroID string, lineas []service.LineaCanje) (*service.Previsualizacion, error)
	Registrar(ctx context.Context, maestroID, operador, idemKey string, lineas []service.LineaCanje) (*models.Canje, error)
}

type Compras interface {
	ListProductos(ctx context.Context) ([]models.Product, error)
	BuscarProveedores(ctx context.Context, term string) ([]models.Provider, error)
	ListPedidos(ctx context.Context) ([]models.Pedido, error)
	GetPedido(ctx context.Context, id string) (*models.Pedido, error)
	RevisarPedido(ctx context.Context, id string) (*models.Pedido, error)
	ItemsPendientes(ctx context.Context, f service.FiltroItems) ([]service.ItemVisible, error)
	AgruparItems(ctx context.Context, f service.FiltroItems, claves []string, idemKey string) (*models.SolicitudCotizacion, error)
	ListSolicitudes(ctx context.Context) ([]models.SolicitudCotizacion, error)
	GetSolicitud(ctx context.Context, id string) (*models.SolicitudCotizacion, error)
	EnviarSolicitud(ctx context.Context, id string, proveedorIDs []string) (*models.SolicitudCotizacion, error)
	ProveedoresDisponibles(ctx context.Context, id string) ([]models.Provider, error)
	RegistrarCotizacion(ctx context.Context, id string, c service.Cotizacion, idemKey string) (*models.SolicitudCotizacion, error)
	Adjudicar(ctx context.Context, id string, asignaciones []service.Asignacion, idemKey string) ([]models.OrdenCompra, error)
	ListOrdenesCompra(ctx context.Context, solicitudID string) ([]models.OrdenCompra, error)
}

type Options struct {
	ListenAddr  string
	Timeout     time.Duration
	IdleTimeout time.Duration
	RateRPS     float64
	RateBurst   int
	JWTSecret   string
}

type APIServer struct {
	opts    Options
	canjes  Canjes
	compras Compras
	log     *slog.Logger
	limiter *limiter
}

func NewAPIServer(opts Options, canjes Canjes, compras Compras, log *slog.Logger) *APIServer {
	if log == nil {
		log = slog.Default()
	}
	return &APIServer{
		opts:    opts,
		canjes:  canjes,
		compras: compras,
		log:     log,
		limiter: newLimiter(opts.RateRPS, opts.RateBurst),
	}
}

func (v *APIServer) Router() http.Handler {
	router := mux.NewRouter()
	router.Use(v.loggingMiddleware, v.rateLimitMiddleware, v.authMiddleware)

	router.HandleFunc("/api/ping", v.makeHTTPHandleFunc(v.pingServer))

	router.HandleFunc("/api/maestros", v.makeHTTPHandleFunc(v.handleMaestros))
	router.HandleFunc("/api/maestros/{id}", v.makeHTTPHandleFunc(v.handleMaestroPerfil))
	router.HandleFunc("/api/maestros/{id}/canjes", v.makeHTTPHandleFunc(v.handleRegistrarCanje))
	router.HandleFunc("/api/premios", v.makeHTTPHandleFunc(v.handlePremios))
	router.HandleFunc("/api/canjes/preview", v.makeHTTPHandleFunc(v.handlePreviewCanje))

	router.HandleFunc("/api/productos", v.makeHTTPHandleFunc(v.handleProductos))
	router.HandleFunc("/api/proveedores", v.makeHTTPHandleFunc(v.handleProveedores))
	router.HandleFunc("/api/pedidos", v.makeHTTPHandleFunc(v.handlePedidos))
	router.HandleFunc("/api/pedidos/{id}", v.makeHTTPHandleFunc(v.handlePedido))
	router.HandleFunc("/api/pedidos/{id}/revisar", v.makeHTTPHandleFunc(v.handleRevisarPedido))
	router.HandleFunc("/api/items-pendientes", v.makeHTTPHandleFunc(v.handleItemsPendientes))

	router.HandleFunc("/api/solicitudes", v.makeHTTPHandleFunc(v.handleSolicitudes))
	router.HandleFunc("/api/solicitudes/{id}", v.makeHTTPHandleFunc(v.handleSolicitud))
	router.HandleFunc("/api/solicitudes/{id}/enviar", v.makeHTTPHandleFunc(v.handleEnviarSolicitud))
	router.HandleFunc("/api/solicitudes/{id}/proveedores-disponibles", v.makeHTTPHandleFunc(v.handleProveedoresDisponibles))
	router.HandleFunc("/api/solicitudes/{id}/cotizaciones", v.makeHTTPHandleFunc(v.handleRegistrarCotizacion))
	router.HandleFunc("/api/solicitudes/{id}/adjudicacion", v.makeHTTPHandleFunc(v.handleAdjudicacion))
	router.HandleFunc("/api/ordenes-compra", v.makeHTTPHandleFunc(v.handleOrdenesCompra))

	return router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (v *APIServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         v.opts.ListenAddr,
		Handler:      v.Router(),
		ReadTimeout:  v.opts.Timeout,
		WriteTimeout: v.opts.Timeout,
		IdleTimeout:  v.opts.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		v.log.Info("JSON API running", slog.String("address", v.opts.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	v.log.Info("shutting down server")
	return srv.Shutdown(shutdownCtx)
}

func (v *APIServer) pingServer(w http.ResponseWriter, r *http.Request) error {
	if r.Method == http.MethodGet {
		return WriteJSON(w, http.StatusOK, "ok")
	}
	return methodNotAllowed(r)
}

var (
	errMethodNotAllowed = errors.New("method not allowed")
	errBadRequest       = errors.New("bad request")
	errUnauthorized     = errors.New("unauthorized")
)

func methodNotAllowed(r *http.Request) error {
	return fmt.Errorf("%w: %s", errMethodNotAllowed, r.Method)
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// decodeJSON reads the body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid request body: %s", err)
	}
	return nil
}

func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Add("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(v)
}

type apiFunc func(http.ResponseWriter, *http.Request) error

type ApiError struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errMethodNotAllowed):
		return http.StatusMethodNotAllowed
	case errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, service.ErrValidacion),
		errors.Is(err, storage.ErrPuntosInvalidos),
		errors.Is(err, workflow.ErrFormularioInvalido),
		errors.Is(err, workflow.ErrProveedorSinCotizacion),
		errors.Is(err, workflow.ErrItemNoOfertado),
		errors.Is(err, workflow.ErrModalidadNoOfrecida),
		errors.Is(err, workflow.ErrAdjudicacionIncompleta):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrTransicionInvalida),
		errors.Is(err, service.ErrPuntosInsuficientes),
		errors.Is(err, storage.ErrConflict),
		errors.Is(err, workflow.ErrItemBloqueado),
		errors.Is(err, idempotency.ErrDuplicateKey):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (v *APIServer) makeHTTPHandleFunc(f apiFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := f(w, r); err != nil {
			status := statusFor(err)
			msg := err.Error()
			if status == http.StatusInternalServerError {
				v.log.Error("request failed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("error", msg))
				msg = "internal server error"
			}
			WriteJSON(w, status, ApiError{Error: msg})
		}
	}
}
