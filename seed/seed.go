// Package seed loads catalog data (maestros, premios, productos,
// proveedores, pedidos and solicitudes) from YAML, TOML or EDN files and
// writes it to storage.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
	"olympos.io/encoding/edn"

	"abastecimiento/models"
)

type Catalog struct {
	Maestros    []models.Maestro             `json:"maestros"`
	Premios     []models.Premio              `json:"premios"`
	Productos   []models.Product             `json:"productos"`
	Proveedores []models.Provider            `json:"proveedores"`
	Pedidos     []models.Pedido              `json:"pedidos"`
	Solicitudes []models.SolicitudCotizacion `json:"solicitudes"`
}

// Writer is the part of storage.Storage the loader needs.
type Writer interface {
	UpsertMaestro(ctx context.Context, m models.Maestro) error
	UpsertPremio(ctx context.Context, p models.Premio) error
	UpsertProducto(ctx context.Context, p models.Product) error
	UpsertProveedor(ctx context.Context, p models.Provider) error
	UpsertPedido(ctx context.Context, p models.Pedido) error
	UpsertSolicitud(ctx context.Context, s models.SolicitudCotizacion) error
}

// Cargar reads a catalog, picking the decoder from the file extension.
func Cargar(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	return Decode(strings.ToLower(filepath.Ext(path)), data)
}

// Decode parses data in the format named by ext (".yaml", ".yml", ".toml"
// or ".edn"). Every format goes through the JSON field names of the models.
func Decode(ext string, data []byte) (*Catalog, error) {
	var raw any
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode yaml seed: %w", err)
		}
	case ".toml":
		var m map[string]any
		if _, err := toml.Decode(string(data), &m); err != nil {
			return nil, fmt.Errorf("decode toml seed: %w", err)
		}
		raw = m
	case ".edn":
		if err := edn.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode edn seed: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported seed format %q", ext)
	}

	b, err := json.Marshal(normalizar(raw))
	if err != nil {
		return nil, fmt.Errorf("normalize seed: %w", err)
	}
	var c Catalog
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("map seed: %w", err)
	}
	return &c, nil
}

// normalizar rewrites decoder output into shapes encoding/json accepts:
// EDN keywords and symbols become strings and interface-keyed maps become
// string-keyed.
func normalizar(v any) any {
	switch t := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[clave(k)] = normalizar(val)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizar(val)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizar(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizar(val)
		}
		return out
	case edn.Keyword:
		return string(t)
	case edn.Symbol:
		return string(t)
	default:
		return v
	}
}

func clave(k any) string {
	switch t := k.(type) {
	case edn.Keyword:
		return string(t)
	case edn.Symbol:
		return string(t)
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// Aplicar upserts every record of c.
func Aplicar(ctx context.Context, w Writer, c *Catalog) error {
	for _, m := range c.Maestros {
		if err := w.UpsertMaestro(ctx, m); err != nil {
			return err
		}
	}
	for _, p := range c.Premios {
		if err := w.UpsertPremio(ctx, p); err != nil {
			return err
		}
	}
	for _, p := range c.Productos {
		if err := w.UpsertProducto(ctx, p); err != nil {
			return err
		}
	}
	for _, p := range c.Proveedores {
		if err := w.UpsertProveedor(ctx, p); err != nil {
			return err
		}
	}
	for _, p := range c.Pedidos {
		if err := w.UpsertPedido(ctx, p); err != nil {
			return err
		}
	}
	for _, s := range c.Solicitudes {
		if err := w.UpsertSolicitud(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (c *Catalog) String() string {
	return fmt.Sprintf("%d maestros, %d premios, %d productos, %d proveedores, %d pedidos, %d solicitudes",
		len(c.Maestros), len(c.Premios), len(c.Productos), len(c.Proveedores), len(c.Pedidos), len(c.Solicitudes))
}
