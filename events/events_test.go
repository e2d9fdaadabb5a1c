package events

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMensaje(t *testing.T) {
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	msg, err := mensaje(CanjeRegistrado, "C-001", map[string]int{"puntos": 175}, now)
	require.NoError(t, err)

	assert.Equal(t, "canje-registrado-C-001", string(msg.Key))
	assert.Equal(t, now, msg.Time)

	var got struct {
		Tipo    string         `json:"tipo"`
		ID      string         `json:"id"`
		Payload map[string]int `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, CanjeRegistrado, got.Tipo)
	assert.Equal(t, "C-001", got.ID)
	assert.Equal(t, 175, got.Payload["puntos"])
}

func TestMensajePayloadInvalido(t *testing.T) {
	_, err := mensaje(SolicitudAdjudicada, "SOL-001", make(chan int), time.Now())
	assert.Error(t, err)
}

func TestNewKafkaWriter(t *testing.T) {
	w := NewKafkaWriter([]string{"k1:9092", "k2:9092"}, "abastecimiento-events")
	assert.Equal(t, "abastecimiento-events", w.Topic)
	assert.Contains(t, w.Addr.String(), "k1:9092")
	assert.True(t, w.AllowAutoTopicCreation)
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(slog.New(slog.NewTextHandler(&buf, nil)))
	require.NoError(t, p.Publish(context.Background(), SolicitudAdjudicada, "SOL-002", nil))
	assert.Contains(t, buf.String(), "tipo=solicitud-adjudicada")
	assert.Contains(t, buf.String(), "id=SOL-002")
	assert.NoError(t, p.Close())
}
