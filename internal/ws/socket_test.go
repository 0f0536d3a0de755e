package ws

import (
	"context"
	"testing"
	"time"

	"doorprize/internal/models"
	"doorprize/internal/services"
	"doorprize/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopScheduler struct{}

func (nopScheduler) Every(_ time.Duration, _ func()) func() { return func() {} }

func newService(t *testing.T) *services.LotteryService {
	t.Helper()
	svc, err := services.NewLotteryService(context.Background(), store.NewMemoryStore(),
		services.WithScheduler(nopScheduler{}))
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

func TestHub_Start(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		h := New(newService(t), false)
		assert.Contains(t, h.start(), "error")
	})

	t.Run("empty pool", func(t *testing.T) {
		h := New(newService(t), true)
		assert.Equal(t, services.ErrEmptyCandidatePool.Error(), h.start()["error"])
	})

	t.Run("starts a draw", func(t *testing.T) {
		svc := newService(t)
		require.NoError(t, svc.ImportCandidates(context.Background(), []models.Candidate{{Name: "Alice", TotalScore: 50}}))
		h := New(svc, true)
		assert.Equal(t, true, h.start()["ok"])
		assert.Equal(t, models.PhaseDrawing, svc.State().Phase)
	})
}

func TestHub_Payload(t *testing.T) {
	svc := newService(t)
	svc.SetTitle("Gala")
	h := New(svc, false)

	p := h.Payload(svc.State())
	assert.Equal(t, models.PhaseIdle, p["state"].(models.DrawState).Phase)
	assert.Equal(t, "Gala", p["settings"].(models.Settings).Title)
}

func TestHub_Mount(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	io := New(newService(t), false).Mount(r)
	defer io.Close()

	methods := map[string]bool{}
	for _, route := range r.Routes() {
		if route.Path == "/socket.io/*any" {
			methods[route.Method] = true
		}
	}
	assert.Equal(t, map[string]bool{"GET": true, "POST": true, "OPTIONS": true}, methods)
}
