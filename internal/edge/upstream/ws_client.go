package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/radieske/inplay-mirror/pkg/contracts/events"
)

const (
	minBackoff = 500 * time.Millisecond
	maxBackoff = 10 * time.Second
)

// WSClient segue o /ws de um mirror-service e entrega cada LiveData ao Handle.
// Ao (re)conectar o mirror manda o estado completo, então a réplica se refaz sozinha.
type WSClient struct {
	URL    string
	Log    *zap.Logger
	Handle func(events.LiveData)

	OnReconnect func() // métricas
	Clock       clockwork.Clock // nil = relógio real
}

// Start conecta e escuta até o contexto acabar, reconectando com backoff exponencial
func (c *WSClient) Start(ctx context.Context) {
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	backoff := minBackoff
	for {
		connected, err := c.connectAndListen(ctx)
		if ctx.Err() != nil {
			c.Log.Info("context canceled, stopping upstream client")
			return
		}
		if connected {
			backoff = minBackoff
		}
		c.Log.Warn("upstream connection closed", zap.Error(err), zap.Duration("retry_in", backoff))
		if c.OnReconnect != nil {
			c.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return
		case <-c.Clock.After(backoff):
		}
		backoff = nextBackoff(backoff)
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d *= 2; d > maxBackoff {
		return maxBackoff
	}
	return d
}

// connectAndListen devolve connected=true se o dial deu certo,
// para o backoff recomeçar do mínimo
func (c *WSClient) connectAndListen(ctx context.Context) (connected bool, err error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.URL, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()
	c.Log.Info("connected to upstream", zap.String("url", c.URL))

	// ReadMessage não respeita ctx; fechar a conexão desbloqueia a leitura
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || errors.Is(err, context.Canceled) {
				return true, nil
			}
			return true, err
		}

		var ld events.LiveData
		if err := json.Unmarshal(message, &ld); err != nil {
			// pong e outras mensagens de controle não são LiveData
			c.Log.Debug("ignoring non live data message", zap.Error(err))
			continue
		}
		if ld.Data == nil {
			continue
		}
		c.Handle(ld)
	}
}
