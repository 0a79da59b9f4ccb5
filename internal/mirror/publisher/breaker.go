package publisher

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/radieske/inplay-mirror/pkg/contracts/events"
)

// Sink é o destino assíncrono de cada LiveData emitido (Kafka, Redis)
type Sink interface {
	Publish(ctx context.Context, ld events.LiveData) error
}

// BreakerSettings controla quando o circuito de um sink abre
type BreakerSettings struct {
	ConsecutiveFailures uint32        // falhas seguidas para abrir (default 5)
	OpenFor             time.Duration // tempo aberto antes do half-open (default 30s)
}

// BreakerSink protege um sink com circuit breaker: com o broker fora do ar
// os publishes falham na hora em vez de esperar o timeout a cada evento.
type BreakerSink struct {
	next Sink
	cb   *gobreaker.CircuitBreaker
}

// WithBreaker embrulha next; onState recebe as transições (métricas), pode ser nil
func WithBreaker(name string, next Sink, st BreakerSettings, log *zap.Logger, onState func(name string, to gobreaker.State)) *BreakerSink {
	if st.ConsecutiveFailures == 0 {
		st.ConsecutiveFailures = 5
	}
	if st.OpenFor <= 0 {
		st.OpenFor = 30 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     st.OpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= st.ConsecutiveFailures
		},
		// shutdown não conta como falha do sink
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("sink circuit breaker state changed",
				zap.String("sink", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if onState != nil {
				onState(name, to)
			}
		},
	})
	return &BreakerSink{next: next, cb: cb}
}

// Publish repassa ao sink se o circuito permitir; aberto devolve gobreaker.ErrOpenState
func (b *BreakerSink) Publish(ctx context.Context, ld events.LiveData) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Publish(ctx, ld)
	})
	return err
}

// State expõe o estado atual do circuito
func (b *BreakerSink) State() gobreaker.State {
	return b.cb.State()
}
