// Package gateway formata e publica os eventos do engine para os observadores.
package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/radieske/inplay-mirror/internal/mirror/engine"
	"github.com/radieske/inplay-mirror/pkg/contracts/events"
)

// Publisher é o transporte de fan-out (ex.: o hub websocket)
type Publisher interface {
	Broadcast(msg events.LiveData)
	SendTo(observerID string, msg events.LiveData) error
}

// StateSource fornece o estado completo para o sync inicial de um observador
type StateSource interface {
	Snapshot() []events.Fixture
}

// Sink recebe uma cópia de cada broadcast (Kafka, Redis, ...)
type Sink interface {
	Publish(ctx context.Context, msg events.LiveData) error
}

const defaultSinkQueue = 1024

// Gateway serializa as emissões: um sync inicial nunca é enfileirado depois
// de um broadcast mais novo para o mesmo observador, nem no meio de um lote
// aplicado dentro de Sequence.
type Gateway struct {
	Publisher Publisher
	State     StateSource
	Sinks     []Sink
	Log       *zap.Logger

	OnBroadcast func(kind string) // métricas: "rebuild" | "change" | "initial"
	OnSinkError func(sink int)    // métricas por sink
	OnSinkDrop  func()            // fila de sinks cheia

	Clock clockwork.Clock // ts dos payloads

	seq    sync.Mutex // aplicação no estado + seus broadcasts
	mu     sync.Mutex // cada emissão
	sinkCh chan events.LiveData
}

// New cria um Gateway; sinkQueue <= 0 usa o tamanho padrão da fila de sinks
func New(pub Publisher, state StateSource, log *zap.Logger, sinkQueue int, sinks ...Sink) *Gateway {
	if sinkQueue <= 0 {
		sinkQueue = defaultSinkQueue
	}
	return &Gateway{
		Publisher: pub,
		State:     state,
		Sinks:     sinks,
		Log:       log,
		Clock:     clockwork.NewRealClock(),
		sinkCh:    make(chan events.LiveData, sinkQueue),
	}
}

// BroadcastRebuild envia o estado completo, sem campo, a todos os observadores
func (g *Gateway) BroadcastRebuild(ev engine.RebuildEvent) {
	g.emit("rebuild", events.NewRebuild(ev.Data, g.Clock.Now()))
}

// BroadcastChange envia o estado completo junto do índice e do campo alterado
func (g *Gateway) BroadcastChange(ev engine.ChangeEvent) {
	g.emit("change", events.NewChange(ev.Data, ev.Index, ev.Field, g.Clock.Now()))
}

// Relay reenvia um payload já pronto (ex.: recebido de outra réplica)
func (g *Gateway) Relay(msg events.LiveData) {
	kind := "change"
	if msg.IsRebuild() {
		kind = "rebuild"
	}
	g.emit(kind, msg)
}

// Sequence roda fn (aplicar no estado e emitir os eventos resultantes) sem
// que um sync inicial se intercale: quem conecta recebe o estado de antes ou
// de depois do lote inteiro. fn não pode chamar OnObserverConnected.
func (g *Gateway) Sequence(fn func()) {
	g.seq.Lock()
	defer g.seq.Unlock()
	fn()
}

// OnObserverConnected envia o estado atual apenas ao observador que entrou
func (g *Gateway) OnObserverConnected(observerID string) {
	g.seq.Lock()
	defer g.seq.Unlock()
	g.mu.Lock()
	defer g.mu.Unlock()

	msg := events.NewRebuild(g.State.Snapshot(), g.Clock.Now())
	if err := g.Publisher.SendTo(observerID, msg); err != nil {
		g.Log.Warn("initial sync failed", zap.String("observer_id", observerID), zap.Error(err))
		return
	}
	if g.OnBroadcast != nil {
		g.OnBroadcast("initial")
	}
	g.Log.Debug("initial sync sent", zap.String("observer_id", observerID), zap.Int("fixtures", len(msg.Data)))
}

func (g *Gateway) emit(kind string, msg events.LiveData) {
	g.mu.Lock()
	g.Publisher.Broadcast(msg)
	g.mu.Unlock()

	if g.OnBroadcast != nil {
		g.OnBroadcast(kind)
	}
	if len(g.Sinks) == 0 {
		return
	}
	select {
	case g.sinkCh <- msg:
	default:
		g.Log.Warn("sink queue full, dropping event", zap.String("kind", kind))
		if g.OnSinkDrop != nil {
			g.OnSinkDrop()
		}
	}
}

// RunSinks drena a fila de sinks em ordem até o contexto ser cancelado.
// Falha de um sink é logada e não impede os demais.
func (g *Gateway) RunSinks(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-g.sinkCh:
			for i, s := range g.Sinks {
				sctx, cancel := context.WithTimeout(ctx, 2*time.Second)
				err := s.Publish(sctx, msg)
				cancel()
				if err != nil {
					g.Log.Warn("sink publish failed", zap.Int("sink", i), zap.Error(err))
					if g.OnSinkError != nil {
						g.OnSinkError(i)
					}
				}
			}
		}
	}
}
