// Package producer agenda as três cadências de atualização (ressincronização
// completa, poll rápido e mutação instantânea) sobre um único loop escritor.
//
// A coleta no extractor pode bloquear e roda em goroutines por cadência; a
// aplicação no engine e o broadcast rodam só no loop, um item por vez, na
// ordem em que foram concluídos.
package producer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/radieske/inplay-mirror/internal/mirror/engine"
	"github.com/radieske/inplay-mirror/internal/mirror/extractor"
	"github.com/radieske/inplay-mirror/pkg/contracts/events"
)

// Cadências, também usadas como label de métricas
const (
	CadenceFull    = "full_resync"
	CadenceFast    = "fast_poll"
	CadenceInstant = "instant"
)

// Broadcaster é a parte do gateway usada pelos produtores. Cada aplicação no
// engine e seus broadcasts rodam dentro de um Sequence.
type Broadcaster interface {
	BroadcastRebuild(ev engine.RebuildEvent)
	BroadcastChange(ev engine.ChangeEvent)
	Sequence(fn func())
}

// Scheduler liga extractor, engine e gateway
type Scheduler struct {
	Engine    *engine.Engine
	Extractor extractor.Extractor
	Gateway   Broadcaster
	Log       *zap.Logger

	FullResyncInterval time.Duration
	FastPollInterval   time.Duration
	Clock              clockwork.Clock // nil usa o relógio real

	OnResync func(fixtures int)       // métricas
	OnChange func(field events.Field) // métricas
	OnError  func(cadence string)     // métricas
	OnStale  func(cadence string)     // métricas
}

// work é um snapshot já coletado aguardando aplicação no loop
type work struct {
	cadence    string
	full       []events.RawFixture
	fast       []events.PartialSnapshot
	generation uint64
}

// Run executa a ressincronização inicial, dispara as cadências e drena a fila
// de trabalho até o contexto ser cancelado.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.FullResyncInterval <= 0 {
		s.FullResyncInterval = 30 * time.Second
	}
	if s.FastPollInterval <= 0 {
		s.FastPollInterval = time.Second
	}
	if s.Clock == nil {
		s.Clock = clockwork.NewRealClock()
	}
	jobs := make(chan work)
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		s.cadence(ctx, CadenceFull, s.FullResyncInterval, true, s.gatherFull, jobs)
	}()
	go func() {
		defer wg.Done()
		s.cadence(ctx, CadenceFast, s.FastPollInterval, false, s.gatherFast, jobs)
	}()

	mutations := s.Extractor.Mutations()
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case w := <-jobs:
			s.Gateway.Sequence(func() { s.apply(w) })
		case m, ok := <-mutations:
			if !ok {
				mutations = nil // canal fechado: segue só com os timers
				continue
			}
			s.Gateway.Sequence(func() { s.applyMutation(m) })
		}
	}
}

// cadence coleta num intervalo fixo e entrega ao loop. Um ciclo com erro só
// é logado; o próximo tick segue independente.
func (s *Scheduler) cadence(ctx context.Context, name string, every time.Duration, immediate bool,
	gather func(context.Context) (work, bool, error), jobs chan<- work) {

	ticker := s.Clock.NewTicker(every)
	defer ticker.Stop()

	run := func() {
		w, ok, err := gather(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.Log.Warn("extraction failed", zap.String("cadence", name), zap.Error(err))
			if s.OnError != nil {
				s.OnError(name)
			}
			return
		}
		if !ok {
			return
		}
		select {
		case jobs <- w:
		case <-ctx.Done():
		}
	}

	if immediate {
		run()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			run()
		}
	}
}

func (s *Scheduler) gatherFull(ctx context.Context) (work, bool, error) {
	raw, err := s.Extractor.ExtractFull(ctx)
	if err != nil {
		return work{}, false, err
	}
	return work{cadence: CadenceFull, full: raw}, true, nil
}

func (s *Scheduler) gatherFast(ctx context.Context) (work, bool, error) {
	// sem estado canônico ainda: nada a comparar
	if s.Engine.Len() == 0 {
		return work{}, false, nil
	}
	gen := s.Engine.Generation()
	snap, err := s.Extractor.ExtractFast(ctx)
	if err != nil {
		return work{}, false, err
	}
	return work{cadence: CadenceFast, fast: snap, generation: gen}, true, nil
}

func (s *Scheduler) apply(w work) {
	switch w.cadence {
	case CadenceFull:
		rb := s.Engine.ApplyFullSnapshot(w.full)
		s.Gateway.BroadcastRebuild(rb)
		if s.OnResync != nil {
			s.OnResync(len(rb.Data))
		}
		s.Log.Info("full resync applied", zap.Int("fixtures", len(rb.Data)), zap.Uint64("generation", rb.Generation))

	case CadenceFast:
		if n := s.Engine.Len(); len(w.fast) != n {
			s.Log.Debug("fast poll length mismatch", zap.Int("snapshot", len(w.fast)), zap.Int("canonical", n))
		}
		evs, err := s.Engine.ApplyFastPollAt(w.generation, w.fast)
		if errors.Is(err, engine.ErrStaleGeneration) {
			s.Log.Debug("fast poll dropped, resync happened while gathering", zap.Uint64("generation", w.generation))
			if s.OnStale != nil {
				s.OnStale(CadenceFast)
			}
			return
		}
		for _, ev := range evs {
			s.Gateway.BroadcastChange(ev)
			if s.OnChange != nil {
				s.OnChange(ev.Field)
			}
			s.Log.Debug("field update", zap.String("field", string(ev.Field)), zap.Int("idx", ev.Index))
		}
	}
}

func (s *Scheduler) applyMutation(m events.Mutation) {
	if m.Index < 0 || m.Index >= s.Engine.Len() {
		if s.OnStale != nil {
			s.OnStale(CadenceInstant)
		}
		return
	}
	ev, ok := s.Engine.ApplyInstantMutation(m)
	if !ok {
		return
	}
	s.Gateway.BroadcastChange(ev)
	if s.OnChange != nil {
		s.OnChange(ev.Field)
	}
	s.Log.Debug("score update", zap.Int("idx", ev.Index), zap.String("score", ev.Data[ev.Index].Score))
}
