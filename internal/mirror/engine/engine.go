// Package engine mantém o estado canônico das partidas ao vivo.
//
// O Engine é o único dono e o único escritor do estado: produtores entregam
// snapshots propostos e recebem de volta os eventos a publicar. Toda
// aplicação roda sob o mesmo mutex e nunca faz I/O, então duas mutações
// nunca se intercalam.
package engine

import (
	"errors"
	"sync"

	"github.com/radieske/inplay-mirror/internal/mirror/differ"
	"github.com/radieske/inplay-mirror/pkg/contracts/events"
)

// ErrStaleGeneration indica um snapshot colhido antes da última ressincronização
var ErrStaleGeneration = errors.New("snapshot gathered under a previous layout generation")

// RebuildEvent carrega o estado completo após uma ressincronização
type RebuildEvent struct {
	Data       []events.Fixture
	Generation uint64
}

// ChangeEvent carrega o estado completo e o índice/campo que mudou
type ChangeEvent struct {
	Data  []events.Fixture
	Index int
	Field events.Field
}

// Engine guarda a sequência canônica de partidas.
// generation incrementa a cada ressincronização (mudança de layout).
type Engine struct {
	mu         sync.RWMutex
	fixtures   []events.Fixture
	generation uint64
}

// New cria um Engine com estado vazio
func New() *Engine {
	return &Engine{fixtures: []events.Fixture{}}
}

// ApplyFullSnapshot normaliza e substitui o estado inteiro de uma vez.
// Sempre devolve um RebuildEvent, mesmo que nada tenha mudado.
func (e *Engine) ApplyFullSnapshot(raw []events.RawFixture) RebuildEvent {
	next := make([]events.Fixture, len(raw))
	for i, r := range raw {
		next[i] = events.NormalizeFixture(r)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rb := differ.DiffFull(e.fixtures, next)
	e.fixtures = next
	e.generation++
	return RebuildEvent{Data: rb.Data, Generation: e.generation}
}

// ApplyFastPoll aplica um poll rápido de odds/moreBets, índice a índice.
// Índices fora do estado são ignorados. Para cada índice alterado todos os
// campos diferentes são gravados, mas o evento leva só o primeiro na ordem
// de prioridade. Os eventos saem em ordem crescente de índice.
func (e *Engine) ApplyFastPoll(snapshots []events.PartialSnapshot) []ChangeEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.applyFastPollLocked(snapshots)
}

// ApplyFastPollAt é ApplyFastPoll com checagem de geração: um snapshot colhido
// antes de uma ressincronização já aplicada é descartado por inteiro.
func (e *Engine) ApplyFastPollAt(generation uint64, snapshots []events.PartialSnapshot) ([]ChangeEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if generation != e.generation {
		return nil, ErrStaleGeneration
	}
	return e.applyFastPollLocked(snapshots), nil
}

func (e *Engine) applyFastPollLocked(snapshots []events.PartialSnapshot) []ChangeEvent {
	var out []ChangeEvent
	for idx, snap := range snapshots {
		if idx >= len(e.fixtures) {
			break
		}
		snap = events.NormalizePartial(snap)
		ch, ok := differ.DiffFastPoll(e.fixtures[idx], snap)
		if !ok {
			continue
		}
		cur := &e.fixtures[idx]
		for _, f := range ch.Fields {
			switch f {
			case events.FieldHomeOdd:
				cur.HomeOdd = snap.HomeOdd
			case events.FieldDrawOdd:
				cur.DrawOdd = snap.DrawOdd
			case events.FieldAwayOdd:
				cur.AwayOdd = snap.AwayOdd
			case events.FieldMoreBets:
				cur.MoreBets = snap.MoreBets
			}
		}
		out = append(out, ChangeEvent{
			Data:  events.CloneFixtures(e.fixtures),
			Index: idx,
			Field: ch.Reported,
		})
	}
	return out
}

// ApplyInstantMutation aplica relógio e placar de uma partida.
// Só a mudança de placar gera evento; o relógio é gravado em silêncio.
func (e *Engine) ApplyInstantMutation(m events.Mutation) (ChangeEvent, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if m.Index < 0 || m.Index >= len(e.fixtures) {
		return ChangeEvent{}, false
	}
	score, clock := events.NormalizeField(m.Score), events.NormalizeField(m.Time)
	ch, reportable := differ.DiffInstant(e.fixtures[m.Index], m)

	cur := &e.fixtures[m.Index]
	for _, f := range ch.Fields {
		switch f {
		case events.FieldScore:
			cur.Score = score
		case events.FieldTime:
			cur.Time = clock
		}
	}
	if !reportable {
		return ChangeEvent{}, false
	}
	return ChangeEvent{
		Data:  events.CloneFixtures(e.fixtures),
		Index: m.Index,
		Field: events.FieldScore,
	}, true
}

// Snapshot devolve uma cópia do estado atual
func (e *Engine) Snapshot() []events.Fixture {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return events.CloneFixtures(e.fixtures)
}

// Fixture devolve a cópia de uma partida pelo índice
func (e *Engine) Fixture(idx int) (events.Fixture, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if idx < 0 || idx >= len(e.fixtures) {
		return events.Fixture{}, false
	}
	return e.fixtures[idx].Clone(), true
}

func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.fixtures)
}

func (e *Engine) Generation() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.generation
}
