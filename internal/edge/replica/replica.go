// Package replica guarda, numa réplica de borda, o último estado completo
// recebido do mirror-service. Como todo payload carrega o estado inteiro,
// a réplica só precisa reter o mais recente.
package replica

import (
	"sync"

	"github.com/radieske/inplay-mirror/pkg/contracts/events"
)

type Replica struct {
	mu     sync.RWMutex
	data   []events.Fixture
	lastTs int64
}

func New() *Replica {
	return &Replica{data: []events.Fixture{}}
}

// Apply troca o estado pelo do payload. Payloads mais antigos que o último
// aplicado são ignorados (ex.: priming do Redis chegando depois do pub/sub).
func (r *Replica) Apply(ld events.LiveData) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ld.Ts < r.lastTs {
		return false
	}
	r.data = events.CloneFixtures(ld.Data)
	r.lastTs = ld.Ts
	return true
}

// Snapshot implementa gateway.StateSource
func (r *Replica) Snapshot() []events.Fixture {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return events.CloneFixtures(r.data)
}

// LastTs devolve o ts do último payload aplicado
func (r *Replica) LastTs() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastTs
}
