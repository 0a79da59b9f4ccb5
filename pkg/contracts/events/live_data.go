package events

import "time"

// LiveData é o payload publicado para observadores (websocket, Redis, Kafka).
// Formato: { data, ts, idx?, type: null | "<field>" }.
// Idx ausente e Type nulo numa ressincronização completa ou no sync inicial.
type LiveData struct {
	Data []Fixture `json:"data"`
	Ts   int64     `json:"ts"` // epoch em milissegundos
	Idx  *int      `json:"idx,omitempty"`
	Type *Field    `json:"type"`
}

// NewRebuild monta um payload de estado completo, sem atribuição de campo
func NewRebuild(data []Fixture, at time.Time) LiveData {
	if data == nil {
		data = []Fixture{}
	}
	return LiveData{Data: data, Ts: at.UnixMilli()}
}

// NewChange monta um payload de mudança com o índice e o campo que a disparou
func NewChange(data []Fixture, idx int, field Field, at time.Time) LiveData {
	ld := NewRebuild(data, at)
	ld.Idx = &idx
	ld.Type = &field
	return ld
}

// IsRebuild indica se o payload não carrega atribuição de campo
func (l LiveData) IsRebuild() bool { return l.Type == nil }
