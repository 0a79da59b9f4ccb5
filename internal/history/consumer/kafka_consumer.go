package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/inplay-mirror/internal/history/repository"
	"github.com/radieske/inplay-mirror/pkg/contracts/events"
)

// MessageReader é a parte do kafka.Reader usada pelo Processor
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// Store é o destino do histórico
type Store interface {
	InsertChange(ctx context.Context, c repository.ChangeRecord) error
	InsertResync(ctx context.Context, fixtureCount int, ts time.Time) error
}

// Processor consome o stream de LiveData do Kafka e grava o histórico
// Callbacks de métricas podem ser usadas para monitoramento de cada etapa
type Processor struct {
	Log    *zap.Logger
	Reader MessageReader
	Store  Store

	OnConsumed func()       // métricas (counter++)
	OnPersist  func()       // métricas
	OnError    func(string) // métricas por fase
}

// Run inicia o loop principal de consumo e processamento das mensagens Kafka
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err() // encerra se o contexto for cancelado
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.fail("read")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		if p.OnConsumed != nil {
			p.OnConsumed() // callback de métrica: mensagem consumida
		}
		p.Handle(ctx, m.Value)
	}
}

// Handle decodifica um payload e grava a linha correspondente.
// Mensagens inválidas são descartadas com log.
func (p *Processor) Handle(ctx context.Context, value []byte) {
	var ld events.LiveData
	if err := json.Unmarshal(value, &ld); err != nil {
		p.Log.Warn("invalid message", zap.Error(err))
		p.fail("decode")
		return
	}
	ts := time.UnixMilli(ld.Ts).UTC()

	if ld.IsRebuild() {
		if err := p.Store.InsertResync(ctx, len(ld.Data), ts); err != nil {
			p.Log.Warn("db insert resync failed", zap.Error(err))
			p.fail("db_resync")
			return
		}
		p.persisted()
		return
	}

	rec, ok := ChangeRecordFrom(ld)
	if !ok {
		p.Log.Warn("change event without fixture", zap.Intp("idx", ld.Idx))
		p.fail("decode")
		return
	}
	if err := p.Store.InsertChange(ctx, rec); err != nil {
		p.Log.Warn("db insert change failed", zap.Error(err))
		p.fail("db_change")
		return
	}
	p.persisted()
}

// ChangeRecordFrom extrai a linha de histórico de um evento de mudança
func ChangeRecordFrom(ld events.LiveData) (repository.ChangeRecord, bool) {
	if ld.Idx == nil || ld.Type == nil || *ld.Idx < 0 || *ld.Idx >= len(ld.Data) {
		return repository.ChangeRecord{}, false
	}
	f := ld.Data[*ld.Idx]
	rec := repository.ChangeRecord{
		Idx:   *ld.Idx,
		Field: string(*ld.Type),
		Value: fieldValue(f, *ld.Type),
		Ts:    time.UnixMilli(ld.Ts).UTC(),
	}
	if len(f.Teams) > 0 {
		rec.HomeTeam = f.Teams[0]
	}
	if len(f.Teams) > 1 {
		rec.AwayTeam = f.Teams[1]
	}
	return rec, true
}

func fieldValue(f events.Fixture, field events.Field) string {
	switch field {
	case events.FieldHomeOdd:
		return f.HomeOdd
	case events.FieldDrawOdd:
		return f.DrawOdd
	case events.FieldAwayOdd:
		return f.AwayOdd
	case events.FieldMoreBets:
		return f.MoreBets
	case events.FieldScore:
		return f.Score
	case events.FieldTime:
		return f.Time
	}
	return ""
}

func (p *Processor) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}

func (p *Processor) persisted() {
	if p.OnPersist != nil {
		p.OnPersist() // callback de métrica: persistência concluída
	}
}
