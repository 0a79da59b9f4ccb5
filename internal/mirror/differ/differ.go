// Package differ compara snapshots recebidos com o estado canônico.
// As funções são puras: não alteram nenhum dos argumentos.
package differ

import "github.com/radieske/inplay-mirror/pkg/contracts/events"

// Ordem de prioridade dos campos em cada caminho de atualização
var (
	FastPollPriority = []events.Field{events.FieldHomeOdd, events.FieldDrawOdd, events.FieldAwayOdd, events.FieldMoreBets}
	InstantPriority  = []events.Field{events.FieldScore, events.FieldTime}
)

// Change descreve o resultado de um diff parcial.
// Reported é o único campo notificado (o primeiro na ordem de prioridade);
// Fields lista todos os campos que diferem, na mesma ordem, para que o
// estado canônico receba todos eles.
type Change struct {
	Reported events.Field
	Fields   []events.Field
}

// Rebuild carrega a sequência completa de uma ressincronização
type Rebuild struct {
	Data []events.Fixture
}

// DiffFastPoll compara odds e moreBets. Devolve false se nada mudou.
func DiffFastPoll(existing events.Fixture, incoming events.PartialSnapshot) (Change, bool) {
	var ch Change
	for _, f := range FastPollPriority {
		if !events.FieldEqual(fixtureValue(existing, f), partialValue(incoming, f)) {
			ch.Fields = append(ch.Fields, f)
		}
	}
	if len(ch.Fields) == 0 {
		return Change{}, false
	}
	ch.Reported = ch.Fields[0]
	return ch, true
}

// DiffInstant compara placar e relógio de uma mutação instantânea.
// Só o placar é notificável: uma diferença apenas no relógio volta em
// Fields com reportable == false, para ser aplicada em silêncio.
func DiffInstant(existing events.Fixture, m events.Mutation) (ch Change, reportable bool) {
	if !events.FieldEqual(existing.Score, m.Score) {
		ch.Fields = append(ch.Fields, events.FieldScore)
	}
	if !events.FieldEqual(existing.Time, m.Time) {
		ch.Fields = append(ch.Fields, events.FieldTime)
	}
	if len(ch.Fields) > 0 && ch.Fields[0] == events.FieldScore {
		ch.Reported = events.FieldScore
		return ch, true
	}
	return ch, false
}

// DiffFull sempre trata a ressincronização como substituição estrutural.
func DiffFull(_ []events.Fixture, next []events.Fixture) Rebuild {
	return Rebuild{Data: events.CloneFixtures(next)}
}

func fixtureValue(f events.Fixture, field events.Field) string {
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

func partialValue(p events.PartialSnapshot, field events.Field) string {
	switch field {
	case events.FieldHomeOdd:
		return p.HomeOdd
	case events.FieldDrawOdd:
		return p.DrawOdd
	case events.FieldAwayOdd:
		return p.AwayOdd
	case events.FieldMoreBets:
		return p.MoreBets
	}
	return ""
}
