package events

import "strings"

// Field identifica o campo de uma partida que disparou uma atualização.
// Os valores são exatamente os publicados no campo "type" do payload.
type Field string

const (
	FieldHomeOdd  Field = "homeOdd"
	FieldDrawOdd  Field = "drawOdd"
	FieldAwayOdd  Field = "awayOdd"
	FieldMoreBets Field = "moreBets"
	FieldScore    Field = "score"
	FieldTime     Field = "time" // nunca publicado como type, só aplicado
)

// Fixture representa uma partida ao vivo no estado canônico.
// A identidade é a posição na sequência (não há ID estável na origem).
// Todos os campos são strings de exibição já formatadas; "" = ausente.
type Fixture struct {
	Teams    []string `json:"teams"`
	HomeOdd  string   `json:"homeOdd"`
	DrawOdd  string   `json:"drawOdd"`
	AwayOdd  string   `json:"awayOdd"`
	Time     string   `json:"time"`
	Score    string   `json:"score"`
	MoreBets string   `json:"moreBets"`
}

// RawFixture é o que o extractor lê de uma partida na varredura completa,
// antes de qualquer normalização.
type RawFixture struct {
	Teams    []string
	HomeOdd  string
	DrawOdd  string
	AwayOdd  string
	Time     string
	Score    string
	MoreBets string
}

// PartialSnapshot traz apenas os campos lidos pelo poll rápido.
type PartialSnapshot struct {
	HomeOdd  string
	DrawOdd  string
	AwayOdd  string
	MoreBets string
}

// Mutation é o sinal instantâneo de relógio/placar de uma partida.
type Mutation struct {
	Index int
	Time  string
	Score string
}

// NormalizeField remove espaços das bordas
func NormalizeField(s string) string { return strings.TrimSpace(s) }

// FieldEqual compara dois valores pela forma aparada; dois vazios são iguais.
func FieldEqual(a, b string) bool { return NormalizeField(a) == NormalizeField(b) }

// NormalizeFixture aplica as regras de validação do modelo: campos aparados
// e Teams nunca nulo (vira [] no JSON). Um time em branco vira "" na mesma
// posição, então casa e fora não trocam de lugar.
// Estrutura ausente vira string vazia em vez de rejeitar a partida.
func NormalizeFixture(raw RawFixture) Fixture {
	teams := make([]string, len(raw.Teams))
	for i, t := range raw.Teams {
		teams[i] = NormalizeField(t)
	}
	return Fixture{
		Teams:    teams,
		HomeOdd:  NormalizeField(raw.HomeOdd),
		DrawOdd:  NormalizeField(raw.DrawOdd),
		AwayOdd:  NormalizeField(raw.AwayOdd),
		Time:     NormalizeField(raw.Time),
		Score:    NormalizeField(raw.Score),
		MoreBets: NormalizeField(raw.MoreBets),
	}
}

// NormalizePartial apara os campos de um snapshot parcial
func NormalizePartial(p PartialSnapshot) PartialSnapshot {
	return PartialSnapshot{
		HomeOdd:  NormalizeField(p.HomeOdd),
		DrawOdd:  NormalizeField(p.DrawOdd),
		AwayOdd:  NormalizeField(p.AwayOdd),
		MoreBets: NormalizeField(p.MoreBets),
	}
}

// FormatScore monta o placar "<casa>–<fora>" (traço meia-risca).
// Só há placar quando os dois lados estão presentes.
func FormatScore(home, away string) string {
	home, away = NormalizeField(home), NormalizeField(away)
	if home == "" || away == "" {
		return ""
	}
	return home + "–" + away
}

// Clone devolve uma cópia profunda da partida
func (f Fixture) Clone() Fixture {
	c := f
	c.Teams = append(make([]string, 0, len(f.Teams)), f.Teams...)
	return c
}

// CloneFixtures copia a sequência inteira; nunca devolve nil.
func CloneFixtures(in []Fixture) []Fixture {
	out := make([]Fixture, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
