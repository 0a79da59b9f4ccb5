// Package page gera uma lista sintética de partidas ao vivo com a mesma
// marcação lida pelo extractor. Odds, relógio, placar e a própria lista
// mudam a cada Tick.
package page

import (
	"fmt"
	"html/template"
	"io"
	"math/rand"
	"sync"
)

// escada de odds fracionárias usada para a deriva
var ladder = []string{
	"1/5", "2/7", "1/3", "2/5", "1/2", "4/7", "4/6", "8/11", "4/5", "10/11",
	"1/1", "11/10", "6/5", "5/4", "11/8", "6/4", "13/8", "7/4", "15/8", "2/1",
	"9/4", "5/2", "11/4", "3/1", "10/3", "7/2", "4/1", "9/2", "5/1", "11/2",
	"6/1", "7/1", "8/1", "10/1",
}

// Catálogo fixo de times para as partidas simuladas
var teams = []string{
	"Flamengo", "Palmeiras", "Grêmio", "Internacional", "Corinthians", "Santos",
	"São Paulo", "Vasco", "Botafogo", "Fluminense", "Cruzeiro", "Atlético-MG",
	"Bahia", "Fortaleza", "Athletico-PR", "Coritiba", "Sport", "Ceará",
	"Vitória", "Goiás", "Juventude", "Cuiabá", "Bragantino", "América-MG",
}

type match struct {
	home, away           string
	odds                 [3]int // índices na escada; -1 = suspensa
	started              bool
	seconds              int
	homeGoals, awayGoals int
	more                 int
}

// Market é o estado do simulador
type Market struct {
	mu      sync.Mutex
	rng     *rand.Rand
	matches []*match
	next    int // próximo par de times do catálogo
}

// New cria n partidas; metade já em andamento
func New(n int, seed int64) *Market {
	m := &Market{rng: rand.New(rand.NewSource(seed))}
	for i := 0; i < n; i++ {
		mt := m.newMatch()
		if i%2 == 0 {
			mt.started = true
			mt.seconds = m.rng.Intn(80 * 60)
		}
		m.matches = append(m.matches, mt)
	}
	return m
}

func (m *Market) newMatch() *match {
	home := teams[m.next%len(teams)]
	away := teams[(m.next+1)%len(teams)]
	m.next += 2
	return &match{
		home: home,
		away: away,
		odds: [3]int{m.rng.Intn(len(ladder)), 18 + m.rng.Intn(8), m.rng.Intn(len(ladder))},
		more: 20 + m.rng.Intn(80),
	}
}

// Tick avança o mercado em dt segundos de jogo
func (m *Market) Tick(dt int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.matches[:0]
	for _, mt := range m.matches {
		if mt.started {
			mt.seconds += dt
			if m.rng.Intn(200) == 0 {
				if m.rng.Intn(2) == 0 {
					mt.homeGoals++
				} else {
					mt.awayGoals++
				}
			}
		} else if m.rng.Intn(30) == 0 {
			mt.started = true
		}
		for i := range mt.odds {
			switch r := m.rng.Intn(20); {
			case r == 0 && mt.odds[i] > 0:
				mt.odds[i]--
			case r == 1 && mt.odds[i] >= 0 && mt.odds[i] < len(ladder)-1:
				mt.odds[i]++
			case r == 2 && m.rng.Intn(10) == 0:
				mt.odds[i] = -1 // mercado suspenso
			case mt.odds[i] < 0 && r == 3:
				mt.odds[i] = m.rng.Intn(len(ladder))
			}
		}
		if m.rng.Intn(10) == 0 {
			mt.more += m.rng.Intn(3) - 1
			if mt.more < 0 {
				mt.more = 0
			}
		}
		// partida encerrada sai da lista
		if mt.seconds >= 95*60 {
			continue
		}
		kept = append(kept, mt)
	}
	m.matches = kept

	// de vez em quando entra uma partida nova
	if m.rng.Intn(40) == 0 {
		m.matches = append(m.matches, m.newMatch())
	}
}

// Len devolve o número de partidas listadas
func (m *Market) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.matches)
}

type view struct {
	Home, Away string
	Odds       []string
	Started    bool
	Clock      string
	HomeGoals  int
	AwayGoals  int
	MoreBets   string
}

// Render escreve a página HTML com o estado atual
func (m *Market) Render(w io.Writer) error {
	m.mu.Lock()
	views := make([]view, len(m.matches))
	for i, mt := range m.matches {
		v := view{Home: mt.home, Away: mt.away, Started: mt.started, HomeGoals: mt.homeGoals, AwayGoals: mt.awayGoals}
		for _, o := range mt.odds {
			if o < 0 {
				v.Odds = append(v.Odds, "")
				continue
			}
			v.Odds = append(v.Odds, ladder[o])
		}
		if mt.started {
			v.Clock = fmt.Sprintf("%02d:%02d", mt.seconds/60, mt.seconds%60)
		}
		if mt.more > 0 {
			v.MoreBets = fmt.Sprintf("+%d", mt.more)
		}
		views[i] = v
	}
	m.mu.Unlock()

	return tmpl.Execute(w, views)
}

var tmpl = template.Must(template.New("inplay").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>In-Play Football</title></head>
<body><div class="in-play">
{{range .}}<div class="event">
  <a class="btmarket__link-name btmarket__link-name--2-rows"><span>{{.Home}}</span><span>{{.Away}}</span></a>
  {{if .Started}}<div class="btmarket__boundary"><label class="wh-label">{{.Clock}}</label></div>
  <div class="btmarket__livescore"><span class="btmarket__livescore-item team-a">{{.HomeGoals}}</span><span class="btmarket__livescore-item team-b">{{.AwayGoals}}</span></div>{{end}}
  <div class="btmarket__actions">{{range .Odds}}<button class="betbutton"><span class="betbutton__odds">{{.}}</span></button>{{end}}</div>
  {{if .MoreBets}}<a class="btmarket__more-bets-counter">{{.MoreBets}}</a>{{end}}
</div>
{{end}}</div></body></html>
`))
