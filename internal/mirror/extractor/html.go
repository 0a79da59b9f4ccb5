package extractor

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/radieske/inplay-mirror/pkg/contracts/events"
)

// HTMLConfig parametriza o HTMLExtractor
type HTMLConfig struct {
	URL           string
	Timeout       time.Duration // por requisição
	RPS           float64       // limite compartilhado pelas três cadências
	Burst         int
	WatchInterval time.Duration // frequência do observador de relógio/placar
	MutationQueue int
	Clock         clockwork.Clock // nil = relógio real
}

// HTMLExtractor busca a página via HTTP e lê os nós com goquery.
// Todas as buscas passam pelo mesmo rate limiter; cadências que pedem a
// página ao mesmo tempo compartilham a mesma requisição em andamento.
type HTMLExtractor struct {
	cfg     HTMLConfig
	client  *http.Client
	limiter *rate.Limiter
	flight  singleflight.Group
	log     *zap.Logger

	mutations chan events.Mutation
}

// NewHTMLExtractor aplica defaults e cria o extractor
func NewHTMLExtractor(cfg HTMLConfig, log *zap.Logger) *HTMLExtractor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 20
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.WatchInterval <= 0 {
		cfg.WatchInterval = 250 * time.Millisecond
	}
	if cfg.MutationQueue <= 0 {
		cfg.MutationQueue = 256
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &HTMLExtractor{
		cfg:       cfg,
		client:    &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		log:       log,
		mutations: make(chan events.Mutation, cfg.MutationQueue),
	}
}

// ExtractFull lê times, odds, relógio, placar e moreBets de cada partida
func (x *HTMLExtractor) ExtractFull(ctx context.Context) ([]events.RawFixture, error) {
	doc, err := x.fetch(ctx)
	if err != nil {
		return nil, err
	}
	var out []events.RawFixture
	doc.Find(selEvent).Each(func(_ int, ev *goquery.Selection) {
		var teams []string
		ev.Find(selTeams).Each(func(_ int, sp *goquery.Selection) {
			teams = append(teams, sp.Text())
		})
		home, draw, away := readOdds(ev)
		clock, score := readLive(ev)
		out = append(out, events.RawFixture{
			Teams:    teams,
			HomeOdd:  home,
			DrawOdd:  draw,
			AwayOdd:  away,
			Time:     clock,
			Score:    score,
			MoreBets: readMoreBets(ev),
		})
	})
	return out, nil
}

// ExtractFast lê apenas odds e moreBets
func (x *HTMLExtractor) ExtractFast(ctx context.Context) ([]events.PartialSnapshot, error) {
	doc, err := x.fetch(ctx)
	if err != nil {
		return nil, err
	}
	var out []events.PartialSnapshot
	doc.Find(selEvent).Each(func(_ int, ev *goquery.Selection) {
		home, draw, away := readOdds(ev)
		out = append(out, events.PartialSnapshot{
			HomeOdd:  home,
			DrawOdd:  draw,
			AwayOdd:  away,
			MoreBets: readMoreBets(ev),
		})
	})
	return out, nil
}

func (x *HTMLExtractor) Mutations() <-chan events.Mutation { return x.mutations }

// Watch faz o papel do observador de mutações do DOM: relê relógio e placar
// a cada WatchInterval e emite uma Mutation para cada índice cujo texto
// mudou desde a última leitura. Bloqueia até o contexto ser cancelado.
func (x *HTMLExtractor) Watch(ctx context.Context) {
	ticker := x.cfg.Clock.NewTicker(x.cfg.WatchInterval)
	defer ticker.Stop()

	var last []events.Mutation
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}

		cur, err := x.extractLive(ctx)
		if err != nil {
			if ctx.Err() == nil {
				x.log.Debug("mutation watch read failed", zap.Error(err))
			}
			continue
		}
		// layout mudou: nova linha de base, sem emitir
		if len(cur) != len(last) {
			last = cur
			continue
		}
		for i := range cur {
			if cur[i] == last[i] {
				continue
			}
			select {
			case x.mutations <- cur[i]:
			case <-ctx.Done():
				return
			}
		}
		last = cur
	}
}

func (x *HTMLExtractor) extractLive(ctx context.Context) ([]events.Mutation, error) {
	doc, err := x.fetch(ctx)
	if err != nil {
		return nil, err
	}
	var out []events.Mutation
	doc.Find(selEvent).Each(func(i int, ev *goquery.Selection) {
		clock, score := readLive(ev)
		out = append(out, events.Mutation{Index: i, Time: clock, Score: score})
	})
	return out, nil
}

// fetch devolve o documento da página. O documento só é lido depois do
// parse, então pode ser compartilhado entre chamadores simultâneos.
func (x *HTMLExtractor) fetch(ctx context.Context) (*goquery.Document, error) {
	v, err, shared := x.flight.Do(x.cfg.URL, func() (interface{}, error) {
		return x.get(ctx)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		x.log.Debug("page fetch shared between cadences")
	}
	return v.(*goquery.Document), nil
}

func (x *HTMLExtractor) get(ctx context.Context) (*goquery.Document, error) {
	if err := x.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limit wait: %v", ErrExtraction, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, x.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrExtraction, err)
	}
	req.Header.Set("Accept", "text/html")

	res, err := x.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", ErrExtraction, x.cfg.URL, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrExtraction, res.StatusCode)
	}
	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %v", ErrExtraction, err)
	}
	return doc, nil
}

// readOdds devolve casa/empate/fora; odds ausentes viram ""
func readOdds(ev *goquery.Selection) (home, draw, away string) {
	odds := ev.Find(selOdds)
	at := func(i int) string {
		if i >= odds.Length() {
			return ""
		}
		return events.NormalizeField(odds.Eq(i).Text())
	}
	return at(0), at(1), at(2)
}

func readLive(ev *goquery.Selection) (clock, score string) {
	clock = events.NormalizeField(ev.Find(selClock).First().Text())
	home := ev.Find(selScoreHome).First()
	away := ev.Find(selScoreAway).First()
	if home.Length() == 0 || away.Length() == 0 {
		return clock, ""
	}
	return clock, events.FormatScore(home.Text(), away.Text())
}

func readMoreBets(ev *goquery.Selection) string {
	return events.NormalizeField(ev.Find(selMoreBets).First().Text())
}
