package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"

	"github.com/radieske/inplay-mirror/pkg/contracts/events"
)

// StateSource fornece o estado atual das partidas
type StateSource interface {
	Snapshot() []events.Fixture
}

// API expõe o estado espelhado por REST e o endpoint WebSocket dos observadores
type API struct {
	State          StateSource  // engine (mirror) ou réplica (edge)
	WS             http.Handler // hub.HandleWS
	AllowedOrigins []string
}

// Router retorna o roteador HTTP com os endpoints REST e /ws
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/fixtures", a.listFixtures)     // Estado completo no formato do broadcast
	r.Get("/v1/fixtures/{idx}", a.getFixture) // Uma partida pelo índice
	if a.WS != nil {
		r.Handle("/ws", a.WS)
	}
	return r
}

// Handler aplica CORS sobre o Router
func (a *API) Handler() http.Handler {
	origins := a.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(a.Router())
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// listFixtures devolve o estado completo, sem atribuição de campo
func (a *API) listFixtures(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, events.NewRebuild(a.State.Snapshot(), time.Now()))
}

// getFixture devolve uma partida pela posição atual
func (a *API) getFixture(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(chi.URLParam(r, "idx"))
	if err != nil || idx < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid index"})
		return
	}
	state := a.State.Snapshot()
	if idx >= len(state) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, state[idx])
}
