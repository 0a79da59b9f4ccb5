package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/inplay-mirror/pkg/contracts/events"
)

const (
	writeWait        = 2 * time.Second
	defaultSendQueue = 64
)

var (
	ErrUnknownObserver = errors.New("unknown observer")
	ErrObserverSlow    = errors.New("observer send queue full")
)

// observer é uma conexão WebSocket com fila própria de saída (FIFO).
// Só o writePump escreve na conexão.
type observer struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	closed bool
}

// Hub gerencia as conexões dos observadores e faz o fan-out dos payloads.
// Implementa gateway.Publisher.
type Hub struct {
	upgrader  websocket.Upgrader
	log       *zap.Logger
	sendQueue int

	mu        sync.RWMutex
	observers map[string]*observer

	OnConnected    func(id string) // sync inicial (gateway.OnObserverConnected)
	OnDisconnected func(id string)
	OnCount        func(n int) // métricas: gauge de conexões
	OnDropped      func()      // métricas: observador lento derrubado
}

// NewHub cria um Hub com política customizada de origem (CORS)
func NewHub(allowOrigin func(r *http.Request) bool, log *zap.Logger, sendQueue int) *Hub {
	if sendQueue <= 0 {
		sendQueue = defaultSendQueue
	}
	return &Hub{
		upgrader:  websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024, CheckOrigin: allowOrigin},
		log:       log,
		sendQueue: sendQueue,
		observers: make(map[string]*observer),
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão de observador:
// registra, dispara o sync inicial, responde pings e remove ao desconectar.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	o := &observer{id: uuid.NewString(), conn: conn, send: make(chan []byte, h.sendQueue)}
	h.add(o)
	go h.writePump(o)

	if h.OnConnected != nil {
		h.OnConnected(o.id)
	}

	defer h.remove(o.id)
	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("ws read failed", zap.String("observer_id", o.id), zap.Error(err))
			}
			return
		}
		if msg.Type == "ping" {
			b, _ := json.Marshal(ServerMsg{Type: "pong"})
			_ = h.enqueue(o.id, b)
		}
	}
}

// Broadcast envia o payload para todos os observadores conectados.
// Observadores com fila cheia são derrubados; eles recebem o estado
// completo de novo ao reconectar.
func (h *Hub) Broadcast(msg events.LiveData) {
	b, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("marshal live data", zap.Error(err))
		return
	}

	var slow []string
	h.mu.RLock()
	for id, o := range h.observers {
		select {
		case o.send <- b:
		default:
			slow = append(slow, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range slow {
		h.log.Warn("dropping slow observer", zap.String("observer_id", id))
		if h.OnDropped != nil {
			h.OnDropped()
		}
		h.remove(id)
	}
}

// SendTo envia o payload apenas para um observador
func (h *Hub) SendTo(observerID string, msg events.LiveData) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return h.enqueue(observerID, b)
}

// Count devolve o número de observadores conectados
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}

// Close desconecta todos os observadores
func (h *Hub) Close() {
	h.mu.RLock()
	ids := make([]string, 0, len(h.observers))
	for id := range h.observers {
		ids = append(ids, id)
	}
	h.mu.RUnlock()
	for _, id := range ids {
		h.remove(id)
	}
}

func (h *Hub) enqueue(id string, b []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	o, ok := h.observers[id]
	if !ok {
		return ErrUnknownObserver
	}
	select {
	case o.send <- b:
		return nil
	default:
		return ErrObserverSlow
	}
}

func (h *Hub) add(o *observer) {
	h.mu.Lock()
	h.observers[o.id] = o
	n := len(h.observers)
	h.mu.Unlock()

	if h.OnCount != nil {
		h.OnCount(n)
	}
	h.log.Info("ws observer connected", zap.String("observer_id", o.id), zap.Int("observers", n))
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	o, ok := h.observers[id]
	if ok {
		delete(h.observers, id)
		if !o.closed {
			o.closed = true
			close(o.send)
		}
	}
	n := len(h.observers)
	h.mu.Unlock()

	if !ok {
		return
	}
	if h.OnCount != nil {
		h.OnCount(n)
	}
	if h.OnDisconnected != nil {
		h.OnDisconnected(id)
	}
	h.log.Info("ws observer disconnected", zap.String("observer_id", id), zap.Int("observers", n))
}

// writePump é o único escritor da conexão
func (h *Hub) writePump(o *observer) {
	defer o.conn.Close()
	for b := range o.send {
		_ = o.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := o.conn.WriteMessage(websocket.TextMessage, b); err != nil {
			h.log.Debug("ws write failed", zap.String("observer_id", o.id), zap.Error(err))
			return
		}
	}
	_ = o.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = o.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// OriginList aceita as origens listadas; "*" (ou lista vazia) libera todas
func OriginList(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[o] = struct{}{}
	}
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // clientes não-browser
		}
		_, ok := allowed[origin]
		return ok
	}
}
