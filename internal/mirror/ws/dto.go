package ws

// ClientMsg representa uma mensagem recebida do observador WebSocket.
// O canal é só de saída; o único comando aceito é ping.
type ClientMsg struct {
	Type string `json:"type"` // ping
}

// ServerMsg é a resposta de controle enviada ao observador
type ServerMsg struct {
	Type string `json:"type"` // pong
}
