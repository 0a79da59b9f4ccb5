package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/inplay-mirror/pkg/contracts/events"
)

// StartRedisSubscriber inicia uma goroutine que escuta o canal Redis Pub/Sub
// e entrega cada LiveData recebido para handle, na ordem de chegada.
//
// Funcionamento:
// - Recebe mensagens JSON do canal Redis
// - Desserializa para LiveData
// - Chama handle (ex.: atualiza a réplica e faz broadcast no Hub)
func StartRedisSubscriber(ctx context.Context, r *redis.Client, channel string, log *zap.Logger, handle func(events.LiveData)) {
	sub := r.Subscribe(ctx, channel)
	ch := sub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close() // encerra a inscrição ao finalizar o contexto
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg == nil {
					continue
				}
				var ld events.LiveData
				if err := json.Unmarshal([]byte(msg.Payload), &ld); err != nil {
					log.Warn("ws subscriber unmarshal error", zap.Error(err))
					continue
				}
				handle(ld)
			}
		}
	}()
}
