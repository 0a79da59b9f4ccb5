// Package extractor lê a página de partidas ao vivo e devolve snapshots.
package extractor

import (
	"context"
	"errors"

	"github.com/radieske/inplay-mirror/pkg/contracts/events"
)

// ErrExtraction marca qualquer falha ao produzir um snapshot no ciclo
var ErrExtraction = errors.New("extraction failed")

// Extractor é o colaborador que conhece a origem dos dados.
// ExtractFast devolve a mesma ordem da última leitura completa.
// Mutations entrega sinais de relógio/placar conforme chegam.
type Extractor interface {
	ExtractFull(ctx context.Context) ([]events.RawFixture, error)
	ExtractFast(ctx context.Context) ([]events.PartialSnapshot, error)
	Mutations() <-chan events.Mutation
}
