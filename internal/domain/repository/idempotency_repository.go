package repository

import (
	"context"

	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/entity"
)

type IdempotencyRepository interface {
	// GetRequest returns the cached response for a request id, if any.
	GetRequest(ctx context.Context, requestID string) (entity.ProcessedRequest, bool, error)
	// SaveRequest caches a response. A concurrent duplicate insert
	// returns ErrDuplicateKey; the caller treats that as benign.
	SaveRequest(ctx context.Context, rec *entity.ProcessedRequest) error
	// MarkMessageProcessed inserts the processed-message marker. Returns
	// ErrDuplicateKey when the message was already handled.
	MarkMessageProcessed(ctx context.Context, messageID string) error
}
