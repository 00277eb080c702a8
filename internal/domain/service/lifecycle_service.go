package service

import (
	"context"

	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/aggregate"
)

// LifecycleService is the northbound surface: accept a lifecycle
// command now, report the outcome later via the operation occurrence.
type LifecycleService interface {
	Instantiate(ctx context.Context, vnfID, flavourID string, resources map[string]string) (operationID string, err error)
	Terminate(ctx context.Context, vnfID string) (operationID string, err error)
	GetVNF(ctx context.Context, vnfID string) (*aggregate.VNF, error)
	GetOperation(ctx context.Context, operationID string) (*aggregate.OperationOccurrence, error)
}
