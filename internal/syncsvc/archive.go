package syncsvc

import (
	"context"
	"log"

	"pairtask/engine/internal/collab"
)

// Archiver records accepted operations durably. Archiving is best-effort:
// a failed archive never fails the edit that triggered it.
type Archiver interface {
	ArchiveOperation(ctx context.Context, op collab.EditOperation) error
}

// Archiving decorates a Service so every accepted operation is also
// recorded to an archive.
type Archiving struct {
	Service
	archiver Archiver
}

func NewArchiving(svc Service, archiver Archiver) *Archiving {
	return &Archiving{Service: svc, archiver: archiver}
}

func (a *Archiving) ApplyOperation(ctx context.Context, op collab.EditOperation) Result[bool] {
	result := a.Service.ApplyOperation(ctx, op)
	if result.Ok() && result.Value {
		if err := a.archiver.ArchiveOperation(ctx, op); err != nil {
			log.Printf("syncsvc: archive operation %s: %v", op.ID, err)
		}
	}
	return result
}
