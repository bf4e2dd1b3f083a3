package orders

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/bazaar-backend/pkg/logger"
	"github.com/angelmondragon/bazaar-backend/pkg/metrics"
)

// Change is one applied state transition.
type Change struct {
	Entity   string
	EntityID uuid.UUID
	From     string
	To       string
}

// Journal collects the transitions applied inside a transaction so they are
// logged and counted only once it commits. A nil Journal discards records.
type Journal struct {
	changes []Change
}

func (j *Journal) Record(entity string, id uuid.UUID, from, to string) {
	if j == nil {
		return
	}
	j.changes = append(j.changes, Change{Entity: entity, EntityID: id, From: from, To: to})
}

func (j *Journal) Changes() []Change {
	if j == nil {
		return nil
	}
	return j.changes
}

// Flush logs every recorded change and feeds the lifecycle metrics.
func (j *Journal) Flush(ctx context.Context, logg *logger.Logger, m *metrics.LifecycleMetrics) {
	if j == nil {
		return
	}
	for _, c := range j.changes {
		if logg != nil {
			logg.Transition(ctx, c.Entity, c.EntityID.String(), c.From, c.To)
		}
		m.Transition(c.Entity, c.From, c.To)
	}
	j.changes = nil
}
