package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/kinship/internal/domain/model"
)

var auditColumns = []string{"account_id", "actor_id", "name", "payload", "occurred_at"}

// EventRepo is the append-only audit trail of lifecycle and gate transitions.
type EventRepo struct {
	pool *pgxpool.Pool
}

func NewEventRepo(pool *pgxpool.Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

// Append copies audit rows inside the caller's transaction so they commit
// together with the transition they describe.
func (r *EventRepo) Append(ctx context.Context, tx pgx.Tx, events ...model.AuditEvent) error {
	if len(events) == 0 {
		return nil
	}
	if tx == nil {
		return errTxRequired
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(events))
	for _, ev := range events {
		var payload []byte
		if len(ev.Props) > 0 {
			b, err := json.Marshal(ev.Props)
			if err != nil {
				return fmt.Errorf("encode %s props: %w", ev.Name, err)
			}
			payload = b
		}

		at := now
		if !ev.OccurredAt.IsZero() {
			at = ev.OccurredAt.UTC()
		}
		rows = append(rows, []any{ev.AccountID, ev.ActorID, ev.Name, payload, at})
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"audit_events"}, auditColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("append audit events: %w", err)
	}
	if int(n) != len(rows) {
		return fmt.Errorf("append audit events: wrote %d of %d", n, len(rows))
	}
	return nil
}
