package postgres_adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/brunomacedo1203/taskcollab/internal/contextkeys"
	"github.com/brunomacedo1203/taskcollab/internal/core/domain"
	"github.com/brunomacedo1203/taskcollab/internal/core/port"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ParticipantRepository - снимки участников задач в PostgreSQL.
type ParticipantRepository struct {
	pool *pgxpool.Pool
}

var _ port.ParticipantRepositoryPort = (*ParticipantRepository)(nil)

func NewParticipantRepository(pool *pgxpool.Pool) (*ParticipantRepository, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgxpool.Pool cannot be nil")
	}
	return &ParticipantRepository{pool: pool}, nil
}

// Upsert целиком заменяет снимок (last-write-wins).
func (r *ParticipantRepository) Upsert(ctx context.Context, snapshot domain.ParticipantSnapshot) error {
	repoLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component": "ParticipantRepository",
		"method":    "Upsert",
		"task_id":   snapshot.TaskID,
	})

	assignees := snapshot.AssigneeIDs
	if assignees == nil {
		assignees = []string{}
	}
	var creator *string
	if snapshot.CreatorID != "" {
		creator = &snapshot.CreatorID
	}

	query := `
		INSERT INTO task_participants (task_id, creator_id, assignee_ids, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (task_id) DO UPDATE SET
			creator_id = EXCLUDED.creator_id,
			assignee_ids = EXCLUDED.assignee_ids,
			updated_at = EXCLUDED.updated_at`

	if _, err := r.pool.Exec(ctx, query, snapshot.TaskID, creator, assignees); err != nil {
		repoLogger.Error("Failed to upsert participants", err, nil)
		return fmt.Errorf("failed to upsert participants for task %s: %w", snapshot.TaskID, err)
	}
	repoLogger.Debug("Participants snapshot saved", port.Fields{"assignees": len(assignees)})
	return nil
}

func (r *ParticipantRepository) FindByTaskID(ctx context.Context, taskID string) (*domain.ParticipantSnapshot, error) {
	query := `SELECT task_id, creator_id, assignee_ids FROM task_participants WHERE task_id = $1`

	var (
		snapshot domain.ParticipantSnapshot
		creator  *string
	)
	err := r.pool.QueryRow(ctx, query, taskID).Scan(&snapshot.TaskID, &creator, &snapshot.AssigneeIDs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSnapshotNotFound
		}
		contextkeys.LoggerFromContext(ctx).Error("Failed to find participants", err, port.Fields{
			"component": "ParticipantRepository",
			"task_id":   taskID,
		})
		return nil, fmt.Errorf("failed to find participants for task %s: %w", taskID, err)
	}

	if creator != nil {
		snapshot.CreatorID = *creator
	}
	if snapshot.AssigneeIDs == nil {
		snapshot.AssigneeIDs = []string{}
	}
	return &snapshot, nil
}
