package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/brunomacedo1203/taskcollab/internal/core/domain"
	"github.com/brunomacedo1203/taskcollab/internal/core/port"

	"github.com/jmoiron/sqlx"
)

type ParticipantRepository struct {
	db *sqlx.DB
}

var _ port.ParticipantRepositoryPort = (*ParticipantRepository)(nil)

type participantRow struct {
	TaskID      string         `db:"task_id"`
	CreatorID   sql.NullString `db:"creator_id"`
	AssigneeIDs string         `db:"assignee_ids"`
}

// Upsert целиком заменяет снимок задачи.
func (r *ParticipantRepository) Upsert(ctx context.Context, snapshot domain.ParticipantSnapshot) error {
	assignees := snapshot.AssigneeIDs
	if assignees == nil {
		assignees = []string{}
	}
	assigneesJSON, err := json.Marshal(assignees)
	if err != nil {
		return fmt.Errorf("marshaling assignee ids for task %s: %w", snapshot.TaskID, err)
	}

	creator := sql.NullString{String: snapshot.CreatorID, Valid: snapshot.CreatorID != ""}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO task_participants (task_id, creator_id, assignee_ids, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			creator_id = excluded.creator_id,
			assignee_ids = excluded.assignee_ids,
			updated_at = excluded.updated_at`,
		snapshot.TaskID, creator, string(assigneesJSON), formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("upserting participants for task %s: %w", snapshot.TaskID, err)
	}
	return nil
}

func (r *ParticipantRepository) FindByTaskID(ctx context.Context, taskID string) (*domain.ParticipantSnapshot, error) {
	var row participantRow
	err := r.db.GetContext(ctx, &row,
		"SELECT task_id, creator_id, assignee_ids FROM task_participants WHERE task_id = ?", taskID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting participants for task %s: %w", taskID, err)
	}

	var assignees []string
	if err := json.Unmarshal([]byte(row.AssigneeIDs), &assignees); err != nil {
		return nil, fmt.Errorf("decoding assignee ids for task %s: %w", taskID, err)
	}
	if assignees == nil {
		assignees = []string{}
	}
	return &domain.ParticipantSnapshot{
		TaskID:      row.TaskID,
		CreatorID:   row.CreatorID.String,
		AssigneeIDs: assignees,
	}, nil
}
