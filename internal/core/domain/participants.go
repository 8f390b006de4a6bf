package domain

// ParticipantSnapshot - последнее известное состояние участников задачи.
// Создатель фиксируется по первому task.created и больше не меняется.
type ParticipantSnapshot struct {
	TaskID      string   `json:"taskId"`
	CreatorID   string   `json:"creatorId,omitempty"` // пусто - неизвестен
	AssigneeIDs []string `json:"assigneeIds"`
}
