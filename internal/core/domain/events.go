package domain

import (
	"context"
	"encoding/json"
)

// EventType - тип события задачи. Совпадает с ключом маршрутизации в брокере.
type EventType string

const (
	EventTaskCreated        EventType = "task.created"
	EventTaskUpdated        EventType = "task.updated"
	EventTaskCommentCreated EventType = "task.comment.created"
)

// Valid сообщает, поддерживается ли тип.
func (t EventType) Valid() bool {
	switch t {
	case EventTaskCreated, EventTaskUpdated, EventTaskCommentCreated:
		return true
	}
	return false
}

// TaskEvent - закрытое множество из трех событий. Реализации есть только в этом пакете,
// а обработка идет через Accept, поэтому добавление нового события ломает компиляцию
// у всех TaskEventHandler, пока они его не обработают.
type TaskEvent interface {
	Type() EventType
	Meta() EventMeta
	Accept(ctx context.Context, h TaskEventHandler) error
	isTaskEvent()
}

// TaskEventHandler - исчерпывающий обработчик событий задач.
type TaskEventHandler interface {
	HandleTaskCreated(ctx context.Context, event TaskCreatedEvent) error
	HandleTaskUpdated(ctx context.Context, event TaskUpdatedEvent) error
	HandleTaskCommentCreated(ctx context.Context, event TaskCommentCreatedEvent) error
}

// EventMeta - общие поля конверта.
type EventMeta struct {
	TaskID     string `json:"taskId"`
	OccurredAt string `json:"occurredAt"`        // ISO-8601, как прислал продюсер
	ActorID    string `json:"actorId,omitempty"` // пусто - актор не указан
}

type TaskCreatedPayload struct {
	Title       string   `json:"title"`
	Description *string  `json:"description"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	DueDate     *string  `json:"dueDate"`
	AssigneeIDs []string `json:"assigneeIds"`
}

// FieldChange - значения до/после изменения поля. Типы значений не фиксированы.
type FieldChange struct {
	From any `json:"from"`
	To   any `json:"to"`
}

type TaskUpdatedPayload struct {
	ChangedFields map[string]FieldChange `json:"changedFields"`
	Status        string                 `json:"status"`
	Priority      string                 `json:"priority"`
	DueDate       *string                `json:"dueDate,omitempty"`
	AssigneeIDs   []string               `json:"assigneeIds"`
}

// HasChange сообщает, присутствует ли поле в changedFields.
func (p TaskUpdatedPayload) HasChange(field string) bool {
	_, ok := p.ChangedFields[field]
	return ok
}

type TaskCommentPayload struct {
	CommentID string `json:"commentId"`
	AuthorID  string `json:"authorId,omitempty"`
	Content   string `json:"content"`
}

type TaskCreatedEvent struct {
	EventMeta
	Payload TaskCreatedPayload `json:"payload"`
}

type TaskUpdatedEvent struct {
	EventMeta
	Payload TaskUpdatedPayload `json:"payload"`
}

type TaskCommentCreatedEvent struct {
	EventMeta
	Payload TaskCommentPayload `json:"payload"`
}

func (TaskCreatedEvent) Type() EventType        { return EventTaskCreated }
func (TaskUpdatedEvent) Type() EventType        { return EventTaskUpdated }
func (TaskCommentCreatedEvent) Type() EventType { return EventTaskCommentCreated }

func (e TaskCreatedEvent) Meta() EventMeta        { return e.EventMeta }
func (e TaskUpdatedEvent) Meta() EventMeta        { return e.EventMeta }
func (e TaskCommentCreatedEvent) Meta() EventMeta { return e.EventMeta }

func (e TaskCreatedEvent) Accept(ctx context.Context, h TaskEventHandler) error {
	return h.HandleTaskCreated(ctx, e)
}

func (e TaskUpdatedEvent) Accept(ctx context.Context, h TaskEventHandler) error {
	return h.HandleTaskUpdated(ctx, e)
}

func (e TaskCommentCreatedEvent) Accept(ctx context.Context, h TaskEventHandler) error {
	return h.HandleTaskCommentCreated(ctx, e)
}

func (TaskCreatedEvent) isTaskEvent()        {}
func (TaskUpdatedEvent) isTaskEvent()        {}
func (TaskCommentCreatedEvent) isTaskEvent() {}

// MarshalJSON добавляет поле type, чтобы на проводе событие было самоописываемым.
func (e TaskCreatedEvent) MarshalJSON() ([]byte, error) {
	type plain TaskCreatedEvent
	if e.Payload.AssigneeIDs == nil {
		e.Payload.AssigneeIDs = []string{}
	}
	return json.Marshal(struct {
		Type EventType `json:"type"`
		plain
	}{Type: e.Type(), plain: plain(e)})
}

func (e TaskUpdatedEvent) MarshalJSON() ([]byte, error) {
	type plain TaskUpdatedEvent
	if e.Payload.AssigneeIDs == nil {
		e.Payload.AssigneeIDs = []string{}
	}
	if e.Payload.ChangedFields == nil {
		e.Payload.ChangedFields = map[string]FieldChange{}
	}
	return json.Marshal(struct {
		Type EventType `json:"type"`
		plain
	}{Type: e.Type(), plain: plain(e)})
}

func (e TaskCommentCreatedEvent) MarshalJSON() ([]byte, error) {
	type plain TaskCommentCreatedEvent
	return json.Marshal(struct {
		Type EventType `json:"type"`
		plain
	}{Type: e.Type(), plain: plain(e)})
}
