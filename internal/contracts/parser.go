package contracts

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/brunomacedo1203/taskcollab/internal/core/domain"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidationError - сообщение отклонено парсером. Повторная обработка бессмысленна.
type ValidationError struct {
	RoutingKey string
	Reason     string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid task event (routing key %q): %s", e.RoutingKey, e.Reason)
}

func invalid(routingKey, format string, args ...any) error {
	return &ValidationError{RoutingKey: routingKey, Reason: fmt.Sprintf(format, args...)}
}

// ParseTaskEvent проверяет тело сообщения и превращает его в типизированное событие.
// Поле type обязано совпадать с ключом маршрутизации. Функция чистая.
func ParseTaskEvent(routingKey string, body []byte) (domain.TaskEvent, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, invalid(routingKey, "invalid JSON payload: %v", err)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, invalid(routingKey, "event payload must be an object")
	}

	eventType, ok := obj["type"].(string)
	if !ok || eventType == "" {
		return nil, invalid(routingKey, "event type must be a non-empty string")
	}
	if eventType != routingKey {
		return nil, invalid(routingKey, "routing key %s does not match event type %s", routingKey, eventType)
	}

	t := domain.EventType(eventType)
	schema, ok := compiledSchemas[t]
	if !ok {
		return nil, invalid(routingKey, "unsupported event type: %s", eventType)
	}
	if err := schema.Validate(obj); err != nil {
		return nil, invalid(routingKey, "%s", describeSchemaError(err))
	}

	switch t {
	case domain.EventTaskCreated:
		var event domain.TaskCreatedEvent
		if err := json.Unmarshal(body, &event); err != nil {
			return nil, invalid(routingKey, "decode %s: %v", t, err)
		}
		return event, nil
	case domain.EventTaskUpdated:
		var event domain.TaskUpdatedEvent
		if err := json.Unmarshal(body, &event); err != nil {
			return nil, invalid(routingKey, "decode %s: %v", t, err)
		}
		return event, nil
	case domain.EventTaskCommentCreated:
		var event domain.TaskCommentCreatedEvent
		if err := json.Unmarshal(body, &event); err != nil {
			return nil, invalid(routingKey, "decode %s: %v", t, err)
		}
		return event, nil
	}
	return nil, invalid(routingKey, "unsupported event type: %s", eventType)
}

// EncodeTaskEvent сериализует событие в формат, который принимает ParseTaskEvent.
func EncodeTaskEvent(event domain.TaskEvent) ([]byte, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", event.Type(), err)
	}
	return body, nil
}

// describeSchemaError берет самую глубокую причину: "payload.title: expected string, but got null".
func describeSchemaError(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return fmt.Sprintf("%s: %s", fieldPath(ve.InstanceLocation), ve.Message)
}

// fieldPath: "/payload/assigneeIds/0" -> "payload.assigneeIds.0".
func fieldPath(pointer string) string {
	p := strings.TrimPrefix(pointer, "/")
	if p == "" {
		return "event"
	}
	parts := strings.Split(p, "/")
	for i, part := range parts {
		part = strings.ReplaceAll(part, "~1", "/")
		parts[i] = strings.ReplaceAll(part, "~0", "~")
	}
	return strings.Join(parts, ".")
}
