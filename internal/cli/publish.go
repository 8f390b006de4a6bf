package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/brunomacedo1203/taskcollab/internal/contextkeys"
	"github.com/brunomacedo1203/taskcollab/internal/contracts"
	"github.com/brunomacedo1203/taskcollab/internal/core/domain"
	"github.com/brunomacedo1203/taskcollab/internal/core/port"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type publishFlags struct {
	eventType  string
	taskID     string
	actorID    string
	occurredAt string
	payload    string
	dryRun     bool
}

func newPublishCmd(opts *options) *cobra.Command {
	f := &publishFlags{}

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Validate and publish one task event",
		Example: `  taskevents publish --type task.created --task-id t-1 --actor u-1 --payload created.json
  echo '{"commentId":"c-1","content":"hi"}' | taskevents publish --type task.comment.created --task-id t-1 --payload -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			event, err := buildEvent(f, cmd.InOrStdin())
			if err != nil {
				return err
			}

			if f.dryRun {
				body, err := contracts.EncodeTaskEvent(event)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(body))
				return nil
			}

			logger := opts.logger(cmd.ErrOrStderr())
			publisher, err := opts.newPublisher(opts.rabbitMQ, logger)
			if err != nil {
				return fmt.Errorf("failed to create publisher: %w", err)
			}
			defer publisher.Close()

			traceID := uuid.NewString()
			ctx := contextkeys.ContextWithLogger(cmd.Context(), logger.WithFields(port.Fields{
				"component": "taskevents.publish",
				"trace_id":  traceID,
			}))
			ctx = contextkeys.ContextWithTraceID(ctx, traceID)
			publisher.Publish(ctx, event)
			fmt.Fprintf(cmd.OutOrStdout(), "sent %s for task %s (trace %s)\n", event.Type(), event.Meta().TaskID, traceID)
			return nil
		},
	}

	cmd.Flags().StringVar(&f.eventType, "type", "", "Event type: task.created | task.updated | task.comment.created")
	cmd.Flags().StringVar(&f.taskID, "task-id", "", "Task id")
	cmd.Flags().StringVar(&f.actorID, "actor", "", "Acting user id")
	cmd.Flags().StringVar(&f.occurredAt, "occurred-at", "", "ISO-8601 timestamp (default: now)")
	cmd.Flags().StringVar(&f.payload, "payload", "", "Payload JSON file, or - for stdin")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Validate and print the event without publishing")
	cmd.MarkFlagRequired("type")
	cmd.MarkFlagRequired("task-id")
	cmd.MarkFlagRequired("payload")
	return cmd
}

// buildEvent собирает конверт и прогоняет его через тот же парсер, что и потребитель.
func buildEvent(f *publishFlags, stdin io.Reader) (domain.TaskEvent, error) {
	var (
		raw []byte
		err error
	)
	if f.payload == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(f.payload)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}

	occurredAt := strings.TrimSpace(f.occurredAt)
	if occurredAt == "" {
		occurredAt = time.Now().UTC().Format(time.RFC3339Nano)
	}

	envelope := map[string]any{
		"type":       f.eventType,
		"taskId":     f.taskID,
		"occurredAt": occurredAt,
		"payload":    json.RawMessage(raw),
	}
	if f.actorID != "" {
		envelope["actorId"] = f.actorID
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("payload is not valid JSON: %w", err)
	}
	return contracts.ParseTaskEvent(f.eventType, body)
}
