package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/libris/internal/delivery"
	"github.com/mrlokans/libris/internal/entities"
)

// DeliverPasscodeTask carries one issued passcode to the delivery channel.
type DeliverPasscodeTask struct {
	Email   string                   `json:"email"`
	Code    string                   `json:"code"`
	Purpose entities.PasscodePurpose `json:"purpose"`
}

// Config returns the queue configuration. Task data is never retained so
// codes do not outlive their delivery.
func (t DeliverPasscodeTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "deliver_passcode",
		MaxAttempts: 3,
		Backoff:     15 * time.Second,
		Timeout:     30 * time.Second,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: true,
		},
	}
}

func DeliverPasscodeProcessor(sender delivery.Sender) backlite.QueueProcessor[DeliverPasscodeTask] {
	return func(ctx context.Context, task DeliverPasscodeTask) error {
		if sender == nil {
			return fmt.Errorf("passcode sender not configured")
		}
		msg := delivery.Message{Email: task.Email, Code: task.Code, Purpose: task.Purpose}
		if err := sender.Send(ctx, msg); err != nil {
			return fmt.Errorf("deliver %s passcode: %w", task.Purpose, err)
		}
		return nil
	}
}

func NewDeliverPasscodeQueue(sender delivery.Sender) backlite.Queue {
	return backlite.NewQueue(DeliverPasscodeProcessor(sender))
}

// PasscodeDispatcher enqueues passcodes instead of sending them inline, so a
// slow or failing channel never holds up the request that issued the code.
type PasscodeDispatcher struct {
	client *Client
}

// NewPasscodeDispatcher requires the deliver_passcode queue to be registered
// on client.
func NewPasscodeDispatcher(client *Client) *PasscodeDispatcher {
	return &PasscodeDispatcher{client: client}
}

func (d *PasscodeDispatcher) DispatchPasscode(ctx context.Context, email, code string, purpose entities.PasscodePurpose) error {
	ids, err := d.client.Enqueue(ctx, DeliverPasscodeTask{Email: email, Code: code, Purpose: purpose})
	if err != nil {
		return fmt.Errorf("queue %s passcode: %w", purpose, err)
	}
	log.Printf("[TASK] Queued %s passcode for %s (task %s)", purpose, email, ids[0])
	return nil
}
