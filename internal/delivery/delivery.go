// Package delivery is the boundary to the channel that brings passcodes to
// their owners. Email transport itself lives outside this module; Sender
// implementations hand messages to it.
package delivery

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/mrlokans/libris/internal/entities"
)

// Message is one passcode addressed to an email.
type Message struct {
	Email   string                   `json:"email"`
	Code    string                   `json:"code"`
	Purpose entities.PasscodePurpose `json:"purpose"`
}

// Subject returns the human-readable subject line for the message.
func (m Message) Subject() string {
	if m.Purpose == entities.PasscodeReset {
		return "Your password reset code"
	}
	return "Verify your email address"
}

// Sender hands a message to a delivery channel.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes deliveries to the process log. Codes are masked unless
// EchoCode is set, which is meant for local development only.
type LogSender struct {
	EchoCode bool
}

func (s LogSender) Send(_ context.Context, msg Message) error {
	code := strings.Repeat("*", len(msg.Code))
	if s.EchoCode {
		code = msg.Code
	}
	log.Printf("[DELIVERY] %s to %s: %s", msg.Subject(), msg.Email, code)
	return nil
}

// Outbox keeps every message in memory. Tests and the in-process client
// read codes back from it.
type Outbox struct {
	mu       sync.Mutex
	messages []Message
}

func (o *Outbox) Send(_ context.Context, msg Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, msg)
	return nil
}

// Last returns the most recent message for an email and purpose.
func (o *Outbox) Last(email string, purpose entities.PasscodePurpose) (Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.messages) - 1; i >= 0; i-- {
		m := o.messages[i]
		if strings.EqualFold(m.Email, email) && m.Purpose == purpose {
			return m, true
		}
	}
	return Message{}, false
}

// Count returns how many messages were sent.
func (o *Outbox) Count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.messages)
}

// Direct delivers synchronously through a Sender. It is the dispatcher used
// when the task queue is disabled.
type Direct struct {
	Sender Sender
}

func (d Direct) DispatchPasscode(ctx context.Context, email, code string, purpose entities.PasscodePurpose) error {
	if err := d.Sender.Send(ctx, Message{Email: email, Code: code, Purpose: purpose}); err != nil {
		return fmt.Errorf("deliver passcode: %w", err)
	}
	return nil
}
