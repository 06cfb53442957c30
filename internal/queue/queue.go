// Package queue carries appointment ids from the booking service to the
// adjudicator. Delivery is at-least-once; messages for one doctor are
// delivered in order to a single consumer at a time.
package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrClosed     = errors.New("queue closed")
	ErrQueueFull  = errors.New("queue partition full")
	ErrBadMessage = errors.New("malformed queue message")
)

// Message is the adjudication request. Only AppointmentID is payload;
// DoctorID is the partition key.
type Message struct {
	AppointmentID uuid.UUID
	DoctorID      uuid.UUID
}

type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

type Handler func(ctx context.Context, msg Message) error

type Consumer interface {
	// Run blocks until ctx is cancelled.
	Run(ctx context.Context, h Handler) error
}

// Encode returns the wire key (doctor id) and value (appointment id).
func Encode(msg Message) (key, value []byte) {
	return []byte(msg.DoctorID.String()), []byte(msg.AppointmentID.String())
}

func Decode(key, value []byte) (Message, error) {
	id, err := uuid.ParseBytes(value)
	if err != nil {
		return Message{}, fmt.Errorf("%w: value %q: %v", ErrBadMessage, value, err)
	}
	msg := Message{AppointmentID: id}
	if doctorID, err := uuid.ParseBytes(key); err == nil {
		msg.DoctorID = doctorID
	}
	return msg, nil
}
