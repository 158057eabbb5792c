package testutils

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"
)

type MockEventProducer struct {
	mock.Mock
}

func (m *MockEventProducer) Send(ctx context.Context, topic string, message interface{}) error {
	args := m.Called(ctx, topic, message)
	return args.Error(0)
}

func (m *MockEventProducer) Close() error {
	args := m.Called()
	return args.Error(0)
}

// RecordingProducer collects published events without expectations, for
// tests that only care about what was emitted.
type RecordingProducer struct {
	mu     sync.Mutex
	events []RecordedEvent
}

type RecordedEvent struct {
	Topic   string
	Message interface{}
}

func (p *RecordingProducer) Send(ctx context.Context, topic string, message interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, RecordedEvent{Topic: topic, Message: message})
	return nil
}

func (p *RecordingProducer) Events() []RecordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]RecordedEvent, len(p.events))
	copy(out, p.events)
	return out
}
