package sweeper

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/pleasantpearl/pleasantpearl-backend/internal/media"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/enums"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/logger"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/outbox"
)

type stubDeleter struct {
	calls  [][]string
	report media.CleanupReport
}

func (s *stubDeleter) DeleteKeys(_ context.Context, keys []string) media.CleanupReport {
	s.calls = append(s.calls, keys)
	if s.report.Attempted == 0 {
		return media.CleanupReport{Attempted: len(keys)}
	}
	return s.report
}

func testSweeper(t *testing.T, deleter *stubDeleter) *Sweeper {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	return &Sweeper{
		cleaner: deleter,
		logg:    logg,
	}
}

func deletionMessage(t *testing.T, keys []string) *pubsub.Message {
	t.Helper()
	payload, err := json.Marshal(deletedPayload{ProductID: "p1", ObjectKeys: keys})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	envelope, err := json.Marshal(outbox.PayloadEnvelope{Version: 1, EventID: "e1", Data: payload})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return &pubsub.Message{
		ID:   "m1",
		Data: envelope,
		Attributes: map[string]string{
			attrEventType: string(enums.OutboxEventProductDeleted),
		},
	}
}

func TestProcessDeletesListedKeys(t *testing.T) {
	t.Parallel()

	deleter := &stubDeleter{}
	s := testSweeper(t, deleter)

	ack := s.process(context.Background(), deletionMessage(t, []string{"key-1", "key-2"}))
	if !ack {
		t.Fatal("expected ack on success")
	}
	if len(deleter.calls) != 1 || len(deleter.calls[0]) != 2 {
		t.Fatalf("unexpected delete calls: %v", deleter.calls)
	}
}

func TestProcessNacksWhenKeysRemain(t *testing.T) {
	t.Parallel()

	deleter := &stubDeleter{report: media.CleanupReport{Attempted: 1, FailedKeys: []string{"key-1"}}}
	s := testSweeper(t, deleter)

	if ack := s.process(context.Background(), deletionMessage(t, []string{"key-1"})); ack {
		t.Fatal("expected nack when deletions fail")
	}
}

func TestProcessIgnoresOtherEvents(t *testing.T) {
	t.Parallel()

	deleter := &stubDeleter{}
	s := testSweeper(t, deleter)

	msg := &pubsub.Message{
		ID:         "m2",
		Data:       []byte(`{}`),
		Attributes: map[string]string{attrEventType: string(enums.OutboxEventProductUpdated)},
	}
	if ack := s.process(context.Background(), msg); !ack {
		t.Fatal("expected ack for unrelated events")
	}
	if len(deleter.calls) != 0 {
		t.Fatal("unrelated events must not trigger deletes")
	}
}

func TestProcessAcksMalformedPayload(t *testing.T) {
	t.Parallel()

	deleter := &stubDeleter{}
	s := testSweeper(t, deleter)

	msg := &pubsub.Message{
		ID:         "m3",
		Data:       []byte(`not json`),
		Attributes: map[string]string{attrEventType: string(enums.OutboxEventProductDeleted)},
	}
	if ack := s.process(context.Background(), msg); !ack {
		t.Fatal("poison messages should be acked, not retried forever")
	}
}
