package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"fieldmonitor/pkg/domain"
)

type fakeChannel struct {
	declared   []string
	published  []amqp091.Publishing
	keys       []string
	failDecl   bool
	failPublis bool
	closed     bool
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, _, _, _ bool, _ amqp091.Table) error {
	if f.failDecl {
		return errors.New("declare refused")
	}
	if kind != "direct" || !durable {
		return errors.New("unexpected exchange settings")
	}
	f.declared = append(f.declared, name)
	return nil
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, _, key string, _, _ bool, msg amqp091.Publishing) error {
	if f.failPublis {
		return errors.New("channel closed")
	}
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("expected publish deadline")
	}
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestNewSetsCollection(t *testing.T) {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.FixedZone("x", 3600))
	e := New(domain.EntityGISMetric, domain.ActionCreate, "m1", at)
	if e.Collection != domain.KeyGISMetrics || e.At.Location() != time.UTC {
		t.Fatalf("unexpected event %+v", e)
	}
	raw, err := e.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	back, err := FromJSON(raw)
	if err != nil || back.ID != "m1" || back.Action != domain.ActionCreate {
		t.Fatalf("decode: %+v %v", back, err)
	}
	if _, err := FromJSON([]byte("{")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestAMQPPublisherPublishes(t *testing.T) {
	ch := &fakeChannel{}
	p, err := newAMQPPublisher(ch, "fieldmonitor")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ev := New(domain.EntityBudgetLine, domain.ActionUpdate, "b1", time.Now())
	if err := p.Publish(context.Background(), ev); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(ch.published) != 1 || ch.keys[0] != domain.KeyBudget {
		t.Fatalf("unexpected publish %+v %v", ch.published, ch.keys)
	}
	msg := ch.published[0]
	if msg.DeliveryMode != amqp091.Persistent || msg.ContentType != "application/json" || msg.MessageId != "b1" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if err := p.Close(); err != nil || !ch.closed {
		t.Fatalf("close: %v", err)
	}
}

func TestAMQPPublisherErrors(t *testing.T) {
	if _, err := newAMQPPublisher(&fakeChannel{failDecl: true}, "x"); err == nil {
		t.Fatalf("expected declare error")
	}
	p, err := newAMQPPublisher(&fakeChannel{failPublis: true}, "x")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := p.Publish(context.Background(), Event{}); err == nil {
		t.Fatalf("expected publish error")
	}
}

func TestRecorderAndNoop(t *testing.T) {
	var r Recorder
	_ = r.Publish(context.Background(), Event{ID: "1"})
	got := r.Events()
	got[0].ID = "mutated"
	if r.Events()[0].ID != "1" {
		t.Fatalf("recorder must return copies")
	}
	if err := (NoopPublisher{}).Publish(context.Background(), Event{}); err != nil {
		t.Fatalf("noop publish: %v", err)
	}
}
