package mock

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/spinvfx/spinfab/pkg/conn/bus"
)

// Published is one event captured by the mock.
type Published struct {
	DetailType string
	Detail     json.RawMessage
}

// Publisher records published events for inspection in tests.
type Publisher struct {
	mu sync.Mutex

	// Err, when set, is returned from every Publish call.
	Err error

	published []Published
}

var _ bus.Publisher = &Publisher{}

func New() *Publisher {
	return &Publisher{}
}

func (p *Publisher) Publish(_ context.Context, detailType string, detail any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Err != nil {
		return p.Err
	}
	payload, err := json.Marshal(detail)
	if err != nil {
		return err
	}
	p.published = append(p.published, Published{DetailType: detailType, Detail: payload})
	return nil
}

// Events returns a copy of everything published so far.
func (p *Publisher) Events() []Published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Published{}, p.published...)
}

// EventsOf returns the published events with the given detail type.
func (p *Publisher) EventsOf(detailType string) []Published {
	ret := []Published{}
	for _, ev := range p.Events() {
		if ev.DetailType == detailType {
			ret = append(ret, ev)
		}
	}
	return ret
}
