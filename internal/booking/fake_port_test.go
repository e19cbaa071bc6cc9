package booking

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// fakePort is an in-memory CalendarPort for tests. Errors queued on the
// fail channels are returned before the call succeeds, which makes
// retry behavior observable.
type fakePort struct {
	mu          sync.Mutex
	events      map[string]Record
	nextID      int
	listFails   []error
	insertFails []error
	getFails    []error
	deleteFail  error
	listCalls   int
	insertCalls int
}

func newFakePort() *fakePort {
	return &fakePort{events: make(map[string]Record)}
}

func (p *fakePort) ListEvents(_ context.Context, start, end time.Time) ([]Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listCalls++
	if len(p.listFails) > 0 {
		err := p.listFails[0]
		p.listFails = p.listFails[1:]
		return nil, err
	}
	probe := TimeSlot{Start: start, End: end}
	var out []Record
	for _, ev := range p.events {
		if ev.Slot.Overlaps(probe) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (p *fakePort) InsertEvent(_ context.Context, in EventInput) (*Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.insertCalls++
	if len(p.insertFails) > 0 {
		err := p.insertFails[0]
		p.insertFails = p.insertFails[1:]
		return nil, err
	}
	p.nextID++
	rec := Record{
		EventID: fmt.Sprintf("evt-%d", p.nextID),
		Slot:    in.Slot,
		Summary: in.Summary,
		Notes:   in.Description,
	}
	p.events[rec.EventID] = rec
	return &rec, nil
}

func (p *fakePort) DeleteEvent(_ context.Context, eventID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.deleteFail != nil {
		return p.deleteFail
	}
	if _, ok := p.events[eventID]; !ok {
		return NewError(KindNotFound, "event %s not found", eventID)
	}
	delete(p.events, eventID)
	return nil
}

func (p *fakePort) GetEvent(_ context.Context, eventID string) (*Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.getFails) > 0 {
		err := p.getFails[0]
		p.getFails = p.getFails[1:]
		return nil, err
	}
	rec, ok := p.events[eventID]
	if !ok {
		return nil, NewError(KindNotFound, "event %s not found", eventID)
	}
	return &rec, nil
}

func (p *fakePort) seed(id string, slot TimeSlot, summary string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events[id] = Record{EventID: id, Slot: slot, Summary: summary}
}
