package playersession

import "time"

// EventKind tags a deferred callback's purpose (§3 "Event", §9 "Deferred
// callbacks for events" — a tagged record instead of an opaque closure).
type EventKind uint8

const (
	EventJackout EventKind = iota
	EventTeleport
	EventAbilityEnd
)

// Callback receives the session an event fires against.
type Callback func(*PlayerSession)

// Event is a scheduled, single-shot callback keyed by fire time.
type Event struct {
	Kind     EventKind
	FireTime time.Time
	Call     Callback
}

// ScheduleEvent inserts ev into the session's sorted event list.
func (p *PlayerSession) ScheduleEvent(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	sortEventsLocked(p.events)
}

// CancelEvents removes every pending event of the given kind.
func (p *PlayerSession) CancelEvents(kind EventKind) {
	p.mu.Lock()
	defer p.mu.Unlock()
	kept := p.events[:0]
	for _, e := range p.events {
		if e.Kind != kind {
			kept = append(kept, e)
		}
	}
	p.events = kept
}

// ScheduleJackout arranges the orderly disconnect §4.5 describes: the
// player object stays visible for jackoutGrace before the session moves
// to DISCONNECTING.
func (p *PlayerSession) ScheduleJackout(now time.Time) {
	p.ScheduleEvent(Event{
		Kind:     EventJackout,
		FireTime: now.Add(jackoutGrace),
		Call: func(ps *PlayerSession) {
			ps.ForceDisconnect()
		},
	})
}

// ServiceEvents runs every event whose fire time has arrived, in fire-time
// order, removing them from the pending list as they run.
func (p *PlayerSession) ServiceEvents(now time.Time) {
	p.mu.Lock()
	var due []Event
	remaining := p.events[:0]
	for _, e := range p.events {
		if !e.FireTime.After(now) {
			due = append(due, e)
		} else {
			remaining = append(remaining, e)
		}
	}
	p.events = remaining
	p.mu.Unlock()

	for _, e := range due {
		e.Call(p)
	}
}

func sortEventsLocked(events []Event) {
	for i := 1; i < len(events); i++ {
		for j := i; j > 0 && events[j].FireTime.Before(events[j-1].FireTime); j-- {
			events[j], events[j-1] = events[j-1], events[j]
		}
	}
}
