package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_CountAndReset(t *testing.T) {
	rec := NewRecorder()
	rec.OnEvent(Event{Type: EventEnter})
	rec.OnEvent(Event{Type: EventThrow})
	rec.OnEvent(Event{Type: EventEnter})

	assert.Equal(t, 2, rec.Count(EventEnter))
	assert.Equal(t, 0, rec.Count(EventFatal))

	events := rec.Events()
	events[0].Type = EventFatal
	assert.Equal(t, 0, rec.Count(EventFatal), "Events returns a copy")

	rec.Reset()
	assert.Empty(t, rec.Events())
}

func TestObserverFunc(t *testing.T) {
	var got []EventType
	rt := New(
		WithObserver(ObserverFunc(func(ev Event) { got = append(got, ev.Type) })),
		WithIDGenerator(NewFixedGenerator("rt-fn")),
	)

	rt.Try(func(s *Scope[Unit]) {}).Run()

	assert.Equal(t, []EventType{EventEnter, EventLeave}, got)
}

func TestEvent_JSONShape(t *testing.T) {
	ev := Event{
		Seq:       3,
		Type:      EventCatch,
		RuntimeID: "rt-1",
		Depth:     0,
		Kind:      5,
		Message:   "boom",
		Location:  Location{File: "p.yaml", Line: 2},
		Handler:   1,
	}

	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"seq":3,"type":"catch","runtime_id":"rt-1","depth":0,"kind":5,"message":"boom","location":{"file":"p.yaml","line":2},"handler":1}`,
		string(data))
}
