package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubscriberCoalescesSameBreadcrumb(t *testing.T) {
	s := newSubscriber("ch", 10)
	s.push(Event{BreadcrumbID: "b1", Version: 1, Type: TypeBreadcrumbUpdate})
	s.push(Event{BreadcrumbID: "b2", Version: 1, Type: TypeBreadcrumbUpdate})
	s.push(Event{BreadcrumbID: "b1", Version: 2, Type: TypeBreadcrumbUpdate})

	out, dropped := s.drain()
	assert.False(t, dropped)
	assert.Len(t, out, 2)
	assert.Equal(t, "b2", out[0].BreadcrumbID)
	assert.Equal(t, "b1", out[1].BreadcrumbID)
	assert.Equal(t, 2, out[1].Version)
}

func TestSubscriberDropsWhenOverCapacityAcrossDistinctBreadcrumbs(t *testing.T) {
	s := newSubscriber("ch", 2)
	s.push(Event{BreadcrumbID: "b1", Type: TypeBreadcrumbUpdate})
	s.push(Event{BreadcrumbID: "b2", Type: TypeBreadcrumbUpdate})
	s.push(Event{BreadcrumbID: "b3", Type: TypeBreadcrumbUpdate})

	out, dropped := s.drain()
	assert.True(t, dropped)
	assert.Len(t, out, 2)
	assert.Equal(t, "b2", out[0].BreadcrumbID)
	assert.Equal(t, "b3", out[1].BreadcrumbID)
}

func TestChannelSanitizesOwnerID(t *testing.T) {
	ch := Channel("rcrt", "owner/with spaces")
	assert.Equal(t, "rcrt_owner_owner_with_spaces", ch)
}

func TestDedupeKeyStableForSameMutation(t *testing.T) {
	ev := Event{Type: TypeBreadcrumbUpdate, BreadcrumbID: "b1", Version: 2, Timestamp: time.Now()}
	assert.Equal(t, dedupeKey(ev), dedupeKey(ev))
}

func TestNotifyBodyFallsBackWhenOversized(t *testing.T) {
	huge := make([]byte, maxNotifyBytes+500)
	for i := range huge {
		huge[i] = 'a'
	}
	// Payload is a json.RawMessage, so it must hold valid JSON: a long string.
	huge[0], huge[len(huge)-1] = '"', '"'
	ev := Event{ID: 7, Type: TypeBreadcrumbUpdate, BreadcrumbID: "b1", Version: 1, Payload: huge}
	body, err := notifyBody(ev)
	assert.NoError(t, err)
	assert.Less(t, len(body), maxNotifyBytes+100)
	assert.Contains(t, body, `"truncated":true`)
}
