package api

import (
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/rcrt-io/rcrt/pkg/apierr"
	"github.com/rcrt-io/rcrt/pkg/auth"
	"github.com/rcrt-io/rcrt/pkg/events"
	"github.com/rcrt-io/rcrt/pkg/models"
)

// eventsStreamHandler handles GET /events/stream, grounded on the SSE
// write loop shape (headers, flush, ticker-driven heartbeat) the pack's
// beads reference implementation uses, adapted to this gateway's
// Manager/Subscriber fanout instead of a JetStream/in-memory bus.
func (s *Server) eventsStreamHandler(c *echo.Context) error {
	claims := claimsFrom(c)
	if err := auth.RequireRole(claims, models.RoleSubscriber); err != nil {
		return respondError(c, err)
	}

	ctx := c.Request().Context()
	channel := events.Channel(s.cfg.Events.ChannelPrefix, claims.OwnerID)

	sub, err := s.manager.Subscribe(ctx, channel)
	if err != nil {
		return respondError(c, apierr.Wrap(apierr.Internal, "subscribe to event stream", err))
	}
	defer s.manager.Unsubscribe(sub)

	resp := c.Response()
	resp.Header().Set("Content-Type", "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.Header().Set("X-Accel-Buffering", "no")
	resp.WriteHeader(http.StatusOK)
	resp.Flush()

	if lastEventID := c.Request().Header.Get("Last-Event-ID"); lastEventID != "" {
		since, convErr := strconv.ParseInt(lastEventID, 10, 64)
		if convErr == nil {
			missed, overflowed, catchupErr := s.manager.Catchup(ctx, channel, since)
			if catchupErr == nil && !overflowed {
				for _, ev := range missed {
					if writeErr := writeFrame(resp, ev); writeErr != nil {
						return nil
					}
				}
			}
		}
	}

	heartbeat := time.NewTicker(s.manager.Heartbeat())
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-heartbeat.C:
			ping := events.Event{Type: events.TypePing, Timestamp: time.Now().UTC()}
			if err := writeFrame(resp, ping); err != nil {
				return nil
			}
		case <-sub.Signal():
			evs, dropped := sub.Drain()
			for _, ev := range evs {
				if err := writeFrame(resp, ev); err != nil {
					return nil
				}
			}
			if dropped {
				// The backlog overflowed: tell the client, then close the
				// stream so it reconnects with Last-Event-ID and catches up.
				system := events.Event{Type: events.TypeSystem, Timestamp: time.Now().UTC()}
				_ = writeFrame(resp, system)
				return nil
			}
		}
	}
}

// writeFrame renders ev as an SSE data frame and flushes it immediately —
// the fanout stream suspends only on socket writes.
func writeFrame(resp *echo.Response, ev events.Event) error {
	frame, err := ev.Frame()
	if err != nil {
		return err
	}
	if _, err := resp.Write(frame); err != nil {
		return err
	}
	resp.Flush()
	return nil
}
