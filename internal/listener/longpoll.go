// Package listener runs the long-poll event loop that feeds inbound chat
// messages, one at a time, into the dialog service.
package listener

import (
	"context"
	"time"

	"github.com/ekoval/pairbot/internal/directory"
	"github.com/rs/zerolog/log"
)

const errorBackoff = 3 * time.Second

// Directory is the slice of the directory client the poller needs.
type Directory interface {
	LongPollServer(ctx context.Context, token string, groupID int64) (*directory.LongPollServer, error)
	Poll(ctx context.Context, srv *directory.LongPollServer, ts string, wait int) (*directory.PollResult, error)
}

// Handler consumes inbound messages. Delivery is strictly serial.
type Handler interface {
	HandleMessage(ctx context.Context, requesterID int64, text string)
}

// Poller is the long-poll listener for a group.
type Poller struct {
	dir     Directory
	handler Handler
	token   string
	groupID int64
	wait    int
}

// New creates a poller for the given group credentials.
func New(dir Directory, handler Handler, token string, groupID int64, wait int) *Poller {
	return &Poller{
		dir:     dir,
		handler: handler,
		token:   token,
		groupID: groupID,
		wait:    wait,
	}
}

// Run polls for events until the context is cancelled. Poll errors and
// expired server handles are recovered in place; only context cancellation
// ends the loop.
func (p *Poller) Run(ctx context.Context) error {
	srv, err := p.dir.LongPollServer(ctx, p.token, p.groupID)
	if err != nil {
		return err
	}
	ts := srv.TS
	log.Info().Int64("group_id", p.groupID).Msg("long-poll listener started")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		result, err := p.dir.Poll(ctx, srv, ts, p.wait)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Msg("poll failed")
			if !sleep(ctx, errorBackoff) {
				return ctx.Err()
			}
			continue
		}

		switch result.Failed {
		case 0:
			ts = result.TS
			for _, event := range result.Events {
				p.handler.HandleMessage(ctx, event.Message.FromID, event.Message.Text)
			}
		case directory.PollTSOutdated:
			log.Warn().Msg("poll ts outdated, resuming from server ts")
			ts = result.TS
		default:
			log.Warn().Int("failed", result.Failed).Msg("poll key expired, refreshing server handle")
			srv, err = p.dir.LongPollServer(ctx, p.token, p.groupID)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Error().Err(err).Msg("failed to refresh long-poll server")
				if !sleep(ctx, errorBackoff) {
					return ctx.Err()
				}
				continue
			}
			ts = srv.TS
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
