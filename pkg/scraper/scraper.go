// Package scraper drives the per-channel fetch loop: resume point from the
// cursor, page fetch, link extraction, transactional page commit, cursor
// advance. Channels in a batch run sequentially because the source's rate
// limiting is global per credential; parallel fetches would only trade
// throughput for flood waits.
package scraper

import (
	"context"
	"fmt"
	"time"

	"telelink/pkg/config"
	"telelink/pkg/extract"
	"telelink/pkg/fetcher"
	"telelink/pkg/logger"
	"telelink/pkg/models"
	"telelink/pkg/store"
	"telelink/pkg/telegram"
)

// ChannelRequest asks for one channel with its own filter.
type ChannelRequest struct {
	Identifier string
	Filter     models.Filter
}

// Request is one scrape batch.
type Request struct {
	Channels []ChannelRequest
}

// Scraper orchestrates scraping a batch of channels.
type Scraper struct {
	client  telegram.Client
	store   *store.Store
	fetcher *fetcher.Fetcher
	log     logger.Logger
}

// New creates a Scraper.
func New(client telegram.Client, st *store.Store, cfg *config.Config) *Scraper {
	log := logger.GetLogger()
	return &Scraper{
		client:  client,
		store:   st,
		fetcher: fetcher.New(client, &cfg.Scrape, log),
		log:     log,
	}
}

// Run scrapes every channel in the request sequentially and returns the
// batch summary. Per-channel failures are recorded in the summary and do
// not abort the batch; a storage failure is fatal for the whole run and is
// returned as an error alongside the partial summary. Progress events are
// delivered on events (may be nil) with non-blocking sends.
func (s *Scraper) Run(ctx context.Context, req Request, events chan<- Event) (*Summary, error) {
	summary := &Summary{}

	for _, cr := range req.Channels {
		outcome, fatal := s.scrapeChannel(ctx, cr, events)
		summary.Outcomes = append(summary.Outcomes, outcome)
		summary.Messages += outcome.Messages
		summary.Links += outcome.Links

		s.emit(events, Event{
			Type:     EventChannelDone,
			Channel:  cr.Identifier,
			State:    outcome.State,
			Messages: outcome.Messages,
			Links:    outcome.Links,
			Err:      outcome.Err,
		})

		if fatal != nil {
			// Already-committed pages stay durable; the preserved cursor
			// makes a retry resume safely.
			return summary, fatal
		}
	}

	s.log.InfoWithFields("batch finished", map[string]interface{}{
		"channels": len(summary.Outcomes),
		"messages": summary.Messages,
		"links":    summary.Links,
	})
	return summary, nil
}

// scrapeChannel runs the fetch loop for one channel. The returned error is
// non-nil only for storage failures, which abort the whole run.
func (s *Scraper) scrapeChannel(ctx context.Context, cr ChannelRequest, events chan<- Event) (Outcome, error) {
	outcome := Outcome{Identifier: cr.Identifier, State: StateRunning}
	log := s.log.WithField("channel", cr.Identifier)

	ch, err := s.client.ResolveChannel(ctx, cr.Identifier)
	if err != nil {
		log.WithError(err).Error("channel resolution failed")
		outcome.State = StateFailed
		outcome.Err = err
		return outcome, nil
	}
	outcome.ChannelID = ch.ID

	if err := s.store.UpsertChannel(models.Channel{ID: ch.ID, Username: ch.Username, Title: ch.Title}); err != nil {
		outcome.State = StateFailed
		outcome.Err = err
		return outcome, err
	}

	var afterID int64
	if cr.Filter.SkipScraped {
		last, found, err := s.store.Cursor(ch.ID)
		if err != nil {
			outcome.State = StateFailed
			outcome.Err = err
			return outcome, err
		}
		if found {
			afterID = last
		}
	}

	log.InfoWithFields("channel scrape starting", map[string]interface{}{
		"channel_id": ch.ID,
		"after_id":   afterID,
	})

	s.fetcher.SetWaitCallback(func(remaining time.Duration) {
		state := StateRateLimited
		if remaining == 0 {
			state = StateRunning
		}
		s.emit(events, Event{
			Type:      EventRateLimit,
			Channel:   cr.Identifier,
			State:     state,
			Messages:  outcome.Messages,
			Links:     outcome.Links,
			Remaining: remaining,
		})
	})
	defer s.fetcher.SetWaitCallback(nil)

	for {
		// Cancellation is observed at page boundaries only; an in-flight
		// page always commits fully first.
		if ctx.Err() != nil {
			outcome.State = StateStopped
			log.Info("scrape stopped by caller")
			return outcome, nil
		}

		page, err := s.fetcher.FetchPage(ctx, ch.ID, afterID, cr.Filter)
		if err != nil {
			if ctx.Err() != nil {
				outcome.State = StateStopped
				return outcome, nil
			}
			log.WithError(err).Error("page fetch failed")
			outcome.State = StateFailed
			outcome.Err = err
			return outcome, nil
		}

		if page.Exhausted {
			outcome.State = StateCompleted
			log.InfoWithFields("channel scrape completed", map[string]interface{}{
				"messages": outcome.Messages,
				"links":    outcome.Links,
			})
			return outcome, nil
		}

		incoming := page.Messages
		newCursor := page.NextAfterID
		limitHit := false
		if cr.Filter.Limit > 0 && outcome.Messages+len(incoming) >= cr.Filter.Limit {
			incoming = incoming[:cr.Filter.Limit-outcome.Messages]
			newCursor = incoming[len(incoming)-1].ID
			limitHit = true
		}

		write := store.PageWrite{ChannelID: ch.ID, NewCursor: newCursor}
		pageLinks := 0
		for _, msg := range incoming {
			links := extract.Extract(msg)
			if cr.Filter.LinksOnly && len(links) == 0 {
				continue
			}
			write.Messages = append(write.Messages, models.Message{
				ChannelID: ch.ID,
				MessageID: msg.ID,
				Date:      msg.Date,
				Text:      msg.Text,
				HasLink:   len(links) > 0,
			})
			for _, l := range links {
				l.ChannelID = ch.ID
				write.Links = append(write.Links, l)
			}
			pageLinks += len(links)
		}

		if _, err := s.store.CommitPage(write); err != nil {
			log.WithError(err).Error("page commit failed")
			outcome.State = StateFailed
			outcome.Err = err
			return outcome, err
		}

		outcome.Messages += len(incoming)
		outcome.Links += pageLinks
		afterID = newCursor

		log.DebugWithFields("page committed", map[string]interface{}{
			"cursor":   afterID,
			"messages": outcome.Messages,
			"links":    outcome.Links,
		})

		s.emit(events, Event{
			Type:     EventProgress,
			Channel:  cr.Identifier,
			State:    StateRunning,
			Messages: outcome.Messages,
			Links:    outcome.Links,
		})

		if limitHit {
			outcome.State = StateCompleted
			return outcome, nil
		}
	}
}

// emit performs a non-blocking send so a slow consumer drops events instead
// of stalling the fetch loop.
func (s *Scraper) emit(events chan<- Event, ev Event) {
	if events == nil {
		return
	}
	select {
	case events <- ev:
	default:
	}
}

// Describe renders an outcome for logs and batch summaries.
func (o Outcome) Describe() string {
	switch o.State {
	case StateFailed:
		return fmt.Sprintf("%s: failed (%v)", o.Identifier, o.Err)
	case StateStopped:
		return fmt.Sprintf("%s: stopped after %d messages, %d links", o.Identifier, o.Messages, o.Links)
	default:
		return fmt.Sprintf("%s: %s, %d messages, %d links", o.Identifier, o.State, o.Messages, o.Links)
	}
}
