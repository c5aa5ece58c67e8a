// Package fetcher wraps the messaging-source client's paginated history
// call. It paces requests, absorbs flood-wait signals with a cancellable
// countdown, and retries transient transport failures with capped
// exponential backoff. The orchestrator above it only ever sees pages or
// per-channel failures.
package fetcher

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"telelink/pkg/config"
	errs "telelink/pkg/errors"
	"telelink/pkg/logger"
	"telelink/pkg/models"
	"telelink/pkg/ratelimit"
	"telelink/pkg/retry"
	"telelink/pkg/telegram"
)

// Page is one fetched page of messages in strictly increasing id order.
type Page struct {
	Messages    []telegram.Message
	NextAfterID int64
	Exhausted   bool
}

// WaitFunc receives the remaining flood-wait duration once per second while
// the fetcher is suspended, and zero when the wait ends.
type WaitFunc func(remaining time.Duration)

// Fetcher is a rate-limited wrapper around a telegram.Client.
type Fetcher struct {
	client   telegram.Client
	pageSize int
	limiter  *rate.Limiter
	retryCfg *retry.Config
	onWait   WaitFunc
	log      logger.Logger
}

// New creates a Fetcher from the scrape configuration.
func New(client telegram.Client, cfg *config.ScrapeConfig, log logger.Logger) *Fetcher {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Fetcher{
		client:   client,
		pageSize: cfg.PageSize,
		limiter:  rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1),
		retryCfg: &retry.Config{
			MaxAttempts: cfg.MaxRetries,
			Backoff: &retry.ExponentialBackoff{
				BaseDelay:    cfg.RetryBaseDelay,
				MaxDelay:     cfg.RetryMaxDelay,
				Multiplier:   2.0,
				JitterFactor: 0.1,
			},
			RetryIf: retry.DefaultRetryIf,
			Logger:  log,
		},
		log: log,
	}
}

// SetWaitCallback registers the flood-wait progress callback.
func (f *Fetcher) SetWaitCallback(fn WaitFunc) { f.onWait = fn }

// FetchPage returns the next page of messages with id > afterID, honoring
// the filter's date range and server-side keyword. A flood-wait from the
// source suspends the fetcher for the server-issued duration and then the
// same page request is repeated; this never surfaces as an error. Transport
// failures are retried up to the configured attempts and then returned as a
// recoverable per-channel failure.
func (f *Fetcher) FetchPage(ctx context.Context, channelID int64, afterID int64, filter models.Filter) (*Page, error) {
	req := telegram.HistoryRequest{
		ChannelID: channelID,
		AfterID:   afterID,
		PageSize:  f.pageSize,
		FromDate:  filter.FromDate,
		ToDate:    filter.ToDate,
		Keyword:   filter.Keyword,
	}

	for {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		retryCfg := *f.retryCfg
		retryCfg.Context = ctx
		messages, err := retry.DoWithResult(func() ([]telegram.Message, error) {
			return f.client.History(ctx, req)
		}, &retryCfg)

		if err != nil {
			if fw, ok := errs.AsFloodWait(err); ok {
				f.log.WarnWithFields("rate limited by source", map[string]interface{}{
					"channel_id": channelID,
					"after_id":   afterID,
					"wait":       fw.Wait,
				})
				if err := ratelimit.Countdown(ctx, fw.Wait, f.onWait); err != nil {
					return nil, err
				}
				// Retry the same page request now that the wait is over.
				continue
			}
			return nil, fmt.Errorf("history fetch for channel %d after %d: %w", channelID, afterID, err)
		}

		if len(messages) == 0 {
			return &Page{NextAfterID: afterID, Exhausted: true}, nil
		}

		prev := afterID
		for _, msg := range messages {
			if msg.ID <= prev {
				return nil, errs.New(errs.KindParsing,
					fmt.Sprintf("source returned message ids out of order (%d after %d)", msg.ID, prev))
			}
			prev = msg.ID
		}

		f.log.DebugWithFields("page fetched", map[string]interface{}{
			"channel_id": channelID,
			"after_id":   afterID,
			"messages":   len(messages),
			"next_after": prev,
		})

		return &Page{Messages: messages, NextAfterID: prev}, nil
	}
}
