package fetcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telelink/pkg/config"
	errs "telelink/pkg/errors"
	"telelink/pkg/logger"
	"telelink/pkg/models"
	"telelink/pkg/telegram"
)

// fakeClient returns scripted responses per History call.
type fakeClient struct {
	responses []fakeResponse
	calls     int
	requests  []telegram.HistoryRequest
}

type fakeResponse struct {
	messages []telegram.Message
	err      error
}

func (c *fakeClient) ResolveChannel(ctx context.Context, identifier string) (*telegram.Channel, error) {
	return &telegram.Channel{ID: 1, Username: identifier}, nil
}

func (c *fakeClient) History(ctx context.Context, req telegram.HistoryRequest) ([]telegram.Message, error) {
	c.requests = append(c.requests, req)
	if c.calls >= len(c.responses) {
		return nil, nil
	}
	r := c.responses[c.calls]
	c.calls++
	return r.messages, r.err
}

func fastConfig() *config.ScrapeConfig {
	return &config.ScrapeConfig{
		PageSize:          10,
		RequestsPerMinute: 100000,
		MaxRetries:        3,
		RetryBaseDelay:    time.Millisecond,
		RetryMaxDelay:     5 * time.Millisecond,
	}
}

func msgs(ids ...int64) []telegram.Message {
	out := make([]telegram.Message, 0, len(ids))
	for _, id := range ids {
		out = append(out, telegram.Message{ID: id, Date: time.Now().UTC(), Text: "m"})
	}
	return out
}

func TestFetchPageReturnsAscendingPage(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{{messages: msgs(101, 102, 103)}}}
	f := New(client, fastConfig(), logger.NewTestLogger())

	page, err := f.FetchPage(context.Background(), 1, 100, models.Filter{})
	require.NoError(t, err)
	assert.False(t, page.Exhausted)
	assert.Len(t, page.Messages, 3)
	assert.Equal(t, int64(103), page.NextAfterID)

	require.Len(t, client.requests, 1)
	assert.Equal(t, int64(100), client.requests[0].AfterID)
	assert.Equal(t, 10, client.requests[0].PageSize)
}

func TestFetchPageEmptyMeansExhausted(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{{messages: nil}}}
	f := New(client, fastConfig(), logger.NewTestLogger())

	page, err := f.FetchPage(context.Background(), 1, 500, models.Filter{})
	require.NoError(t, err)
	assert.True(t, page.Exhausted)
	assert.Empty(t, page.Messages)
	assert.Equal(t, int64(500), page.NextAfterID)
}

func TestFetchPageRetriesNetworkErrors(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{
		{err: errs.New(errs.KindNetwork, "connection reset")},
		{err: errs.New(errs.KindNetwork, "connection reset")},
		{messages: msgs(101)},
	}}
	f := New(client, fastConfig(), logger.NewTestLogger())

	page, err := f.FetchPage(context.Background(), 1, 0, models.Filter{})
	require.NoError(t, err)
	assert.Len(t, page.Messages, 1)
	assert.Equal(t, 3, client.calls)
}

func TestFetchPageGivesUpAfterMaxRetries(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{
		{err: errs.New(errs.KindNetwork, "connection reset")},
		{err: errs.New(errs.KindNetwork, "connection reset")},
		{err: errs.New(errs.KindNetwork, "connection reset")},
		{messages: msgs(101)},
	}}
	f := New(client, fastConfig(), logger.NewTestLogger())

	_, err := f.FetchPage(context.Background(), 1, 0, models.Filter{})
	require.Error(t, err)
	assert.Equal(t, errs.KindNetwork, errs.KindOf(err))
	assert.Equal(t, 3, client.calls)
}

func TestFetchPageAbsorbsFloodWait(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{
		{err: &errs.FloodWaitError{Wait: time.Second}},
		{messages: msgs(101, 102)},
	}}
	f := New(client, fastConfig(), logger.NewTestLogger())

	var ticks []time.Duration
	f.SetWaitCallback(func(remaining time.Duration) { ticks = append(ticks, remaining) })

	page, err := f.FetchPage(context.Background(), 1, 100, models.Filter{})
	require.NoError(t, err)
	assert.Len(t, page.Messages, 2)

	// One tick for the second of waiting, one final zero.
	assert.Equal(t, []time.Duration{time.Second, 0}, ticks)

	// The repeated request is for the same page.
	require.Len(t, client.requests, 2)
	assert.Equal(t, client.requests[0], client.requests[1])
}

func TestFetchPageFloodWaitCancellable(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{
		{err: &errs.FloodWaitError{Wait: time.Minute}},
	}}
	f := New(client, fastConfig(), logger.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := f.FetchPage(ctx, 1, 0, models.Filter{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestFetchPageRejectsOutOfOrderIDs(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{{messages: []telegram.Message{
		{ID: 105}, {ID: 103},
	}}}}
	f := New(client, fastConfig(), logger.NewTestLogger())

	_, err := f.FetchPage(context.Background(), 1, 100, models.Filter{})
	require.Error(t, err)
	assert.Equal(t, errs.KindParsing, errs.KindOf(err))
}

func TestFetchPageRejectsIDsAtOrBelowCursor(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{{messages: msgs(100, 101)}}}
	f := New(client, fastConfig(), logger.NewTestLogger())

	_, err := f.FetchPage(context.Background(), 1, 100, models.Filter{})
	require.Error(t, err)
	assert.Equal(t, errs.KindParsing, errs.KindOf(err))
}

func TestFetchPagePassesFilterToSource(t *testing.T) {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	client := &fakeClient{responses: []fakeResponse{{messages: msgs(101)}}}
	f := New(client, fastConfig(), logger.NewTestLogger())

	_, err := f.FetchPage(context.Background(), 1, 0, models.Filter{
		FromDate: &from,
		ToDate:   &to,
		Keyword:  "release",
	})
	require.NoError(t, err)

	require.Len(t, client.requests, 1)
	assert.Equal(t, &from, client.requests[0].FromDate)
	assert.Equal(t, &to, client.requests[0].ToDate)
	assert.Equal(t, "release", client.requests[0].Keyword)
}
