package scraper

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telelink/pkg/config"
	errs "telelink/pkg/errors"
	"telelink/pkg/models"
	"telelink/pkg/store"
	"telelink/pkg/telegram"
)

// fakeSource serves scripted channels. History honors AfterID and PageSize
// the way the real source does, so the cursor logic drives pagination.
type fakeSource struct {
	channels  map[string]fakeChannel
	floodOnce map[string]time.Duration
}

type fakeChannel struct {
	id       int64
	messages []telegram.Message
}

func (s *fakeSource) ResolveChannel(ctx context.Context, identifier string) (*telegram.Channel, error) {
	ch, ok := s.channels[identifier]
	if !ok {
		return nil, errs.New(errs.KindInvalidChannel, "no such channel")
	}
	return &telegram.Channel{ID: ch.id, Username: identifier, Title: "Title of " + identifier}, nil
}

func (s *fakeSource) History(ctx context.Context, req telegram.HistoryRequest) ([]telegram.Message, error) {
	for name, wait := range s.floodOnce {
		if s.channels[name].id == req.ChannelID {
			delete(s.floodOnce, name)
			return nil, &errs.FloodWaitError{Wait: wait}
		}
	}

	var ch fakeChannel
	for _, c := range s.channels {
		if c.id == req.ChannelID {
			ch = c
		}
	}

	var page []telegram.Message
	for _, m := range ch.messages {
		if m.ID <= req.AfterID {
			continue
		}
		page = append(page, m)
		if len(page) == req.PageSize {
			break
		}
	}
	return page, nil
}

func channelMessages(ids ...int64) []telegram.Message {
	base := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)
	var out []telegram.Message
	for i, id := range ids {
		text := "post without links"
		if i%2 == 0 {
			text = "post with https://ex.com/" + string(rune('a'+i))
		}
		out = append(out, telegram.Message{ID: id, Date: base.Add(time.Duration(i) * time.Minute), Text: text})
	}
	return out
}

func testSetup(t *testing.T, source *fakeSource) (*Scraper, *store.Store) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Scrape.PageSize = 2
	cfg.Scrape.RetryBaseDelay = time.Millisecond
	cfg.Scrape.RetryMaxDelay = 5 * time.Millisecond
	cfg.Scrape.RequestsPerMinute = 100000
	cfg.Database.Path = filepath.Join(t.TempDir(), "test.db")

	st, err := store.Open(cfg.Database.Path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return New(source, st, cfg), st
}

func TestRunScrapesChannelToExhaustion(t *testing.T) {
	source := &fakeSource{channels: map[string]fakeChannel{
		"chan": {id: 42, messages: channelMessages(101, 102, 103, 104, 105)},
	}}
	s, st := testSetup(t, source)

	summary, err := s.Run(context.Background(), Request{Channels: []ChannelRequest{
		{Identifier: "chan", Filter: models.Filter{SkipScraped: true}},
	}}, nil)
	require.NoError(t, err)

	require.Len(t, summary.Outcomes, 1)
	assert.Equal(t, StateCompleted, summary.Outcomes[0].State)
	assert.Equal(t, 5, summary.Messages)

	last, found, err := st.Cursor(42)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(105), last)

	messages, err := st.Messages(store.MessageQuery{ChannelID: 42})
	require.NoError(t, err)
	assert.Len(t, messages, 5)

	links, err := st.Links(store.LinkQuery{ChannelID: 42})
	require.NoError(t, err)
	assert.Len(t, links, 3)
}

func TestRunResumesFromCursor(t *testing.T) {
	source := &fakeSource{channels: map[string]fakeChannel{
		"chan": {id: 42, messages: channelMessages(101, 102, 103)},
	}}
	s, st := testSetup(t, source)

	req := Request{Channels: []ChannelRequest{
		{Identifier: "chan", Filter: models.Filter{SkipScraped: true}},
	}}

	_, err := s.Run(context.Background(), req, nil)
	require.NoError(t, err)

	// Second run finds nothing new.
	summary, err := s.Run(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, summary.Outcomes[0].State)
	assert.Zero(t, summary.Messages)

	messages, err := st.Messages(store.MessageQuery{ChannelID: 42})
	require.NoError(t, err)
	assert.Len(t, messages, 3)

	// New posts appear; only they are fetched.
	ch := source.channels["chan"]
	ch.messages = channelMessages(101, 102, 103, 104, 105)
	source.channels["chan"] = ch

	summary, err = s.Run(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Messages)
}

func TestRunIgnoresCursorWithoutSkipScraped(t *testing.T) {
	source := &fakeSource{channels: map[string]fakeChannel{
		"chan": {id: 42, messages: channelMessages(101, 102, 103)},
	}}
	s, _ := testSetup(t, source)

	req := Request{Channels: []ChannelRequest{{Identifier: "chan"}}}

	_, err := s.Run(context.Background(), req, nil)
	require.NoError(t, err)

	// A full re-scrape walks the history again but inserts nothing new.
	summary, err := s.Run(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Messages)
}

func TestRunHonorsLimit(t *testing.T) {
	source := &fakeSource{channels: map[string]fakeChannel{
		"chan": {id: 42, messages: channelMessages(101, 102, 103, 104, 105)},
	}}
	s, st := testSetup(t, source)

	summary, err := s.Run(context.Background(), Request{Channels: []ChannelRequest{
		{Identifier: "chan", Filter: models.Filter{Limit: 3}},
	}}, nil)
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, summary.Outcomes[0].State)
	assert.Equal(t, 3, summary.Messages)

	// The cursor stops at the last stored message, not past it.
	last, _, err := st.Cursor(42)
	require.NoError(t, err)
	assert.Equal(t, int64(103), last)
}

func TestRunLinksOnlySkipsBareMessages(t *testing.T) {
	source := &fakeSource{channels: map[string]fakeChannel{
		"chan": {id: 42, messages: channelMessages(101, 102, 103, 104)},
	}}
	s, st := testSetup(t, source)

	_, err := s.Run(context.Background(), Request{Channels: []ChannelRequest{
		{Identifier: "chan", Filter: models.Filter{LinksOnly: true}},
	}}, nil)
	require.NoError(t, err)

	messages, err := st.Messages(store.MessageQuery{ChannelID: 42})
	require.NoError(t, err)
	// channelMessages puts links on even indexes only.
	assert.Len(t, messages, 2)

	// The cursor still covers the skipped messages.
	last, _, err := st.Cursor(42)
	require.NoError(t, err)
	assert.Equal(t, int64(104), last)
}

func TestRunChannelFailureDoesNotAbortBatch(t *testing.T) {
	source := &fakeSource{channels: map[string]fakeChannel{
		"good": {id: 42, messages: channelMessages(101, 102)},
	}}
	s, st := testSetup(t, source)

	summary, err := s.Run(context.Background(), Request{Channels: []ChannelRequest{
		{Identifier: "missing"},
		{Identifier: "good"},
	}}, nil)
	require.NoError(t, err)

	require.Len(t, summary.Outcomes, 2)
	assert.Equal(t, StateFailed, summary.Outcomes[0].State)
	assert.Equal(t, errs.KindInvalidChannel, errs.KindOf(summary.Outcomes[0].Err))
	assert.Equal(t, StateCompleted, summary.Outcomes[1].State)
	assert.True(t, summary.Failed())

	messages, err := st.Messages(store.MessageQuery{ChannelID: 42})
	require.NoError(t, err)
	assert.Len(t, messages, 2)
}

func TestRunStopsAtPageBoundaryOnCancel(t *testing.T) {
	source := &fakeSource{channels: map[string]fakeChannel{
		"chan": {id: 42, messages: channelMessages(101, 102, 103)},
	}}
	s, _ := testSetup(t, source)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := s.Run(ctx, Request{Channels: []ChannelRequest{{Identifier: "chan"}}}, nil)
	require.NoError(t, err)
	assert.Equal(t, StateStopped, summary.Outcomes[0].State)
	assert.Zero(t, summary.Messages)
}

func TestRunEmitsRateLimitEvents(t *testing.T) {
	source := &fakeSource{
		channels: map[string]fakeChannel{
			"chan": {id: 42, messages: channelMessages(101, 102)},
		},
		floodOnce: map[string]time.Duration{"chan": time.Second},
	}
	s, _ := testSetup(t, source)

	events := make(chan Event, 64)
	summary, err := s.Run(context.Background(), Request{Channels: []ChannelRequest{
		{Identifier: "chan"},
	}}, events)
	require.NoError(t, err)
	close(events)

	assert.Equal(t, StateCompleted, summary.Outcomes[0].State)
	assert.Equal(t, 2, summary.Messages)

	var rateLimited, resumed, progress, done bool
	for ev := range events {
		switch ev.Type {
		case EventRateLimit:
			if ev.Remaining > 0 {
				assert.Equal(t, StateRateLimited, ev.State)
				rateLimited = true
			} else {
				assert.Equal(t, StateRunning, ev.State)
				resumed = true
			}
		case EventProgress:
			progress = true
		case EventChannelDone:
			assert.Equal(t, StateCompleted, ev.State)
			done = true
		}
	}
	assert.True(t, rateLimited, "expected a rate-limit countdown event")
	assert.True(t, resumed, "expected a resume event at countdown end")
	assert.True(t, progress, "expected progress events")
	assert.True(t, done, "expected a channel-done event")
}

func TestRunEmitsProgressPerPage(t *testing.T) {
	source := &fakeSource{channels: map[string]fakeChannel{
		"chan": {id: 42, messages: channelMessages(101, 102, 103, 104, 105)},
	}}
	s, _ := testSetup(t, source)

	events := make(chan Event, 64)
	_, err := s.Run(context.Background(), Request{Channels: []ChannelRequest{
		{Identifier: "chan"},
	}}, events)
	require.NoError(t, err)
	close(events)

	var counts []int
	for ev := range events {
		if ev.Type == EventProgress {
			counts = append(counts, ev.Messages)
		}
	}
	// Page size 2 over 5 messages: counters after each committed page.
	assert.Equal(t, []int{2, 4, 5}, counts)
}
