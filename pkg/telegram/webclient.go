package telegram

import (
	"context"
	"fmt"
	"hash/fnv"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	errs "telelink/pkg/errors"
	"telelink/pkg/logger"
)

const defaultPreviewBase = "https://t.me"

// WebClient reads public channels through Telegram's web preview
// (t.me/s/<username>). It needs no credentials and therefore only sees
// channels with a public username; private channels require an MTProto
// implementation of Client behind the same interface.
type WebClient struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	log        logger.Logger
}

// NewWebClient creates a web-preview client.
func NewWebClient(timeout time.Duration, log logger.Logger) *WebClient {
	if log == nil {
		log = logger.GetLogger()
	}
	return &WebClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultPreviewBase,
		userAgent:  "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
		log:        log,
	}
}

// SetBaseURL overrides the preview endpoint (tests point this at a local
// server).
func (c *WebClient) SetBaseURL(base string) { c.baseURL = strings.TrimRight(base, "/") }

// ResolveChannel resolves a public channel identifier via its preview page.
func (c *WebClient) ResolveChannel(ctx context.Context, identifier string) (*Channel, error) {
	username, id, ok := ParseIdentifier(identifier)
	if !ok {
		return nil, errs.New(errs.KindInvalidChannel, fmt.Sprintf("cannot parse identifier %q", identifier))
	}
	if username == "" {
		// The web preview cannot address channels by bare numeric id.
		return nil, errs.New(errs.KindNotMember,
			fmt.Sprintf("channel %d has no public username; the web preview cannot read it", id))
	}

	page, err := c.fetchPreview(ctx, username, url.Values{})
	if err != nil {
		return nil, err
	}

	title := page.title
	if title == "" {
		title = username
	}
	return &Channel{
		ID:       ChannelIDForUsername(username),
		Username: username,
		Title:    title,
	}, nil
}

// History returns one ascending page of messages with id > req.AfterID.
// The preview supports server-side keyword search (?q=) and after-id
// pagination; date bounds are applied client-side.
func (c *WebClient) History(ctx context.Context, req HistoryRequest) ([]Message, error) {
	username, ok := usernameForChannelID(req.ChannelID)
	if !ok {
		return nil, errs.New(errs.KindInvalidChannel,
			fmt.Sprintf("channel %d was not resolved by this client", req.ChannelID))
	}

	params := url.Values{}
	// The cursor is always sent: without one the preview serves the
	// channel's newest page, while after=0 serves the oldest. A fresh
	// scrape must start at the beginning of the history.
	params.Set("after", strconv.FormatInt(req.AfterID, 10))
	if req.Keyword != "" {
		params.Set("q", req.Keyword)
	}

	page, err := c.fetchPreview(ctx, username, params)
	if err != nil {
		return nil, err
	}

	messages := page.messages
	sort.Slice(messages, func(i, j int) bool { return messages[i].ID < messages[j].ID })

	filtered := messages[:0]
	for _, m := range messages {
		if m.ID <= req.AfterID {
			continue
		}
		if req.FromDate != nil && !m.Date.IsZero() && m.Date.Before(*req.FromDate) {
			continue
		}
		if req.ToDate != nil && !m.Date.IsZero() && m.Date.After(*req.ToDate) {
			continue
		}
		filtered = append(filtered, m)
	}
	if req.PageSize > 0 && len(filtered) > req.PageSize {
		filtered = filtered[:req.PageSize]
	}
	return filtered, nil
}

func (c *WebClient) fetchPreview(ctx context.Context, username string, params url.Values) (*previewPage, error) {
	endpoint := fmt.Sprintf("%s/s/%s", c.baseURL, url.PathEscape(username))
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errs.Wrap(errs.KindUnknown, "failed to build request", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errs.Wrap(errs.KindNetwork, "preview request failed", err)
	}
	defer resp.Body.Close()

	c.log.DebugWithFields("preview fetched", map[string]interface{}{
		"url":      endpoint,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	})

	if err := c.checkResponseStatus(resp); err != nil {
		return nil, err
	}

	page, err := parsePreviewPage(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.KindParsing, "failed to parse preview page", err)
	}
	if page.notFound {
		return nil, errs.New(errs.KindInvalidChannel, fmt.Sprintf("channel %q does not exist", username))
	}
	return page, nil
}

func (c *WebClient) checkResponseStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		wait := 60 * time.Second
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				wait = time.Duration(secs) * time.Second
			}
		}
		return &errs.FloodWaitError{Wait: wait}
	case resp.StatusCode == http.StatusNotFound:
		return errs.New(errs.KindInvalidChannel, "channel not found")
	case resp.StatusCode >= 500:
		return errs.New(errs.KindNetwork, fmt.Sprintf("server returned status %d", resp.StatusCode))
	default:
		return errs.New(errs.KindUnknown, fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}
}

// channelIDs maps synthetic channel ids back to usernames for History
// calls. The preview exposes no numeric channel ids, so stable ids are
// derived from the username.
var (
	channelIDsMu sync.RWMutex
	channelIDs   = map[int64]string{}
)

// ChannelIDForUsername derives a stable positive channel id from a public
// username.
func ChannelIDForUsername(username string) int64 {
	h := fnv.New64a()
	h.Write([]byte(strings.ToLower(username)))
	id := int64(h.Sum64() & 0x7fffffffffffffff)

	channelIDsMu.Lock()
	channelIDs[id] = strings.ToLower(username)
	channelIDsMu.Unlock()
	return id
}

func usernameForChannelID(id int64) (string, bool) {
	channelIDsMu.RLock()
	defer channelIDsMu.RUnlock()
	u, ok := channelIDs[id]
	return u, ok
}
