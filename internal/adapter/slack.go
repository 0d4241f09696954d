package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/triage/internal/fetcher"
	"github.com/harunnryd/triage/internal/parser"
	"github.com/harunnryd/triage/internal/refstore"

	"github.com/oklog/ulid/v2"
	"github.com/slack-go/slack"
)

const (
	rateLimitAttempts = 3
	maxRetryAfter     = 30 * time.Second
	maxDetailEntries  = 5000
)

// SlackAdapter serves both the reference directory and message search from
// one Web API client.
type SlackAdapter struct {
	client      *slack.Client
	fileLookups bool

	mu      sync.Mutex
	users   map[string]slack.UserPagination
	details map[string]messageDetail
}

// SlackOption configures a SlackAdapter.
type SlackOption func(*SlackAdapter)

// WithFileLookup controls whether search matches are completed with their
// attached files and bot id from conversations.history. Enabled by default.
func WithFileLookup(enabled bool) SlackOption {
	return func(s *SlackAdapter) { s.fileLookups = enabled }
}

// messageDetail holds the message fields search.messages leaves out.
type messageDetail struct {
	botID string
	files []parser.File
}

// NewSlackAdapter builds a client for token. apiURL overrides the Web API
// endpoint and must end with a slash; empty uses the public endpoint.
func NewSlackAdapter(token, apiURL string, options ...SlackOption) *SlackAdapter {
	var opts []slack.Option
	if apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(apiURL))
	}
	s := &SlackAdapter{
		client:      slack.New(token, opts...),
		fileLookups: true,
		users:       make(map[string]slack.UserPagination),
		details:     make(map[string]messageDetail),
	}
	for _, o := range options {
		o(s)
	}
	return s
}

func (s *SlackAdapter) Name() string {
	return "slack"
}

func (s *SlackAdapter) Health(ctx context.Context) error {
	_, err := s.Identity(ctx)
	return err
}

func (s *SlackAdapter) Identity(ctx context.Context) (refstore.Identity, error) {
	resp, err := withRetry(ctx, func() (*slack.AuthTestResponse, error) {
		return s.client.AuthTestContext(ctx)
	})
	if err != nil {
		return refstore.Identity{}, err
	}
	return refstore.Identity{UserID: resp.UserID, TeamID: resp.TeamID, WorkspaceURL: resp.URL}, nil
}

// UsersPage exposes users.list as cursor pages. The client keeps the provider
// cursor internally, so the returned cursor is an opaque key for the stored
// pagination state.
func (s *SlackAdapter) UsersPage(ctx context.Context, cursor string, limit int) ([]refstore.User, string, error) {
	var p slack.UserPagination
	if cursor == "" {
		s.mu.Lock()
		clear(s.users)
		s.mu.Unlock()
		p = s.client.GetUsersPaginated(slack.GetUsersOptionLimit(limit))
	} else {
		s.mu.Lock()
		stored, ok := s.users[cursor]
		delete(s.users, cursor)
		s.mu.Unlock()
		if !ok {
			return nil, "", fmt.Errorf("unknown users cursor %q", cursor)
		}
		p = stored
	}

	next, err := withRetry(ctx, func() (slack.UserPagination, error) {
		return p.Next(ctx)
	})
	if p.Done(err) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}

	users := make([]refstore.User, 0, len(next.Users))
	for _, u := range next.Users {
		users = append(users, toUser(u))
	}

	if next.Cursor == "" {
		return users, "", nil
	}

	token := ulid.Make().String()
	s.mu.Lock()
	s.users[token] = next
	s.mu.Unlock()
	return users, token, nil
}

func (s *SlackAdapter) Groups(ctx context.Context) ([]refstore.Group, error) {
	groups, err := withRetry(ctx, func() ([]slack.UserGroup, error) {
		return s.client.GetUserGroupsContext(ctx)
	})
	if err != nil {
		return nil, err
	}
	out := make([]refstore.Group, 0, len(groups))
	for _, g := range groups {
		out = append(out, refstore.Group{ID: g.ID, Handle: g.Handle})
	}
	return out, nil
}

func (s *SlackAdapter) ChannelsPage(ctx context.Context, kind refstore.ChannelKind, cursor string, limit int) ([]refstore.Channel, string, error) {
	type page struct {
		channels []slack.Channel
		next     string
	}
	res, err := withRetry(ctx, func() (page, error) {
		channels, next, err := s.client.GetConversationsContext(ctx, &slack.GetConversationsParameters{
			Types:           []string{string(kind)},
			Cursor:          cursor,
			Limit:           limit,
			ExcludeArchived: true,
		})
		return page{channels: channels, next: next}, err
	})
	if err != nil {
		return nil, "", err
	}

	out := make([]refstore.Channel, 0, len(res.channels))
	for _, c := range res.channels {
		out = append(out, refstore.Channel{
			ID:            c.ID,
			Name:          c.Name,
			IsDM:          c.IsIM,
			IsGroupDM:     c.IsMpIM,
			IsArchived:    c.IsArchived,
			CounterpartID: c.User,
		})
	}
	return out, res.next, nil
}

// SearchPage runs search.messages newest first.
func (s *SlackAdapter) SearchPage(ctx context.Context, query string, page, count int) (fetcher.Page, error) {
	res, err := withRetry(ctx, func() (*slack.SearchMessages, error) {
		return s.client.SearchMessagesContext(ctx, query, slack.SearchParameters{
			Sort:          "timestamp",
			SortDirection: "desc",
			Count:         count,
			Page:          page,
		})
	})
	if err != nil {
		return fetcher.Page{}, err
	}

	events := make([]parser.RawEvent, 0, len(res.Matches))
	for _, m := range res.Matches {
		ev := toRawEvent(m)
		if s.fileLookups {
			if d, ok := s.lookupDetail(ctx, ev.ChannelID, ev.Timestamp); ok {
				ev.BotID = d.botID
				ev.Files = d.files
			}
		}
		events = append(events, ev)
	}
	return fetcher.Page{Events: events, Number: res.Paging.Page, Pages: res.Paging.Pages}, nil
}

// lookupDetail reads one message back from conversations.history to recover
// its files and bot id. Thread replies are not part of the channel history
// and resolve to nothing. Lookup failures are not cached.
func (s *SlackAdapter) lookupDetail(ctx context.Context, channelID, ts string) (messageDetail, bool) {
	if channelID == "" || ts == "" {
		return messageDetail{}, false
	}
	key := channelID + "/" + ts

	s.mu.Lock()
	d, ok := s.details[key]
	s.mu.Unlock()
	if ok {
		return d, true
	}

	history, err := withRetry(ctx, func() (*slack.GetConversationHistoryResponse, error) {
		return s.client.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
			ChannelID: channelID,
			Oldest:    ts,
			Latest:    ts,
			Inclusive: true,
			Limit:     1,
		})
	})
	if err != nil {
		slog.Debug("Slack message lookup failed", "channel", channelID, "ts", ts, "error", err)
		return messageDetail{}, false
	}

	for _, m := range history.Messages {
		if m.Timestamp != ts {
			continue
		}
		d.botID = m.BotID
		for _, f := range m.Files {
			d.files = append(d.files, parser.File{Permalink: f.Permalink, URLPrivate: f.URLPrivate})
		}
	}

	s.mu.Lock()
	if len(s.details) >= maxDetailEntries {
		clear(s.details)
	}
	s.details[key] = d
	s.mu.Unlock()
	return d, true
}

func toUser(u slack.User) refstore.User {
	realName := u.RealName
	if realName == "" {
		realName = u.Profile.RealName
	}
	return refstore.User{
		ID:          u.ID,
		Handle:      u.Name,
		DisplayName: u.Profile.DisplayName,
		RealName:    realName,
		IsBot:       u.IsBot,
	}
}

func toRawEvent(m slack.SearchMessage) parser.RawEvent {
	ev := parser.RawEvent{
		Timestamp:   m.Timestamp,
		ChannelID:   m.Channel.ID,
		ChannelName: m.Channel.Name,
		UserID:      m.User,
		Username:    m.Username,
		Text:        m.Text,
		Permalink:   m.Permalink,
		BlockLinks:  blockLinks(m.Blocks),
	}
	for _, a := range m.Attachments {
		ev.Attachments = append(ev.Attachments, parser.Attachment{
			ServiceName: a.ServiceName,
			Title:       a.Title,
			TitleLink:   a.TitleLink,
			FromURL:     a.FromURL,
		})
	}
	return ev
}

func blockLinks(blocks slack.Blocks) []string {
	var links []string
	for _, b := range blocks.BlockSet {
		if rt, ok := b.(*slack.RichTextBlock); ok {
			links = richTextLinks(links, rt.Elements)
		}
	}
	return links
}

func richTextLinks(links []string, elements []slack.RichTextElement) []string {
	for _, e := range elements {
		switch el := e.(type) {
		case *slack.RichTextSection:
			links = sectionLinks(links, el.Elements)
		case *slack.RichTextQuote:
			links = sectionLinks(links, el.Elements)
		case *slack.RichTextPreformatted:
			links = sectionLinks(links, el.Elements)
		case *slack.RichTextList:
			links = richTextLinks(links, el.Elements)
		}
	}
	return links
}

func sectionLinks(links []string, elements []slack.RichTextSectionElement) []string {
	for _, e := range elements {
		if l, ok := e.(*slack.RichTextSectionLinkElement); ok && l.URL != "" {
			links = append(links, l.URL)
		}
	}
	return links
}

// withRetry repeats fn while the Web API answers with a rate limit,
// honouring its Retry-After hint.
func withRetry[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var (
		res T
		err error
	)
	for attempt := 1; attempt <= rateLimitAttempts; attempt++ {
		res, err = fn()
		var rle *slack.RateLimitedError
		if !errors.As(err, &rle) || attempt == rateLimitAttempts {
			return res, err
		}

		wait := min(rle.RetryAfter, maxRetryAfter)
		slog.Debug("Slack rate limited", "retry_after", wait, "attempt", attempt)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return res, ctx.Err()
		case <-timer.C:
		}
	}
	return res, err
}
