package parser

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	triageErrors "github.com/harunnryd/triage/internal/errors"
	"github.com/harunnryd/triage/internal/normalize"
	"github.com/harunnryd/triage/internal/refstore"
	"github.com/harunnryd/triage/internal/signal"
)

const (
	IDPrefix = "slack"

	UnknownChannel = "Unknown Channel"
	UnknownUser    = "Unknown User"

	// ThirdPartyGlyph prefixes titles of documents shared through an integration.
	ThirdPartyGlyph = "📄 "

	groupDMPrefix    = "mpdm-"
	groupDMSeparator = "--"
)

var (
	rawIDPattern     = regexp.MustCompile(`^[A-Z0-9]{8,12}$`)
	groupDMSuffix    = regexp.MustCompile(`-\d+$`)
	timestampPattern = regexp.MustCompile(`^(\d+)(?:\.(\d{1,9}))?$`)
)

type Options struct {
	// DocumentDomains are hosts (and their subdomains) of external document services.
	DocumentDomains []string
	// DocumentServices are integration service names whose unfurls mark a shared document.
	DocumentServices []string
}

// Parser resolves everything eagerly against its store; produced signals keep
// no reference to it.
type Parser struct {
	store    *refstore.Store
	domains  []string
	services map[string]struct{}
}

func New(store *refstore.Store, opts Options) *Parser {
	services := make(map[string]struct{}, len(opts.DocumentServices))
	for _, s := range opts.DocumentServices {
		services[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	domains := make([]string, 0, len(opts.DocumentDomains))
	for _, d := range opts.DocumentDomains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			domains = append(domains, d)
		}
	}
	return &Parser{store: store, domains: domains, services: services}
}

// Parse returns exactly one signal for the event, or an ErrParseSkip error
// when the event has no usable timestamp.
func (p *Parser) Parse(ev RawEvent) (signal.Signal, error) {
	ts := strings.TrimSpace(ev.Timestamp)
	if ts == "" {
		return signal.Signal{}, triageErrors.ParseSkip("event has no timestamp")
	}
	created, err := ParseTimestamp(ts)
	if err != nil {
		return signal.Signal{}, triageErrors.WrapWithCategory(err, "event timestamp", triageErrors.ErrParseSkip)
	}

	label := p.sourceLabel(ev.ChannelID, ev.ChannelName)

	title := normalize.Text(ev.Text, p.store)
	if title == "" {
		title = signal.UntitledPlaceholder
	}

	link, fromEvent := p.resolveLink(ev)
	provider := signal.ProviderNativeMessage
	if p.isDocument(link) {
		provider = signal.ProviderLinkedDocument
	}
	if att, ok := p.thirdPartyAttachment(ev.Attachments); ok {
		provider = signal.ProviderThirdPartyDoc
		if t := strings.TrimSpace(att.Title); t != "" {
			title = ThirdPartyGlyph + t
		} else {
			title = ThirdPartyGlyph + title
		}
		if !fromEvent && att.link() != "" {
			link = att.link()
		}
	}

	return signal.Signal{
		ID:         SignalID(ev.ChannelID, ts),
		ExternalID: ts,
		Provider:   provider,
		Title:      title,
		URL:        link,
		Status:     signal.StatusTodo,
		CreatedAt:  created,
		Metadata: signal.Metadata{
			Author:      p.author(ev),
			SourceLabel: label,
			SourceType:  signal.SourceTypeForLabel(label),
		},
	}, nil
}

// SignalID is deterministic for a channel and event timestamp.
func SignalID(channelID, ts string) string {
	return IDPrefix + "-" + channelID + "-" + strings.ReplaceAll(ts, ".", "")
}

// ParseTimestamp converts a "seconds.micros" event timestamp to UTC time.
func ParseTimestamp(ts string) (time.Time, error) {
	m := timestampPattern.FindStringSubmatch(ts)
	if m == nil {
		return time.Time{}, fmt.Errorf("malformed timestamp %q", ts)
	}
	sec, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed timestamp %q: %w", ts, err)
	}
	var nsec int64
	if frac := m[2]; frac != "" {
		frac += strings.Repeat("0", 9-len(frac))
		nsec, _ = strconv.ParseInt(frac, 10, 64)
	}
	return time.Unix(sec, nsec).UTC(), nil
}

func (p *Parser) sourceLabel(channelID, inlineName string) string {
	if ch, ok := p.store.Channel(channelID); ok {
		switch {
		case ch.IsDM:
			if u, ok := p.store.User(ch.CounterpartID); ok {
				return signal.DMLabelPrefix + " " + u.Name()
			}
			return signal.DMLabelPrefix + " " + UnknownUser
		case ch.IsGroupDM:
			return p.groupDMLabel(ch.Name)
		case ch.Name != "":
			return "#" + ch.Name
		}
	}

	if name := strings.TrimSpace(inlineName); name != "" && !rawIDPattern.MatchString(name) {
		if strings.HasPrefix(name, groupDMPrefix) {
			return p.groupDMLabel(name)
		}
		return "#" + name
	}

	if channelID != "" {
		return channelID
	}
	return UnknownChannel
}

// groupDMLabel expands a synthetic group conversation name such as
// "mpdm-alice--bob--carol-1" into "DM: Alice, Bob, Carol". Fragments that
// do not resolve are shown as-is.
func (p *Parser) groupDMLabel(name string) string {
	trimmed := groupDMSuffix.ReplaceAllString(strings.TrimPrefix(name, groupDMPrefix), "")
	var names []string
	for _, fragment := range strings.Split(trimmed, groupDMSeparator) {
		if fragment = strings.TrimSpace(fragment); fragment == "" {
			continue
		}
		if u, ok := p.store.UserByHandle(fragment); ok && u.FirstName() != "" {
			names = append(names, u.FirstName())
			continue
		}
		names = append(names, fragment)
	}
	if len(names) == 0 {
		return signal.DMLabelPrefix + " " + UnknownUser
	}
	return signal.DMLabelPrefix + " " + strings.Join(names, ", ")
}

func (p *Parser) author(ev RawEvent) string {
	if u, ok := p.store.User(ev.UserID); ok {
		return u.Name()
	}
	switch {
	case ev.Username != "":
		return ev.Username
	case ev.UserID != "":
		return ev.UserID
	default:
		return ev.BotID
	}
}

// resolveLink walks the link sources in priority order. The second result
// reports whether the link came from the event content rather than from the
// permalink or a synthesized deep link.
func (p *Parser) resolveLink(ev RawEvent) (string, bool) {
	for _, f := range ev.Files {
		if f.Permalink != "" {
			return f.Permalink, true
		}
		if f.URLPrivate != "" {
			return f.URLPrivate, true
		}
	}
	for _, l := range ev.BlockLinks {
		if p.isDocument(l) {
			return l, true
		}
	}
	if l, ok := normalize.FirstLink(ev.Text); ok {
		return l, true
	}
	if ev.Permalink != "" {
		return ev.Permalink, false
	}
	return p.deepLink(ev.ChannelID, ev.Timestamp), false
}

// deepLink builds a message link from channel id and timestamp, using the
// workspace URL when the identity check reported one.
func (p *Parser) deepLink(channelID, ts string) string {
	if channelID == "" {
		return ""
	}
	if base := strings.TrimRight(p.store.WorkspaceURL(), "/"); base != "" {
		return base + "/archives/" + channelID + "/p" + strings.ReplaceAll(ts, ".", "")
	}
	q := url.Values{"channel": {channelID}, "message_ts": {ts}}
	return "https://slack.com/app_redirect?" + q.Encode()
}

func (p *Parser) isDocument(link string) bool {
	if link == "" || len(p.domains) == 0 {
		return false
	}
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range p.domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func (p *Parser) thirdPartyAttachment(atts []Attachment) (Attachment, bool) {
	for _, a := range atts {
		if _, ok := p.services[strings.ToLower(strings.TrimSpace(a.ServiceName))]; ok {
			return a, true
		}
	}
	return Attachment{}, false
}
