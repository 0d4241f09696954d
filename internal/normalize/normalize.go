// Package normalize rewrites provider markup into plain display text.
package normalize

import (
	"regexp"
	"strings"
)

const (
	UnknownUser    = "@unknown-user"
	UnknownGroup   = "@unknown-group"
	UnknownChannel = "#unknown-channel"
)

// Resolver is the lookup surface the normalizer needs; *refstore.Store satisfies it.
type Resolver interface {
	UserName(id string) (string, bool)
	GroupHandle(id string) (string, bool)
}

// ChannelResolver is optionally implemented by a Resolver to name channel
// references that carry no label.
type ChannelResolver interface {
	ChannelName(id string) (string, bool)
}

var (
	userMention      = regexp.MustCompile(`<@([UWB][A-Z0-9]+)(?:\|([^>]*))?>`)
	channelRef       = regexp.MustCompile(`<#([CGD][A-Z0-9]+)(?:\|([^>]*))?>`)
	groupMention     = regexp.MustCompile(`<!subteam\^([A-Z0-9]+)(?:\|([^>]*))?>`)
	broadcastMention = regexp.MustCompile(`<!(here|channel|everyone)(?:\|[^>]*)?>`)
	labelledLink     = regexp.MustCompile(`<([a-zA-Z][a-zA-Z0-9+.-]*:[^|>\s]+)\|([^>]+)>`)
	bareLink         = regexp.MustCompile(`<([a-zA-Z][a-zA-Z0-9+.-]*:[^|>\s]+)>`)
	anyLink          = regexp.MustCompile(`<([a-zA-Z][a-zA-Z0-9+.-]*:[^|>\s]+)(?:\|[^>]+)?>`)
	whitespace       = regexp.MustCompile(`\s+`)

	entities = strings.NewReplacer("&lt;", "<", "&gt;", ">")
)

// Text applies the rewrite stages in order. Mentions are resolved before
// entities are unescaped so that labels containing "<" or ">" never look
// like link tokens.
func Text(raw string, r Resolver) string {
	out := userMention.ReplaceAllStringFunc(raw, func(tok string) string {
		m := userMention.FindStringSubmatch(tok)
		if name, ok := lookup(r, m[1], true); ok {
			return "@" + name
		}
		if label := strings.TrimSpace(m[2]); label != "" {
			return "@" + strings.TrimPrefix(label, "@")
		}
		return UnknownUser
	})

	out = groupMention.ReplaceAllStringFunc(out, func(tok string) string {
		m := groupMention.FindStringSubmatch(tok)
		if handle, ok := lookup(r, m[1], false); ok {
			return "@" + handle
		}
		if label := strings.TrimSpace(m[2]); label != "" {
			return "@" + strings.TrimPrefix(label, "@")
		}
		return UnknownGroup
	})

	out = channelRef.ReplaceAllStringFunc(out, func(tok string) string {
		m := channelRef.FindStringSubmatch(tok)
		if cr, ok := r.(ChannelResolver); ok {
			if name, ok := cr.ChannelName(m[1]); ok {
				return "#" + name
			}
		}
		if label := strings.TrimSpace(m[2]); label != "" {
			return "#" + strings.TrimPrefix(label, "#")
		}
		return UnknownChannel
	})

	out = broadcastMention.ReplaceAllString(out, "@$1")

	out = entities.Replace(out)
	out = strings.ReplaceAll(out, "&amp;", "&")

	out = labelledLink.ReplaceAllString(out, "$2")
	out = bareLink.ReplaceAllString(out, "$1")

	return strings.TrimSpace(whitespace.ReplaceAllString(out, " "))
}

// FirstLink returns the first hyperlink token in raw provider text.
func FirstLink(raw string) (string, bool) {
	m := anyLink.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	return strings.ReplaceAll(m[1], "&amp;", "&"), true
}

func lookup(r Resolver, id string, user bool) (string, bool) {
	if r == nil {
		return "", false
	}
	if user {
		return r.UserName(id)
	}
	return r.GroupHandle(id)
}
