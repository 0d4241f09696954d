// Package parser turns one raw provider event into a normalized signal.
package parser

// RawEvent is the strict input schema of the parser. Provider adapters map
// their payloads into it; every field is optional except Timestamp and an
// absent field is its zero value.
type RawEvent struct {
	Timestamp   string
	ChannelID   string
	ChannelName string
	UserID      string
	Username    string
	BotID       string
	Text        string
	Permalink   string
	Files       []File
	BlockLinks  []string
	Attachments []Attachment
}

type File struct {
	Permalink  string
	URLPrivate string
}

// Attachment carries the unfurl markers used to recognise third-party documents.
type Attachment struct {
	ServiceName string
	Title       string
	TitleLink   string
	FromURL     string
}

// link returns the first usable attachment URL.
func (a Attachment) link() string {
	if a.TitleLink != "" {
		return a.TitleLink
	}
	return a.FromURL
}
