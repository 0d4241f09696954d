// Package signal defines the provider-agnostic record produced by ingestion
// and the task proposals produced from it.
package signal

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Provider is the closed set of sources a signal can come from.
type Provider uint8

const (
	ProviderNativeMessage Provider = iota + 1
	ProviderLinkedDocument
	ProviderTrackerItem
	ProviderThirdPartyDoc
)

var providerNames = map[Provider]string{
	ProviderNativeMessage:  "native-message",
	ProviderLinkedDocument: "linked-document",
	ProviderTrackerItem:    "tracker-item",
	ProviderThirdPartyDoc:  "third-party-doc",
}

func (p Provider) String() string {
	if name, ok := providerNames[p]; ok {
		return name
	}
	return "unknown"
}

func (p Provider) Valid() bool {
	_, ok := providerNames[p]
	return ok
}

func (p Provider) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid provider %d", p)
	}
	return []byte(p.String()), nil
}

func (p *Provider) UnmarshalText(text []byte) error {
	for candidate, name := range providerNames {
		if name == string(text) {
			*p = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown provider %q", string(text))
}

// Status is the workflow state of a signal.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
)

// SourceType tells whether a message came from a channel or a direct conversation.
type SourceType string

const (
	SourceTypeChannel       SourceType = "channel"
	SourceTypeDirectMessage SourceType = "direct-message"
)

// DMLabelPrefix marks direct and group-direct source labels.
const DMLabelPrefix = "DM:"

// UntitledPlaceholder is used when a signal has no usable text.
const UntitledPlaceholder = "(no text)"

type Metadata struct {
	Author      string     `json:"author" yaml:"author"`
	SourceLabel string     `json:"source_label" yaml:"source_label"`
	SourceType  SourceType `json:"source_type,omitempty" yaml:"source_type,omitempty"`
	Project     string     `json:"project,omitempty" yaml:"project,omitempty"`
	Due         *time.Time `json:"due,omitempty" yaml:"due,omitempty"`
}

// Signal is an immutable value; it holds no reference to the store that resolved it.
type Signal struct {
	ID         string    `json:"id" yaml:"id"`
	ExternalID string    `json:"external_id" yaml:"external_id"`
	Provider   Provider  `json:"source_provider" yaml:"source_provider"`
	Title      string    `json:"title" yaml:"title"`
	URL        string    `json:"url" yaml:"url"`
	Status     Status    `json:"status" yaml:"status"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
	Metadata   Metadata  `json:"metadata" yaml:"metadata"`
}

// SourceTypeForLabel derives the source type from a resolved source label.
func SourceTypeForLabel(label string) SourceType {
	if strings.HasPrefix(label, DMLabelPrefix) {
		return SourceTypeDirectMessage
	}
	return SourceTypeChannel
}

// ProposedTask is a suggestion awaiting review. It is never persisted.
type ProposedTask struct {
	Title         string   `json:"title" yaml:"title" jsonschema:"minLength=1"`
	Project       string   `json:"project" yaml:"project" jsonschema:"minLength=1"`
	Justification string   `json:"justification,omitempty" yaml:"justification,omitempty"`
	Subtasks      []string `json:"subtasks,omitempty" yaml:"subtasks,omitempty"`
	Citations     []string `json:"citations,omitempty" yaml:"citations,omitempty"`
}

// SortNewestFirst orders signals by creation time, newest first, ties by id.
func SortNewestFirst(signals []Signal) {
	sort.SliceStable(signals, func(i, j int) bool {
		if signals[i].CreatedAt.Equal(signals[j].CreatedAt) {
			return signals[i].ID < signals[j].ID
		}
		return signals[i].CreatedAt.After(signals[j].CreatedAt)
	})
}

// ExcludeIDs returns the signals whose id is in none of the given sets.
func ExcludeIDs(signals []Signal, sets ...map[string]struct{}) []Signal {
	out := make([]Signal, 0, len(signals))
	for _, s := range signals {
		excluded := false
		for _, set := range sets {
			if _, ok := set[s.ID]; ok {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, s)
		}
	}
	return out
}

// Find returns the signal with the given id.
func Find(signals []Signal, id string) (Signal, bool) {
	for _, s := range signals {
		if s.ID == id {
			return s, true
		}
	}
	return Signal{}, false
}
