// Package tracker defines the task-tracker surface used by sync and approval.
package tracker

import (
	"context"
	"time"

	"github.com/harunnryd/triage/internal/signal"
)

const (
	IDPrefix    = "asana"
	SourceLabel = "Asana"
)

type Item struct {
	ID        string     `json:"id" yaml:"id"`
	Name      string     `json:"name" yaml:"name"`
	Notes     string     `json:"notes,omitempty" yaml:"notes,omitempty"`
	Project   string     `json:"project,omitempty" yaml:"project,omitempty"`
	Completed bool       `json:"completed" yaml:"completed"`
	Due       *time.Time `json:"due,omitempty" yaml:"due,omitempty"`
	CreatedAt time.Time  `json:"created_at" yaml:"created_at"`
	URL       string     `json:"url,omitempty" yaml:"url,omitempty"`
}

type Category struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Tracker is implemented by task-tracker clients.
type Tracker interface {
	ListAssignedItems(ctx context.Context) ([]Item, error)
	ListCategories(ctx context.Context) ([]Category, error)
	CompleteItem(ctx context.Context, id string) error
	// CreateItem returns the id of the new item.
	CreateItem(ctx context.Context, title, category, notes string) (string, error)
	CreateSubItem(ctx context.Context, parentID, title string) error
}

// ToSignal converts an assigned item into a tracker-item signal.
func ToSignal(item Item) signal.Signal {
	title := item.Name
	if title == "" {
		title = signal.UntitledPlaceholder
	}
	status := signal.StatusTodo
	if item.Completed {
		status = signal.StatusDone
	}
	label := SourceLabel
	if item.Project != "" {
		label = SourceLabel + ": " + item.Project
	}
	return signal.Signal{
		ID:         IDPrefix + "-" + item.ID,
		ExternalID: item.ID,
		Provider:   signal.ProviderTrackerItem,
		Title:      title,
		URL:        item.URL,
		Status:     status,
		CreatedAt:  item.CreatedAt,
		Metadata: signal.Metadata{
			SourceLabel: label,
			SourceType:  signal.SourceTypeChannel,
			Project:     item.Project,
			Due:         item.Due,
		},
	}
}

func Signals(items []Item) []signal.Signal {
	out := make([]signal.Signal, 0, len(items))
	for _, it := range items {
		out = append(out, ToSignal(it))
	}
	return out
}

// CategoryNames returns the category names in listing order.
func CategoryNames(categories []Category) []string {
	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, c.Name)
	}
	return names
}
