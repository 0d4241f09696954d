// Package approval turns an accepted proposal into tracker writes and
// archives the originating signal.
package approval

import (
	"context"
	"fmt"
	"strings"
	"sync"

	triageErrors "github.com/harunnryd/triage/internal/errors"
	"github.com/harunnryd/triage/internal/logger"
	"github.com/harunnryd/triage/internal/signal"
	"github.com/harunnryd/triage/internal/tracker"
)

// ExcludeStore is the part of the exclude-list store the approver needs.
type ExcludeStore interface {
	Add(ctx context.Context, name, value string) (bool, error)
}

type Outcome struct {
	ItemID   string
	Subtasks int
	Archived bool
}

type progress struct {
	itemID   string
	subtasks int
	archived bool
}

// Approver remembers how far each approval got, so retrying after a partial
// failure resumes instead of writing the item again.
type Approver struct {
	tracker tracker.Tracker
	lists   ExcludeStore
	list    string

	mu       sync.Mutex
	progress map[string]*progress
}

func New(t tracker.Tracker, lists ExcludeStore, archiveList string) *Approver {
	return &Approver{
		tracker:  t,
		lists:    lists,
		list:     archiveList,
		progress: make(map[string]*progress),
	}
}

// Approve creates the item, then each subtask, then archives the signal.
// Calling it again with the same signal and task continues from the first
// step that has not succeeded.
func (a *Approver) Approve(ctx context.Context, sig signal.Signal, task signal.ProposedTask) (*Outcome, error) {
	title := strings.TrimSpace(task.Title)
	if title == "" {
		return nil, triageErrors.InvalidInput("proposed task has no title")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	log := logger.From(ctx).With("signal", sig.ID, "title", title)
	key := sig.ID + "\x00" + title
	p, ok := a.progress[key]
	if !ok {
		p = &progress{}
		a.progress[key] = p
	}

	if p.itemID == "" {
		id, err := a.tracker.CreateItem(ctx, title, task.Project, Notes(sig, task))
		if err != nil {
			return a.outcome(p), triageErrors.Wrap(err, "create tracker item")
		}
		p.itemID = id
		log.Info("Tracker item created", "item", id, "project", task.Project)
	}

	for p.subtasks < len(task.Subtasks) {
		sub := task.Subtasks[p.subtasks]
		if err := a.tracker.CreateSubItem(ctx, p.itemID, sub); err != nil {
			return a.outcome(p), triageErrors.Wrap(err, fmt.Sprintf("create subtask %d of %d", p.subtasks+1, len(task.Subtasks)))
		}
		p.subtasks++
	}

	if !p.archived {
		added, err := a.lists.Add(ctx, a.list, sig.ID)
		if err != nil {
			return a.outcome(p), triageErrors.Wrap(err, "archive signal")
		}
		p.archived = true
		log.Debug("Signal archived", "list", a.list, "added", added)
	}

	return a.outcome(p), nil
}

func (a *Approver) outcome(p *progress) *Outcome {
	return &Outcome{ItemID: p.itemID, Subtasks: p.subtasks, Archived: p.archived}
}

// Notes renders the tracker item description for an approved proposal.
func Notes(sig signal.Signal, task signal.ProposedTask) string {
	var b strings.Builder
	if j := strings.TrimSpace(task.Justification); j != "" {
		b.WriteString(j)
		b.WriteString("\n\n")
	}
	for _, c := range task.Citations {
		b.WriteString("> ")
		b.WriteString(strings.TrimSpace(c))
		b.WriteString("\n")
	}
	if len(task.Citations) > 0 {
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "From %s (%s)", sig.Metadata.SourceLabel, sig.Metadata.Author)
	if sig.URL != "" {
		b.WriteString("\n")
		b.WriteString(sig.URL)
	}
	return b.String()
}
