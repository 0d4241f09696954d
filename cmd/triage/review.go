package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/harunnryd/triage/internal/approval"
	"github.com/harunnryd/triage/internal/formatter"
	"github.com/harunnryd/triage/internal/logger"
	"github.com/harunnryd/triage/internal/signal"
	"github.com/harunnryd/triage/internal/suggest"

	"github.com/google/shlex"
	"github.com/spf13/cobra"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review signals interactively",
	Long:  `Open an interactive session to go through open signals, ask for task suggestions, approve them into the tracker, or archive and block signals.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeWithApp(cmd, func(ctx context.Context, a *app) error {
			w, err := syncWindow(cmd, a.cfg)
			if err != nil {
				return err
			}

			r := &reviewer{
				in:       bufio.NewReader(os.Stdin),
				w:        cmd.OutOrStdout(),
				out:      formatter.NewTableFormatter(),
				archived: a.cfg.Store.ArchivedList,
				blocked:  a.cfg.Store.BlockedList,
				sync: func(ctx context.Context) ([]signal.Signal, error) {
					res, err := a.session.Sync(ctx, w)
					if err != nil {
						return nil, err
					}
					return res.Signals, nil
				},
				suggest: func(ctx context.Context, text string) (*suggest.Result, error) {
					engine, err := a.suggestEngine()
					if err != nil {
						return nil, err
					}
					return engine.Suggest(ctx, text, a.categories(ctx))
				},
				exclude: a.lists.Add,
			}
			if ap, err := a.approver(); err == nil {
				r.approve = ap.Approve
			}
			return r.Run(ctx)
		})
	},
}

// reviewer is the line-oriented review loop. Its collaborators are plain
// functions so the loop can be driven without live services.
type reviewer struct {
	in  *bufio.Reader
	w   io.Writer
	out formatter.Formatter

	archived string
	blocked  string

	sync    func(ctx context.Context) ([]signal.Signal, error)
	suggest func(ctx context.Context, text string) (*suggest.Result, error)
	approve func(ctx context.Context, sig signal.Signal, task signal.ProposedTask) (*approval.Outcome, error)
	exclude func(ctx context.Context, list, id string) (bool, error)

	signals   []signal.Signal
	current   *signal.Signal
	proposals []signal.ProposedTask
}

var errQuit = errors.New("quit")

func (r *reviewer) Run(ctx context.Context) error {
	if err := r.refresh(ctx); err != nil {
		return err
	}
	fmt.Fprintln(r.w, "Type 'help' for commands, 'exit' to quit.")

	for {
		if ctx.Err() != nil {
			return nil
		}

		fmt.Fprint(r.w, "review> ")
		line, err := r.in.ReadString('\n')
		if strings.TrimSpace(line) != "" {
			if cmdErr := r.execute(ctx, line); cmdErr != nil {
				if errors.Is(cmdErr, errQuit) {
					return nil
				}
				fmt.Fprintf(r.w, "error: %v\n", cmdErr)
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

func (r *reviewer) execute(ctx context.Context, line string) error {
	parts, err := shlex.Split(line)
	if err != nil {
		parts = strings.Fields(line)
	}
	if len(parts) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(parts[0]), parts[1:]
	logger.From(ctx).Debug("Review command", "cmd", cmd, "args", len(args))

	switch cmd {
	case "ls", "list":
		return r.list()
	case "refresh":
		return r.refresh(ctx)
	case "show", "open":
		sig, err := r.pick(args)
		if err != nil {
			return err
		}
		r.show(sig)
		return nil
	case "suggest":
		return r.runSuggest(ctx, args)
	case "approve":
		return r.runApprove(ctx, args)
	case "archive":
		return r.runExclude(ctx, r.archived, args)
	case "block":
		return r.runExclude(ctx, r.blocked, args)
	case "help", "?":
		fmt.Fprintln(r.w, reviewHelp)
		return nil
	case "exit", "quit", "q":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q (type 'help')", cmd)
	}
}

const reviewHelp = `Commands:
  ls                       list open signals
  refresh                  sync again
  show <n|id>              show one signal and select it
  suggest [n|id]           propose tasks for a signal (default: selected)
  approve <k> [project]    create proposal k in the tracker and archive the signal
  archive [n|id]           hide a signal
  block [n|id]             hide a signal permanently
  exit                     leave review`

func (r *reviewer) refresh(ctx context.Context) error {
	signals, err := r.sync(ctx)
	if err != nil {
		return err
	}
	r.signals = signals
	r.current = nil
	r.proposals = nil
	return r.list()
}

func (r *reviewer) list() error {
	if len(r.signals) == 0 {
		fmt.Fprintln(r.w, "Nothing to review.")
		return nil
	}
	for i, s := range r.signals {
		fmt.Fprintf(r.w, "%3d  %-24s  %s\n", i+1, s.Metadata.SourceLabel, s.Title)
	}
	return nil
}

// pick resolves a 1-based index or a signal id, defaulting to the selection.
func (r *reviewer) pick(args []string) (signal.Signal, error) {
	if len(args) == 0 {
		if r.current == nil {
			return signal.Signal{}, fmt.Errorf("no signal selected")
		}
		return *r.current, nil
	}

	ref := args[0]
	var sig signal.Signal
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(r.signals) {
			return signal.Signal{}, fmt.Errorf("no signal #%d", n)
		}
		sig = r.signals[n-1]
	} else {
		found, ok := signal.Find(r.signals, ref)
		if !ok {
			return signal.Signal{}, fmt.Errorf("no signal %s", ref)
		}
		sig = found
	}

	if r.current == nil || r.current.ID != sig.ID {
		r.proposals = nil
	}
	r.current = &sig
	return sig, nil
}

func (r *reviewer) show(sig signal.Signal) {
	fmt.Fprintf(r.w, "%s\n  from %s in %s at %s\n  %s\n  %s\n",
		sig.ID, sig.Metadata.Author, sig.Metadata.SourceLabel,
		sig.CreatedAt.Local().Format("2006-01-02 15:04"), sig.Title, sig.URL)
}

func (r *reviewer) runSuggest(ctx context.Context, args []string) error {
	sig, err := r.pick(args)
	if err != nil {
		return err
	}

	res, err := r.suggest(ctx, sig.Title)
	if err != nil {
		return err
	}
	if res.Exhausted {
		fmt.Fprintln(r.w, "All AI models are unavailable right now; try again later.")
		return nil
	}

	r.proposals = res.Tasks
	rendered, err := r.out.FormatTasks(res.Tasks)
	if err != nil {
		return err
	}
	fmt.Fprintln(r.w, rendered)
	return nil
}

func (r *reviewer) runApprove(ctx context.Context, args []string) error {
	if r.approve == nil {
		return fmt.Errorf("no task tracker configured")
	}
	if r.current == nil || len(r.proposals) == 0 {
		return fmt.Errorf("run 'suggest' first")
	}
	if len(args) == 0 {
		return fmt.Errorf("usage: approve <k> [project]")
	}

	k, err := strconv.Atoi(args[0])
	if err != nil || k < 1 || k > len(r.proposals) {
		return fmt.Errorf("no proposal %s", args[0])
	}
	task := r.proposals[k-1]
	if len(args) > 1 {
		task.Project = strings.Join(args[1:], " ")
	}

	out, err := r.approve(ctx, *r.current, task)
	if err != nil {
		return fmt.Errorf("%w (run approve again to resume)", err)
	}

	fmt.Fprintf(r.w, "✓ Created %s with %d subtask(s)\n", out.ItemID, out.Subtasks)
	r.drop(r.current.ID)
	return nil
}

func (r *reviewer) runExclude(ctx context.Context, list string, args []string) error {
	sig, err := r.pick(args)
	if err != nil {
		return err
	}
	if _, err := r.exclude(ctx, list, sig.ID); err != nil {
		return err
	}
	fmt.Fprintf(r.w, "✓ %s added to %s\n", sig.ID, list)
	r.drop(sig.ID)
	return nil
}

func (r *reviewer) drop(id string) {
	kept := r.signals[:0]
	for _, s := range r.signals {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	r.signals = kept
	if r.current != nil && r.current.ID == id {
		r.current = nil
		r.proposals = nil
	}
}

func init() {
	rootCmd.AddCommand(reviewCmd)
	reviewCmd.Flags().String("since", "", "lookback window (default from sync.lookback)")
}
