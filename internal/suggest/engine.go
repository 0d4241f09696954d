// Package suggest turns free text into proposed tasks by trying an ordered
// list of model candidates.
package suggest

import (
	"context"
	"fmt"
	"strings"

	triageErrors "github.com/harunnryd/triage/internal/errors"
	"github.com/harunnryd/triage/internal/logger"
	"github.com/harunnryd/triage/internal/model"
	"github.com/harunnryd/triage/internal/model/contract"
	"github.com/harunnryd/triage/internal/signal"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Result is the outcome of one cascade run. Exhausted is set when every
// candidate soft-failed; Tasks is then empty and no error is returned.
type Result struct {
	Tasks     []signal.ProposedTask
	Model     string
	Attempts  int
	Exhausted bool
}

type Engine struct {
	candidates []model.Provider
	mapper     triageErrors.ErrorMapper
	schema     *jsonschema.Schema
}

func NewEngine(candidates []model.Provider) (*Engine, error) {
	if len(candidates) == 0 {
		return nil, triageErrors.Configuration("no AI model candidates configured")
	}
	schema, err := compileSchema()
	if err != nil {
		return nil, triageErrors.WrapWithCategory(err, "suggestion schema", triageErrors.ErrInternal)
	}
	return &Engine{
		candidates: candidates,
		mapper:     triageErrors.NewDefaultErrorMapper(),
		schema:     schema,
	}, nil
}

// Suggest runs the cascade in candidate order. A soft failure moves on to the
// next candidate; any other failure, including a malformed successful
// response, aborts and is returned wrapped in ErrAIHardFail.
func (e *Engine) Suggest(ctx context.Context, text string, categories []string) (*Result, error) {
	log := logger.From(ctx)
	req := BuildRequest(text, categories)
	res := &Result{}

	for _, candidate := range e.candidates {
		res.Attempts++
		resp, err := candidate.Generate(ctx, req)

		switch e.mapper.ClassifyModelError(err) {
		case triageErrors.OutcomeSuccess:
			if resp == nil {
				log.Error("Model returned no response", "model", candidate.Name())
				return res, triageErrors.WrapWithCategory(
					fmt.Errorf("%w: empty response", triageErrors.ErrInvalidModelOutput),
					fmt.Sprintf("model %s", candidate.Name()),
					triageErrors.ErrAIHardFail,
				)
			}
			tasks, perr := decodeTasks(e.schema, resp.Content)
			if perr != nil {
				log.Error("Model returned malformed suggestions", "model", candidate.Name(), "error", perr)
				return res, triageErrors.WrapWithCategory(
					fmt.Errorf("%w: %w", triageErrors.ErrInvalidModelOutput, perr),
					fmt.Sprintf("model %s", candidate.Name()),
					triageErrors.ErrAIHardFail,
				)
			}
			res.Model = candidate.Name()
			res.Tasks = canonicalize(tasks, categories)
			log.Info("Suggestions generated", "model", res.Model, "attempts", res.Attempts, "tasks", len(res.Tasks))
			return res, nil

		case triageErrors.OutcomeContinue:
			log.Warn("Model unavailable, trying next candidate", "model", candidate.Name(), "error", err)

		default:
			log.Error("Model call failed, aborting", "model", candidate.Name(), "error", err)
			return res, triageErrors.WrapWithCategory(err, fmt.Sprintf("model %s", candidate.Name()), triageErrors.ErrAIHardFail)
		}
	}

	res.Exhausted = true
	log.Warn("All model candidates unavailable", "attempts", res.Attempts)
	return res, nil
}

// BuildRequest renders the instruction prompt. The same input always yields
// the same request.
func BuildRequest(text string, categories []string) contract.CompletionRequest {
	var b strings.Builder
	b.WriteString("Read the message below and propose follow-up tasks for the person it was sent to.\n")
	b.WriteString("Answer with a JSON array only, no prose. Each element is an object with:\n")
	b.WriteString("  \"title\": a short imperative task title\n")
	b.WriteString("  \"project\": exactly one of the allowed projects\n")
	b.WriteString("  \"justification\": one sentence tying the task to the message\n")
	b.WriteString("  \"subtasks\": optional array of short subtask titles\n")
	b.WriteString("  \"citations\": optional array of verbatim quotes from the message\n")
	b.WriteString("Return [] when nothing in the message is actionable.\n\n")

	b.WriteString("Allowed projects:\n")
	if len(categories) == 0 {
		b.WriteString("- General\n")
	}
	for _, c := range categories {
		b.WriteString("- " + c + "\n")
	}

	b.WriteString("\nMessage:\n\"\"\"\n")
	b.WriteString(strings.TrimSpace(text))
	b.WriteString("\n\"\"\"\n")

	return contract.CompletionRequest{
		System:   "You extract actionable work items from workplace messages. You only ever answer with JSON.",
		Messages: []contract.Message{{Role: "user", Content: b.String()}},
		JSON:     true,
	}
}

// canonicalize maps project names onto the allowed category spelling.
func canonicalize(tasks []signal.ProposedTask, categories []string) []signal.ProposedTask {
	if tasks == nil {
		return []signal.ProposedTask{}
	}
	for i := range tasks {
		tasks[i].Title = strings.TrimSpace(tasks[i].Title)
		for _, c := range categories {
			if strings.EqualFold(strings.TrimSpace(tasks[i].Project), c) {
				tasks[i].Project = c
				break
			}
		}
	}
	return tasks
}
