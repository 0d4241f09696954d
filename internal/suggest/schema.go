package suggest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harunnryd/triage/internal/signal"

	invopop "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

const schemaURL = "https://triage.local/schema/proposed_tasks.json"

// compileSchema reflects the suggestion schema from signal.ProposedTask and
// compiles it for validation.
func compileSchema() (*jsonschema.Schema, error) {
	reflector := invopop.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		Anonymous:                 true,
	}
	raw, err := json.Marshal(reflector.Reflect([]signal.ProposedTask{}))
	if err != nil {
		return nil, fmt.Errorf("marshal suggestion schema: %w", err)
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("load suggestion schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("add suggestion schema: %w", err)
	}
	return c.Compile(schemaURL)
}

// decodeTasks validates the cleaned model output against the schema before
// decoding it.
func decodeTasks(schema *jsonschema.Schema, content string) ([]signal.ProposedTask, error) {
	cleaned := cleanModelJSON(content)
	if cleaned == "" {
		return nil, fmt.Errorf("empty model response")
	}

	inst, err := jsonschema.UnmarshalJSON(strings.NewReader(cleaned))
	if err != nil {
		return nil, fmt.Errorf("response is not JSON: %w", err)
	}
	if err := schema.Validate(inst); err != nil {
		return nil, fmt.Errorf("response does not match the suggestion schema: %w", err)
	}

	var tasks []signal.ProposedTask
	if err := json.Unmarshal([]byte(cleaned), &tasks); err != nil {
		return nil, fmt.Errorf("decode suggestions: %w", err)
	}
	return tasks, nil
}

func cleanModelJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
