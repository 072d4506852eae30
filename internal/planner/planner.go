package planner

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/pkg/models"
)

const maxParseRetries = 2

// Result is the outcome of a successful Plan call: the validated TodoList
// plus any open_questions the LLM surfaced (spec §4.5 step 6 — these never
// become tasks).
type Result struct {
	TodoList      *models.TodoList
	OpenQuestions []string
}

// Planner produces TodoLists from a mission using the LLM provider port.
type Planner struct {
	Provider LLMProvider
	Model    string
}

// LLMProvider is the narrow subset of agent.LLMProvider the planner needs,
// declared locally so planner tests can supply a fake without importing the
// rest of the agent package's surface.
type LLMProvider interface {
	Complete(ctx context.Context, req *agent.CompletionRequest) (*agent.Completion, error)
}

// New constructs a Planner bound to one provider/model pair.
func New(provider LLMProvider, model string) *Planner {
	return &Planner{Provider: provider, Model: model}
}

// Plan runs the full protocol from spec §4.5: compose prompt, call the LLM,
// parse with retry-and-feedback, normalize, validate, return.
func (p *Planner) Plan(ctx context.Context, mission string, tools []agent.Tool) (*Result, error) {
	schemas := agent.ToolsToSchemas(tools)
	prompt := composePrompt(mission, schemas)

	var (
		doc      *planDocument
		lastErr  error
		feedback string
	)
	for attempt := 0; attempt <= maxParseRetries; attempt++ {
		req := &agent.CompletionRequest{
			Model:          p.Model,
			System:         planningSystemPrompt,
			Messages:       []agent.CompletionMessage{{Role: models.RoleUser, Content: prompt + feedback}},
			ResponseFormat: "json",
			Temperature:    0,
		}
		completion, err := p.Provider.Complete(ctx, req)
		if err != nil {
			return nil, agent.NewAgentError(agent.KindPlanGeneration, "planning completion call failed", err)
		}

		parsed, perr := parsePlanDocument(completion.Content)
		if perr == nil {
			doc = parsed
			break
		}
		lastErr = perr
		feedback = fmt.Sprintf("\n\nYour previous response failed to parse: %v. Respond with JSON matching the schema exactly, no prose.", perr)
	}

	if doc == nil {
		return nil, agent.NewAgentError(agent.KindPlanGeneration, "failed to obtain a parseable plan after retries", lastErr)
	}

	todoList := normalize(mission, doc)
	if err := validateDependencies(todoList.Items); err != nil {
		return nil, agent.NewAgentError(agent.KindPlanValidation, "plan failed dependency validation", err)
	}

	return &Result{TodoList: todoList, OpenQuestions: doc.OpenQuestions}, nil
}

const planningSystemPrompt = "You are a planning assistant. Decompose the mission into a dependency-ordered " +
	"list of concrete tasks. Each task may declare which registered tool it intends to use. Respond with a single " +
	"JSON object matching the required schema; no prose outside the JSON."

func composePrompt(mission string, tools []agent.ToolSchema) string {
	var b strings.Builder
	b.WriteString("Mission:\n")
	b.WriteString(mission)
	b.WriteString("\n\nAvailable tools:\n")
	for _, t := range tools {
		fmt.Fprintf(&b, "- %s: %s\n  parameters: %s\n", t.Name, t.Description, string(t.Parameters))
	}
	return b.String()
}

// normalize implements spec §4.5 step 4: positions re-densified to [0,N),
// statuses forced to Pending, unknown tool names recorded but not rejected.
// Ordering is the LLM's choice; ties for position are broken by first
// occurrence in the LLM output (stable sort on the declared position).
func normalize(mission string, doc *planDocument) *models.TodoList {
	items := make([]planItem, len(doc.Items))
	copy(items, doc.Items)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Position < items[j].Position })

	oldToNew := make(map[int]int, len(items))
	for newPos, item := range items {
		oldToNew[item.Position] = newPos
	}

	now := time.Now()
	out := make([]models.TodoItem, len(items))
	for i, item := range items {
		deps := make([]int, 0, len(item.Dependencies))
		for _, d := range item.Dependencies {
			if newPos, ok := oldToNew[d]; ok {
				deps = append(deps, newPos)
			}
		}
		out[i] = models.TodoItem{
			Position:           i,
			Description:        item.Description,
			AcceptanceCriteria: item.AcceptanceCriteria,
			Dependencies:       deps,
			Status:             models.TodoPending,
			ChosenTool:         item.ChosenTool,
			ToolInput:          item.ToolInput,
		}
	}

	return &models.TodoList{
		ID:            models.NewTodoListID(),
		Mission:       mission,
		Items:         out,
		OpenQuestions: doc.OpenQuestions,
		Notes:         doc.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
