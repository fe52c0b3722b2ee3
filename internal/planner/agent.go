package planner

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

// Driver is the browser surface the planner steps through. It is
// deliberately narrow: the planner may observe pages and perform basic
// interactions, nothing else.
type Driver interface {
	CurrentURL(ctx context.Context) (string, error)
	PageText(ctx context.Context) (string, error)
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
}

// StepRecord documents one executed step for the task report
type StepRecord struct {
	Step   int    `json:"step"`
	Action string `json:"action"`
	Detail string `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
}

// TaskReport is the outcome of a planned task
type TaskReport struct {
	Goal      string       `json:"goal"`
	Completed bool         `json:"completed"`
	Summary   string       `json:"summary,omitempty"`
	Extracted []string     `json:"extracted,omitempty"`
	Steps     []StepRecord `json:"steps"`
}

// Planner runs goal-directed browser tasks one model-proposed step at a
// time.
type Planner struct {
	provider Provider
	model    string
	maxSteps int
}

// New creates a planner bound to a provider and step budget
func New(provider Provider, model string, maxSteps int) *Planner {
	if maxSteps < 1 {
		maxSteps = 1
	}
	return &Planner{
		provider: provider,
		model:    model,
		maxSteps: maxSteps,
	}
}

const systemPrompt = `Você controla um navegador logado no SIGAA (sistema acadêmico universitário).
A cada passo você recebe a URL atual e o texto visível da página, e responde com UMA ação em JSON:

{"action": "navigate", "url": "<url absoluta>"}
{"action": "click", "selector": "<seletor css>"}
{"action": "fill", "selector": "<seletor css>", "value": "<texto>"}
{"action": "extract"}
{"action": "done", "summary": "<o que foi feito e encontrado>"}

Use "extract" para capturar o texto da página atual no relatório.
Use "done" assim que o objetivo estiver cumprido. Responda somente com o JSON.`

// pageTextLimit bounds how much page text goes into each prompt
const pageTextLimit = 4000

// Run executes the goal against the driver. It always returns a report,
// even on failure, so callers can see how far the task got. A positive
// maxSteps overrides the planner's configured budget for this run.
func (p *Planner) Run(ctx context.Context, driver Driver, goal string, maxSteps int) (*TaskReport, error) {
	budget := p.maxSteps
	if maxSteps > 0 {
		budget = maxSteps
	}
	report := &TaskReport{Goal: goal}

	var lastError string
	for step := 1; step <= budget; step++ {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}

		observation, err := p.observe(ctx, driver)
		if err != nil {
			return report, err
		}

		reply, err := p.provider.Complete(ctx, CompletionRequest{
			Model:     p.model,
			System:    systemPrompt,
			Prompt:    buildPrompt(goal, observation, step, budget, lastError),
			MaxTokens: 1024,
		})
		if err != nil {
			return report, fmt.Errorf("model call failed: %w", err)
		}

		action, err := ParseAction(reply)
		if err != nil {
			// Give the model one look at its own parse failure
			lastError = err.Error()
			report.Steps = append(report.Steps, StepRecord{
				Step: step, Action: "invalid", Error: err.Error(),
			})
			log.Warn().Int("step", step).Err(err).Msg("Planner produced invalid action")
			continue
		}

		record := StepRecord{Step: step, Action: action.Action}
		lastError = ""

		switch action.Action {
		case ActionDone:
			record.Detail = action.Summary
			report.Steps = append(report.Steps, record)
			report.Completed = true
			report.Summary = action.Summary
			log.Info().Int("steps", step).Msg("Planned task completed")
			return report, nil

		case ActionNavigate:
			record.Detail = action.URL
			if err := driver.Navigate(ctx, action.URL); err != nil {
				record.Error = err.Error()
				lastError = err.Error()
			}

		case ActionClick:
			record.Detail = action.Selector
			if err := driver.Click(ctx, action.Selector); err != nil {
				record.Error = err.Error()
				lastError = err.Error()
			}

		case ActionFill:
			record.Detail = action.Selector
			if err := driver.Fill(ctx, action.Selector, action.Value); err != nil {
				record.Error = err.Error()
				lastError = err.Error()
			}

		case ActionExtract:
			text, err := driver.PageText(ctx)
			if err != nil {
				record.Error = err.Error()
				lastError = err.Error()
			} else {
				report.Extracted = append(report.Extracted, truncate(text, pageTextLimit))
				record.Detail = fmt.Sprintf("%d chars", len(text))
			}
		}

		report.Steps = append(report.Steps, record)
	}

	return report, fmt.Errorf("task not completed within %d steps", budget)
}

func (p *Planner) observe(ctx context.Context, driver Driver) (string, error) {
	url, err := driver.CurrentURL(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to observe page: %w", err)
	}
	text, err := driver.PageText(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to observe page: %w", err)
	}
	return fmt.Sprintf("URL atual: %s\n\nTexto da página:\n%s", url, truncate(text, pageTextLimit)), nil
}

func buildPrompt(goal, observation string, step, maxSteps int, lastError string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Objetivo: %s\n\nPasso %d de %d.\n\n%s\n", goal, step, maxSteps, observation)
	if lastError != "" {
		fmt.Fprintf(&b, "\nA ação anterior falhou: %s\n", lastError)
	}
	b.WriteString("\nPróxima ação (JSON):")
	return b.String()
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	// Back up to a rune boundary so accented text does not get split
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit] + "\n[... truncado ...]"
}
