package actor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ufpa-tools/sigaa-mcp/internal/artifacts"
	"github.com/ufpa-tools/sigaa-mcp/internal/planner"
	"github.com/ufpa-tools/sigaa-mcp/internal/portal"
)

// pageContentLimit bounds extracted page text in tool responses
const pageContentLimit = 8000

// ExtractOptions tune a navigate-and-extract operation
type ExtractOptions struct {
	// Selector limits extraction to one element's text
	Selector string
	// ExtractData controls whether page content is returned at all
	ExtractData bool
	// TakeScreenshot also captures the section page as a PNG artifact
	TakeScreenshot bool
}

// ExtractResult is the payload of a navigate-and-extract operation. The
// grades and transcript fields are filled for the sections whose tables
// we know how to read; Content always carries the raw text.
type ExtractResult struct {
	Section    string              `json:"section"`
	CurrentURL string              `json:"current_url"`
	Content    string              `json:"content,omitempty"`
	Grades     []portal.Grade      `json:"grades,omitempty"`
	Transcript string              `json:"transcript,omitempty"`
	GPA        float64             `json:"gpa,omitempty"`
	Student    *portal.StudentInfo `json:"student,omitempty"`
	Screenshot *artifacts.Artifact `json:"screenshot,omitempty"`
}

// NavigateAndExtract opens a portal section and returns its content per
// the options.
func (a *Actor) NavigateAndExtract(ctx context.Context, section string, opts ExtractOptions) (*ExtractResult, error) {
	if err := a.gotoSection(ctx, section); err != nil {
		return nil, err
	}

	var content string
	if opts.ExtractData {
		var err error
		if opts.Selector != "" {
			content, err = a.engine.ExtractBySelector(ctx, opts.Selector)
		} else {
			content, err = a.engine.PageText(ctx)
		}
		if err != nil {
			return nil, err
		}
	}

	if err := a.checkSession(ctx); err != nil {
		return nil, err
	}

	result := &ExtractResult{
		Section: section,
		Content: clip(content),
	}
	result.CurrentURL, _ = a.engine.CurrentURL(ctx)

	switch section {
	case "notas":
		result.Grades = portal.ParseGrades(content)
	case "historico":
		if subjects := portal.ParseTranscript(content); len(subjects) > 0 {
			result.Transcript = portal.FormatTranscript(subjects)
			if gpa, ok := portal.CalculateGPA(subjects); ok {
				result.GPA = gpa
			}
		}
	case "matricula":
		if info := portal.ExtractStudentInfo(content); info != (portal.StudentInfo{}) {
			result.Student = &info
		}
	}

	if opts.TakeScreenshot {
		art, err := a.captureScreenshot(ctx, section)
		if err != nil {
			return nil, err
		}
		result.Screenshot = art
	}
	return result, nil
}

// gotoSection returns to the portal home and follows the section's menu
// entry by its visible label.
func (a *Actor) gotoSection(ctx context.Context, section string) error {
	if err := a.engine.Navigate(ctx, a.cfg.BaseURL); err != nil {
		return err
	}
	if err := a.checkSession(ctx); err != nil {
		return err
	}

	term := portal.SectionTerm(section)
	if err := a.engine.ClickByText(ctx, term); err != nil {
		return fmt.Errorf("section %q: %w", section, err)
	}
	return nil
}

// DownloadDocument requests an official document and claims the resulting
// file from the download directory. An optional semester narrows the
// document and tags the stored artifact.
func (a *Actor) DownloadDocument(ctx context.Context, docType, format, semester string) (*artifacts.Artifact, error) {
	if !portal.ValidDocumentType(docType) {
		return nil, fmt.Errorf("unknown document type %q, expected one of: %s",
			docType, strings.Join(portal.DocumentTypes(), ", "))
	}
	if format != "" && format != "pdf" {
		return nil, fmt.Errorf("unsupported format %q, only pdf is available", format)
	}

	before := artifacts.Snapshot(a.downloadDir)

	if err := a.gotoSection(ctx, "comprovantes"); err != nil {
		return nil, err
	}
	if err := a.engine.ClickByText(ctx, portal.DocumentTerm(docType)); err != nil {
		return nil, fmt.Errorf("document %q: %w", docType, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, a.completeTimeout)
	defer cancel()

	path, err := artifacts.AwaitDownload(waitCtx, a.downloadDir, before)
	if err != nil {
		// Whatever landed after the click is an orphan now
		artifacts.CleanupStale(a.downloadDir, before)

		// The click may have bounced us to the login screen instead of
		// starting a download
		if sessionErr := a.checkSession(ctx); sessionErr != nil {
			return nil, sessionErr
		}
		return nil, fmt.Errorf("document download: %w", err)
	}

	label := docType
	if semester != "" {
		label += "-" + semester
	}
	art, err := a.store.Claim(path, label)
	if err != nil {
		return nil, err
	}
	a.touch()
	return &art, nil
}

// notificationMarkers are the headings the portal home groups notices
// under.
var notificationMarkers = []string{"Notícias", "Avisos", "Atualizações do Fórum", "Comunicados"}

// NotificationsResult is the payload of a get-notifications operation
type NotificationsResult struct {
	Notifications []string `json:"notifications"`
	Raw           string   `json:"raw,omitempty"`
}

// Notifications collects the notice sections from the portal home page
func (a *Actor) Notifications(ctx context.Context) (*NotificationsResult, error) {
	if err := a.engine.Navigate(ctx, a.cfg.BaseURL); err != nil {
		return nil, err
	}
	if err := a.checkSession(ctx); err != nil {
		return nil, err
	}

	text, err := a.engine.PageText(ctx)
	if err != nil {
		return nil, err
	}

	result := &NotificationsResult{}
	for _, marker := range notificationMarkers {
		if section := sliceSection(text, marker); section != "" {
			result.Notifications = append(result.Notifications, section)
		}
	}
	if len(result.Notifications) == 0 {
		result.Raw = clip(text)
	}
	return result, nil
}

// ScheduleResult is the payload of a get-class-schedule operation
type ScheduleResult struct {
	Formatted string                 `json:"formatted,omitempty"`
	Entries   []portal.ScheduleEntry `json:"entries,omitempty"`
	Raw       string                 `json:"raw,omitempty"`
}

// ClassSchedule opens the weekly schedule section and returns it, parsed
// into entries where the table layout allows.
func (a *Actor) ClassSchedule(ctx context.Context) (*ScheduleResult, error) {
	if err := a.gotoSection(ctx, "horario"); err != nil {
		return nil, err
	}

	text, err := a.engine.PageText(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.checkSession(ctx); err != nil {
		return nil, err
	}

	entries := portal.ParseSchedule(text)
	result := &ScheduleResult{Entries: entries}
	if len(entries) > 0 {
		result.Formatted = portal.FormatSchedule(entries)
	} else {
		result.Raw = clip(text)
	}
	return result, nil
}

// TaskOutcome is the payload of a custom-task operation. Error is set
// when the planner gave up but produced partial progress worth returning.
type TaskOutcome struct {
	Report *planner.TaskReport `json:"report"`
	Error  string              `json:"error,omitempty"`
}

// CustomTask hands a free-form goal to the planner, which steps the live
// session toward it. With structured false, only the goal, completion and
// summary are returned; step records and extracted text are dropped.
func (a *Actor) CustomTask(ctx context.Context, goal string, maxSteps int, structured bool) (*TaskOutcome, error) {
	if a.planner == nil {
		return nil, fmt.Errorf("no task planner configured")
	}

	report, err := a.planner.Run(ctx, a.engine, goal, maxSteps)

	// Whatever the planner did, verify it did not lose the session
	if sessionErr := a.checkSession(ctx); sessionErr != nil {
		return nil, sessionErr
	}

	if err != nil {
		if report != nil && len(report.Steps) > 0 {
			// Partial progress is still useful to the caller
			return &TaskOutcome{Report: summarize(report, structured), Error: err.Error()}, nil
		}
		return nil, err
	}
	return &TaskOutcome{Report: summarize(report, structured)}, nil
}

// summarize strips step-by-step detail from a report unless the caller
// asked for structured data.
func summarize(report *planner.TaskReport, structured bool) *planner.TaskReport {
	if structured || report == nil {
		return report
	}
	return &planner.TaskReport{
		Goal:      report.Goal,
		Completed: report.Completed,
		Summary:   report.Summary,
	}
}

// Screenshot captures the current page into the artifact store
func (a *Actor) Screenshot(ctx context.Context) (*artifacts.Artifact, error) {
	return a.captureScreenshot(ctx, "captura")
}

func (a *Actor) captureScreenshot(ctx context.Context, label string) (*artifacts.Artifact, error) {
	tmp := filepath.Join(a.store.Dir(), fmt.Sprintf(".capture-%d.png", time.Now().UnixNano()))
	if err := a.engine.Screenshot(ctx, tmp); err != nil {
		return nil, err
	}
	art, err := a.store.Claim(tmp, label)
	if err != nil {
		return nil, err
	}
	a.touch()
	return &art, nil
}

func clip(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= pageContentLimit {
		return s
	}
	return cutRune(s, pageContentLimit) + "\n[conteúdo truncado]"
}

// cutRune cuts s at limit bytes without splitting a UTF-8 rune, the
// portal's pages are full of accented text.
func cutRune(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

// sliceSection returns the text between a heading and the next blank
// double-newline block.
func sliceSection(text, marker string) string {
	idx := strings.Index(text, marker)
	if idx < 0 {
		return ""
	}
	rest := text[idx:]
	if end := strings.Index(rest, "\n\n"); end > 0 {
		rest = rest[:end]
	}
	rest = strings.TrimSpace(rest)
	if rest == marker {
		return ""
	}
	if len(rest) > 2000 {
		rest = cutRune(rest, 2000)
	}
	return rest
}
