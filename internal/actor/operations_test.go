package actor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ufpa-tools/sigaa-mcp/internal/artifacts"
	"github.com/ufpa-tools/sigaa-mcp/internal/planner"
)

type fixedPlanner struct {
	report   *planner.TaskReport
	err      error
	maxSteps int
}

func (p *fixedPlanner) Run(_ context.Context, _ planner.Driver, _ string, maxSteps int) (*planner.TaskReport, error) {
	p.maxSteps = maxSteps
	return p.report, p.err
}

// pdfBytes builds a one-page PDF that passes document validation.
func pdfBytes() []byte {
	var b bytes.Buffer
	offsets := make([]int, 4)
	b.WriteString("%PDF-1.4\n")
	objects := []string{
		"1 0 obj\n<</Type/Catalog/Pages 2 0 R>>\nendobj\n",
		"2 0 obj\n<</Type/Pages/Kids[3 0 R]/Count 1>>\nendobj\n",
		"3 0 obj\n<</Type/Page/Parent 2 0 R/MediaBox[0 0 612 792]>>\nendobj\n",
	}
	for i, obj := range objects {
		offsets[i+1] = b.Len()
		b.WriteString(obj)
	}
	xref := b.Len()
	b.WriteString("xref\n0 4\n0000000000 65535 f \n")
	for _, off := range offsets[1:] {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<</Size 4/Root 1 0 R>>\nstartxref\n%d\n%%%%EOF\n", xref)
	return b.Bytes()
}

func newOpsActor(t *testing.T, engine *fakeEngine, taskPlanner TaskPlanner) (*Actor, string) {
	t.Helper()

	downloadDir := t.TempDir()
	store, err := artifacts.NewStore(filepath.Join(t.TempDir(), "artifacts"))
	require.NoError(t, err)

	a := New(testConfig(), engine, taskPlanner, store, downloadDir, 3*time.Second)
	_, err = a.Login(context.Background(), LoginRequest{})
	require.NoError(t, err)
	return a, downloadDir
}

func TestDownloadDocument(t *testing.T) {
	engine := newFakeEngine()
	a, downloadDir := newOpsActor(t, engine, nil)

	// Simulate the browser finishing the download after the click
	go func() {
		time.Sleep(200 * time.Millisecond)
		_ = os.WriteFile(filepath.Join(downloadDir, "historico.pdf"), pdfBytes(), 0644)
	}()

	art, err := a.DownloadDocument(context.Background(), "historico_academico", "pdf", "")
	require.NoError(t, err)

	assert.Equal(t, "historico_academico", art.Label)
	assert.FileExists(t, art.LocalPath)
	assert.Contains(t, engine.byText, "histórico acadêmico")
}

func TestDownloadDocument_SemesterTagsLabel(t *testing.T) {
	engine := newFakeEngine()
	a, downloadDir := newOpsActor(t, engine, nil)

	go func() {
		time.Sleep(200 * time.Millisecond)
		_ = os.WriteFile(filepath.Join(downloadDir, "declaracao.pdf"), pdfBytes(), 0644)
	}()

	art, err := a.DownloadDocument(context.Background(), "atestado_matricula", "", "2024.1")
	require.NoError(t, err)
	assert.Equal(t, "atestado_matricula-2024.1", art.Label)
}

func TestDownloadDocument_UnsupportedFormat(t *testing.T) {
	engine := newFakeEngine()
	a, _ := newOpsActor(t, engine, nil)

	_, err := a.DownloadDocument(context.Background(), "historico_academico", "docx", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestDownloadDocument_InvalidType(t *testing.T) {
	engine := newFakeEngine()
	a, _ := newOpsActor(t, engine, nil)

	_, err := a.DownloadDocument(context.Background(), "boleto", "pdf", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown document type")
	assert.Empty(t, engine.byText, "invalid types must not touch the portal")
}

func TestDownloadDocument_RejectsBrokenPDF(t *testing.T) {
	engine := newFakeEngine()
	a, downloadDir := newOpsActor(t, engine, nil)

	// The portal serves an error page under the document's name
	go func() {
		time.Sleep(200 * time.Millisecond)
		_ = os.WriteFile(filepath.Join(downloadDir, "historico.pdf"), []byte("<html>erro</html>"), 0644)
	}()

	_, err := a.DownloadDocument(context.Background(), "historico_academico", "pdf", "")
	require.ErrorIs(t, err, artifacts.ErrInvalidArtifact)
}

func TestDownloadDocument_TimeoutSweepsPartial(t *testing.T) {
	engine := newFakeEngine()
	downloadDir := t.TempDir()
	store, err := artifacts.NewStore(filepath.Join(t.TempDir(), "artifacts"))
	require.NoError(t, err)

	a := New(testConfig(), engine, nil, store, downloadDir, 800*time.Millisecond)
	_, err = a.Login(context.Background(), LoginRequest{})
	require.NoError(t, err)

	partial := filepath.Join(downloadDir, "historico.pdf.crdownload")
	go func() {
		time.Sleep(150 * time.Millisecond)
		_ = os.WriteFile(partial, []byte("meio"), 0644)
	}()

	_, err = a.DownloadDocument(context.Background(), "historico_academico", "pdf", "")
	require.Error(t, err)
	assert.NoFileExists(t, partial, "failed downloads must not leave partial files behind")
}

func TestNavigateAndExtract_ParsesGrades(t *testing.T) {
	engine := newFakeEngine()
	engine.sectionText = portalText + "\nCálculo I\t8,5\tAPROVADO\t2023.2"
	a, _ := newOpsActor(t, engine, nil)

	result, err := a.NavigateAndExtract(context.Background(), "notas", ExtractOptions{ExtractData: true})
	require.NoError(t, err)

	require.Len(t, result.Grades, 1)
	assert.Equal(t, "Cálculo I", result.Grades[0].Discipline)
	assert.Equal(t, "8,5", result.Grades[0].FinalGrade)
}

func TestNavigateAndExtract_FormatsTranscript(t *testing.T) {
	engine := newFakeEngine()
	engine.sectionText = portalText + "\nCBCC0123\tEstruturas de Dados\t4\t8,5\tAPROVADO\t2023.2"
	a, _ := newOpsActor(t, engine, nil)

	result, err := a.NavigateAndExtract(context.Background(), "historico", ExtractOptions{ExtractData: true})
	require.NoError(t, err)

	assert.Contains(t, result.Transcript, "Estruturas de Dados")
	assert.InDelta(t, 8.5, result.GPA, 0.01)
	assert.Contains(t, engine.byText, "Histórico Acadêmico")
}

func TestNavigateAndExtract_ScreenshotOnly(t *testing.T) {
	engine := newFakeEngine()
	a, _ := newOpsActor(t, engine, nil)

	result, err := a.NavigateAndExtract(context.Background(), "notas", ExtractOptions{TakeScreenshot: true})
	require.NoError(t, err)

	assert.Empty(t, result.Content)
	require.NotNil(t, result.Screenshot)
	assert.FileExists(t, result.Screenshot.LocalPath)
	assert.Equal(t, "notas", result.Screenshot.Label)
}

func TestNotifications_FindsMarkedSections(t *testing.T) {
	engine := newFakeEngine()
	engine.homeText = portalText + "\nAvisos\nProva de Cálculo I adiada para sexta\n\nRodapé"
	a, _ := newOpsActor(t, engine, nil)

	result, err := a.Notifications(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, result.Notifications)
	assert.Contains(t, result.Notifications[0], "Prova de Cálculo I")
	assert.Empty(t, result.Raw)
}

func TestNotifications_FallsBackToRawText(t *testing.T) {
	engine := newFakeEngine()
	a, _ := newOpsActor(t, engine, nil)

	result, err := a.Notifications(context.Background())
	require.NoError(t, err)

	assert.Empty(t, result.Notifications)
	assert.Contains(t, result.Raw, "Portal do Discente")
}

func TestClassSchedule_ParsesTable(t *testing.T) {
	engine := newFakeEngine()
	engine.sectionText = portalText + "\nCálculo I\tSegunda-feira\t08:00 - 10:00\tSala B-201"
	a, _ := newOpsActor(t, engine, nil)

	result, err := a.ClassSchedule(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Entries, 1)
	assert.Equal(t, "Cálculo I", result.Entries[0].Discipline)
	assert.Contains(t, result.Formatted, "Segunda:")
	assert.Contains(t, engine.byText, "Meu Horário de Aulas")
}

func TestClassSchedule_RawFallback(t *testing.T) {
	engine := newFakeEngine()
	a, _ := newOpsActor(t, engine, nil)

	result, err := a.ClassSchedule(context.Background())
	require.NoError(t, err)

	assert.Empty(t, result.Entries)
	assert.NotEmpty(t, result.Raw)
}

func TestCustomTask(t *testing.T) {
	engine := newFakeEngine()
	report := &planner.TaskReport{
		Goal:      "consultar notas",
		Completed: true,
		Summary:   "Notas encontradas",
		Steps:     []planner.StepRecord{{Step: 1, Action: "done"}},
	}
	a, _ := newOpsActor(t, engine, &fixedPlanner{report: report})

	outcome, err := a.CustomTask(context.Background(), "consultar notas", 0, true)
	require.NoError(t, err)

	assert.True(t, outcome.Report.Completed)
	assert.NotEmpty(t, outcome.Report.Steps)
	assert.Empty(t, outcome.Error)
}

func TestCustomTask_SummaryOnly(t *testing.T) {
	engine := newFakeEngine()
	report := &planner.TaskReport{
		Goal:      "consultar notas",
		Completed: true,
		Summary:   "Notas encontradas",
		Extracted: []string{"Cálculo I: 8.5"},
		Steps:     []planner.StepRecord{{Step: 1, Action: "done"}},
	}
	p := &fixedPlanner{report: report}
	a, _ := newOpsActor(t, engine, p)

	outcome, err := a.CustomTask(context.Background(), "consultar notas", 5, false)
	require.NoError(t, err)

	assert.Equal(t, 5, p.maxSteps)
	assert.True(t, outcome.Report.Completed)
	assert.Equal(t, "Notas encontradas", outcome.Report.Summary)
	assert.Empty(t, outcome.Report.Steps)
	assert.Empty(t, outcome.Report.Extracted)
}

func TestCustomTask_PartialProgress(t *testing.T) {
	engine := newFakeEngine()
	report := &planner.TaskReport{
		Goal:  "tarefa longa",
		Steps: []planner.StepRecord{{Step: 1, Action: "navigate"}},
	}
	a, _ := newOpsActor(t, engine, &fixedPlanner{
		report: report,
		err:    fmt.Errorf("task not completed within 2 steps"),
	})

	outcome, err := a.CustomTask(context.Background(), "tarefa longa", 0, true)
	require.NoError(t, err)

	assert.False(t, outcome.Report.Completed)
	assert.Contains(t, outcome.Error, "not completed")
}

func TestCustomTask_NoPlanner(t *testing.T) {
	engine := newFakeEngine()
	a, _ := newOpsActor(t, engine, nil)

	_, err := a.CustomTask(context.Background(), "qualquer coisa", 0, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no task planner")
}

func TestClip_PreservesRuneBoundaries(t *testing.T) {
	// "ç" is two bytes; an odd-length prefix forces the cut into the
	// middle of a rune
	s := "a" + strings.Repeat("ç", pageContentLimit)
	clipped := clip(s)

	assert.True(t, utf8.ValidString(clipped))
	assert.Contains(t, clipped, "[conteúdo truncado]")
	assert.LessOrEqual(t, len(clipped), pageContentLimit+len("\n[conteúdo truncado]"))
}

func TestSliceSection_PreservesRuneBoundaries(t *testing.T) {
	text := "Avisos\n" + strings.Repeat("ã", 2500) + "\n\nRodapé"
	section := sliceSection(text, "Avisos")

	assert.True(t, utf8.ValidString(section))
	assert.LessOrEqual(t, len(section), 2000)
}

func TestScreenshot(t *testing.T) {
	engine := newFakeEngine()
	a, _ := newOpsActor(t, engine, nil)

	art, err := a.Screenshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "captura", art.Label)
	assert.FileExists(t, art.LocalPath)
}
