package portal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseGrade(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"8,5", 8.5, true},
		{"7.0", 7.0, true},
		{"  9,25 ", 9.25, true},
		{"10", 10, true},
		{"APR", 0, false},
		{"", 0, false},
		{"--", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseGrade(tt.in)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.InDelta(t, tt.want, got, 0.001)
			}
		})
	}
}

func TestParseSemester(t *testing.T) {
	s := ParseSemester("Período 2024.1 letivo")
	assert.Equal(t, 2024, s.Year)
	assert.Equal(t, 1, s.Period)
	assert.Equal(t, "2024.1", s.Full)

	s = ParseSemester("sem período")
	assert.Zero(t, s.Year)
	assert.Equal(t, "sem período", s.Full)
}

func TestCalculateGPA(t *testing.T) {
	subjects := []Subject{
		{Name: "Cálculo I", Grade: "8,0", Credits: 4},
		{Name: "Programação", Grade: "6,0", Credits: 2},
		{Name: "Trancada", Grade: "", Credits: 4},
	}

	gpa, ok := CalculateGPA(subjects)
	assert.True(t, ok)
	// (8*4 + 6*2) / 6 = 44/6 = 7.33
	assert.InDelta(t, 7.33, gpa, 0.01)

	_, ok = CalculateGPA(nil)
	assert.False(t, ok)
}

func TestParseSchedule(t *testing.T) {
	text := `Meu Horário de Aulas

Cálculo I	Segunda-feira	08:00 - 10:00	Sala B-201
Física I	Quarta-feira	10:00 - 12:00	Sala C-105
linha sem horário nem dia
Rodapé`

	entries := ParseSchedule(text)
	assert.Len(t, entries, 2)
	assert.Equal(t, "Cálculo I", entries[0].Discipline)
	assert.Equal(t, "Segunda-feira", entries[0].Weekday)
	assert.Equal(t, "08:00 - 10:00", entries[0].Time)
	assert.Equal(t, "Sala B-201", entries[0].Room)
}

func TestParseSchedule_NoTable(t *testing.T) {
	assert.Empty(t, ParseSchedule("página sem tabela de horários"))
}

func TestFormatSchedule(t *testing.T) {
	entries := []ScheduleEntry{
		{Discipline: "Cálculo I", Weekday: "Segunda-feira", Time: "08:00-10:00", Room: "B-201"},
		{Discipline: "Física I", Weekday: "Quarta-feira", Time: "10:00-12:00", Room: "C-105"},
	}

	out := FormatSchedule(entries)
	assert.Contains(t, out, "Segunda:")
	assert.Contains(t, out, "Cálculo I")
	assert.Contains(t, out, "Quarta:")
	assert.Contains(t, out, "B-201")

	assert.Equal(t, "Nenhum horário encontrado", FormatSchedule(nil))
}

func TestParseGrades(t *testing.T) {
	text := `Consultar Notas Finais

Cálculo I	8,5	APROVADO	2023.2
Física I	3,0	REPROVADO	2023.2
Programação	MATRICULADO	2024.1
linha solta`

	grades := ParseGrades(text)
	assert.Len(t, grades, 3)

	assert.Equal(t, "Cálculo I", grades[0].Discipline)
	assert.Equal(t, "8,5", grades[0].FinalGrade)
	assert.Equal(t, "APROVADO", grades[0].Status)
	assert.Equal(t, "2023.2", grades[0].Semester)

	assert.Equal(t, "Programação", grades[2].Discipline)
	assert.Empty(t, grades[2].FinalGrade)
	assert.Equal(t, "MATRICULADO", grades[2].Status)
}

func TestParseGrades_NoTable(t *testing.T) {
	assert.Empty(t, ParseGrades("Portal do Discente\nBem-vindo"))
}

func TestParseTranscript(t *testing.T) {
	text := `Histórico Acadêmico

CBCC0123	Estruturas de Dados	4	8,5	APROVADO	2023.2
CBCC0200	Cálculo II	6	4,0	REPROVADO	2023.2
texto que não é linha de disciplina`

	subjects := ParseTranscript(text)
	assert.Len(t, subjects, 2)

	assert.Equal(t, "CBCC0123", subjects[0].Code)
	assert.Equal(t, "Estruturas de Dados", subjects[0].Name)
	assert.Equal(t, 4, subjects[0].Credits)
	assert.Equal(t, "8,5", subjects[0].Grade)
	assert.Equal(t, "APROVADO", subjects[0].Status)
	assert.Equal(t, "2023.2", subjects[0].Semester)
}

func TestParseTranscript_NoTable(t *testing.T) {
	assert.Empty(t, ParseTranscript("página sem histórico"))
}

func TestFormatTranscript(t *testing.T) {
	subjects := []Subject{
		{Code: "EN01", Name: "Cálculo I", Credits: 4, Grade: "8,0", Status: "Aprovado", Semester: "2023.1"},
		{Code: "EN02", Name: "Física I", Credits: 4, Grade: "4,0", Status: "Reprovado", Semester: "2023.2"},
	}

	out := FormatTranscript(subjects)
	assert.Contains(t, out, "2023.1:")
	assert.Contains(t, out, "2023.2:")
	assert.Contains(t, out, "Total de créditos: 8")
	assert.Contains(t, out, "Créditos concluídos: 4")
	assert.Contains(t, out, "Progresso: 50.0%")

	assert.Equal(t, "Nenhum dado de histórico encontrado", FormatTranscript(nil))
}

func TestExtractStudentInfo(t *testing.T) {
	page := `Portal do Discente
Nome: Maria Da Silva
Matrícula: 202301234
Curso: Engenharia Da Computação`

	info := ExtractStudentInfo(page)
	assert.Equal(t, "202301234", info.Enrollment)
	assert.Contains(t, info.Name, "Maria")
	assert.Contains(t, info.Course, "Engenharia")
}

func TestExtractStudentInfo_Empty(t *testing.T) {
	info := ExtractStudentInfo("página sem dados")
	assert.Empty(t, info.Enrollment)
	assert.Empty(t, info.Name)
}
