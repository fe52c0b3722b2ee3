package portal

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	gradeCleanRe = regexp.MustCompile(`[^\d,.]`)
	semesterRe   = regexp.MustCompile(`(\d{4})\.(\d)`)

	enrollmentRe = regexp.MustCompile(`(?i)Matrícula[:\s]*(\d+)`)
	courseRe     = regexp.MustCompile(`(?i)Curso[:\s]*([A-ZÁÀÃÂÄÇÉÈÊËÍÌÎÏÓÒÔÕÖÚÙÛÜÑ][a-záàãâäçéèêëíìîïóòôõöúùûüñ\s\-]+)`)
	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`Nome[:\s]*([A-ZÁÀÃÂÄÇÉÈÊËÍÌÎÏÓÒÔÕÖÚÙÛÜÑ][a-záàãâäçéèêëíìîïóòôõöúùûüñ\s]+)`),
		regexp.MustCompile(`Aluno[:\s]*([A-ZÁÀÃÂÄÇÉÈÊËÍÌÎÏÓÒÔÕÖÚÙÛÜÑ][a-záàãâäçéèêëíìîïóòôõöúùûüñ\s]+)`),
	}
)

// ParseGrade converts a grade cell ("8,5", "7.0", "  9,25 ") to a float.
// Returns false when the text holds no parseable number.
func ParseGrade(text string) (float64, bool) {
	clean := gradeCleanRe.ReplaceAllString(text, "")
	clean = strings.ReplaceAll(clean, ",", ".")
	if clean == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Semester is a parsed academic period like 2024.1.
type Semester struct {
	Year   int    `json:"year,omitempty"`
	Period int    `json:"period,omitempty"`
	Full   string `json:"full"`
}

// ParseSemester parses "2024.1"-style period strings. Unrecognized input
// is preserved verbatim in Full.
func ParseSemester(text string) Semester {
	m := semesterRe.FindStringSubmatch(text)
	if m == nil {
		return Semester{Full: text}
	}
	year, _ := strconv.Atoi(m[1])
	period, _ := strconv.Atoi(m[2])
	return Semester{
		Year:   year,
		Period: period,
		Full:   fmt.Sprintf("%d.%d", year, period),
	}
}

// CalculateGPA computes the credit-weighted grade average over subjects with
// a parseable grade and positive credits. Returns false when no subject
// qualifies.
func CalculateGPA(subjects []Subject) (float64, bool) {
	var points float64
	var credits int

	for _, s := range subjects {
		grade, ok := ParseGrade(s.Grade)
		if !ok || s.Credits <= 0 {
			continue
		}
		points += grade * float64(s.Credits)
		credits += s.Credits
	}

	if credits == 0 {
		return 0, false
	}
	// Two decimal places, same rounding as the portal shows
	return float64(int(points/float64(credits)*100+0.5)) / 100, true
}

var weekdayOrder = []string{"Segunda", "Terça", "Quarta", "Quinta", "Sexta", "Sábado"}

// FormatSchedule renders the class schedule grouped by weekday.
func FormatSchedule(entries []ScheduleEntry) string {
	if len(entries) == 0 {
		return "Nenhum horário encontrado"
	}

	var b strings.Builder
	b.WriteString("HORÁRIO DE AULAS\n\n")

	for _, day := range weekdayOrder {
		var dayClasses []ScheduleEntry
		for _, e := range entries {
			if strings.Contains(strings.ToLower(e.Weekday), strings.ToLower(day)) {
				dayClasses = append(dayClasses, e)
			}
		}
		if len(dayClasses) == 0 {
			continue
		}

		fmt.Fprintf(&b, "%s:\n", day)
		for _, c := range dayClasses {
			fmt.Fprintf(&b, "  - %s - %s - Sala: %s\n",
				valueOr(c.Discipline, "N/A"), valueOr(c.Time, "N/A"), valueOr(c.Room, "N/A"))
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

var (
	scheduleTimeRe = regexp.MustCompile(`\d{1,2}[:h]\d{2}\s*[-–às]+\s*\d{1,2}[:h]\d{2}`)
	rowSplitRe     = regexp.MustCompile(`\t+|\s{2,}`)
)

// ParseSchedule scans schedule-page text for table rows laid out as
// discipline / weekday / time / room. Rows that don't carry a weekday and
// a time range are skipped; an empty result means the page needs to be
// read raw.
func ParseSchedule(text string) []ScheduleEntry {
	var entries []ScheduleEntry

	for _, line := range strings.Split(text, "\n") {
		fields := splitRow(line)
		if len(fields) < 3 {
			continue
		}

		entry := ScheduleEntry{}
		for _, f := range fields {
			switch {
			case entry.Weekday == "" && isWeekday(f):
				entry.Weekday = f
			case entry.Time == "" && scheduleTimeRe.MatchString(f):
				entry.Time = scheduleTimeRe.FindString(f)
			case entry.Discipline == "":
				entry.Discipline = f
			case entry.Room == "":
				entry.Room = f
			}
		}

		if entry.Weekday != "" && entry.Time != "" && entry.Discipline != "" {
			entries = append(entries, entry)
		}
	}
	return entries
}

// splitRow breaks a text line on tabs or runs of 2+ spaces, the way table
// cells come out of innerText.
func splitRow(line string) []string {
	var fields []string
	for _, f := range rowSplitRe.Split(line, -1) {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

func isWeekday(s string) bool {
	lower := strings.ToLower(s)
	for _, day := range weekdayOrder {
		if strings.Contains(lower, strings.ToLower(day)) {
			return true
		}
	}
	return false
}

var (
	statusRe     = regexp.MustCompile(`(?i)^(aprovado|aprovada|reprovado|reprovada|matriculado|matriculada|trancado|trancada|cancelado|cancelada)$`)
	subjectRowRe = regexp.MustCompile(`^[A-Z]{2,}\d{3,}`)
	numericRe    = regexp.MustCompile(`^[\d.,]+$`)
)

// ParseGrades scans grades-page text for rows carrying a discipline name
// plus a status or a numeric grade. An empty result means the page needs
// to be read raw.
func ParseGrades(text string) []Grade {
	var grades []Grade

	for _, line := range strings.Split(text, "\n") {
		fields := splitRow(line)
		if len(fields) < 2 {
			continue
		}

		grade := Grade{}
		for _, f := range fields {
			switch {
			case grade.Status == "" && statusRe.MatchString(f):
				grade.Status = f
			case grade.Semester == "" && semesterRe.MatchString(f):
				grade.Semester = ParseSemester(f).Full
			case grade.FinalGrade == "" && numericRe.MatchString(f):
				if _, ok := ParseGrade(f); ok {
					grade.FinalGrade = f
				}
			case grade.Discipline == "":
				grade.Discipline = f
			}
		}

		if grade.Discipline != "" && (grade.Status != "" || grade.FinalGrade != "") {
			grades = append(grades, grade)
		}
	}
	return grades
}

// ParseTranscript scans transcript-page text for rows starting with a
// course code ("CBCC0123 Estruturas de Dados 4 8,5 APROVADO 2023.2").
func ParseTranscript(text string) []Subject {
	var subjects []Subject

	for _, line := range strings.Split(text, "\n") {
		fields := splitRow(line)
		if len(fields) < 3 || !subjectRowRe.MatchString(fields[0]) {
			continue
		}

		subject := Subject{Code: fields[0]}
		for _, f := range fields[1:] {
			switch {
			case subject.Status == "" && statusRe.MatchString(f):
				subject.Status = f
			case subject.Semester == "" && semesterRe.MatchString(f):
				subject.Semester = ParseSemester(f).Full
			case numericRe.MatchString(f):
				// A bare small integer is the credit count, anything
				// else numeric is the grade
				if n, err := strconv.Atoi(f); err == nil && subject.Credits == 0 && n < 30 {
					subject.Credits = n
				} else if subject.Grade == "" {
					if _, ok := ParseGrade(f); ok {
						subject.Grade = f
					}
				}
			case subject.Name == "":
				subject.Name = f
			}
		}

		if subject.Name != "" {
			subjects = append(subjects, subject)
		}
	}
	return subjects
}

// FormatTranscript renders the academic transcript grouped by semester with
// a credit summary.
func FormatTranscript(subjects []Subject) string {
	if len(subjects) == 0 {
		return "Nenhum dado de histórico encontrado"
	}

	periods := make(map[string][]Subject)
	for _, s := range subjects {
		period := valueOr(s.Semester, "Não informado")
		periods[period] = append(periods[period], s)
	}

	keys := make([]string, 0, len(periods))
	for k := range periods {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("HISTÓRICO ACADÊMICO\n\n")

	var totalCredits, completedCredits int
	for _, period := range keys {
		fmt.Fprintf(&b, "%s:\n", period)
		for _, s := range periods[period] {
			fmt.Fprintf(&b, "  - %s - %s\n", s.Code, valueOr(s.Name, "N/A"))
			fmt.Fprintf(&b, "    Créditos: %d | Nota: %s | Situação: %s\n",
				s.Credits, valueOr(s.Grade, "N/A"), valueOr(s.Status, "N/A"))

			totalCredits += s.Credits
			switch strings.ToLower(s.Status) {
			case "aprovado", "aprovada":
				completedCredits += s.Credits
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("RESUMO:\n")
	fmt.Fprintf(&b, "- Total de créditos: %d\n", totalCredits)
	fmt.Fprintf(&b, "- Créditos concluídos: %d\n", completedCredits)
	if totalCredits > 0 {
		progress := float64(completedCredits) / float64(totalCredits) * 100
		fmt.Fprintf(&b, "- Progresso: %.1f%%\n", progress)
	}

	return b.String()
}

// ExtractStudentInfo pulls the student's name, enrollment number and course
// out of raw page text.
func ExtractStudentInfo(pageText string) StudentInfo {
	var info StudentInfo

	if m := enrollmentRe.FindStringSubmatch(pageText); m != nil {
		info.Enrollment = m[1]
	}

	for _, re := range namePatterns {
		if m := re.FindStringSubmatch(pageText); m != nil {
			info.Name = strings.TrimSpace(m[1])
			break
		}
	}

	if m := courseRe.FindStringSubmatch(pageText); m != nil {
		info.Course = strings.TrimSpace(m[1])
	}

	return info
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
