// Package portal holds the SIGAA-specific knowledge: endpoints, login
// selectors, section and document vocabularies, and the record types
// extracted from portal pages.
package portal

import (
	"sort"
	"strings"
)

// Portal endpoints (UFPA instance)
const (
	DefaultBaseURL  = "https://sigaa.ufpa.br"
	DefaultLoginURL = DefaultBaseURL + "/sigaa/verTelaLogin.do"
	MobileURL       = DefaultBaseURL + "/sigaa/mobile/touch/public/principal.jsf"
)

// Login form selectors
const (
	SelectorUsername    = "input[name='user.login']"
	SelectorPassword    = "input[name='user.senha']"
	SelectorLoginSubmit = "input[type='submit'][value='Entrar']"
	SelectorLoginError  = ".msg-erro"
)

// successIndicators mark a page belonging to an authenticated session.
var successIndicators = []string{
	"portal do discente",
	"bem-vindo",
	"logout",
}

// loginPageIndicators mark a page that bounced back to the login screen,
// meaning the remote session was invalidated.
var loginPageIndicators = []string{
	"vertelalogin",
	"entrar no sistema",
	"user.senha",
}

// IsAuthenticatedPage reports whether the page content and URL look like a
// logged-in student portal page.
func IsAuthenticatedPage(pageURL, content string) bool {
	lower := strings.ToLower(content)
	for _, indicator := range successIndicators {
		if strings.Contains(lower, indicator) {
			return strings.Contains(strings.ToLower(pageURL), "discente") ||
				!IsLoginPage(pageURL, content)
		}
	}
	return false
}

// IsLoginPage reports whether the page is the portal login screen.
func IsLoginPage(pageURL, content string) bool {
	lowerURL := strings.ToLower(pageURL)
	lower := strings.ToLower(content)
	for _, indicator := range loginPageIndicators {
		if strings.Contains(lowerURL, indicator) || strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

// sectionTerms maps short section keys to the descriptive menu entry text the
// planner should look for in the student portal.
var sectionTerms = map[string]string{
	"notas":        "Consultar Notas Finais",
	"historico":    "Histórico Acadêmico",
	"matricula":    "Matrícula Online",
	"comprovantes": "Emissão de Comprovantes e Declarações",
	"atestados":    "Atestado de Matrícula",
	"horario":      "Meu Horário de Aulas",
}

// SectionTerm resolves a section key to its descriptive portal menu text.
// Unknown keys pass through unchanged so free-text sections still work.
func SectionTerm(section string) string {
	if term, ok := sectionTerms[strings.ToLower(section)]; ok {
		return term
	}
	return section
}

// documentTerms maps document type keys to their portal search terms.
var documentTerms = map[string]string{
	"historico_academico":   "histórico acadêmico",
	"comprovante_matricula": "comprovante de matrícula",
	"atestado_matricula":    "atestado de matrícula",
	"diploma":               "diploma",
	"certificado":           "certificado",
	"ira":                   "índice de rendimento (IRA)",
	"comprovante_conclusao": "comprovante de conclusão",
}

// DocumentTerm resolves a document type key to its portal search term.
func DocumentTerm(docType string) string {
	if term, ok := documentTerms[strings.ToLower(docType)]; ok {
		return term
	}
	return docType
}

// ValidDocumentType reports whether the document type is supported.
func ValidDocumentType(docType string) bool {
	_, ok := documentTerms[strings.ToLower(docType)]
	return ok
}

// DocumentTypes returns the supported document type keys.
func DocumentTypes() []string {
	types := make([]string, 0, len(documentTerms))
	for k := range documentTerms {
		types = append(types, k)
	}
	sort.Strings(types)
	return types
}

// Grade is one row of the final grades table.
type Grade struct {
	Discipline string `json:"discipline"`
	FinalGrade string `json:"final_grade,omitempty"`
	Status     string `json:"status"`
	Semester   string `json:"semester"`
	Credits    int    `json:"credits,omitempty"`
}

// Subject is one row of the academic transcript.
type Subject struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Credits  int    `json:"credits"`
	Grade    string `json:"grade,omitempty"`
	Status   string `json:"status"`
	Semester string `json:"semester"`
}

// ScheduleEntry is one class slot in the weekly schedule.
type ScheduleEntry struct {
	Discipline string `json:"discipline"`
	Weekday    string `json:"weekday"`
	Time       string `json:"time"`
	Professor  string `json:"professor,omitempty"`
	Room       string `json:"room,omitempty"`
}

// StudentInfo identifies the logged-in student.
type StudentInfo struct {
	Name        string `json:"name,omitempty"`
	Enrollment  string `json:"enrollment,omitempty"`
	Course      string `json:"course,omitempty"`
}
