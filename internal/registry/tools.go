package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/ufpa-tools/sigaa-mcp/internal/actor"
	"github.com/ufpa-tools/sigaa-mcp/internal/portal"
)

// RegisterAll wires the portal tool set to the actor
func RegisterAll(r *Registry, a *actor.Actor) error {
	defs := []ToolDefinition{
		{
			Name:        "sigaa_login",
			Description: "Autentica no portal SIGAA. Sem usuário e senha, usa as credenciais configuradas. Com force_new_session, refaz o login mesmo com sessão ativa.",
			Sessionless: true,
			Parameters: []Parameter{
				{Name: "username", Type: "string", Description: "Matrícula ou usuário do portal, se diferente do configurado"},
				{Name: "password", Type: "string", Description: "Senha do portal, se diferente da configurada"},
				{Name: "force_new_session", Type: "boolean", Description: "Refazer o login descartando a sessão atual", Default: false},
			},
			Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				return a.Login(ctx, actor.LoginRequest{
					Username: argString(args, "username"),
					Password: argString(args, "password"),
					Force:    argBool(args, "force_new_session"),
				})
			},
		},
		{
			Name:        "sigaa_logout",
			Description: "Encerra a sessão do portal e fecha o navegador.",
			Sessionless: true,
			Handler: func(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
				if err := a.Logout(ctx); err != nil {
					return nil, err
				}
				return map[string]string{"status": "logged_out"}, nil
			},
		},
		{
			Name:        "sigaa_check_status",
			Description: "Informa o estado da sessão: autenticada ou não, página atual e dados do aluno.",
			Sessionless: true,
			Handler: func(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
				return a.Status(ctx)
			},
		},
		{
			Name:        "sigaa_navigate_and_extract",
			Description: "Navega até uma seção do portal (notas, historico, matricula, comprovantes, atestados, horario) e extrai o conteúdo da página.",
			Parameters: []Parameter{
				{Name: "section", Type: "string", Description: "Seção do portal ou rótulo do menu a seguir", Required: true},
				{Name: "selector", Type: "string", Description: "Seletor CSS para extrair apenas um elemento"},
				{Name: "extract_data", Type: "boolean", Description: "Retornar o conteúdo da página", Default: true},
				{Name: "take_screenshot", Type: "boolean", Description: "Capturar a página da seção em PNG", Default: false},
			},
			Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				return a.NavigateAndExtract(ctx, argString(args, "section"), actor.ExtractOptions{
					Selector:       argString(args, "selector"),
					ExtractData:    argBool(args, "extract_data"),
					TakeScreenshot: argBool(args, "take_screenshot"),
				})
			},
		},
		{
			Name: "sigaa_download_document",
			Description: fmt.Sprintf("Baixa um documento oficial do portal. Tipos: %s.",
				strings.Join(portal.DocumentTypes(), ", ")),
			Parameters: []Parameter{
				{Name: "document_type", Type: "string", Description: "Tipo do documento a baixar", Required: true, Enum: portal.DocumentTypes()},
				{Name: "format", Type: "string", Description: "Formato do arquivo", Default: "pdf", Enum: []string{"pdf"}},
				{Name: "semester", Type: "string", Description: "Semestre de referência, por exemplo 2024.1"},
			},
			Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				return a.DownloadDocument(ctx,
					argString(args, "document_type"),
					argString(args, "format"),
					argString(args, "semester"))
			},
		},
		{
			Name:        "sigaa_get_notifications",
			Description: "Coleta avisos e notícias da página inicial do portal.",
			Handler: func(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
				return a.Notifications(ctx)
			},
		},
		{
			Name:        "sigaa_get_class_schedule",
			Description: "Consulta o horário de aulas da semana.",
			Handler: func(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
				return a.ClassSchedule(ctx)
			},
		},
		{
			Name:        "sigaa_custom_task",
			Description: "Executa uma tarefa livre no portal descrita em linguagem natural, um passo de navegação por vez.",
			Parameters: []Parameter{
				{Name: "task_description", Type: "string", Description: "Objetivo da tarefa, por exemplo: consultar a nota de Cálculo I", Required: true},
				{Name: "max_steps", Type: "number", Description: "Limite de passos de navegação", Default: float64(20)},
				{Name: "return_structured_data", Type: "boolean", Description: "Incluir passos executados e textos extraídos no resultado", Default: false},
			},
			Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				return a.CustomTask(ctx,
					argString(args, "task_description"),
					argInt(args, "max_steps"),
					argBool(args, "return_structured_data"))
			},
		},
		{
			Name:        "sigaa_take_screenshot",
			Description: "Captura a página atual do portal em PNG.",
			Handler: func(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
				return a.Screenshot(ctx)
			},
		},
	}

	for _, def := range defs {
		if err := r.Register(def); err != nil {
			return err
		}
	}
	return nil
}

func argString(args map[string]interface{}, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func argBool(args map[string]interface{}, key string) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return false
}

// argInt handles both decoded JSON numbers and literal ints
func argInt(args map[string]interface{}, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
