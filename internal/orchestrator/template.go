package orchestrator

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/notihub/notihub/internal/domain"
)

// SendTemplate renders a named template against vars and enters the normal
// send pipeline. Title/body substitution is a plain "{{key}}" token
// replace — HTML rendering itself is an external templating collaborator,
// out of scope here; this only fills in the short strings a notification
// carries.
func (e *Engine) SendTemplate(ctx context.Context, userID uuid.UUID, templateID, locale string, vars map[string]string) (domain.SendResult, error) {
	tmpl, err := e.repo.GetTemplate(ctx, templateID, locale)
	if err != nil {
		return domain.SendResult{}, err
	}

	req := domain.SendRequest{
		UserID:   userID,
		Type:     tmpl.Type,
		Title:    renderTokens(tmpl.Subject, vars),
		Body:     renderTokens(tmpl.BodyText, vars),
		Priority: tmpl.Priority,
		Channels: tmpl.Channels,
		Data:     vars,
	}
	return e.Send(ctx, req)
}

func renderTokens(text string, vars map[string]string) string {
	if len(vars) == 0 {
		return text
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
