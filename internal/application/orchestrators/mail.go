package orchestrators

import (
	"bytes"
	"context"
	"html/template"
	"log/slog"
	"net/url"
	"strings"

	emailAdapter "studio/internal/adapters/email"
	"studio/internal/domain/account"
)

// Link paths embedded in mailed tokens.
const (
	VerifyLinkPath = "/verificar-email/confirmar"
	ResetLinkPath  = "/recuperar-password/nueva"
)

// MailDeps holds what every mailing orchestrator needs.
type MailDeps struct {
	Sender  emailAdapter.Sender
	BaseURL string // e.g. "https://strive.mx", no trailing slash
}

var mailTemplate = template.Must(template.New("mail").Parse(`<!doctype html>
<html lang="es"><body style="font-family:sans-serif;color:#1a1a1a">
<h2>{{.Heading}}</h2>
<p>{{.Body}}</p>
<p><a href="{{.Link}}" style="background:#111;color:#fff;padding:10px 18px;border-radius:6px;text-decoration:none">{{.Action}}</a></p>
<p style="color:#666;font-size:13px">{{.Footer}}</p>
</body></html>`))

type mailContent struct {
	Heading string
	Body    string
	Action  string
	Link    string
	Footer  string
}

// tokenLink builds an absolute link carrying the token secret.
func tokenLink(baseURL, path, secret string) string {
	return strings.TrimRight(baseURL, "/") + path + "?token=" + url.QueryEscape(secret)
}

// composeTokenMail renders the verification or recovery email for token.
func composeTokenMail(baseURL, to string, token account.Token) (emailAdapter.Message, error) {
	var c mailContent
	var subject string
	switch token.Purpose {
	case account.PurposeSignup:
		subject = "Confirma tu email"
		c = mailContent{
			Heading: "Bienvenido a Strive",
			Body:    "Confirma tu dirección de email para activar tu cuenta.",
			Action:  "Confirmar email",
			Link:    tokenLink(baseURL, VerifyLinkPath, token.Token),
			Footer:  "El enlace vence en 24 horas. Si no creaste una cuenta, ignora este mensaje.",
		}
	case account.PurposeRecovery:
		subject = "Restablece tu contraseña"
		c = mailContent{
			Heading: "Restablecer contraseña",
			Body:    "Recibimos una solicitud para cambiar la contraseña de tu cuenta.",
			Action:  "Elegir nueva contraseña",
			Link:    tokenLink(baseURL, ResetLinkPath, token.Token),
			Footer:  "El enlace vence en 1 hora. Si no lo pediste, ignora este mensaje.",
		}
	default:
		return emailAdapter.Message{}, account.ErrTokenPurpose
	}

	var html bytes.Buffer
	if err := mailTemplate.Execute(&html, c); err != nil {
		return emailAdapter.Message{}, err
	}
	return emailAdapter.Message{
		To:      to,
		Subject: subject,
		HTML:    html.String(),
		Text:    c.Body + "\n\n" + c.Link + "\n\n" + c.Footer,
		Tag:     token.Purpose,
	}, nil
}

// sendTokenMail composes and sends the mail for token. Every failure is
// logged here and returned; callers decide whether it is fatal.
func sendTokenMail(ctx context.Context, deps MailDeps, to string, token account.Token) error {
	msg, err := composeTokenMail(deps.BaseURL, to, token)
	if err != nil {
		slog.Error("auth_event", "event", "mail_compose_failed", "purpose", token.Purpose, "account_id", token.AccountID, "error", err)
		return err
	}
	if _, err := deps.Sender.Send(ctx, msg); err != nil {
		slog.Error("auth_event", "event", "mail_failed", "purpose", token.Purpose, "account_id", token.AccountID, "error", err)
		return err
	}
	slog.Info("auth_event", "event", "mail_sent", "purpose", token.Purpose, "account_id", token.AccountID)
	return nil
}
