package handlers

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/PortNumber53/trialgate/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// PageVisitor evaluates access for a page view, starting the trial on first
// contact.
type PageVisitor interface {
	Visit(ctx context.Context, identity string) (models.Decision, error)
}

// CheckoutLinker builds the provider checkout URL for an email.
type CheckoutLinker interface {
	URL(email, origin string) (string, error)
}

// Pages serves the browser-facing routes.
type Pages struct {
	Visitor  PageVisitor
	Checkout CheckoutLinker
	EmbedURL string
	Trial    time.Duration
	Logger   zerolog.Logger
}

// NewPages creates a Pages handler set.
func NewPages(visitor PageVisitor, checkout CheckoutLinker, embedURL string, trial time.Duration, logger zerolog.Logger) *Pages {
	return &Pages{
		Visitor:  visitor,
		Checkout: checkout,
		EmbedURL: embedURL,
		Trial:    trial,
		Logger:   logger,
	}
}

type formPage struct {
	TrialLabel string
}

type appPage struct {
	Email        string
	Paid         bool
	ExpiresAt    string
	CheckoutPath string
	EmbedURL     string
}

type expiredPage struct {
	Email        string
	CheckoutPath string
}

type failedPage struct {
	Status       string
	CheckoutPath string
}

// Home serves GET /. Without an email it shows the sign-up form; otherwise
// it renders the app or the trial-ended page for the visitor.
func (p *Pages) Home() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := strings.TrimSpace(r.URL.Query().Get("email"))
		if email == "" {
			p.render(w, http.StatusOK, "form.html", formPage{TrialLabel: trialLabel(p.Trial)})
			return
		}

		decision, err := p.Visitor.Visit(r.Context(), email)
		if err != nil {
			p.Logger.Error().Err(err).Str("email", email).Msg("page visit failed")
			http.Error(w, "failed to load access", http.StatusInternalServerError)
			return
		}

		if !decision.HasAccess() {
			p.render(w, http.StatusOK, "expired.html", expiredPage{Email: email, CheckoutPath: checkoutPath(email)})
			return
		}

		page := appPage{
			Email:        email,
			Paid:         decision.Kind == models.AccessPaid,
			CheckoutPath: checkoutPath(email),
			EmbedURL:     p.EmbedURL,
		}
		if decision.ExpiresAt != nil {
			page.ExpiresAt = decision.ExpiresAt.UTC().Format("Jan 2, 2006 15:04 MST")
		}
		p.render(w, http.StatusOK, "app.html", page)
	}
}

// CheckoutRedirect serves GET /checkout by redirecting to the provider.
func (p *Pages) CheckoutRedirect() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := strings.TrimSpace(r.URL.Query().Get("email"))

		target, err := p.Checkout.URL(email, requestOrigin(r))
		if err != nil {
			p.Logger.Error().Err(err).Str("email", email).Msg("failed to build checkout url")
			http.Error(w, "checkout unavailable", http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, target, http.StatusFound)
	}
}

// Success serves GET /success, the provider's return target. Entitlement is
// granted by the webhook, never by this page.
func (p *Pages) Success() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		status := q.Get("status")
		email := strings.TrimSpace(q.Get("email"))

		if status == "succeeded" || status == "active" {
			target := "/"
			if email != "" {
				target = "/?" + url.Values{"email": {email}}.Encode()
			}
			http.Redirect(w, r, target, http.StatusFound)
			return
		}

		p.Logger.Info().Str("email", email).Str("status", status).Msg("checkout did not complete")
		p.render(w, http.StatusBadRequest, "failed.html", failedPage{Status: status, CheckoutPath: checkoutPath(email)})
	}
}

func (p *Pages) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		p.Logger.Error().Err(err).Str("template", name).Msg("failed to render page")
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func checkoutPath(email string) string {
	if email == "" {
		return "/checkout"
	}
	return "/checkout?" + url.Values{"email": {email}}.Encode()
}

func trialLabel(d time.Duration) string {
	if d > 0 && d%(24*time.Hour) == 0 {
		return fmt.Sprintf("%d-day", int(d/(24*time.Hour)))
	}
	return d.String()
}
