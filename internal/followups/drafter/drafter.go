// Package drafter generates follow-up email drafts with Gemini. It runs as
// an event subscriber: every new follow-up gets a drafted subject and body
// attached in the background, ready for human review.
package drafter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"agencycrm_backend/internal/events"
	"agencycrm_backend/platform/config"
	"agencycrm_backend/platform/logger"
)

// ErrDraftTimeout reports that the model did not answer within the drafting
// deadline. The follow-up stays pending without a draft; a team member can
// still write one by hand at approval time.
var ErrDraftTimeout = errors.New("draft generation timed out")

const draftTimeout = 60 * time.Second

// LeadSummaries supplies the lead context the prompt is built from.
type LeadSummaries interface {
	LeadSummary(ctx context.Context, leadID uuid.UUID) (LeadSummary, error)
}

type LeadSummary struct {
	Name    string
	Company string
	Stage   string
	Notes   string
}

// DraftSink receives the generated draft.
type DraftSink interface {
	AttachDraft(ctx context.Context, id uuid.UUID, subject, body string) error
}

type Drafter struct {
	client *genai.Client
	model  string
	leads  LeadSummaries
	sink   DraftSink
	log    *logger.Logger
}

// New builds a drafter, or returns nil when no API key is configured. A nil
// drafter is simply never subscribed.
func New(ctx context.Context, cfg config.AIConfig, leads LeadSummaries, sink DraftSink, log *logger.Logger) (*Drafter, error) {
	if !cfg.IsDraftingEnabled() {
		return nil, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GetGeminiAPIKey(),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Drafter{
		client: client,
		model:  cfg.GetDraftModel(),
		leads:  leads,
		sink:   sink,
		log:    log,
	}, nil
}

// Subscribe wires the drafter to new follow-ups on the bus.
func (d *Drafter) Subscribe(bus events.Bus) {
	bus.Subscribe(events.FollowUpCreated{}.EventName(), events.HandlerFunc(d.handleCreated))
}

func (d *Drafter) handleCreated(ctx context.Context, event events.Event) error {
	created, ok := event.(events.FollowUpCreated)
	if !ok {
		return nil
	}
	return d.Draft(ctx, created.FollowUpID, created.LeadID, created.TriggerReason)
}

// Draft generates and attaches a subject and body for the follow-up.
func (d *Drafter) Draft(ctx context.Context, followUpID, leadID uuid.UUID, triggerReason string) error {
	summary, err := d.leads.LeadSummary(ctx, leadID)
	if err != nil {
		return fmt.Errorf("load lead for draft: %w", err)
	}

	draftCtx, cancel := context.WithTimeout(ctx, draftTimeout)
	defer cancel()

	subject, body, err := d.generate(draftCtx, summary, triggerReason)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			d.log.IntegrationFailure("gemini", "draft_followup", ErrDraftTimeout)
			return ErrDraftTimeout
		}
		d.log.IntegrationFailure("gemini", "draft_followup", err)
		return err
	}

	if err := d.sink.AttachDraft(ctx, followUpID, subject, body); err != nil {
		return fmt.Errorf("attach draft: %w", err)
	}
	return nil
}

func (d *Drafter) generate(ctx context.Context, summary LeadSummary, triggerReason string) (string, string, error) {
	prompt := buildPrompt(summary, triggerReason)

	resp, err := d.client.Models.GenerateContent(ctx, d.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.7),
	})
	if err != nil {
		return "", "", err
	}

	subject, body, ok := parseDraft(resp.Text())
	if !ok {
		return "", "", errors.New("model response missing subject line")
	}
	return subject, body, nil
}

func buildPrompt(summary LeadSummary, triggerReason string) string {
	var b strings.Builder
	b.WriteString("You write short, warm follow-up emails for a software agency's sales team.\n")
	b.WriteString("Write a follow-up email to the lead below. Keep it under 120 words, no pressure tactics.\n")
	b.WriteString("Respond with exactly this format:\nSubject: <subject line>\n\n<email body>\n\n")
	fmt.Fprintf(&b, "Lead name: %s\n", summary.Name)
	if summary.Company != "" {
		fmt.Fprintf(&b, "Company: %s\n", summary.Company)
	}
	fmt.Fprintf(&b, "Pipeline stage: %s\n", summary.Stage)
	fmt.Fprintf(&b, "Reason for the follow-up: %s\n", triggerReason)
	if summary.Notes != "" {
		fmt.Fprintf(&b, "Notes from earlier conversations: %s\n", summary.Notes)
	}
	return b.String()
}

func parseDraft(text string) (subject, body string, ok bool) {
	text = strings.TrimSpace(text)
	subjectLine, rest, found := strings.Cut(text, "\n")
	if !found {
		return "", "", false
	}
	subject = strings.TrimSpace(strings.TrimPrefix(subjectLine, "Subject:"))
	body = strings.TrimSpace(rest)
	if subject == "" || body == "" || !strings.HasPrefix(subjectLine, "Subject:") {
		return "", "", false
	}
	return subject, body, true
}
