package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/DukeRupert/tenantly/internal/domain"
	"github.com/DukeRupert/tenantly/internal/repository"
	"github.com/DukeRupert/tenantly/internal/worker"
)

// MaxContactMessageLength bounds the free-text message of a submission.
const MaxContactMessageLength = 5000

// ContactService stores public contact form submissions.
type ContactService interface {
	// Submit validates and stores a submission for site, then queues a
	// notification email to the site's from address.
	Submit(ctx context.Context, site *domain.ResolvedSite, params domain.CreateContactParams) (*domain.ContactSubmission, error)
}

type contactService struct {
	store  repository.Store
	logger *slog.Logger
}

// NewContactService creates a ContactService.
func NewContactService(store repository.Store, logger *slog.Logger) ContactService {
	return &contactService{
		store:  store,
		logger: logger,
	}
}

func (s *contactService) Submit(ctx context.Context, site *domain.ResolvedSite, params domain.CreateContactParams) (*domain.ContactSubmission, error) {
	const op = "contact.submit"

	params.Email = domain.NormalizeEmail(params.Email)
	params.Name = strings.TrimSpace(params.Name)
	params.Message = strings.TrimSpace(params.Message)

	if err := validateEmail(params.Email); err != nil {
		return nil, domain.Invalid(op, domain.ErrorMessage(err))
	}
	if len(params.Name) > 255 {
		return nil, domain.Invalid(op, "Name must be 255 characters or less")
	}
	if len(params.Message) > MaxContactMessageLength {
		return nil, domain.Invalid(op, fmt.Sprintf("Message must be %d characters or less", MaxContactMessageLength))
	}

	attrs := site.AttributesOrDefault()
	siteID := site.Site.ID
	params.SiteID = &siteID

	var row repository.ContactSubmission
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		var err error
		row, err = q.CreateContactSubmission(ctx, repository.CreateContactSubmissionParams{
			SiteID:  domain.ToNullUUID(params.SiteID),
			Name:    domain.ToNullString(params.Name),
			Email:   params.Email,
			Message: domain.ToNullString(params.Message),
		})
		if err != nil {
			return err
		}

		_, err = worker.EnqueueEmail(ctx, q, contactEmail(site.Site.Name, attrs.FromEmail, params))
		return err
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to save contact submission")
	}

	s.logger.Info("contact submission received", "site_id", siteID, "submission_id", row.ID)

	return &domain.ContactSubmission{
		ID:        row.ID,
		SiteID:    domain.NullUUIDValue(row.SiteID),
		Name:      domain.NullStringValue(row.Name),
		Email:     row.Email,
		Message:   domain.NullStringValue(row.Message),
		CreatedAt: row.CreatedAt,
	}, nil
}

// contactEmail builds the notification sent to the site operator. Replies
// go straight to the submitter.
func contactEmail(siteName, siteEmail string, p domain.CreateContactParams) worker.SendEmailPayload {
	from := p.Name
	if from == "" {
		from = p.Email
	}

	var body strings.Builder
	fmt.Fprintf(&body, "New contact form submission on %s\n\n", siteName)
	fmt.Fprintf(&body, "Name: %s\n", p.Name)
	fmt.Fprintf(&body, "Email: %s\n\n", p.Email)
	body.WriteString(p.Message)
	body.WriteString("\n")

	return worker.SendEmailPayload{
		From:     siteEmail,
		To:       siteEmail,
		ReplyTo:  p.Email,
		Subject:  fmt.Sprintf("Contact form: %s", from),
		TextBody: body.String(),
	}
}
