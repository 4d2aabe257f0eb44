package domain

import (
	"time"

	"github.com/google/uuid"
)

// ContactSubmission is a message left through a site's public contact form.
type ContactSubmission struct {
	ID        uuid.UUID
	SiteID    *uuid.UUID
	Name      string
	Email     string
	Message   string
	CreatedAt time.Time
}

// CreateContactParams contains the validated contact form fields.
type CreateContactParams struct {
	SiteID  *uuid.UUID
	Name    string
	Email   string
	Message string
}
