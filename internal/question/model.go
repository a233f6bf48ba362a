// Package question provides models and repositories for submitted questions,
// including the organization associations that drive similarity visibility.
package question

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxContentLength is the maximum question length in characters.
const MaxContentLength = 2000

// Common errors for question operations.
var (
	ErrQuestionNotFound = errors.New("question not found")
	ErrEmptyContent     = errors.New("question content cannot be empty")
	ErrContentTooLong   = errors.New("question content exceeds maximum length")
)

// Question is a submitted question. Content and embedding are immutable once
// set (content edits do not re-embed or re-rank); ranking state lives in the
// ranking package, keyed by question ID and scope.
type Question struct {
	ID       string `json:"id"`
	Content  string `json:"content"`
	Category string `json:"category,omitempty"`

	// IsPublic marks membership in the global pool. Private questions carry
	// the owning organization in OrganizationID; further organizations may
	// be associated indirectly (see Repository.AssociateOrganization).
	IsPublic       bool    `json:"is_public"`
	OrganizationID *string `json:"organization_id,omitempty"`

	// Embedding is the question's fixed-length vector, used only for
	// similarity search.
	Embedding []float32 `json:"-"`

	SubmitterID string     `json:"submitter_id,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}

// ValidateContent checks and normalizes question text before submission.
// Returns the trimmed content or a validation error.
func ValidateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return "", ErrContentTooLong
	}
	return content, nil
}
