// Package dates implements date invitations and the challenges attached to them.
//
// An invitation starts pending and moves once, by the receiver's decision, to
// accepted or rejected. Terminal invitations never change again.
package dates

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dateloop/backend/internal/apperr"
	"github.com/dateloop/backend/internal/models"
	"github.com/dateloop/backend/internal/realtime"
)

// Store captures the persistence for invitations and challenges.
type Store interface {
	InsertInvitation(ctx context.Context, invitation models.DateInvitation) error
	FindInvitation(ctx context.Context, invitationID string) (models.DateInvitation, error)
	// ResolveInvitation moves a pending invitation to status and returns
	// apperr.ErrNotFound when no pending invitation with that id exists.
	ResolveInvitation(ctx context.Context, invitationID, status string, at time.Time) (models.DateInvitation, error)
	ListByReceiver(ctx context.Context, receiverID string) ([]models.DateInvitation, error)
	ListBySender(ctx context.Context, senderID string) ([]models.DateInvitation, error)

	InsertChallenge(ctx context.Context, challenge models.Challenge) error
	FindChallenge(ctx context.Context, challengeID string) (models.Challenge, error)
	ListChallenges(ctx context.Context, dateID string) ([]models.Challenge, error)
	ToggleChallenge(ctx context.Context, challengeID string) (models.Challenge, error)
}

// Decision is the receiver's answer to an invitation.
type Decision string

const (
	DecisionAccept Decision = models.StatusAccepted
	DecisionReject Decision = models.StatusRejected
)

// ParseDecision accepts "accepted"/"accept" and "rejected"/"reject".
func ParseDecision(value string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "accepted", "accept":
		return DecisionAccept, nil
	case "rejected", "reject":
		return DecisionReject, nil
	}
	return "", apperr.Invalid("decision", "decision must be accepted or rejected")
}

// InvitationInput carries the invitation form.
type InvitationInput struct {
	ReceiverID string    `json:"receiverId"`
	DateTime   time.Time `json:"dateTime"`
	Location   string    `json:"location"`
	Notes      string    `json:"notes"`
}

// Service implements the invitation state machine and challenge operations.
type Service struct {
	Store     Store
	Publisher realtime.Publisher
	NowFunc   func() time.Time
}

// CreateInvitation validates and stores a pending invitation from senderID.
func (s Service) CreateInvitation(ctx context.Context, senderID string, input InvitationInput) (models.DateInvitation, error) {
	input.ReceiverID = strings.TrimSpace(input.ReceiverID)
	input.Location = strings.TrimSpace(input.Location)
	input.Notes = strings.TrimSpace(input.Notes)

	now := s.now()
	switch {
	case input.ReceiverID == "":
		return models.DateInvitation{}, apperr.Invalid("receiverId", "receiver is required")
	case input.ReceiverID == senderID:
		return models.DateInvitation{}, apperr.Invalid("receiverId", "cannot invite yourself")
	case !InFuture(input.DateTime, now):
		return models.DateInvitation{}, apperr.Invalid("dateTime", "date must be in the future")
	case input.Location == "":
		return models.DateInvitation{}, apperr.Invalid("location", "location is required")
	case input.Notes == "":
		return models.DateInvitation{}, apperr.Invalid("notes", "notes are required")
	}

	invitation := models.DateInvitation{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: input.ReceiverID,
		DateTime:   input.DateTime.UTC(),
		Location:   input.Location,
		Notes:      input.Notes,
		Status:     models.StatusPending,
		CreatedAt:  now,
	}
	if err := s.Store.InsertInvitation(ctx, invitation); err != nil {
		return models.DateInvitation{}, fmt.Errorf("create invitation: %w", err)
	}

	s.notifyInvitation(ctx, realtime.OpInsert, invitation)
	return invitation, nil
}

// RespondToInvitation applies the receiver's decision to a pending invitation.
func (s Service) RespondToInvitation(ctx context.Context, actorID, invitationID string, decision Decision) (models.DateInvitation, error) {
	if decision != DecisionAccept && decision != DecisionReject {
		return models.DateInvitation{}, apperr.Invalid("decision", "decision must be accepted or rejected")
	}

	invitation, err := s.Store.FindInvitation(ctx, invitationID)
	if err != nil {
		return models.DateInvitation{}, fmt.Errorf("load invitation: %w", err)
	}
	if invitation.ReceiverID != actorID {
		return models.DateInvitation{}, fmt.Errorf("respond to invitation: %w", apperr.ErrForbidden)
	}
	if invitation.Status != models.StatusPending {
		return models.DateInvitation{}, fmt.Errorf("respond to invitation: %w", apperr.ErrAlreadyResolved)
	}

	resolved, err := s.Store.ResolveInvitation(ctx, invitationID, string(decision), s.now())
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			if _, findErr := s.Store.FindInvitation(ctx, invitationID); findErr == nil {
				return models.DateInvitation{}, fmt.Errorf("respond to invitation: %w", apperr.ErrAlreadyResolved)
			}
		}
		return models.DateInvitation{}, fmt.Errorf("respond to invitation: %w", err)
	}

	s.notifyInvitation(ctx, realtime.OpUpdate, resolved)
	return resolved, nil
}

// ListInbox returns the invitations received by viewerID, soonest first.
func (s Service) ListInbox(ctx context.Context, viewerID string) ([]models.DateInvitation, error) {
	invitations, err := s.Store.ListByReceiver(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("list inbox: %w", err)
	}
	return orEmpty(invitations), nil
}

// ListSentInvitations returns the invitations sent by viewerID, soonest first.
func (s Service) ListSentInvitations(ctx context.Context, viewerID string) ([]models.DateInvitation, error) {
	invitations, err := s.Store.ListBySender(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("list sent invitations: %w", err)
	}
	return orEmpty(invitations), nil
}

// ListChallenges returns the challenges of an invitation, oldest first.
func (s Service) ListChallenges(ctx context.Context, actorID, dateID string) ([]models.Challenge, error) {
	if _, err := s.participantInvitation(ctx, actorID, dateID); err != nil {
		return nil, err
	}
	challenges, err := s.Store.ListChallenges(ctx, dateID)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	if challenges == nil {
		challenges = []models.Challenge{}
	}
	return challenges, nil
}

// AddChallenge attaches a new, incomplete challenge to an invitation.
func (s Service) AddChallenge(ctx context.Context, actorID, dateID, title, description string) (models.Challenge, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Challenge{}, apperr.Invalid("title", "title is required")
	}

	invitation, err := s.participantInvitation(ctx, actorID, dateID)
	if err != nil {
		return models.Challenge{}, err
	}

	challenge := models.Challenge{
		ID:          uuid.NewString(),
		DateID:      dateID,
		Title:       title,
		Description: strings.TrimSpace(description),
		CreatedAt:   s.now(),
	}
	if err := s.Store.InsertChallenge(ctx, challenge); err != nil {
		return models.Challenge{}, fmt.Errorf("add challenge: %w", err)
	}

	s.notifyChallenge(ctx, realtime.OpInsert, challenge, invitation)
	return challenge, nil
}

// ToggleChallenge flips the completion flag of a challenge.
func (s Service) ToggleChallenge(ctx context.Context, actorID, challengeID string) (models.Challenge, error) {
	challenge, err := s.Store.FindChallenge(ctx, challengeID)
	if err != nil {
		return models.Challenge{}, fmt.Errorf("load challenge: %w", err)
	}

	invitation, err := s.participantInvitation(ctx, actorID, challenge.DateID)
	if err != nil {
		return models.Challenge{}, err
	}

	toggled, err := s.Store.ToggleChallenge(ctx, challengeID)
	if err != nil {
		return models.Challenge{}, fmt.Errorf("toggle challenge: %w", err)
	}

	s.notifyChallenge(ctx, realtime.OpUpdate, toggled, invitation)
	return toggled, nil
}

// InFuture reports whether t lies strictly after now once both are truncated
// to the minute, so a time picked for "now" in a form never passes.
func InFuture(t, now time.Time) bool {
	return t.Truncate(time.Minute).After(now.Truncate(time.Minute))
}

func (s Service) participantInvitation(ctx context.Context, actorID, dateID string) (models.DateInvitation, error) {
	invitation, err := s.Store.FindInvitation(ctx, dateID)
	if err != nil {
		return models.DateInvitation{}, fmt.Errorf("load invitation: %w", err)
	}
	if invitation.SenderID != actorID && invitation.ReceiverID != actorID {
		return models.DateInvitation{}, fmt.Errorf("access challenges: %w", apperr.ErrForbidden)
	}
	return invitation, nil
}

func (s Service) notifyInvitation(ctx context.Context, op realtime.Op, invitation models.DateInvitation) {
	realtime.Notify(ctx, s.Publisher, realtime.Change{
		Table:   realtime.TableInvitations,
		Op:      op,
		RowID:   invitation.ID,
		UserIDs: []string{invitation.SenderID, invitation.ReceiverID},
	})
}

func (s Service) notifyChallenge(ctx context.Context, op realtime.Op, challenge models.Challenge, invitation models.DateInvitation) {
	realtime.Notify(ctx, s.Publisher, realtime.Change{
		Table:   realtime.TableChallenges,
		Op:      op,
		RowID:   challenge.ID,
		UserIDs: []string{invitation.SenderID, invitation.ReceiverID},
	})
}

func (s Service) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc()
	}
	return time.Now().UTC()
}

func orEmpty(invitations []models.DateInvitation) []models.DateInvitation {
	if invitations == nil {
		return []models.DateInvitation{}
	}
	return invitations
}
