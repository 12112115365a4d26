package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	"alforge/access"
	"alforge/apperr"
	"alforge/db"
	"alforge/models"
)

// AccountStore is the account side of the relational store.
type AccountStore interface {
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context, q string, page, size int) (db.ListUsersResult, error)
	UpdateUser(ctx context.Context, id string, p db.UserPatch) (*models.User, error)
	DeleteUserByID(ctx context.Context, id string) error
	CountAdmins(ctx context.Context) (int64, error)
	CreateInvite(ctx context.Context, email, token string, role models.Role, expiresAt time.Time, createdBy string) (*models.Invite, error)
	ListInvites(ctx context.Context, pendingOnly bool) ([]models.Invite, error)
}

type SessionRevoker interface {
	RevokeAllForUser(ctx context.Context, userID string) error
}

type InviteMailer interface {
	SendInvite(ctx context.Context, toEmail, link string, expiresDays int) error
}

type UserService struct {
	Accounts  AccountStore
	Sessions  SessionRevoker
	Mailer    InviteMailer
	WebOrigin string
	Clock     Clock
}

type InviteResult struct {
	Invite *models.Invite `json:"invite"`
	Token  string         `json:"token"`
	Link   string         `json:"link"`
}

func (s *UserService) List(ctx context.Context, c access.Caller, q string, page, size int) (db.ListUsersResult, error) {
	if err := access.Require(c, models.RoleAdmin); err != nil {
		return db.ListUsersResult{}, err
	}
	return s.Accounts.ListUsers(ctx, q, page, size)
}

func (s *UserService) Get(ctx context.Context, c access.Caller, id string) (*models.User, error) {
	if err := access.Require(c, models.RoleAdmin); err != nil {
		return nil, err
	}
	return s.Accounts.FindUserByID(ctx, id)
}

// Update changes profile, role and activation. Suspending an account ends all its sessions.
func (s *UserService) Update(ctx context.Context, c access.Caller, id string, p db.UserPatch) (*models.User, error) {
	if err := access.Require(c, models.RoleAdmin); err != nil {
		return nil, err
	}
	if p.Role != nil && !p.Role.Valid() {
		return nil, apperr.InvalidArgument("unknown role %q", *p.Role)
	}
	if p.Email != nil {
		if _, err := mail.ParseAddress(*p.Email); err != nil {
			return nil, apperr.InvalidArgument("invalid e-mail %q", *p.Email)
		}
	}
	if p.DisplayName != nil && strings.TrimSpace(*p.DisplayName) == "" {
		return nil, apperr.InvalidArgument("display name is required")
	}

	u, err := s.Accounts.FindUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	demoting := p.Role != nil && *p.Role != models.RoleAdmin
	suspending := p.Active != nil && !*p.Active
	if id == c.UserID && (demoting || suspending) {
		return nil, apperr.InvalidArgument("you cannot demote or suspend your own account")
	}
	if u.Role == models.RoleAdmin && u.Active && (demoting || suspending) {
		n, err := s.Accounts.CountAdmins(ctx)
		if err != nil {
			return nil, err
		}
		if n <= 1 {
			return nil, apperr.Conflict("at least one active administrator is required")
		}
	}

	updated, err := s.Accounts.UpdateUser(ctx, id, p)
	if err != nil {
		return nil, err
	}
	if suspending {
		s.revoke(ctx, id)
	}
	return updated, nil
}

func (s *UserService) Delete(ctx context.Context, c access.Caller, id string) error {
	if err := access.Require(c, models.RoleAdmin); err != nil {
		return err
	}
	if id == c.UserID {
		return apperr.InvalidArgument("you cannot delete your own account")
	}
	if err := s.Accounts.DeleteUserByID(ctx, id); err != nil {
		return err
	}
	s.revoke(ctx, id)
	return nil
}

// Invite creates a one-time registration link granting role and mails it.
func (s *UserService) Invite(ctx context.Context, c access.Caller, email string, role models.Role, days int) (*InviteResult, error) {
	if err := access.Require(c, models.RoleAdmin); err != nil {
		return nil, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperr.InvalidArgument("invalid e-mail %q", email)
	}
	if role == "" {
		role = models.RoleUser
	}
	if !role.Valid() {
		return nil, apperr.InvalidArgument("unknown role %q", role)
	}
	if days <= 0 {
		days = 1
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("invite token: %w", err)
	}
	token := hex.EncodeToString(buf)

	createdBy := c.Email
	if createdBy == "" {
		createdBy = c.Name
	}
	inv, err := s.Accounts.CreateInvite(ctx, email, token, role, s.Clock.now().AddDate(0, 0, days), createdBy)
	if err != nil {
		return nil, err
	}

	link := strings.TrimRight(s.WebOrigin, "/") + "/login?inviteToken=" + token
	if s.Mailer != nil {
		if err := s.Mailer.SendInvite(ctx, email, link, days); err != nil {
			log.Printf("[invite email] send failed: %v", err)
		}
	}
	return &InviteResult{Invite: inv, Token: token, Link: link}, nil
}

func (s *UserService) ListInvites(ctx context.Context, c access.Caller, pendingOnly bool) ([]models.Invite, error) {
	if err := access.Require(c, models.RoleAdmin); err != nil {
		return nil, err
	}
	return s.Accounts.ListInvites(ctx, pendingOnly)
}

func (s *UserService) revoke(ctx context.Context, id string) {
	if s.Sessions == nil {
		return
	}
	if err := s.Sessions.RevokeAllForUser(ctx, id); err != nil {
		log.Printf("user %s: revoke sessions: %v", id, err)
	}
}
