package services

import (
	"context"
	"strconv"
	"strings"

	"alforge/access"
	"alforge/apperr"
	"alforge/models"
)

type CategoryStore interface {
	ListCategories(ctx context.Context, kind models.CategoryKind) ([]models.Category, error)
	UpsertCategories(ctx context.Context, cats []models.Category) error
}

type MailSettingsStore interface {
	GetMailSettings(ctx context.Context) (*models.MailSettings, error)
	SaveMailSettings(ctx context.Context, s *models.MailSettings) error
}

// CatalogService manages the category taxonomy and the mail settings row.
type CatalogService struct {
	Categories CategoryStore
	Settings   MailSettingsStore
}

func (s *CatalogService) ListCategories(ctx context.Context, c access.Caller, kind models.CategoryKind) ([]models.Category, error) {
	if err := access.RequireReader(c); err != nil {
		return nil, err
	}
	return s.Categories.ListCategories(ctx, kind)
}

// UpsertCategories normalizes the codes the same way the code generator does.
func (s *CatalogService) UpsertCategories(ctx context.Context, c access.Caller, cats []models.Category) ([]models.Category, error) {
	if err := access.Require(c, models.RoleGestor); err != nil {
		return nil, err
	}
	clean, err := NormalizeCategories(cats)
	if err != nil {
		return nil, err
	}
	if err := s.Categories.UpsertCategories(ctx, clean); err != nil {
		return nil, err
	}
	return clean, nil
}

func NormalizeCategories(cats []models.Category) ([]models.Category, error) {
	out := make([]models.Category, 0, len(cats))
	for _, cat := range cats {
		kind := models.CategoryKind(strings.ToUpper(strings.TrimSpace(string(cat.Kind))))
		if kind != models.CategoryUsage && kind != models.CategoryType {
			return nil, apperr.InvalidArgument("unknown category kind %q", cat.Kind)
		}
		code := NormalizeCategoryCode(cat.Code)
		if code == "" {
			return nil, apperr.InvalidArgument("category code %q is empty", cat.Code)
		}
		name := strings.TrimSpace(cat.Name)
		if name == "" {
			return nil, apperr.InvalidArgument("category %s/%s needs a name", kind, code)
		}
		out = append(out, models.Category{Kind: kind, Code: code, Name: name})
	}
	return out, nil
}

// MailSettings never returns the stored password.
func (s *CatalogService) MailSettings(ctx context.Context, c access.Caller) (*models.MailSettings, error) {
	if err := access.Require(c, models.RoleAdmin); err != nil {
		return nil, err
	}
	cur, err := s.Settings.GetMailSettings(ctx)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return &models.MailSettings{ID: models.MailSettingsID, Port: "587"}, nil
	}
	cur.Password = ""
	return cur, nil
}

// SaveMailSettings keeps the stored password when in.Password is empty.
func (s *CatalogService) SaveMailSettings(ctx context.Context, c access.Caller, in models.MailSettings) (*models.MailSettings, error) {
	if err := access.Require(c, models.RoleAdmin); err != nil {
		return nil, err
	}
	in.Host = strings.TrimSpace(in.Host)
	if in.Port != "" {
		if n, err := strconv.Atoi(in.Port); err != nil || n <= 0 || n > 65535 {
			return nil, apperr.InvalidArgument("invalid SMTP port %q", in.Port)
		}
	}
	if in.Enabled && in.Host == "" {
		return nil, apperr.InvalidArgument("SMTP host is required when mail is enabled")
	}
	if in.Password == "" {
		cur, err := s.Settings.GetMailSettings(ctx)
		if err != nil {
			return nil, err
		}
		if cur != nil {
			in.Password = cur.Password
		}
	}
	if err := s.Settings.SaveMailSettings(ctx, &in); err != nil {
		return nil, err
	}
	in.Password = ""
	return &in, nil
}
