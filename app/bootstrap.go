// app/bootstrap.go
package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"

	"alforge/config"
	"alforge/models"
)

type BootstrapStore interface {
	CountAdmins(ctx context.Context) (int64, error)
	CreateInvite(ctx context.Context, email, token string, role models.Role, expiresAt time.Time, createdBy string) (*models.Invite, error)
}

// BootstrapFirstAdmin 没有管理员时为 BOOTSTRAP_EMAIL 生成一次性 ADMIN 邀请，返回注册链接
func BootstrapFirstAdmin(ctx context.Context, cfg config.Config, repo BootstrapStore) (string, error) {
	if cfg.BootstrapEmail == "" {
		return "", nil
	}
	n, err := repo.CountAdmins(ctx)
	if err != nil {
		return "", err
	}
	if n > 0 {
		return "", nil // 已经有管理员，跳过
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := hex.EncodeToString(buf)

	if _, err := repo.CreateInvite(ctx, cfg.BootstrapEmail, token, models.RoleAdmin, time.Now().Add(24*time.Hour), "bootstrap"); err != nil {
		return "", fmt.Errorf("bootstrap invite: %w", err)
	}

	link := fmt.Sprintf("%s/login?inviteToken=%s", strings.TrimRight(cfg.WebOrigin, "/"), token)
	log.Printf("[BOOTSTRAP] No admin found, created an admin invite for %s", cfg.BootstrapEmail)
	log.Printf("[BOOTSTRAP] Open this URL to register the first admin: %s", link)
	return link, nil
}
