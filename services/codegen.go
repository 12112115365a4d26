package services

import (
	"context"
	"strconv"
	"strings"

	"alforge/apperr"
	"alforge/models"
)

const maxSequence = 999

// CodeSource lists the codes already issued under a prefix.
type CodeSource interface {
	EquipmentCodesWithPrefix(ctx context.Context, prefix string) ([]string, error)
}

// CodeGenerator proposes the next free code for a (usage, type) pair. It reads the
// registry every time; uniqueness on create is what actually prevents collisions.
type CodeGenerator struct {
	Codes CodeSource
}

// NormalizeCategoryCode keeps the digits of s, left-pads to two and keeps the last two.
// "" is returned for "00", meaning no category was selected.
func NormalizeCategoryCode(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	d := b.String()
	for len(d) < 2 {
		d = "0" + d
	}
	d = d[len(d)-2:]
	if d == "00" {
		return ""
	}
	return d
}

// Next returns the normalized codes and the next code, e.g. ("02", "01") -> "0201003"
// when 0201001 and 0201002 exist.
func (g *CodeGenerator) Next(ctx context.Context, usage, typ string) (string, error) {
	u, t := NormalizeCategoryCode(usage), NormalizeCategoryCode(typ)
	if u == "" || t == "" {
		return "", apperr.InvalidArgument("category not selected")
	}
	prefix := u + t
	codes, err := g.Codes.EquipmentCodesWithPrefix(ctx, prefix)
	if err != nil {
		return "", err
	}

	max := 0
	for _, c := range codes {
		if len(c) != len(prefix)+3 || !strings.HasPrefix(c, prefix) {
			continue
		}
		n, err := strconv.Atoi(c[len(prefix):])
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	if max+1 > maxSequence {
		return "", apperr.InvalidArgument("category %s exhausted", prefix)
	}
	return models.FormatCode(u, t, max+1), nil
}
