package db

import (
	"errors"
	"fmt"
	"strings"

	"alforge/apperr"

	"gorm.io/gorm"
)

// translate maps driver errors onto apperr kinds; what names the record for the message.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.Wrap(apperr.KindNotFound, err, "%s not found", what)
	}
	if isDuplicate(err) {
		return apperr.Wrap(apperr.KindConflict, err, "%s already exists", what)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
