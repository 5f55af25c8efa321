package validator

import (
	"net/mail"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"dropshare-api/internal/interface/api/rest/dto/auth"
)

const (
	minPasswordLen = 8
	maxPasswordLen = 72 // bcrypt safe

	maxContainerNameLen = 512
)

func IsUUID(s string) (bool, uuid.UUID) {
	id, err := uuid.Parse(s)
	return err == nil, id
}

// ValidateUpload checks the raw multipart fields and returns the expiry in
// minutes. Range checks on the duration belong to the container service.
func ValidateUpload(containerName, expiry string, fileCount int) (int, map[string]string) {
	errs := make(map[string]string)

	if utf8.RuneCountInString(containerName) > maxContainerNameLen {
		errs["containerName"] = "containerName is too long"
	}

	minutes := 0
	expiry = strings.TrimSpace(expiry)
	if expiry == "" {
		errs["expiryDuration"] = "expiryDuration is required"
	} else if v, err := strconv.Atoi(expiry); err != nil {
		errs["expiryDuration"] = "expiryDuration must be a whole number of minutes"
	} else {
		minutes = v
	}

	if fileCount == 0 {
		errs["files"] = "at least one file is required"
	}

	if len(errs) == 0 {
		return minutes, nil
	}
	return minutes, errs
}

func ValidateLogin(r auth.LoginRequest) map[string]string {
	errs := make(map[string]string)

	email := strings.ToLower(strings.TrimSpace(r.Email))
	password := r.Password // not trimmed

	if email == "" {
		errs["email"] = "email is required"
	} else if _, err := mail.ParseAddress(email); err != nil {
		errs["email"] = "invalid email format"
	}

	if strings.TrimSpace(password) == "" {
		errs["password"] = "password is required"
	} else if l := utf8.RuneCountInString(password); l < minPasswordLen || l > maxPasswordLen {
		errs["password"] = "password length must be 8-72 characters"
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}
