package discord

import (
	"withgames/internal/domain"
	"withgames/internal/ports/output"
)

// DomainErrorMessage resolves err to a user-facing message through the catalog.
// Errors without a domain code get the generic message.
func DomainErrorMessage(tr output.T, locale string, err error) string {
	if err == nil {
		return ""
	}
	code := domain.Code(err)
	if code == "" {
		code = "unknown"
	}
	return tr.T(locale, "error."+code, nil)
}
