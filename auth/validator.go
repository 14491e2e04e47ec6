package auth

import (
	"fmt"
	"unicode"

	"github.com/go-playground/validator/v10"

	"doc-sync/errors"
)

var validate = validator.New()

// CollaboratorIdentity is what a document owner presents when granting or
// revoking access: an email, the only identity the original clients know.
type CollaboratorIdentity struct {
	Email string `validate:"required,email"`
}

func ValidateCollaboratorIdentity(email string) error {
	if err := validate.Struct(CollaboratorIdentity{Email: email}); err != nil {
		return fmt.Errorf("%w: %q is not a valid email", errors.ErrUnknownCollaborator, email)
	}
	return nil
}

// SeedUser is validated by the seeding tool before any hashing happens.
type SeedUser struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=12,max=72"`
}

func ValidateSeedUser(req SeedUser) error {
	if err := validate.Struct(req); err != nil {
		return err
	}
	if !isPasswordComplex(req.Password) {
		return fmt.Errorf("password must mix upper, lower, digit and special characters")
	}
	return nil
}

func isPasswordComplex(s string) bool {
	var (
		hasUpper   = false
		hasLower   = false
		hasNumber  = false
		hasSpecial = false
	)
	for _, char := range s {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}
	return hasUpper && hasLower && hasNumber && hasSpecial
}
