package session

import (
	"errors"
	"strings"

	"github.com/biyariq/storefront/internal/domain/shared"
	"github.com/go-playground/validator/v10"
)

// Status is the authentication status of a storefront session
type Status string

const (
	StatusLoading       Status = "loading"
	StatusAnonymous     Status = "anonymous"
	StatusAuthenticated Status = "authenticated"
)

// ErrInvalidCredentials is returned when login or registration input fails validation
var ErrInvalidCredentials = shared.NewDomainError("INVALID_CREDENTIALS", "Invalid credentials")

var validate = validator.New(validator.WithRequiredStructEnabled())

// User is the authenticated customer as reported by the backend
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// Credentials is the login payload
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

// Validate normalizes the email and checks the field rules
func (c *Credentials) Validate() error {
	c.Email = strings.TrimSpace(strings.ToLower(c.Email))
	return validationError(validate.Struct(c))
}

// Registration is the sign-up payload
type Registration struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

// Validate normalizes the input and checks the field rules
func (r *Registration) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(strings.ToLower(r.Email))
	return validationError(validate.Struct(r))
}

func validationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, strings.ToLower(fe.Field()))
		}
		return shared.NewDomainError(ErrInvalidCredentials.Code, "Invalid fields: "+strings.Join(fields, ", "))
	}
	return err
}

// Auth is the outcome of a successful login or registration
type Auth struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
