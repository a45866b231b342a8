package profile

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/portfolieo/portfolio-api/internal/portfolio"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("register slug validation: %v", err))
	}
	return v
}

type profileRules struct {
	CustomEmail string `validate:"omitempty,email"`
	CustomSlug  string `validate:"omitempty,min=3,max=50,slug"`
}

type linkRules struct {
	Platform string `validate:"required"`
	URL      string `validate:"required,url"`
}

func (s *Service) normalizeUpdate(in UpdateInput) (portfolio.ProfileUpdate, error) {
	rules := profileRules{
		CustomEmail: strings.TrimSpace(portfolio.Deref(in.CustomEmail)),
		CustomSlug:  strings.TrimSpace(portfolio.Deref(in.CustomSlug)),
	}
	if err := s.check(rules); err != nil {
		return portfolio.ProfileUpdate{}, err
	}
	return portfolio.ProfileUpdate{
		CustomName:  portfolio.Optional(portfolio.Deref(in.CustomName)),
		CustomEmail: portfolio.Optional(rules.CustomEmail),
		HideEmail:   in.HideEmail != nil && *in.HideEmail,
		CustomSlug:  portfolio.Optional(rules.CustomSlug),
	}, nil
}

// check runs struct validation and folds failures into ErrInvalidInput.
func (s *Service) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		fields := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", portfolio.ErrInvalidInput, strings.Join(fields, "; "))
	}
	return fmt.Errorf("%w: %w", portfolio.ErrInvalidInput, err)
}
