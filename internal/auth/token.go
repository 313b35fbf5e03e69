// Package auth mints the short-lived user tokens handed to the importer.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"

	"github.com/shehryarbajwa/importbridge/pkg/models"
)

var ErrNoSecret = errors.New("token secret is not configured")

// Claims are the importer token claims
type Claims struct {
	Username     string `json:"username"`
	CustomerName string `json:"customer_name"`
	Quarter      string `json:"quarter"`
	Year         string `json:"year"`
	TravelAgency string `json:"travel_agency"`
	Country      string `json:"country"`
	jwt.RegisteredClaims
}

// Minter signs HS256 importer tokens
type Minter struct {
	issuer   string
	secret   []byte
	ttl      time.Duration
	validate *validator.Validate
	now      func() time.Time
}

// NewMinter creates a minter. issuer is the importer client id.
func NewMinter(issuer string, secret []byte, ttl time.Duration) *Minter {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Minter{
		issuer:   issuer,
		secret:   secret,
		ttl:      ttl,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
}

// ValidationError lists the invalid form fields
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, msg := range e.Fields {
		parts = append(parts, f+": "+msg)
	}
	return "invalid raw data form: " + strings.Join(parts, "; ")
}

// Enabled reports whether a signing secret is configured.
func (m *Minter) Enabled() bool {
	return len(m.secret) > 0
}

// Validate checks the raw-data form.
func (m *Minter) Validate(form models.RawDataForm) error {
	err := m.validate.Struct(form)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[jsonName(fe.Field())] = describe(fe)
	}
	return &ValidationError{Fields: fields}
}

// Mint validates form and signs a token for it.
func (m *Minter) Mint(form models.RawDataForm) (*models.TokenResponse, error) {
	if len(m.secret) == 0 {
		return nil, ErrNoSecret
	}
	if err := m.Validate(form); err != nil {
		return nil, err
	}

	now := m.now()
	expiresAt := now.Add(m.ttl)

	claims := Claims{
		Username:     form.Username,
		CustomerName: form.CustomerName,
		Quarter:      form.Quarter,
		Year:         form.Year,
		TravelAgency: form.TravelAgency,
		Country:      form.Country,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	domain := form.Domain
	if domain == "" {
		domain = "travel"
	}

	return &models.TokenResponse{
		Token:      signed,
		ExpiresAt:  expiresAt.UTC(),
		Domain:     domain,
		TravelType: form.TravelType,
	}, nil
}

// Parse verifies a token minted by m and returns its claims.
func (m *Minter) Parse(token string) (*Claims, error) {
	if !m.Enabled() {
		return nil, ErrNoSecret
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

var fieldNames = map[string]string{
	"Username":     "username",
	"CustomerName": "customer_name",
	"TravelAgency": "travel_agency",
	"Country":      "country",
	"Quarter":      "quarter",
	"Year":         "year",
}

func jsonName(field string) string {
	if n, ok := fieldNames[field]; ok {
		return n
	}
	return field
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "cannot be empty"
	case "alpha":
		return "only alphabets are allowed"
	case "numeric":
		return "only numbers are allowed"
	case "alphanum":
		return "only alphabets and numbers are allowed"
	case "uppercase":
		return "only upper case alphabets are allowed"
	case "len":
		return "must be exactly " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}
