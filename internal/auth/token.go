package auth

import (
	"crypto/subtle"
	"net/http"
	"regexp"
	"strings"
)

const (
	HeaderOrganization = "OpenAI-Organization"
	HeaderProject      = "OpenAI-Project"

	DefaultOrganization = "org-default"
	DefaultProject      = "proj-default"

	// Subject is the principal name of every token-authenticated caller.
	Subject  = "openai-compat"
	AuthType = "token"

	legacyTokenLength = 51
)

var (
	legacyTokenPattern = regexp.MustCompile(`^sk-[A-Za-z0-9]{48}$`)
	modernTokenPattern = regexp.MustCompile(`^sk-(proj|svcacct)-[A-Za-z0-9_-]{40,200}$`)
)

// CallerContext identifies an authenticated caller.
type CallerContext struct {
	Subject      string `json:"subject"`
	Organization string `json:"organization"`
	Project      string `json:"project"`
	AuthType     string `json:"auth_type"`
}

// Validator checks bearer tokens. With an empty allow-list any well-formed token
// is accepted; otherwise the token must also be listed.
type Validator struct {
	allowed [][]byte
}

// NewValidator creates a validator. allowList may be empty.
func NewValidator(allowList []string) *Validator {
	v := &Validator{}
	for _, key := range allowList {
		if key = strings.TrimSpace(key); key != "" {
			v.allowed = append(v.allowed, []byte(key))
		}
	}
	return v
}

// Validate accepts a raw Authorization header value ("Bearer <token>") or a bare
// token. It never panics and reports failure through ok.
func (v *Validator) Validate(authorization string, headers http.Header) (CallerContext, bool) {
	token := ExtractToken(authorization)
	if !WellFormed(token) || !v.allowedToken(token) {
		return CallerContext{}, false
	}

	return CallerContext{
		Subject:      Subject,
		Organization: headerOr(headers, HeaderOrganization, DefaultOrganization),
		Project:      headerOr(headers, HeaderProject, DefaultProject),
		AuthType:     AuthType,
	}, true
}

// ExtractToken strips an optional case-insensitive "Bearer " scheme.
func ExtractToken(authorization string) string {
	value := strings.TrimSpace(authorization)
	if len(value) > 7 && strings.EqualFold(value[:7], "bearer ") {
		value = strings.TrimSpace(value[7:])
	}
	return value
}

// WellFormed reports whether token matches the legacy or the project/service-account format.
func WellFormed(token string) bool {
	if !strings.HasPrefix(token, "sk-") {
		return false
	}
	if len(token) == legacyTokenLength && legacyTokenPattern.MatchString(token) {
		return true
	}
	return modernTokenPattern.MatchString(token)
}

func (v *Validator) allowedToken(token string) bool {
	if len(v.allowed) == 0 {
		return true
	}
	match := 0
	for _, key := range v.allowed {
		match |= subtle.ConstantTimeCompare(key, []byte(token))
	}
	return match == 1
}

func headerOr(headers http.Header, name, fallback string) string {
	if headers == nil {
		return fallback
	}
	if value := strings.TrimSpace(headers.Get(name)); value != "" {
		return value
	}
	return fallback
}
