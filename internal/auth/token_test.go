package auth

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const legacyToken = "sk-123456789012345678901234567890123456789012345678"

func TestValidator_ValidTokens(t *testing.T) {
	tokens := []string{
		legacyToken,
		"sk-abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUV",
		"sk-ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789abcdefghijkl",
		"sk-proj-1234567890123456789012345678901234567890",
		"sk-proj-abcdefghijklmnopqrstuvwxyz1234567890ABCDEFGHIJKLMNOPQRSTUVWXYZ",
		"sk-proj-test_1234567890123456789012345678901234567890",
		"sk-svcacct-1234567890123456789012345678901234567890",
		"sk-svcacct-abc_def_ghi-jkl_mno-pqr_123456789012345678901234",
		"sk-proj-" + strings.Repeat("a", 200),
	}

	v := NewValidator(nil)
	for _, token := range tokens {
		caller, ok := v.Validate("Bearer "+token, http.Header{})
		assert.True(t, ok, "token %q should be accepted", token)
		assert.Equal(t, CallerContext{
			Subject:      Subject,
			Organization: DefaultOrganization,
			Project:      DefaultProject,
			AuthType:     AuthType,
		}, caller)
	}
}

func TestValidator_InvalidTokens(t *testing.T) {
	tokens := []string{
		"",
		"invalid-key",
		"pk-123456789012345678901234567890123456789012345678",
		"ak-123456789012345678901234567890123456789012345678",
		"sk-12345678901234567890123456789012345678901234567! ",
		"sk-test@invalid#chars$1234567890123456789012345678901234567890",
		"sk-proj-abc",
		"sk-abc",
		"sk-proj-abc def@#$%123456789012345678901234567890",
		"sk-proj abc-def-ghi-jkl-mno-123456789012345678901234567890",
		"sk-",
		"sk-1234567890123456789012345678901234567890123456",
		"sk-1234567890abcdefghijklmnopqrstuvwxyz0123456789",
		"sk-org-1234567890123456789012345678901234567890abcd",
		"sk-proj-12345678901234567890123456789012345678",
		"sk-svcacct-123456789012345678901234567890123",
		"sk-1234567890123456789012345678901234567890123456789",
		"sk-proj-" + strings.Repeat("a", 201),
	}

	v := NewValidator(nil)
	for _, token := range tokens {
		caller, ok := v.Validate("Bearer "+token, nil)
		assert.False(t, ok, "token %q should be rejected", token)
		assert.Empty(t, caller)
	}
}

func TestValidator_Headers(t *testing.T) {
	v := NewValidator(nil)

	headers := http.Header{}
	headers.Set(HeaderOrganization, "org-test")
	headers.Set(HeaderProject, "proj-test")
	caller, ok := v.Validate("Bearer "+legacyToken, headers)
	assert.True(t, ok)
	assert.Equal(t, "org-test", caller.Organization)
	assert.Equal(t, "proj-test", caller.Project)

	headers = http.Header{}
	headers.Set(HeaderOrganization, "org-specific")
	caller, ok = v.Validate(legacyToken, headers)
	assert.True(t, ok)
	assert.Equal(t, "org-specific", caller.Organization)
	assert.Equal(t, DefaultProject, caller.Project)
}

func TestExtractToken(t *testing.T) {
	assert.Equal(t, legacyToken, ExtractToken("Bearer "+legacyToken))
	assert.Equal(t, legacyToken, ExtractToken("bearer  "+legacyToken))
	assert.Equal(t, legacyToken, ExtractToken(legacyToken))
	assert.Equal(t, "", ExtractToken("   "))
}

func TestValidator_AllowList(t *testing.T) {
	other := "sk-abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUV"
	v := NewValidator([]string{legacyToken, "  "})

	_, ok := v.Validate("Bearer "+legacyToken, nil)
	assert.True(t, ok)

	_, ok = v.Validate("Bearer "+other, nil)
	assert.False(t, ok, "well-formed but unlisted token")

	_, ok = NewValidator([]string{"not-a-valid-format"}).Validate("Bearer not-a-valid-format", nil)
	assert.False(t, ok, "listed tokens still need a valid format")
}
