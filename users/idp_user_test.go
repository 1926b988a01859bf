package users_test

import (
	"encoding/json"
	"testing"

	"github.com/jrsteele09/go-auth-gateway/users"
	"github.com/stretchr/testify/require"
)

const testIdPUserJSON = `{
	"id": "kc-123",
	"username": "jane@example.com",
	"email": "jane@example.com",
	"enabled": true,
	"requiredActions": [],
	"attributes": {"locale": ["en"], "tier": ["gold", "beta"]}
}`

func decodeUser(t *testing.T) users.IdPUser {
	t.Helper()
	var u users.IdPUser
	require.NoError(t, json.Unmarshal([]byte(testIdPUserJSON), &u))
	return u
}

// TestIdPUser_Accessors tests reading the well-known fields of a decoded record
func TestIdPUser_Accessors(t *testing.T) {
	u := decodeUser(t)

	require.Equal(t, "kc-123", u.ID())
	require.Equal(t, "jane@example.com", u.Username())
	require.Equal(t, "jane@example.com", u.Email())
	require.Equal(t, map[string][]string{"locale": {"en"}, "tier": {"gold", "beta"}}, u.Attributes())

	v, ok := u.Attribute("tier")
	require.True(t, ok)
	require.Equal(t, "gold", v)

	_, ok = u.Attribute(users.UserIDAttribute)
	require.False(t, ok)
}

// TestIdPUser_WithAttribute tests that merging an attribute preserves the rest of the record
func TestIdPUser_WithAttribute(t *testing.T) {
	u := decodeUser(t)

	merged := u.WithAttribute(users.UserIDAttribute, "u-42")

	require.True(t, merged.HasAttributeValue(users.UserIDAttribute, "u-42"))
	require.True(t, merged.HasAttributeValue("locale", "en"))
	require.True(t, merged.HasAttributeValue("tier", "gold", "beta"))
	require.Equal(t, true, merged["enabled"])
	require.Equal(t, "kc-123", merged.ID())

	// The original record is untouched
	require.False(t, u.HasAttributeValue(users.UserIDAttribute, "u-42"))

	// Survives the JSON round trip to the admin API
	b, err := json.Marshal(merged)
	require.NoError(t, err)
	var back users.IdPUser
	require.NoError(t, json.Unmarshal(b, &back))
	require.True(t, back.HasAttributeValue(users.UserIDAttribute, "u-42"))
	require.True(t, back.HasAttributeValue("tier", "gold", "beta"))
}

// TestIdPUser_NoAttributes tests merging into a record without an attributes map
func TestIdPUser_NoAttributes(t *testing.T) {
	u := users.IdPUser{"id": "kc-1"}
	merged := u.WithAttribute(users.UserIDAttribute, "u-1")
	require.Equal(t, map[string][]string{users.UserIDAttribute: {"u-1"}}, merged.Attributes())
}

// TestIdPUser_WithAttributeKeepsUnreadValues tests that blank and non-string attribute values are written back unchanged
func TestIdPUser_WithAttributeKeepsUnreadValues(t *testing.T) {
	var u users.IdPUser
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "kc-1",
		"attributes": {"blank": [""], "mixed": ["a", 7, true], "flag": [false]}
	}`), &u))

	merged := u.WithAttribute(users.UserIDAttribute, "u-1")

	b, err := json.Marshal(merged)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"id": "kc-1",
		"attributes": {"blank": [""], "mixed": ["a", 7, true], "flag": [false], "userId": ["u-1"]}
	}`, string(b))
	require.True(t, merged.HasAttributeValue(users.UserIDAttribute, "u-1"))
}
