package users

import (
	"maps"
	"slices"

	"github.com/jrsteele09/go-auth-gateway/internal/utils"
)

// UserIDAttribute is the IdP user attribute carrying the identity service user id
const UserIDAttribute = "userId"

// IdPUser is a user record as returned by the IdP admin API.
// It is kept as a generic document so fields the gateway does not know about
// survive a read-modify-write.
type IdPUser map[string]any

func (u IdPUser) ID() string {
	s, _ := u["id"].(string)
	return s
}

func (u IdPUser) Username() string {
	s, _ := u["username"].(string)
	return s
}

func (u IdPUser) Email() string {
	s, _ := u["email"].(string)
	return s
}

// Attributes returns a copy of the multi-valued attribute map
func (u IdPUser) Attributes() map[string][]string {
	out := map[string][]string{}
	switch attrs := u["attributes"].(type) {
	case map[string]any:
		for k, v := range attrs {
			switch vals := v.(type) {
			case []any:
				out[k] = utils.ToStringSlice(vals)
			case []string:
				out[k] = slices.Clone(vals)
			case string:
				out[k] = []string{vals}
			}
		}
	case map[string][]string:
		for k, v := range attrs {
			out[k] = slices.Clone(v)
		}
	}
	return out
}

// Attribute returns the first value of the named attribute
func (u IdPUser) Attribute(name string) (string, bool) {
	vals := u.Attributes()[name]
	if len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

// HasAttributeValue reports whether name is set to exactly values
func (u IdPUser) HasAttributeValue(name string, values ...string) bool {
	return slices.Equal(u.Attributes()[name], values)
}

// WithAttribute returns a copy of the record with name set to values.
// All other attributes and top-level fields are passed through as they were read,
// including values the typed accessors skip.
func (u IdPUser) WithAttribute(name string, values ...string) IdPUser {
	merged := maps.Clone(u)
	if merged == nil {
		merged = IdPUser{}
	}
	attrs := map[string]any{}
	switch raw := u["attributes"].(type) {
	case map[string]any:
		maps.Copy(attrs, raw)
	case map[string][]string:
		for k, v := range raw {
			attrs[k] = v
		}
	}
	attrs[name] = slices.Clone(values)
	merged["attributes"] = attrs
	return merged
}
