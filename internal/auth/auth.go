package auth

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	RoleRider    = "rider"
	RoleOperator = "operator"
)

// Identity is the caller behind an API key. UserID replaces the user_id a
// client puts in a request body.
type Identity struct {
	UserID int64
	Roles  []string
}

func (i Identity) HasRole(role string) bool {
	for _, candidate := range i.Roles {
		if candidate == role {
			return true
		}
	}
	return false
}

type APIKeyValidator interface {
	Validate(ctx context.Context, apiKey string) (Identity, bool)
}

type StaticAPIKeyValidator struct {
	keys map[string]Identity
}

// NewStaticAPIKeyValidator parses comma separated key:user_id[:role|role]
// entries. Entries without roles get the rider role.
func NewStaticAPIKeyValidator(spec string) (*StaticAPIKeyValidator, error) {
	validator := &StaticAPIKeyValidator{keys: map[string]Identity{}}
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return validator, nil
	}

	entries := strings.Split(spec, ",")
	for _, entry := range entries {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) != 2 && len(parts) != 3 {
			return nil, fmt.Errorf("invalid static key entry %q: expected key:user_id[:role|role]", entry)
		}
		key := strings.TrimSpace(parts[0])
		if key == "" {
			return nil, fmt.Errorf("invalid static key entry %q: empty key", entry)
		}
		userID, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
		if err != nil || userID <= 0 {
			return nil, fmt.Errorf("invalid static key entry %q: user id must be a positive integer", entry)
		}

		roles := []string{RoleRider}
		if len(parts) == 3 {
			roles = roles[:0]
			for _, role := range strings.Split(strings.TrimSpace(parts[2]), "|") {
				role = strings.TrimSpace(role)
				if role == "" {
					continue
				}
				roles = append(roles, role)
			}
			if len(roles) == 0 {
				return nil, fmt.Errorf("invalid static key entry %q: at least one role is required", entry)
			}
		}
		sort.Strings(roles)
		validator.keys[key] = Identity{UserID: userID, Roles: roles}
	}

	return validator, nil
}

func (v *StaticAPIKeyValidator) Validate(_ context.Context, apiKey string) (Identity, bool) {
	identity, ok := v.keys[apiKey]
	return identity, ok
}
