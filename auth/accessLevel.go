// SPDX-FileCopyrightText: 2026 fedanalytics
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"github.com/spf13/cast"
	"github.com/xmidt-org/bascule"
)

// Exported access level default values which application code may want to use.
const (
	DefaultAccessLevelAttributeKey   = "access-level"
	DefaultAccessLevelAttributeValue = 0
)

// ElevatedAccessLevelAttributeValue is the value assigned when the token
// carries the administrative role.
const ElevatedAccessLevelAttributeValue = 1

// internal default values
const defaultAccessLevelRoleName = "gateway-admin"

var defaultAccessLevelPath = []string{"realm_access", "roles"}

// AccessLevel resolves the access level for a request given its bascule
// attributes.
type AccessLevel struct {
	Resolve      accessLevelResolver
	AttributeKey string
}

// accessLevelResolver determines what access level value is assigned to a
// request based on the roles its token carries.
type accessLevelResolver func(bascule.Attributes) int

type accessLevelRoleSource struct {
	// Name is the role we will search for inside the role list pointed
	// at by Path. When present the access level assigned to the request
	// is 1, otherwise 0.
	// (Optional) defaults to 'gateway-admin'
	Name string

	// Path is the list of nested claim keys leading to the role list.
	// (Optional) default: ["realm_access", "roles"]
	Path []string
}

// AccessLevelConfig shapes how the elevated access attribute is derived
// from identity provider tokens.
type AccessLevelConfig struct {
	AttributeKey string
	RoleSource   accessLevelRoleSource
}

func defaultAccessLevel() AccessLevel {
	return AccessLevel{
		AttributeKey: DefaultAccessLevelAttributeKey,
		Resolve: func(_ bascule.Attributes) int {
			return DefaultAccessLevelAttributeValue
		},
	}
}

func validateAccessLevelConfig(config *AccessLevelConfig) {
	if len(config.AttributeKey) < 1 {
		config.AttributeKey = DefaultAccessLevelAttributeKey
	}

	if len(config.RoleSource.Name) < 1 {
		config.RoleSource.Name = defaultAccessLevelRoleName
	}

	if len(config.RoleSource.Path) < 1 {
		config.RoleSource.Path = defaultAccessLevelPath
	}
}

func newRoleAccessLevel(config *AccessLevelConfig) AccessLevel {
	if config == nil {
		return defaultAccessLevel()
	}
	validateAccessLevelConfig(config)

	resolve := func(attributes bascule.Attributes) int {
		rolesClaim, ok := bascule.GetNestedAttribute(attributes, config.RoleSource.Path...)
		if !ok {
			return DefaultAccessLevelAttributeValue
		}
		roles := cast.ToStringSlice(rolesClaim)

		for _, role := range roles {
			if role == config.RoleSource.Name {
				return ElevatedAccessLevelAttributeValue
			}
		}

		return DefaultAccessLevelAttributeValue
	}

	return AccessLevel{
		AttributeKey: config.AttributeKey,
		Resolve:      resolve,
	}
}
