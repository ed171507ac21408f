package auth

import (
	"strings"

	authservice "perfumery-notify/internal/service/auth"
)

// Permission lists the methods and paths a role may use.
//
// A path pattern ending in "/*" matches the prefix itself and everything
// below it; "/*" alone matches every path. Other patterns match exactly.
type Permission struct {
	AllowedMethods []string
	AllowedPaths   []string
}

// RolePermissions maps each role to its permissions. Admins may trigger
// notifications, change order status and test credentials; viewers may
// only read the paths listed below.
var RolePermissions = map[string]Permission{
	authservice.RoleAdmin: {
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedPaths:   []string{"/*"},
	},
	authservice.RoleViewer: {
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedPaths:   []string{"/telegram/recipients", "/orders/*", "/inbox/*"},
	},
}

// checkRolePermission reports whether role may call method on path.
func checkRolePermission(role, method, path string) bool {
	if role == "" {
		return false
	}
	perm, exists := RolePermissions[role]
	if !exists {
		return false
	}

	methodAllowed := false
	for _, m := range perm.AllowedMethods {
		if m == method {
			methodAllowed = true
			break
		}
	}
	if !methodAllowed {
		return false
	}
	return matchesPathPattern(path, perm.AllowedPaths)
}

func matchesPathPattern(path string, patterns []string) bool {
	for _, pattern := range patterns {
		if pattern == "/*" {
			return true
		}
		if strings.HasSuffix(pattern, "/*") {
			prefix := strings.TrimSuffix(pattern, "/*")
			if path == prefix || strings.HasPrefix(path, prefix+"/") {
				return true
			}
			continue
		}
		if path == pattern {
			return true
		}
	}
	return false
}
