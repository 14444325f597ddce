package auth

import (
	"strings"

	"gymbro/internal/app/api"
	"gymbro/internal/app/session"
)

// Routes reachable without a session.
var publicRoutes = map[string]struct{}{
	api.LoginRoute:    {},
	"/register":       {},
	"/oauth/callback": {},
}

// Decision is the outcome of a route check.
type Decision struct {
	Allowed  bool
	Redirect string
}

// Guard decides whether route may be shown. Public routes always pass; every other
// route requires an access token and otherwise redirects to the login view.
func Guard(sessions *session.Manager, route string) Decision {
	if IsPublicRoute(route) {
		return Decision{Allowed: true}
	}
	if sessions.IsLoggedIn() {
		return Decision{Allowed: true}
	}
	return Decision{Redirect: api.LoginRoute}
}

// Guard checks route against the service's session.
func (s *Service) Guard(route string) Decision {
	return Guard(s.session, route)
}

// IsPublicRoute reports whether route is reachable while logged out.
// Query strings and trailing slashes are ignored.
func IsPublicRoute(route string) bool {
	if i := strings.IndexAny(route, "?#"); i >= 0 {
		route = route[:i]
	}
	if len(route) > 1 {
		route = strings.TrimRight(route, "/")
	}

	_, ok := publicRoutes[route]
	return ok
}
