package google

// DefaultOAuthScopes are the Google OAuth scopes the server requests.
//
// The scopes provide access to:
//   - Google Calendar: full access (event mutations and free/busy queries)
//   - OpenID Connect: user identity for audit attribution
var DefaultOAuthScopes = []string{
	// OpenID Connect scopes (required for user info)
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",

	// Google Calendar scope
	"https://www.googleapis.com/auth/calendar",
}
