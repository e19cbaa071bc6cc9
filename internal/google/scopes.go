package google

// DefaultOAuthScopes are the Google OAuth scopes the reservation backend
// needs. Only Calendar access is requested; bookings are plain calendar
// events and no other Google service is touched.
var DefaultOAuthScopes = []string{
	// OpenID Connect scopes (required for user info)
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",

	// Google Calendar scope
	"https://www.googleapis.com/auth/calendar",

	// Calendar events only, for deployments that restrict the broader scope
	"https://www.googleapis.com/auth/calendar.events",
}
