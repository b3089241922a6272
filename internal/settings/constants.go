package settings

// DB config keys and defaults for settings.
const (
	// SiteNameKey is the DB config key for the UI site name.
	SiteNameKey = "SITE_NAME"
	// DefaultSiteName is the fallback UI site name.
	DefaultSiteName = "AgentHub"
	// SessionTTLHoursKey controls the session lifetime in hours.
	SessionTTLHoursKey = "SESSION_TTL_HOURS"
	// CSRFTokenTTLMinutesKey controls the CSRF token lifetime in minutes.
	CSRFTokenTTLMinutesKey = "CSRF_TOKEN_TTL_MINUTES"
	// SessionSweepIntervalSecondsKey controls the expired-session sweep interval.
	SessionSweepIntervalSecondsKey = "SESSION_SWEEP_INTERVAL_SECONDS"
	// DefaultAgentKey selects the agent preset offered to new conversations.
	DefaultAgentKey = "DEFAULT_AGENT"
	// DefaultSessionTTLHours is the fallback session lifetime (hours).
	DefaultSessionTTLHours = 168
	// DefaultCSRFTokenTTLMinutes is the fallback CSRF token lifetime (minutes).
	DefaultCSRFTokenTTLMinutes = 60
	// DefaultSessionSweepIntervalSeconds is the fallback sweep interval (seconds).
	DefaultSessionSweepIntervalSeconds = 300
	// DefaultAgent is the fallback agent preset.
	DefaultAgent = "CodeActAgent"
)
