package creds

// ConfigError reports contradictory or missing required settings.
// It is always raised before any network call is attempted, and its
// message never contains secret material.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return "creds: " + e.Msg
}
