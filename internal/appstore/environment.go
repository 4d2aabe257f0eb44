// Package appstore verifies App Store signed payloads (JWS) and talks to the
// App Store Server API.
//
// A SignedDataVerifier trusts one environment. DualVerifier tries production
// first and falls back to sandbox, because TestFlight and review builds send
// sandbox payloads to the same production endpoint.
package appstore

// Environment is the App Store environment named in signed payloads.
type Environment string

const (
	EnvironmentProduction Environment = "Production"
	EnvironmentSandbox    Environment = "Sandbox"
)

// IsSandbox reports whether e is the sandbox environment.
func (e Environment) IsSandbox() bool {
	return e == EnvironmentSandbox
}

// Label returns the lowercase name used in logs and metrics.
func (e Environment) Label() string {
	switch e {
	case EnvironmentProduction:
		return "production"
	case EnvironmentSandbox:
		return "sandbox"
	default:
		return "unknown"
	}
}
