package auth

// State is a step of the post-login chain. A run moves forward only:
//
//	Start -> ClientLoaded -> Bootstrapped -> (UserIDCorrelated) -> TokenRefreshed -> Redirected
//
// Any failure before TokenRefreshed ends in RedirectedWithStaleTokens.
type State string

const (
	StateStart                     State = "START"
	StateClientLoaded              State = "CLIENT_LOADED"
	StateBootstrapped              State = "BOOTSTRAPPED"
	StateUserIDCorrelated          State = "USER_ID_CORRELATED"
	StateTokenRefreshed            State = "TOKEN_REFRESHED"
	StateRedirected                State = "REDIRECTED"
	StateRedirectedWithStaleTokens State = "REDIRECTED_WITH_STALE_TOKENS"
)

// Terminal reports whether s ends a run
func (s State) Terminal() bool {
	return s == StateRedirected || s == StateRedirectedWithStaleTokens
}

// Degraded reports whether the run finished without replacing the stored tokens
// because something failed along the way
func (s State) Degraded() bool {
	return s == StateRedirectedWithStaleTokens
}

// Outcome is the result of one orchestration run. Err carries the swallowed
// failure, if any. It is informational only and never stops the redirect.
type Outcome struct {
	State    State
	Reason   string
	Err      error
	TimedOut bool
}
