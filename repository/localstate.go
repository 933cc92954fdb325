package repository

// Keys owned by the gateway in the local persisted state store. All are
// best-effort caches, never authoritative.
const (
	KeyRedirectAfterLogin      = "redirectAfterLogin"
	KeyLastVoiceParam          = "lastVoiceParam"
	KeyLastVoiceParamTimestamp = "lastVoiceParamTimestamp"
	KeyPreserveSearchParams    = "preserveSearchParams"
	KeyVoiceParamTransitions   = "voiceParamTransitions"
)

// LocalStateRepository is the explicit key-value contract injected into each
// resolver in place of ambient storage access. Implementations are free to
// lose writes under concurrent read-modify-write; callers tolerate eventual
// consistency.
type LocalStateRepository interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
	GetJSON(key string, out any) (bool, error)
	SetJSON(key string, value any) error
}
