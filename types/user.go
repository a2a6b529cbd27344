package types

// User is the owner of results, triggers and context records. Identity
// and authentication are external; the engine only consumes the uid and
// the locale passed to skills.
type User struct {
	UID    string `json:"uid"`
	Name   string `json:"name,omitempty"`
	Locale string `json:"locale,omitempty"`
}
