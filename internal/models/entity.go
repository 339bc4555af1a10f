package models

// NoUID marks an identity that carries no numeric Android UID
// (free-text system buckets like "Screen" or "Cell standby").
const NoUID = -1

// EntityIdentity is the canonical identity an app or system bucket
// resolves to within a single parse pass. Raw tokens from different
// sections of the same dump (UID number, u0aNN alias, package name,
// friendly label) all map to exactly one identity.
type EntityIdentity struct {
	CanonicalID string   `json:"canonicalId"`
	UID         int      `json:"uid"` // NoUID when the entity has no numeric UID
	DisplayName string   `json:"displayName"`
	RawTokens   []string `json:"rawTokens"`
}

// AddRawToken records a token that resolved to this identity,
// keeping the set free of duplicates.
func (e *EntityIdentity) AddRawToken(tok string) {
	for _, t := range e.RawTokens {
		if t == tok {
			return
		}
	}
	e.RawTokens = append(e.RawTokens, tok)
}
