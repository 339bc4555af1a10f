package parser

import (
	"regexp"
	"strconv"

	"github.com/battery-insight/backend/internal/models"
)

// uidAliasRegex matches the u<user>a<appId> shorthand, e.g. "u0a47".
var uidAliasRegex = regexp.MustCompile(`^u(\d+)a(\d+)$`)

// perUserRange is the UID span of one Android user; app UIDs start at
// firstApplicationUID within it.
const (
	perUserRange        = 100000
	firstApplicationUID = 10000
)

// NormalizeUID extracts a numeric Android UID from a raw entity token.
// Recognized forms: a bare decimal UID ("10123", "1000") and the
// per-user alias ("u0a123" ⇒ 10123). Anything else carries no UID.
func NormalizeUID(token string) (int, bool) {
	if isDigits(token) {
		uid, err := strconv.Atoi(token)
		if err != nil {
			return 0, false
		}
		return uid, true
	}
	if m := uidAliasRegex.FindStringSubmatch(token); m != nil {
		user, err1 := strconv.Atoi(m[1])
		app, err2 := strconv.Atoi(m[2])
		if err1 != nil || err2 != nil {
			return 0, false
		}
		return user*perUserRange + firstApplicationUID + app, true
	}
	return 0, false
}

// IdentityResolver maps raw entity tokens from all sections of one dump
// to canonical identities. Tokens carrying a UID group by the
// normalized UID; free-text labels group by exact case-sensitive match.
// Two tokens are never merged on partial similarity: duplicate
// identities are preferable to a wrong merge.
type IdentityResolver struct {
	packages PackageMap
	byUID    map[int]*models.EntityIdentity
	byLabel  map[string]*models.EntityIdentity
	order    []*models.EntityIdentity
	sink     *anomalySink
}

// NewIdentityResolver creates a resolver for one parse pass. The
// package map may be nil.
func NewIdentityResolver(pkgs PackageMap, sink *anomalySink) *IdentityResolver {
	return &IdentityResolver{
		packages: pkgs,
		byUID:    make(map[int]*models.EntityIdentity),
		byLabel:  make(map[string]*models.EntityIdentity),
		sink:     sink,
	}
}

// Resolve returns the identity for a raw token, creating it on first
// sight. A given token always resolves to the same identity within the
// pass.
func (r *IdentityResolver) Resolve(token string) *models.EntityIdentity {
	uid, hasUID := NormalizeUID(token)

	if !hasUID {
		if e, ok := r.byLabel[token]; ok {
			return e
		}
		e := &models.EntityIdentity{
			CanonicalID: token,
			UID:         models.NoUID,
			DisplayName: token,
			RawTokens:   []string{token},
		}
		r.byLabel[token] = e
		r.order = append(r.order, e)
		return e
	}

	if e, ok := r.byUID[uid]; ok {
		e.AddRawToken(token)
		return e
	}

	displayName := token
	if name, ok := r.packages[uid]; ok {
		displayName = name
	}
	e := &models.EntityIdentity{
		CanonicalID: "uid:" + strconv.Itoa(uid),
		UID:         uid,
		DisplayName: displayName,
		RawTokens:   []string{token},
	}
	r.byUID[uid] = e
	r.order = append(r.order, e)
	return e
}

// ResolveNamed resolves a token that appeared together with a
// human-readable display name, e.g. the parenthesized label in
// "Uid u0a123 (Maps): 45.2". The friendly name is offered as the
// identity's display name.
func (r *IdentityResolver) ResolveNamed(token, friendly string) *models.EntityIdentity {
	e := r.Resolve(token)
	if friendly != "" && friendly != token {
		e.AddRawToken(friendly)
		r.offerName(e, friendly)
	}
	return e
}

// Entities returns all resolved identities in first-seen order.
func (r *IdentityResolver) Entities() []*models.EntityIdentity {
	return r.order
}

// offerName keeps the most specific human-readable display name for an
// identity. A numeric name is always displaced; two conflicting
// human-readable names are surfaced as an ambiguity and the first one
// kept, never guessed between.
func (r *IdentityResolver) offerName(e *models.EntityIdentity, candidate string) {
	if candidate == e.DisplayName || !isHumanReadable(candidate) {
		return
	}
	if !isHumanReadable(e.DisplayName) {
		e.DisplayName = candidate
		return
	}
	r.sink.add(models.Anomaly{
		Kind:    models.AnomalyIdentityAmbiguity,
		Content: candidate,
		Reason:  "uid " + strconv.Itoa(e.UID) + " already named " + e.DisplayName,
	})
}

// isHumanReadable reports whether a token is a friendly name rather
// than a numeric UID or u<user>a<appId> alias.
func isHumanReadable(token string) bool {
	_, hasUID := NormalizeUID(token)
	return !hasUID
}
