package model

import "strings"

// Capabilities checked by the API.
const (
	CapCollectionsRead  = "collections:read"
	CapCollectionsWrite = "collections:write"
	CapStorageRead      = "storage:read"
	CapStorageWrite     = "storage:write"
)

// CapabilitySet maps granted capability patterns to true. A pattern is a
// capability name, "*", or a namespace wildcard such as "storage:*".
type CapabilitySet map[string]bool

// Has reports whether any granted pattern covers want.
func (cs CapabilitySet) Has(want string) bool {
	if cs[want] {
		return true
	}
	for pattern, granted := range cs {
		if granted && covers(pattern, want) {
			return true
		}
	}
	return false
}

// HasAll reports whether every capability in want is covered.
func (cs CapabilitySet) HasAll(want ...string) bool {
	for _, c := range want {
		if !cs.Has(c) {
			return false
		}
	}
	return true
}

// covers handles the wildcard forms; "storage:*" covers "storage:write" but
// "storage:read" does not cover "storage:read:all".
func covers(pattern, want string) bool {
	if pattern == "*" {
		return true
	}
	ns, ok := strings.CutSuffix(pattern, "*")
	return ok && strings.HasSuffix(ns, ":") && strings.HasPrefix(want, ns)
}

// CapabilityResolver yields the capabilities of the caller. A FORBIDDEN
// *ErrorEnvelope rejects the request outright.
type CapabilityResolver interface {
	Resolve(rctx *RequestContext) (CapabilitySet, error)
}

// PolicyEvaluator computes capabilities from the caller's claims.
type PolicyEvaluator interface {
	ResolveCapabilities(rctx *RequestContext) (CapabilitySet, error)
}
