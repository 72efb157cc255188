// Package capability resolves and caches what an authenticated user may do
// with collections and storage.
package capability

import (
	"errors"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/pitabwire/cmsadmin/model"
)

// CacheRecorder observes capability cache lookups.
type CacheRecorder interface {
	RecordCapabilityCacheHit()
	RecordCapabilityCacheMiss()
}

// Resolver implements model.CapabilityResolver with an in-memory cache keyed
// by subject. Denials are cached as well so a rejected user does not hit the
// policy on every request.
type Resolver struct {
	evaluator model.PolicyEvaluator
	cache     *cache.Cache
	recorder  CacheRecorder
}

var _ model.CapabilityResolver = (*Resolver)(nil)

type entry struct {
	caps   model.CapabilitySet
	denial *model.ErrorEnvelope
}

// NewResolver creates a Resolver with the given evaluator and cache TTL.
func NewResolver(evaluator model.PolicyEvaluator, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Resolver{
		evaluator: evaluator,
		cache:     cache.New(ttl, 2*ttl),
	}
}

// WithRecorder reports cache hits and misses to rec.
func (r *Resolver) WithRecorder(rec CacheRecorder) *Resolver {
	r.recorder = rec
	return r
}

// Resolve returns the full capability set for the given context. Results are
// cached for the configured TTL.
func (r *Resolver) Resolve(rctx *model.RequestContext) (model.CapabilitySet, error) {
	if v, ok := r.cache.Get(rctx.SubjectID); ok {
		r.record(true)
		e := v.(entry)
		if e.denial != nil {
			return nil, e.denial
		}
		return e.caps, nil
	}
	r.record(false)

	caps, err := r.evaluator.ResolveCapabilities(rctx)
	if err != nil {
		var env *model.ErrorEnvelope
		if errors.As(err, &env) && env.Code == model.ErrForbidden {
			r.cache.SetDefault(rctx.SubjectID, entry{denial: env})
		}
		return nil, err
	}
	r.cache.SetDefault(rctx.SubjectID, entry{caps: caps})
	return caps, nil
}

// Flush clears every cached capability set, e.g. after the role policy is
// reloaded.
func (r *Resolver) Flush() {
	r.cache.Flush()
}

func (r *Resolver) record(hit bool) {
	if r.recorder == nil {
		return
	}
	if hit {
		r.recorder.RecordCapabilityCacheHit()
	} else {
		r.recorder.RecordCapabilityCacheMiss()
	}
}
