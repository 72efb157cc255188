package capability

import (
	"strings"

	"github.com/pitabwire/cmsadmin/model"
)

// MsgDenied is returned to users rejected by the deny filter.
const MsgDenied = "Stupid Flanders!"

// AccessPolicy decides what an authenticated user may do.
//
// Users whose email contains DenyFilter are refused outright. Users with a
// truthy AdminClaim, or whose email ends with AdminDomain, get every
// capability. Everyone else gets Default plus whatever Roles grants.
type AccessPolicy struct {
	DenyFilter  string
	AdminClaim  string
	AdminDomain string
	Default     model.CapabilitySet
	Roles       model.PolicyEvaluator
}

var _ model.PolicyEvaluator = (*AccessPolicy)(nil)

// ResolveCapabilities implements model.PolicyEvaluator.
func (p *AccessPolicy) ResolveCapabilities(rctx *model.RequestContext) (model.CapabilitySet, error) {
	email := rctx.NormalizedEmail()
	if p.DenyFilter != "" && strings.Contains(email, strings.ToLower(p.DenyFilter)) {
		return nil, model.NewForbiddenError(MsgDenied)
	}
	if p.isAdmin(rctx, email) {
		return model.CapabilitySet{"*": true}, nil
	}

	caps := make(model.CapabilitySet, len(p.Default))
	for c, granted := range p.Default {
		if granted {
			caps[c] = true
		}
	}
	if p.Roles != nil {
		extra, err := p.Roles.ResolveCapabilities(rctx)
		if err != nil {
			return nil, err
		}
		for c, granted := range extra {
			if granted {
				caps[c] = true
			}
		}
	}
	return caps, nil
}

func (p *AccessPolicy) isAdmin(rctx *model.RequestContext, email string) bool {
	if p.AdminClaim != "" && truthy(rctx.Claim(p.AdminClaim)) {
		return true
	}
	return p.AdminDomain != "" && email != "" && strings.HasSuffix(email, strings.ToLower(p.AdminDomain))
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(t, "true")
	case float64:
		return t != 0
	}
	return false
}
