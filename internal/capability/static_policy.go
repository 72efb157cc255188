package capability

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/pitabwire/cmsadmin/model"
)

type policyFile struct {
	Roles map[string][]string `yaml:"roles"`
}

// StaticPolicy maps roles to capabilities using a YAML file of the form
//
//	roles:
//	  editor: ["collections:*", "storage:read"]
type StaticPolicy struct {
	path   string
	mu     sync.RWMutex
	policy policyFile
}

// NewStaticPolicy loads the role policy at path.
func NewStaticPolicy(path string) (*StaticPolicy, error) {
	p := &StaticPolicy{path: path}
	if err := p.Sync(); err != nil {
		return nil, err
	}
	return p, nil
}

// ResolveCapabilities returns the union of capabilities for all roles in the
// request context.
func (p *StaticPolicy) ResolveCapabilities(rctx *model.RequestContext) (model.CapabilitySet, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	caps := make(model.CapabilitySet)
	for _, role := range rctx.Roles {
		for _, c := range p.policy.Roles[role] {
			caps[c] = true
		}
	}
	return caps, nil
}

// Roles returns the number of roles the policy defines.
func (p *StaticPolicy) Roles() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.policy.Roles)
}

// Sync reloads the policy file from disk. The previous policy stays in
// effect if the file cannot be read or parsed.
func (p *StaticPolicy) Sync() error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("capability: reading policy file %s: %w", p.path, err)
	}

	var pf policyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return fmt.Errorf("capability: parsing policy file %s: %w", p.path, err)
	}

	p.mu.Lock()
	p.policy = pf
	p.mu.Unlock()
	return nil
}
