package schema

import (
	"strings"

	"github.com/pitabwire/cmsadmin/model"
)

// Assemble combines normalized properties with resolved permissions and
// localized labels. Properties sharing a key overwrite earlier ones; the
// key keeps the position of its first appearance.
func Assemble(
	cfg model.CollectionConfig,
	props []KeyedProperty,
	locales model.Locales,
	activeLocale string,
) model.CollectionDescriptor {
	labels := ResolveLabels(cfg, locales, activeLocale)

	desc := model.CollectionDescriptor{
		ID:              strings.TrimSpace(cfg.ID),
		Path:            strings.TrimSpace(cfg.Path),
		Name:            labels.Name,
		Description:     labels.Description,
		Group:           labels.Group,
		Icon:            cfg.Icon,
		Permissions:     ResolvePermissions(cfg.Permissions),
		Properties:      make(map[string]model.PropertyDescriptor, len(props)),
		PropertiesOrder: make([]string, 0, len(props)),
	}

	for _, kp := range props {
		if _, exists := desc.Properties[kp.Key]; !exists {
			desc.PropertiesOrder = append(desc.PropertiesOrder, kp.Key)
		}
		desc.Properties[kp.Key] = kp.Property
	}
	return desc
}

// ResolvePermissions fills every unset flag from model.DefaultPermissions.
func ResolvePermissions(p *model.PermissionsConfig) model.Permissions {
	out := model.DefaultPermissions
	if p == nil {
		return out
	}
	if p.Read != nil {
		out.Read = *p.Read
	}
	if p.Create != nil {
		out.Create = *p.Create
	}
	if p.Edit != nil {
		out.Edit = *p.Edit
	}
	if p.Delete != nil {
		out.Delete = *p.Delete
	}
	return out
}
