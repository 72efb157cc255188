package schema

import (
	"strings"

	"github.com/pitabwire/cmsadmin/model"
)

// ResolveLocalized returns the trimmed override when it is non-blank,
// otherwise the trimmed base. An empty result means the value is unset.
func ResolveLocalized(base, override string) string {
	if o := strings.TrimSpace(override); o != "" {
		return o
	}
	return strings.TrimSpace(base)
}

// LocalizedLabels holds the collection-level labels for one locale.
type LocalizedLabels struct {
	Name        string
	Description string
	Group       string
}

// ResolveLabels resolves name, description and group of cfg for
// activeLocale. An empty activeLocale selects the default locale.
func ResolveLabels(cfg model.CollectionConfig, locales model.Locales, activeLocale string) LocalizedLabels {
	override := cfg.Localizations[locales.Resolve(activeLocale)]
	return LocalizedLabels{
		Name:        ResolveLocalized(cfg.Name, override.Name),
		Description: ResolveLocalized(cfg.Description, override.Description),
		Group:       ResolveLocalized(cfg.Group, override.Group),
	}
}
