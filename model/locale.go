package model

// Locale is one supported content locale.
type Locale struct {
	Code  string `json:"code"  yaml:"code"`
	Label string `json:"label" yaml:"label"`
}

// Locales is the ordered list of supported locales. The first entry is the
// default locale.
type Locales []Locale

// DefaultLocales is used when no locales are configured.
func DefaultLocales() Locales {
	return Locales{
		{Code: "en", Label: "English"},
		{Code: "th", Label: "ไทย"},
	}
}

// Default returns the default locale code, or "" for an empty list.
func (l Locales) Default() string {
	if len(l) == 0 {
		return ""
	}
	return l[0].Code
}

// Has reports whether code is a supported locale.
func (l Locales) Has(code string) bool {
	for _, loc := range l {
		if loc.Code == code {
			return true
		}
	}
	return false
}

// Codes returns the locale codes in order.
func (l Locales) Codes() []string {
	codes := make([]string, len(l))
	for i, loc := range l {
		codes[i] = loc.Code
	}
	return codes
}

// Resolve returns active when set, otherwise the default locale.
func (l Locales) Resolve(active string) string {
	if active != "" {
		return active
	}
	return l.Default()
}
