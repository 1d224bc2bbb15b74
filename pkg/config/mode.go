package config

// Mode selects between development and production behaviour of the adapters.
// The zero value is Development.
type Mode int

const (
	Development Mode = iota
	Production
)

func (m Mode) String() string {
	if m == Production {
		return "production"
	}
	return "development"
}

// IsProduction reports whether m is Production
func (m Mode) IsProduction() bool {
	return m == Production
}
