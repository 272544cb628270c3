package config

// APIConfig configures the HTTP API exposing the plan log and eco KPIs.
type APIConfig struct {
	// Addr is the listen address. Empty disables the API.
	Addr string `json:"addr"`
	// Token is the bearer token required by every route. Empty disables
	// authentication.
	Token string `json:"token"`
}

// KPIConfig selects the eco KPI store.
type KPIConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `json:"backend"`
	Path    string `json:"path"`
}

// SetDefaults applies sane defaults.
func (c *KPIConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.Backend == "sqlite" && c.Path == "" {
		c.Path = "kpi.db"
	}
}
