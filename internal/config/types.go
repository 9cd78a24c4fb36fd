package config

// Config is the top-level structure parsed from fixfactory YAML.
type Config struct {
	Project string  `yaml:"project"`
	Checks  []Check `yaml:"checks"`
	Agents  []Agent `yaml:"agents"`
	Loop    Loop    `yaml:"loop"`
	Triage  Triage  `yaml:"triage"`
}

// Check defines one deterministic quality check.
type Check struct {
	Name       string `yaml:"name"`
	Command    string `yaml:"command"`
	Parser     string `yaml:"parser"`
	Kind       string `yaml:"kind"`
	Timeout    string `yaml:"timeout"`
	AutoFix    bool   `yaml:"auto_fix"`
	FixCommand string `yaml:"fix_command"`
}

// Agent defines one command-backed fix agent.
type Agent struct {
	Name           string   `yaml:"name"`
	Priority       int      `yaml:"priority"`
	Kinds          []string `yaml:"kinds"`
	Command        string   `yaml:"command"`
	Verify         string   `yaml:"verify"`
	BaseConfidence float64  `yaml:"base_confidence"`
	Timeout        string   `yaml:"timeout"`
}

// Loop holds convergence-loop tuning.
type Loop struct {
	MaxIterations       int     `yaml:"max_iterations"`
	StagnationWindow    int     `yaml:"stagnation_window"`
	AcceptanceThreshold float64 `yaml:"acceptance_threshold"`
	CacheThreshold      float64 `yaml:"cache_threshold"`
	CheckConcurrency    int64   `yaml:"check_concurrency"`
	DispatchConcurrency int64   `yaml:"dispatch_concurrency"`
}

// Triage configures the always-available fallback agent.
type Triage struct {
	Disabled bool `yaml:"disabled"`
	Priority int  `yaml:"priority"`
}
