package types

type Property struct {
	Name       string     `yaml:"name" json:"name"`
	Type       string     `yaml:"type" json:"type"`
	Required   bool       `yaml:"required,omitempty" json:"required,omitempty"`
	Enum       []string   `yaml:"enum,omitempty" json:"enum,omitempty"`
	Properties []Property `yaml:"properties,omitempty" json:"properties,omitempty"`
}

// HandlerInfo describes one built-in handler. It is shown to the LLM in the
// dispatch prompt and can be overridden from a plugins manifest.
type HandlerInfo struct {
	Name        string     `yaml:"name" json:"name"`
	Description string     `yaml:"description" json:"description"`
	Input       []Property `yaml:"input" json:"input"`
	Output      []Property `yaml:"output" json:"output"`
	Requires    []string   `yaml:"requires,omitempty" json:"requires,omitempty"`
	Disabled    bool       `yaml:"disabled,omitempty" json:"-"`
}

// ActionDescriptor is the unit of work chosen for a request, either parsed
// from an LLM reply or built in as a fallback. Code is kept for display
// only and is never executed.
type ActionDescriptor struct {
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Dependencies []string          `json:"dependencies"`
	Parameters   map[string]string `json:"parameters"`
	Code         string            `json:"code,omitempty"`
}

type VaultEntry struct {
	Name     string `json:"name" yaml:"name"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	URI      string `json:"uri" yaml:"uri"`
}
