package model

// Repository is the cached metadata record for one hosted project.
// The repository cache replaces the full list on refresh; records are
// never patched in place.
type Repository struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	Path           string  `json:"path"`
	Description    string  `json:"description"`
	URL            string  `json:"url"`
	Stars          int     `json:"stars"`
	Forks          int     `json:"forks"`
	Issues         int     `json:"issues"`
	Visibility     string  `json:"visibility"`
	DefaultBranch  string  `json:"default_branch"`
	CreatedAt      *string `json:"created_at"`
	LastActivityAt *string `json:"last_activity_at"`
}

// Defaults applied when upstream omits the field.
const (
	DefaultVisibility = "private"
	DefaultBranch     = "main"
)

// ApplyDefaults fills empty visibility and default branch.
func (r *Repository) ApplyDefaults() {
	if r.Visibility == "" {
		r.Visibility = DefaultVisibility
	}
	if r.DefaultBranch == "" {
		r.DefaultBranch = DefaultBranch
	}
}
