package mcp

// ListDirectoryInput is the input schema for gitlab_list_directory.
type ListDirectoryInput struct {
	ProjectPath string `json:"project_path" jsonschema:"project path with namespace, e.g. group/subgroup/project"`
	Path        string `json:"path,omitempty" jsonschema:"directory inside the repository, default /"`
	Ref         string `json:"ref,omitempty" jsonschema:"branch, tag or commit, default master"`
}

// ReadFileInput is the input schema for gitlab_read_file.
type ReadFileInput struct {
	ProjectPath string `json:"project_path" jsonschema:"project path with namespace, e.g. group/project"`
	FilePath    string `json:"file_path" jsonschema:"path of the file inside the repository"`
	Ref         string `json:"ref,omitempty" jsonschema:"branch, tag or commit, default master"`
}

// ListReposInput is the input schema for gitlab_list_repos.
type ListReposInput struct {
	UseCache *bool `json:"use_cache,omitempty" jsonschema:"serve from the local cache when fresh, default true"`
}

// GetRepoInfoInput is the input schema for gitlab_get_repo_info.
type GetRepoInfoInput struct {
	ProjectPath string `json:"project_path" jsonschema:"project path with namespace, e.g. group/project"`
}

// SearchReposInput is the input schema for gitlab_search_repos.
type SearchReposInput struct {
	Query     string `json:"query" jsonschema:"keywords matched against names, descriptions, paths and documentation"`
	TopK      int    `json:"top_k,omitempty" jsonschema:"maximum number of results, 1 to 50, default 10"`
	WarmCache *bool  `json:"warm_cache,omitempty" jsonschema:"index documentation of candidates when the documentation cache is stale, default true"`
}
