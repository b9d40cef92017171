package domain

// RepoSummary is the compact structured document the sandboxed analyzer
// emits for a repository. It is an intentional heuristic profile built by
// pattern matching, not a compiler-grade model of the code.
type RepoSummary struct {
	// Tech is the detected technology profile.
	Tech TechProfile `json:"tech"`

	// FileTree lists repository paths up to the analyzer's depth ceiling.
	// Directories beyond the ceiling are omitted entirely, not partially
	// listed.
	FileTree []string `json:"file_tree"`

	// Categories buckets file paths by semantic role (models, services,
	// controllers, routes, components, hooks, pages, ...), keyed by bucket
	// name.
	Categories map[string][]string `json:"categories"`

	// Imports maps a source file path to the import/require targets
	// extracted from it.
	Imports map[string][]string `json:"imports"`

	// Exports maps a source file path to the exported symbol names
	// extracted from it.
	Exports map[string][]string `json:"exports,omitempty"`

	// Snippets holds the first lines of entry points and files from small
	// categories, keyed by path.
	Snippets map[string]string `json:"snippets,omitempty"`

	// Counts summarizes the walk: total files, analyzed files, skipped
	// oversize files, per-extension counts.
	Counts SummaryCounts `json:"counts"`
}

// TechProfile is the detected technology stack of a repository.
// Detection is by presence of known dependency names and lockfiles.
type TechProfile struct {
	// Languages lists detected languages by file extension frequency.
	Languages []string `json:"languages,omitempty"`

	// Frameworks lists detected application frameworks.
	Frameworks []string `json:"frameworks,omitempty"`

	// Database names the detected database or ORM layer, if any.
	Database string `json:"database,omitempty"`

	// StateManagement names the detected state-management library, if any.
	StateManagement string `json:"state_management,omitempty"`

	// PackageManager names the detected package manager (from lockfiles).
	PackageManager string `json:"package_manager,omitempty"`
}

// SummaryCounts summarizes the analyzer's tree walk.
type SummaryCounts struct {
	// TotalFiles is the number of files seen within the depth ceiling.
	TotalFiles int `json:"total_files"`

	// AnalyzedFiles is the number of source files whose contents were read.
	AnalyzedFiles int `json:"analyzed_files"`

	// SkippedOversize is the number of files skipped (not truncated) for
	// exceeding the size ceiling.
	SkippedOversize int `json:"skipped_oversize"`

	// ByExtension counts files per extension.
	ByExtension map[string]int `json:"by_extension,omitempty"`
}
