package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Repository describes a repository discovered through the search API.
// Descriptors are immutable once produced by discovery.
type Repository struct {
	// Name is the short repository name, e.g. "tokio".
	Name string `json:"name"`

	// FullName is the owner-qualified key, e.g. "tokio-rs/tokio".
	// It identifies the repository throughout the pipeline.
	FullName string `json:"full_name"`

	// CloneURL is the HTTPS clone URL.
	CloneURL string `json:"clone_url"`

	// Language is the primary language reported by the API, if any.
	Language string `json:"language,omitempty"`

	// Stars is the stargazer count at discovery time.
	Stars int `json:"stars"`

	// Size is the repository size in KB as reported by the API.
	Size int `json:"size"`
}

// Finding is one matched derive attribute in one file.
// Derive order and duplicates are preserved exactly as written in the source.
type Finding struct {
	Repository string   `json:"repository"`
	FilePath   string   `json:"file_path"`
	LineNumber int      `json:"line_number"`
	Derives    []string `json:"derives"`
	FullLine   string   `json:"full_line"`
}

// RepositoryResult holds everything extracted from a single repository.
// It is produced once by the worker that owns the repository task and is
// immutable afterwards.
type RepositoryResult struct {
	Repository     string    `json:"repository"`
	Findings       []Finding `json:"findings"`
	FilesProcessed int       `json:"files_processed"`
}

// NameCount is a (name, count) pair serialized as a two-element JSON array,
// e.g. ["Clone", 42], matching the summary artifact format.
type NameCount struct {
	Name  string
	Count int
}

// MarshalJSON serializes the pair as ["name", count].
func (p NameCount) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.Name, p.Count})
}

// UnmarshalJSON parses the ["name", count] form.
func (p *NameCount) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[0], &p.Name); err != nil {
		return fmt.Errorf("name element: %w", err)
	}
	if err := json.Unmarshal(raw[1], &p.Count); err != nil {
		return fmt.Errorf("count element: %w", err)
	}
	return nil
}

// Summary is the derived frequency report computed from the complete finding
// set. It is recomputed from scratch, never incrementally mutated.
type Summary struct {
	TotalDeriveStatements     int         `json:"total_derive_statements"`
	TotalRepositories         int         `json:"total_repositories"`
	TotalUniqueDerives        int         `json:"total_unique_derives"`
	MostCommonDerives         []NameCount `json:"most_common_derives"`
	RepositoriesByDeriveCount []NameCount `json:"repositories_by_derive_count"`
	AnalysisTimestamp         time.Time   `json:"analysis_timestamp"`
}

// Bleve field name constants for the findings index.
const (
	FindingFieldRepository = "repository"
	FindingFieldFilePath   = "file_path"
	FindingFieldLineNumber = "line_number"
	FindingFieldDerives    = "derives"
	FindingFieldFullLine   = "full_line"
)
