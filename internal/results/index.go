package results

import (
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/derive-tools/derive-census/internal/domain"
)

const (
	// IndexFilename is the findings index directory name under the output
	// directory.
	IndexFilename = "findings.bleve"

	// IndexBatchSize is the maximum number of documents per index batch.
	IndexBatchSize = 100

	// DefaultSearchSize is the default number of hits returned.
	DefaultSearchSize = 10
)

// SearchHit is one finding returned from the index.
type SearchHit struct {
	Repository string
	FilePath   string
	LineNumber int
	Derives    []string
	FullLine   string
	Score      float64
}

// CreateIndexMapping builds the Bleve mapping for finding documents.
// Location fields are keywords; the source line is analyzed for full text.
func CreateIndexMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	repoField := bleve.NewTextFieldMapping()
	repoField.Analyzer = keyword.Name
	repoField.Store = true
	docMapping.AddFieldMappingsAt(domain.FindingFieldRepository, repoField)

	pathField := bleve.NewTextFieldMapping()
	pathField.Analyzer = keyword.Name
	pathField.Store = true
	docMapping.AddFieldMappingsAt(domain.FindingFieldFilePath, pathField)

	lineField := bleve.NewNumericFieldMapping()
	lineField.Store = true
	docMapping.AddFieldMappingsAt(domain.FindingFieldLineNumber, lineField)

	derivesField := bleve.NewTextFieldMapping()
	derivesField.Analyzer = keyword.Name
	derivesField.Store = true
	docMapping.AddFieldMappingsAt(domain.FindingFieldDerives, derivesField)

	fullLineField := bleve.NewTextFieldMapping()
	fullLineField.Analyzer = standard.Name
	fullLineField.Store = true
	fullLineField.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt(domain.FindingFieldFullLine, fullLineField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name

	return indexMapping
}

// BuildIndex writes every finding into a fresh Bleve index at path, replacing
// any previous index. Returns the number of documents indexed.
func BuildIndex(path string, findings []domain.Finding) (count int, err error) {
	if err := os.RemoveAll(path); err != nil {
		return 0, fmt.Errorf("remove previous index: %w", err)
	}

	index, err := bleve.New(path, CreateIndexMapping())
	if err != nil {
		return 0, fmt.Errorf("create index: %w", err)
	}
	defer func() {
		if cerr := index.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	batch := index.NewBatch()
	batchSize := 0

	for n, f := range findings {
		docID := fmt.Sprintf("%s/%s:%d#%d", f.Repository, f.FilePath, f.LineNumber, n)
		if err := batch.Index(docID, f); err != nil {
			return count, fmt.Errorf("index finding %s: %w", docID, err)
		}
		batchSize++

		if batchSize >= IndexBatchSize {
			if err := index.Batch(batch); err != nil {
				return count, fmt.Errorf("batch index failed: %w", err)
			}
			count += batchSize
			batch = index.NewBatch()
			batchSize = 0
		}
	}

	if batchSize > 0 {
		if err := index.Batch(batch); err != nil {
			return count, fmt.Errorf("final batch index failed: %w", err)
		}
		count += batchSize
	}

	return count, nil
}

// SearchIndex queries an existing findings index. The query matches derive
// names exactly (boosted) and source line text loosely; an optional
// repository filter narrows the scope.
func SearchIndex(path, queryStr, repository string, size int) ([]SearchHit, uint64, error) {
	index, err := bleve.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open index: %w", err)
	}
	defer func() { _ = index.Close() }()

	if size <= 0 {
		size = DefaultSearchSize
	}

	searchReq := bleve.NewSearchRequest(buildQuery(queryStr, repository))
	searchReq.Size = size
	searchReq.Fields = []string{
		domain.FindingFieldRepository,
		domain.FindingFieldFilePath,
		domain.FindingFieldLineNumber,
		domain.FindingFieldDerives,
		domain.FindingFieldFullLine,
	}

	results, err := index.Search(searchReq)
	if err != nil {
		return nil, 0, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]SearchHit, 0, len(results.Hits))
	for _, hit := range results.Hits {
		hits = append(hits, hitFromFields(hit.Fields, hit.Score))
	}
	return hits, results.Total, nil
}

func buildQuery(queryStr, repository string) query.Query {
	deriveQuery := bleve.NewTermQuery(queryStr)
	deriveQuery.SetField(domain.FindingFieldDerives)
	deriveQuery.SetBoost(5.0)

	lineQuery := bleve.NewMatchQuery(queryStr)
	lineQuery.SetField(domain.FindingFieldFullLine)

	searchQuery := query.Query(bleve.NewDisjunctionQuery(deriveQuery, lineQuery))

	if repository == "" {
		return searchQuery
	}

	repoQuery := bleve.NewTermQuery(repository)
	repoQuery.SetField(domain.FindingFieldRepository)
	return bleve.NewConjunctionQuery(searchQuery, repoQuery)
}

func hitFromFields(fields map[string]any, score float64) SearchHit {
	hit := SearchHit{Score: score}
	if v, ok := fields[domain.FindingFieldRepository].(string); ok {
		hit.Repository = v
	}
	if v, ok := fields[domain.FindingFieldFilePath].(string); ok {
		hit.FilePath = v
	}
	if v, ok := fields[domain.FindingFieldLineNumber].(float64); ok {
		hit.LineNumber = int(v)
	}
	if v, ok := fields[domain.FindingFieldFullLine].(string); ok {
		hit.FullLine = v
	}
	switch v := fields[domain.FindingFieldDerives].(type) {
	case string:
		hit.Derives = []string{v}
	case []any:
		for _, d := range v {
			if s, ok := d.(string); ok {
				hit.Derives = append(hit.Derives, s)
			}
		}
	}
	return hit
}
