package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search"
)

const (
	// CodeTokenizerName is the name of our custom code tokenizer.
	CodeTokenizerName = "code_tokenizer"

	// CodeStopFilterName is the name of our custom stop word filter.
	CodeStopFilterName = "code_stop"

	// CodeAnalyzerName is the name of our custom code analyzer.
	CodeAnalyzerName = "code_analyzer"

	metaFileName = "index_meta.json"
)

func init() {
	_ = registry.RegisterTokenizer(CodeTokenizerName, codeTokenizerConstructor)
	_ = registry.RegisterTokenFilter(CodeStopFilterName, codeStopFilterConstructor)
}

// BleveBM25Index implements LexicalIndex over Bleve v2: four fields
// (id/path stored-and-unanalyzed, symbol/content stored-and-tokenized
// through the code analyzer), one pending write batch per open index, and
// auto-recovery from a corrupted on-disk index.
type BleveBM25Index struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	config BM25Config
	closed bool
	batch  *bleve.Batch
}

// bleveDocument is the stored shape of one lexical document.
type bleveDocument struct {
	Path    string `json:"path"`
	Symbol  string `json:"symbol"`
	Content string `json:"content"`
}

// validateIndexIntegrity checks a Bleve index directory is openable before
// Open() is attempted, so a half-written index is recreated instead of
// wedging every subsequent startup.
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, metaFileName)
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s missing (corrupted index)", metaFileName)
	}
	if err != nil {
		return fmt.Errorf("cannot stat %s: %w", metaFileName, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%s is empty (corrupted)", metaFileName)
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", metaFileName, err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("%s is corrupt: %w", metaFileName, err)
	}

	return nil
}

func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "unexpected end of JSON") ||
		strings.Contains(errStr, "error parsing mapping JSON") ||
		strings.Contains(errStr, "failed to load segment") ||
		strings.Contains(errStr, "error opening bolt") ||
		strings.Contains(errStr, "no such file or directory") ||
		err == bleve.ErrorIndexMetaCorrupt
}

// OpenOrCreate implements LexicalIndex's open_or_create(dir): creates dir
// if needed, opens an existing index when its index_meta.json is present,
// otherwise creates a fresh one. A corrupted on-disk index is cleared and
// recreated rather than surfaced as a fatal error.
func OpenOrCreate(dir string, config BM25Config) (*BleveBM25Index, error) {
	indexMapping, err := createIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent of %s: %w", dir, err)
	}

	var idx bleve.Index
	if validErr := validateIndexIntegrity(dir); validErr != nil {
		slog.Warn("lexical_index_corrupted", slog.String("path", dir), slog.String("error", validErr.Error()))
		if removeErr := os.RemoveAll(dir); removeErr != nil {
			return nil, fmt.Errorf("lexical index corrupted at %s and cannot remove: %w (original error: %v)", dir, removeErr, validErr)
		}
		slog.Info("lexical_index_cleared", slog.String("path", dir), slog.String("reason", "corruption detected, please reindex"))
	}

	idx, err = bleve.Open(dir)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(dir, indexMapping)
	} else if err != nil && isCorruptionError(err) {
		slog.Warn("lexical_index_open_failed", slog.String("path", dir), slog.String("error", err.Error()))
		if removeErr := os.RemoveAll(dir); removeErr != nil {
			return nil, fmt.Errorf("lexical index corrupted, cannot clear: %w (original: %v)", removeErr, err)
		}
		slog.Info("lexical_index_cleared", slog.String("path", dir), slog.String("reason", "open failed with corruption, please reindex"))
		idx, err = bleve.New(dir, indexMapping)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open lexical index: %w", err)
	}

	return &BleveBM25Index{index: idx, path: dir, config: config}, nil
}

// createIndexMapping builds the four-field mapping: id is the bleve
// document id itself; path is a keyword field (stored, not tokenized);
// symbol and content run through the custom code analyzer.
func createIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(CodeAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": CodeTokenizerName,
		"token_filters": []string{
			lowercase.Name,
			CodeStopFilterName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}

	docMapping := bleve.NewDocumentMapping()

	pathField := bleve.NewTextFieldMapping()
	pathField.Analyzer = "keyword"
	pathField.Store = true
	docMapping.AddFieldMappingsAt("path", pathField)

	symbolField := bleve.NewTextFieldMapping()
	symbolField.Analyzer = CodeAnalyzerName
	symbolField.Store = true
	docMapping.AddFieldMappingsAt("symbol", symbolField)

	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = CodeAnalyzerName
	contentField.Store = true
	docMapping.AddFieldMappingsAt("content", contentField)

	indexMapping.AddDocumentMapping("_default", docMapping)
	indexMapping.DefaultAnalyzer = CodeAnalyzerName

	return indexMapping, nil
}

// AddChunk stages one document's id/path/symbol/content fields into the
// pending batch; Commit flushes it.
func (b *BleveBM25Index) AddChunk(ctx context.Context, doc Document) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("lexical index is closed")
	}
	if b.batch == nil {
		b.batch = b.index.NewBatch()
	}
	return b.batch.Index(doc.ID, bleveDocument{Path: doc.Path, Symbol: doc.Symbol, Content: doc.Content})
}

// Commit flushes the pending batch. Bleve's reader always reflects the
// last committed batch, so no separate reload step is needed.
func (b *BleveBM25Index) Commit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("lexical index is closed")
	}
	if b.batch == nil {
		return nil
	}
	err := b.index.Batch(b.batch)
	b.batch = nil
	return err
}

// Reset deletes every document and commits. Idempotent.
func (b *BleveBM25Index) Reset(ctx context.Context) error {
	ids, err := b.AllIDs()
	if err != nil {
		return fmt.Errorf("reset: listing ids: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}
	if err := b.Delete(ctx, ids); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return b.Commit()
}

// Delete stages document removals into the pending batch.
func (b *BleveBM25Index) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("lexical index is closed")
	}
	if b.batch == nil {
		b.batch = b.index.NewBatch()
	}
	for _, id := range ids {
		b.batch.Delete(id)
	}
	return nil
}

// SearchIDs parses query against [symbol, content, path] in that order of
// significance (symbol matches boosted highest, path lowest) and returns
// up to topK ids by descending score.
func (b *BleveBM25Index) SearchIDs(ctx context.Context, query string, topK int) ([]string, error) {
	results, err := b.Search(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.DocID
	}
	return ids, nil
}

// Search is SearchIDs plus score and matched-term detail, for callers
// that fuse lexical results with vector results by rank.
func (b *BleveBM25Index) Search(ctx context.Context, queryStr string, topK int) ([]*BM25Result, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("lexical index is closed")
	}
	if strings.TrimSpace(queryStr) == "" {
		return []*BM25Result{}, nil
	}

	symbolQ := bleve.NewMatchQuery(queryStr)
	symbolQ.SetField("symbol")
	symbolQ.SetBoost(3.0)

	contentQ := bleve.NewMatchQuery(queryStr)
	contentQ.SetField("content")
	contentQ.SetBoost(2.0)

	pathQ := bleve.NewMatchQuery(queryStr)
	pathQ.SetField("path")
	pathQ.SetBoost(1.0)

	disjunction := bleve.NewDisjunctionQuery(symbolQ, contentQ, pathQ)

	searchRequest := bleve.NewSearchRequest(disjunction)
	searchRequest.Size = topK
	searchRequest.IncludeLocations = true

	result, err := b.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]*BM25Result, 0, len(result.Hits))
	for _, hit := range result.Hits {
		results = append(results, &BM25Result{
			DocID:        hit.ID,
			Score:        hit.Score,
			MatchedTerms: extractMatchedTerms(hit),
		})
	}
	return results, nil
}

// AllIDs returns every document id currently committed.
func (b *BleveBM25Index) AllIDs() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("lexical index is closed")
	}

	docCount, _ := b.index.DocCount()
	query := bleve.NewMatchAllQuery()
	req := bleve.NewSearchRequest(query)
	req.Size = int(docCount)
	req.Fields = []string{}

	result, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("failed to search for all ids: %w", err)
	}

	ids := make([]string, len(result.Hits))
	for i, hit := range result.Hits {
		ids[i] = hit.ID
	}
	return ids, nil
}

// Stats reports the current document count.
func (b *BleveBM25Index) Stats() *IndexStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return &IndexStats{}
	}
	docCount, _ := b.index.DocCount()
	return &IndexStats{DocumentCount: int(docCount)}
}

// Close closes the underlying Bleve index.
func (b *BleveBM25Index) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}

func extractMatchedTerms(hit *search.DocumentMatch) []string {
	terms := make(map[string]struct{})
	for field, locations := range hit.Locations {
		if field == "content" || field == "symbol" {
			for term := range locations {
				terms[term] = struct{}{}
			}
		}
	}
	result := make([]string, 0, len(terms))
	for term := range terms {
		result = append(result, term)
	}
	return result
}

var _ LexicalIndex = (*BleveBM25Index)(nil)

func codeTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &bleveCodeTokenizer{}, nil
}

type bleveCodeTokenizer struct{}

func (t *bleveCodeTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	tokens := TokenizeCode(text)

	result := make(analysis.TokenStream, 0, len(tokens))
	pos := 1
	offset := 0

	for _, token := range tokens {
		start := strings.Index(strings.ToLower(text[offset:]), strings.ToLower(token))
		if start == -1 {
			start = offset
		} else {
			start += offset
		}
		end := start + len(token)

		result = append(result, &analysis.Token{
			Term:     []byte(token),
			Start:    start,
			End:      end,
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		pos++
		if end <= len(text) {
			offset = end
		}
	}

	return result
}

func codeStopFilterConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
	return &bleveCodeStopFilter{stopWords: BuildStopWordMap(DefaultCodeStopWords)}, nil
}

type bleveCodeStopFilter struct {
	stopWords map[string]struct{}
}

func (f *bleveCodeStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, len(input))
	for _, token := range input {
		term := strings.ToLower(string(token.Term))
		if _, isStop := f.stopWords[term]; !isStop {
			result = append(result, token)
		}
	}
	return result
}
