package chunk

import (
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/kotlin"
	"github.com/smacker/go-tree-sitter/php"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/swift"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// haskellName is kept distinct from the sitter-backed language names: it
// has a LanguageConfig and an extension mapping like every other
// language, but its grammar lives behind the tree-sitter/go-tree-sitter
// binding (see haskell.go), not smacker/go-tree-sitter, so it has no
// entry in tsLanguages.
const haskellName = "haskell"

// LanguageRegistry maps a file extension to a language's chunk-boundary
// configuration and, for the thirteen languages smacker/go-tree-sitter
// covers, its tree-sitter grammar.
type LanguageRegistry struct {
	mu          sync.RWMutex
	configs     map[string]*LanguageConfig
	extToLang   map[string]string
	tsLanguages map[string]*sitter.Language
}

// NewLanguageRegistry builds a registry covering the closed language set:
// rust, c, cpp, javascript, typescript, python, go, haskell, java,
// csharp, php, ruby, kotlin, swift.
func NewLanguageRegistry() *LanguageRegistry {
	r := &LanguageRegistry{
		configs:     make(map[string]*LanguageConfig),
		extToLang:   make(map[string]string),
		tsLanguages: make(map[string]*sitter.Language),
	}

	r.register(&LanguageConfig{
		Name:           "rust",
		Extensions:     []string{".rs"},
		CandidateKinds: []string{"function_item", "impl_item", "struct_item"},
		NameField:      "name",
	}, rust.GetLanguage())

	r.register(&LanguageConfig{
		Name:           "c",
		Extensions:     []string{".c", ".h"},
		CandidateKinds: []string{"function_definition", "declaration", "struct_specifier"},
		NameField:      "declarator",
	}, c.GetLanguage())

	r.register(&LanguageConfig{
		Name:           "cpp",
		Extensions:     []string{".cpp", ".cc", ".cxx", ".hpp", ".hh", ".hxx"},
		CandidateKinds: []string{"function_definition", "declaration", "struct_specifier", "class_specifier"},
		NameField:      "declarator",
	}, cpp.GetLanguage())

	jsConfig := &LanguageConfig{
		Name:           "javascript",
		Extensions:     []string{".js", ".mjs", ".cjs", ".jsx"},
		CandidateKinds: []string{"function_declaration", "method_definition", "class_declaration"},
		NameField:      "name",
	}
	r.register(jsConfig, javascript.GetLanguage())

	tsConfig := &LanguageConfig{
		Name:           "typescript",
		Extensions:     []string{".ts"},
		CandidateKinds: []string{"function_declaration", "method_definition", "class_declaration"},
		NameField:      "name",
	}
	r.register(tsConfig, typescript.GetLanguage())

	r.register(&LanguageConfig{
		Name:           "tsx",
		Extensions:     []string{".tsx"},
		CandidateKinds: tsConfig.CandidateKinds,
		NameField:      tsConfig.NameField,
	}, tsx.GetLanguage())

	r.register(&LanguageConfig{
		Name:           "python",
		Extensions:     []string{".py"},
		CandidateKinds: []string{"function_definition", "class_definition"},
		NameField:      "name",
	}, python.GetLanguage())

	r.register(&LanguageConfig{
		Name:           "go",
		Extensions:     []string{".go"},
		CandidateKinds: []string{"function_declaration", "method_declaration"},
		NameField:      "name",
	}, golang.GetLanguage())

	// Haskell has a config and extension mapping like every other
	// language but no smacker grammar; see haskell.go.
	r.register(&LanguageConfig{
		Name:       haskellName,
		Extensions: []string{".hs"},
		CandidateKinds: []string{
			"function", "signature", "data_type", "newtype",
			"type_family", "class", "instance",
		},
		NameField: "name",
	}, nil)

	r.register(&LanguageConfig{
		Name:           "java",
		Extensions:     []string{".java"},
		CandidateKinds: []string{"method_declaration", "class_declaration", "interface_declaration"},
		NameField:      "name",
	}, java.GetLanguage())

	r.register(&LanguageConfig{
		Name:           "csharp",
		Extensions:     []string{".cs"},
		CandidateKinds: []string{"method_declaration", "constructor_declaration", "class_declaration", "interface_declaration"},
		NameField:      "name",
	}, csharp.GetLanguage())

	r.register(&LanguageConfig{
		Name:           "php",
		Extensions:     []string{".php"},
		CandidateKinds: []string{"function_definition", "method_declaration", "class_declaration"},
		NameField:      "name",
	}, php.GetLanguage())

	r.register(&LanguageConfig{
		Name:           "ruby",
		Extensions:     []string{".rb"},
		CandidateKinds: []string{"method", "singleton_method", "class"},
		NameField:      "name",
	}, ruby.GetLanguage())

	r.register(&LanguageConfig{
		Name:           "kotlin",
		Extensions:     []string{".kt", ".kts"},
		CandidateKinds: []string{"function_declaration", "class_declaration", "object_declaration"},
		NameField:      "name",
	}, kotlin.GetLanguage())

	r.register(&LanguageConfig{
		Name:           "swift",
		Extensions:     []string{".swift"},
		CandidateKinds: []string{"function_declaration", "class_declaration", "struct_declaration"},
		NameField:      "name",
	}, swift.GetLanguage())

	return r
}

func (r *LanguageRegistry) register(config *LanguageConfig, tsLang *sitter.Language) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.configs[config.Name] = config
	if tsLang != nil {
		r.tsLanguages[config.Name] = tsLang
	}
	for _, ext := range config.Extensions {
		r.extToLang[strings.ToLower(ext)] = config.Name
	}
}

// GetByExtension returns the language config for a file extension
// (leading dot optional, case-insensitive).
func (r *LanguageRegistry) GetByExtension(ext string) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	name, ok := r.extToLang[ext]
	if !ok {
		return nil, false
	}
	config, ok := r.configs[name]
	return config, ok
}

// GetByName returns the language config by canonical name.
func (r *LanguageRegistry) GetByName(name string) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	config, ok := r.configs[name]
	return config, ok
}

// GetTreeSitterLanguage returns the smacker grammar for a language name.
// Haskell is absent; callers route it through the haskell.go chunker.
func (r *LanguageRegistry) GetTreeSitterLanguage(name string) (*sitter.Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lang, ok := r.tsLanguages[name]
	return lang, ok
}

// SupportedExtensions returns every registered extension.
func (r *LanguageRegistry) SupportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.extToLang))
	for ext := range r.extToLang {
		exts = append(exts, ext)
	}
	return exts
}

var defaultRegistry = NewLanguageRegistry()

// DefaultRegistry returns the process-wide language registry.
func DefaultRegistry() *LanguageRegistry {
	return defaultRegistry
}
