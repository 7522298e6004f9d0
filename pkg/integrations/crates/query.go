package crates

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// DefaultPerPage is the page size of [DefaultQuery], the largest crates.io allows.
const DefaultPerPage = 100

// Query holds the options of a crate search. Zero fields are left out of the
// request and take the server's defaults.
type Query struct {
	Text     string       // free-text search, sent as q
	Page     int          // 1-based page number
	PerPage  int          // results per page
	Keyword  string       // only crates tagged with this keyword
	Category CategorySlug // only crates in this category
	Sort     Sort         // result ordering
}

// DefaultQuery returns an empty query asking for [DefaultPerPage] results.
func DefaultQuery() Query {
	return Query{PerPage: DefaultPerPage}
}

// Values encodes q as URL query parameters.
func (q Query) Values() url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PerPage > 0 {
		v.Set("per_page", strconv.Itoa(q.PerPage))
	}
	if q.Sort != "" {
		v.Set("sort", string(q.Sort))
	}
	if q.Text != "" {
		v.Set("q", q.Text)
	}
	if q.Category != "" {
		v.Set("category", string(q.Category))
	}
	if q.Keyword != "" {
		v.Set("keyword", q.Keyword)
	}
	return v
}

// String renders q back into the query mini-language accepted by [ParseQuery].
func (q Query) String() string {
	var parts []string
	if q.Text != "" {
		parts = append(parts, q.Text)
	}
	if q.Category != "" {
		parts = append(parts, "cat="+string(q.Category))
	}
	if q.Keyword != "" {
		parts = append(parts, "kw="+q.Keyword)
	}
	if q.Sort != "" {
		parts = append(parts, "sort="+string(q.Sort))
	}
	if q.Page > 0 {
		parts = append(parts, "page="+strconv.Itoa(q.Page))
	}
	if q.PerPage > 0 {
		parts = append(parts, "num="+strconv.Itoa(q.PerPage))
	}
	return strings.Join(parts, " ")
}

// ParseQuery reads a human-typed search such as "api cat=web sort=update".
//
// The input is split on whitespace. Tokens of the form key=value set options:
//
//	cat=, category=          category, see [ParseCategory]
//	kw=, key=, keyword=      keyword
//	sort=                    ordering, see [ParseSort]
//	page=                    page number
//	num=, per-page=, per_page=  page size
//
// Words without "=" form the search text, joined by single spaces. Unknown
// keys, empty values and values that do not parse are ignored. The result
// starts from [DefaultQuery].
func ParseQuery(input string) Query {
	q := DefaultQuery()
	var words []string

	for _, tok := range strings.Fields(input) {
		key, val, ok := strings.Cut(tok, "=")
		if !ok {
			words = append(words, tok)
			continue
		}
		if val == "" {
			continue
		}
		switch strings.ToLower(key) {
		case "cat", "category":
			if c, ok := ParseCategory(val); ok {
				q.Category = c
			}
		case "kw", "key", "keyword":
			q.Keyword = val
		case "sort":
			if s, ok := ParseSort(val); ok {
				q.Sort = s
			}
		case "page":
			if n, err := strconv.Atoi(val); err == nil && n > 0 {
				q.Page = n
			}
		case "num", "per-page", "per_page":
			if n, err := strconv.Atoi(val); err == nil && n > 0 {
				q.PerPage = n
			}
		}
	}

	q.Text = strings.Join(words, " ")
	return q
}

// Sort is a result ordering understood by the crate search.
type Sort string

const (
	SortAlphabetical     Sort = "alpha"
	SortAllTimeDownloads Sort = "downloads"
	SortRecentDownloads  Sort = "recent-downloads"
	SortRecentUpdates    Sort = "recent-updates"
	SortNewlyAdded       Sort = "new"
)

var sortAliases = map[string]Sort{
	"alpha": SortAlphabetical, "alphabet": SortAlphabetical, "alphabetic": SortAlphabetical, "alphabetical": SortAlphabetical,
	"downloads": SortAllTimeDownloads, "download": SortAllTimeDownloads, "dl": SortAllTimeDownloads, "all-time": SortAllTimeDownloads,
	"recent-downloads": SortRecentDownloads, "rdl": SortRecentDownloads, "new-downloads": SortRecentDownloads,
	"recent-updates": SortRecentUpdates, "new-updates": SortRecentUpdates, "updates": SortRecentUpdates, "update": SortRecentUpdates, "rup": SortRecentUpdates,
	"newly-added": SortNewlyAdded, "new": SortNewlyAdded, "newest": SortNewlyAdded, "latest": SortNewlyAdded,
}

// ParseSort resolves a sort name or one of its aliases ("dl", "rdl", "update", ...).
func ParseSort(s string) (Sort, bool) {
	v, ok := sortAliases[strings.ToLower(s)]
	return v, ok
}

func (s Sort) String() string { return string(s) }

// CategorySlug is a crates.io category slug used as a search filter.
type CategorySlug string

const (
	CategoryAccessibility           CategorySlug = "accessibility"
	CategoryAlgorithms              CategorySlug = "algorithms"
	CategoryAPIBindings             CategorySlug = "api-bindings"
	CategoryAsynchronous            CategorySlug = "asynchronous"
	CategoryAuthentication          CategorySlug = "authentication"
	CategoryCaching                 CategorySlug = "caching"
	CategoryCommandLineInterface    CategorySlug = "command-line-interface"
	CategoryCommandLineUtilities    CategorySlug = "command-line-utilities"
	CategoryCompilers               CategorySlug = "compilers"
	CategoryCompression             CategorySlug = "compression"
	CategoryComputerVision          CategorySlug = "computer-vision"
	CategoryConcurrency             CategorySlug = "concurrency"
	CategoryConfig                  CategorySlug = "config"
	CategoryCryptography            CategorySlug = "cryptography"
	CategoryDatabase                CategorySlug = "database"
	CategoryDatabaseImplementations CategorySlug = "database-implementations"
	CategoryDataStructures          CategorySlug = "data-structures"
	CategoryDateAndTime             CategorySlug = "date-and-time"
	CategoryDevelopmentTools        CategorySlug = "development-tools"
	CategoryEmail                   CategorySlug = "email"
	CategoryEmbedded                CategorySlug = "embedded"
	CategoryEmulators               CategorySlug = "emulators"
	CategoryEncoding                CategorySlug = "encoding"
	CategoryExternalFFIBindings     CategorySlug = "external-ffi-bindings"
	CategoryFilesystem              CategorySlug = "filesystem"
	CategoryGameDevelopment         CategorySlug = "game-development"
	CategoryGameEngines             CategorySlug = "game-engines"
	CategoryGames                   CategorySlug = "games"
	CategoryGraphics                CategorySlug = "graphics"
	CategoryGUI                     CategorySlug = "gui"
	CategoryHardwareSupport         CategorySlug = "hardware-support"
	CategoryInternationalization    CategorySlug = "internationalization"
	CategoryLocalization            CategorySlug = "localization"
	CategoryMathematics             CategorySlug = "mathematics"
	CategoryMemoryManagement        CategorySlug = "memory-management"
	CategoryMultimedia              CategorySlug = "multimedia"
	CategoryNetworkProgramming      CategorySlug = "network-programming"
	CategoryNoStd                   CategorySlug = "no-std"
	CategoryOS                      CategorySlug = "os"
	CategoryParserImplementations   CategorySlug = "parser-implementations"
	CategoryParsing                 CategorySlug = "parsing"
	CategoryRendering               CategorySlug = "rendering"
	CategoryRustPatterns            CategorySlug = "rust-patterns"
	CategoryScience                 CategorySlug = "science"
	CategorySimulation              CategorySlug = "simulation"
	CategoryTemplateEngine          CategorySlug = "template-engine"
	CategoryTextEditors             CategorySlug = "text-editors"
	CategoryTextProcessing          CategorySlug = "text-processing"
	CategoryValueFormatting         CategorySlug = "value-formatting"
	CategoryVisualization           CategorySlug = "visualization"
	CategoryWasm                    CategorySlug = "wasm"
	CategoryWebProgramming          CategorySlug = "web-programming"
)

// categoryAliases maps each category to the short names accepted besides its slug.
var categoryAliases = map[CategorySlug][]string{
	CategoryAccessibility:           {"access", "accessible"},
	CategoryAlgorithms:              {"algo", "algorithm", "algorithmic"},
	CategoryAPIBindings:             {"bindings", "api"},
	CategoryAsynchronous:            {"async"},
	CategoryAuthentication:          {"auth", "authenticate"},
	CategoryCaching:                 {"cache"},
	CategoryCommandLineInterface:    {"cli"},
	CategoryCommandLineUtilities:    {"util", "utility", "utilities"},
	CategoryCompilers:               {"compiler"},
	CategoryCompression:             {"compress"},
	CategoryComputerVision:          {"vision"},
	CategoryConcurrency:             {"concurrent"},
	CategoryConfig:                  {"cfg", "conf"},
	CategoryCryptography:            {"crypto"},
	CategoryDatabase:                {"db"},
	CategoryDatabaseImplementations: {"db-impl"},
	CategoryDataStructures:          {"struct", "structs", "structures"},
	CategoryDateAndTime:             {"date", "time", "datetime"},
	CategoryDevelopmentTools:        {"dev-tools", "tools"},
	CategoryEmail:                   {"mail"},
	CategoryEmbedded:                {"embed"},
	CategoryEmulators:               {"emulation", "emulate"},
	CategoryEncoding:                {"encode", "encoders"},
	CategoryExternalFFIBindings:     {"ffi"},
	CategoryFilesystem:              {"fs", "filesystems"},
	CategoryGameDevelopment:         {"gamedev", "game-dev"},
	CategoryGameEngines:             {"game-engine", "engines"},
	CategoryGames:                   {"game"},
	CategoryGraphics:                nil,
	CategoryGUI:                     {"ui"},
	CategoryHardwareSupport:         {"hardware"},
	CategoryInternationalization:    {"i18n"},
	CategoryLocalization:            {"localizations"},
	CategoryMathematics:             {"maths", "math"},
	CategoryMemoryManagement:        {"memory", "mem"},
	CategoryMultimedia:              {"media"},
	CategoryNetworkProgramming:      {"net", "network", "networking"},
	CategoryNoStd:                   {"nostd"},
	CategoryOS:                      {"operating-system"},
	CategoryParserImplementations:   {"parsers"},
	CategoryParsing:                 {"parse"},
	CategoryRendering:               {"render"},
	CategoryRustPatterns:            {"patterns"},
	CategoryScience:                 {"scientific", "sci"},
	CategorySimulation:              {"sim", "simulators"},
	CategoryTemplateEngine:          {"template-engines", "template"},
	CategoryTextEditors:             {"editors"},
	CategoryTextProcessing:          {"text", "processing"},
	CategoryValueFormatting:         {"formatting"},
	CategoryVisualization:           {"visual", "vis", "visualize"},
	CategoryWasm:                    nil,
	CategoryWebProgramming:          {"web"},
}

var categoryLookup = func() map[string]CategorySlug {
	m := make(map[string]CategorySlug, 3*len(categoryAliases))
	for c, aliases := range categoryAliases {
		m[string(c)] = c
		for _, a := range aliases {
			m[a] = c
		}
	}
	return m
}()

// ParseCategory resolves a category slug or one of its aliases ("web", "gamedev", ...).
func ParseCategory(s string) (CategorySlug, bool) {
	c, ok := categoryLookup[strings.ToLower(s)]
	return c, ok
}

// AllCategories returns every known category, sorted by slug.
func AllCategories() []CategorySlug {
	out := make([]CategorySlug, 0, len(categoryAliases))
	for c := range categoryAliases {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Aliases returns the short names accepted for c besides its slug.
func (c CategorySlug) Aliases() []string {
	return append([]string(nil), categoryAliases[c]...)
}

func (c CategorySlug) String() string { return string(c) }
