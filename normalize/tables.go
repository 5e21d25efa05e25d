package normalize

// TableVersion identifies the revision of the expansion tables below.
// Bump it whenever an entry is added or changed, and trigger a reindex so
// stored token sets match what queries expand to.
const TableVersion = 1

// Stop words filtered from queries and indexed text.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "or": true, "in": true,
	"that": true, "have": true, "it": true, "for": true, "not": true,
	"on": true, "with": true, "as": true, "you": true, "do": true, "at": true,
	"this": true, "but": true, "by": true, "from": true,
}

// Common abbreviations expanded alongside the original token.
var abbreviations = map[string]string{
	"ai":  "artificial intelligence",
	"ml":  "machine learning",
	"dl":  "deep learning",
	"api": "application programming interface",
	"ui":  "user interface",
	"ux":  "user experience",
}

// Synonym mappings for query expansion. Values are added as extra tokens,
// they never replace the original.
var synonyms = map[string][]string{
	"ai":           {"artificial intelligence", "machine learning", "ml", "deep learning"},
	"crypto":       {"cryptocurrency", "bitcoin", "blockchain", "btc", "ethereum"},
	"productivity": {"efficiency", "time management", "organization", "workflow"},
	"programming":  {"coding", "development", "software", "code"},
	"task":         {"todo", "work", "assignment", "job"},
	"note":         {"information", "knowledge", "content"},
	"reminder":     {"alert", "notification", "prompt"},
	"ocean":        {"sea", "marine", "aquatic"},
	"solar":        {"renewable energy", "photovoltaic", "green energy", "sustainable"},

	// URL domain mappings for link searches
	"youtube":   {"youtube.com", "youtu.be", "video", "watch"},
	"instagram": {"instagram.com", "insta", "ig", "reel"},
	"twitter":   {"twitter.com", "x.com", "tweet"},
	"github":    {"github.com", "git", "repository", "repo", "code"},
	"linkedin":  {"linkedin.com", "professional", "career"},
	"medium":    {"medium.com", "article", "blog"},
}
