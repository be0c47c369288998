// Package scripture detects biblical citations in transcript text.
// Detection is a cheap lexical pre-pass: it feeds the relevance scorer's
// reference-density factor, the query router and the relationship linker,
// and never calls out to a model.
package scripture

import (
	"regexp"
	"sort"
	"strings"
)

// Ruleset holds the language-specific vocabulary for citation detection.
type Ruleset struct {
	Language string
	// Books maps lowercase book names and abbreviations to a canonical key.
	Books map[string]string
	// pattern matches "<book> <chapter>[:<verse>[-<verse>]]".
	pattern *regexp.Regexp
}

// Reference is one detected citation.
type Reference struct {
	Book  string
	Raw   string
	Start int
	End   int
}

var ptBooks = map[string]string{
	"gênesis": "genesis", "genesis": "genesis", "gn": "genesis",
	"êxodo": "exodus", "exodo": "exodus", "ex": "exodus",
	"levítico": "leviticus", "levitico": "leviticus", "lv": "leviticus",
	"números": "numbers", "numeros": "numbers", "nm": "numbers",
	"deuteronômio": "deuteronomy", "deuteronomio": "deuteronomy", "dt": "deuteronomy",
	"josué": "joshua", "josue": "joshua", "js": "joshua",
	"juízes": "judges", "juizes": "judges", "jz": "judges",
	"rute": "ruth", "rt": "ruth",
	"samuel": "samuel", "sm": "samuel",
	"reis": "kings", "rs": "kings",
	"crônicas": "chronicles", "cronicas": "chronicles", "cr": "chronicles",
	"esdras": "ezra", "ed": "ezra",
	"neemias": "nehemiah", "ne": "nehemiah",
	"ester": "esther", "et": "esther",
	"jó": "job",
	"salmos": "psalms", "salmo": "psalms", "sl": "psalms",
	"provérbios": "proverbs", "proverbios": "proverbs", "pv": "proverbs",
	"eclesiastes": "ecclesiastes", "ec": "ecclesiastes",
	"cantares": "song", "ct": "song",
	"isaías": "isaiah", "isaias": "isaiah", "is": "isaiah",
	"jeremias": "jeremiah", "jr": "jeremiah",
	"lamentações": "lamentations", "lamentacoes": "lamentations", "lm": "lamentations",
	"ezequiel": "ezekiel", "ez": "ezekiel",
	"daniel": "daniel", "dn": "daniel",
	"oséias": "hosea", "oseias": "hosea", "os": "hosea",
	"joel": "joel", "jl": "joel",
	"amós": "amos", "amos": "amos", "am": "amos",
	"obadias": "obadiah", "ob": "obadiah",
	"jonas": "jonah", "jn": "jonah",
	"miquéias": "micah", "miqueias": "micah", "mq": "micah",
	"naum": "nahum", "na": "nahum",
	"habacuque": "habakkuk", "hc": "habakkuk",
	"sofonias": "zephaniah", "sf": "zephaniah",
	"ageu": "haggai", "ag": "haggai",
	"zacarias": "zechariah", "zc": "zechariah",
	"malaquias": "malachi", "ml": "malachi",
	"mateus": "matthew", "mt": "matthew",
	"marcos": "mark", "mc": "mark",
	"lucas": "luke", "lc": "luke",
	"joão": "john", "joao": "john", "jo": "john",
	"atos": "acts", "at": "acts",
	"romanos": "romans", "rm": "romans",
	"coríntios": "corinthians", "corintios": "corinthians", "co": "corinthians",
	"gálatas": "galatians", "galatas": "galatians", "gl": "galatians",
	"efésios": "ephesians", "efesios": "ephesians", "ef": "ephesians",
	"filipenses": "philippians", "fp": "philippians",
	"colossenses": "colossians", "cl": "colossians",
	"tessalonicenses": "thessalonians", "ts": "thessalonians",
	"timóteo": "timothy", "timoteo": "timothy", "tm": "timothy",
	"tito": "titus", "tt": "titus",
	"filemom": "philemon", "fm": "philemon",
	"hebreus": "hebrews", "hb": "hebrews",
	"tiago": "james", "tg": "james",
	"pedro": "peter", "pe": "peter",
	"judas": "jude", "jd": "jude",
	"apocalipse": "revelation", "ap": "revelation",
}

var enBooks = map[string]string{
	"genesis": "genesis", "exodus": "exodus", "leviticus": "leviticus",
	"numbers": "numbers", "deuteronomy": "deuteronomy", "joshua": "joshua",
	"judges": "judges", "ruth": "ruth", "samuel": "samuel", "kings": "kings",
	"chronicles": "chronicles", "ezra": "ezra", "nehemiah": "nehemiah",
	"esther": "esther", "job": "job", "psalms": "psalms", "psalm": "psalms",
	"proverbs": "proverbs", "ecclesiastes": "ecclesiastes", "song": "song",
	"isaiah": "isaiah", "jeremiah": "jeremiah", "lamentations": "lamentations",
	"ezekiel": "ezekiel", "daniel": "daniel", "hosea": "hosea", "joel": "joel",
	"amos": "amos", "obadiah": "obadiah", "jonah": "jonah", "micah": "micah",
	"nahum": "nahum", "habakkuk": "habakkuk", "zephaniah": "zephaniah",
	"haggai": "haggai", "zechariah": "zechariah", "malachi": "malachi",
	"matthew": "matthew", "mark": "mark", "luke": "luke", "john": "john",
	"acts": "acts", "romans": "romans", "corinthians": "corinthians",
	"galatians": "galatians", "ephesians": "ephesians",
	"philippians": "philippians", "colossians": "colossians",
	"thessalonians": "thessalonians", "timothy": "timothy", "titus": "titus",
	"philemon": "philemon", "hebrews": "hebrews", "james": "james",
	"peter": "peter", "jude": "jude", "revelation": "revelation",
}

// NewRuleset returns the ruleset for a language tag, defaulting to pt-BR.
func NewRuleset(language string) *Ruleset {
	var books map[string]string
	switch strings.ToLower(language) {
	case "en", "en-us", "en-gb":
		books = enBooks
		language = "en"
	default:
		books = ptBooks
		language = "pt-BR"
	}

	names := make([]string, 0, len(books))
	for name := range books {
		names = append(names, regexp.QuoteMeta(name))
	}
	// Longest-first keeps full names from being shadowed by abbreviations.
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})

	// Optional leading ordinal (1/2/3) for multi-part books, then the book
	// name, then chapter and optional verse range.
	pattern := regexp.MustCompile(
		`(?i)\b([123]\s*)?(` + strings.Join(names, "|") + `)\s+(\d{1,3})(\s*[:.]\s*\d{1,3}(\s*-\s*\d{1,3})?)?\b`,
	)

	return &Ruleset{
		Language: language,
		Books:    books,
		pattern:  pattern,
	}
}

// FindReferences returns all citations detected in text, in order.
func (r *Ruleset) FindReferences(text string) []Reference {
	matches := r.pattern.FindAllStringSubmatchIndex(text, -1)
	refs := make([]Reference, 0, len(matches))
	for _, m := range matches {
		raw := text[m[0]:m[1]]
		book := strings.ToLower(text[m[4]:m[5]])
		refs = append(refs, Reference{
			Book:  r.Books[book],
			Raw:   raw,
			Start: m[0],
			End:   m[1],
		})
	}
	return refs
}

// CountReferences returns the number of citations in text.
func (r *Ruleset) CountReferences(text string) int {
	return len(r.pattern.FindAllStringIndex(text, -1))
}

// HasReference reports whether text contains at least one citation.
func (r *Ruleset) HasReference(text string) bool {
	return r.pattern.MatchString(text)
}

// SharedBooks returns the canonical books cited in both texts.
func (r *Ruleset) SharedBooks(a, b string) []string {
	seen := make(map[string]bool)
	for _, ref := range r.FindReferences(a) {
		seen[ref.Book] = true
	}
	var shared []string
	emitted := make(map[string]bool)
	for _, ref := range r.FindReferences(b) {
		if seen[ref.Book] && !emitted[ref.Book] {
			shared = append(shared, ref.Book)
			emitted[ref.Book] = true
		}
	}
	return shared
}
