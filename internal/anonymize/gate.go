// Package anonymize is the privacy gate: it redacts PII from survey answers,
// derives one-way hashed ids and stable pseudonyms, and verifies k-anonymity
// over the sanitized set. No unredacted text may leave this package toward a
// provider.
package anonymize

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
)

// Level selects how aggressively text is redacted.
type Level string

const (
	// LevelPartial redacts structured identifiers only, preserving
	// surrounding context.
	LevelPartial Level = "partial"
	// LevelFull additionally redacts named entities, addresses and
	// postal codes.
	LevelFull Level = "full"
)

// Category classifies a kind of detected PII.
type Category string

const (
	CategoryEmail      Category = "email"
	CategoryPhone      Category = "phone"
	CategoryNationalID Category = "national_id"
	CategoryCreditCard Category = "credit_card"
	CategoryIPAddress  Category = "ip_address"
	CategoryAPIKey     Category = "api_key"
	CategoryAddress    Category = "address"
	CategoryPostalCode Category = "postal_code"
	CategoryName       Category = "name"
)

// Detection reports how many spans of one category were redacted.
type Detection struct {
	Category Category `json:"category"`
	Count    int      `json:"count"`
}

// Redaction is the result of AnonymizeText.
type Redaction struct {
	RedactedText string
	Detected     []Detection
}

// Input is the raw response view the gate consumes.
type Input struct {
	ID         string
	UserID     string
	QuestionID string
	Text       string
}

// SanitizedResponse is the privacy-safe projection of one survey response.
// It is derived per job run and never persisted in raw form.
type SanitizedResponse struct {
	ID         string
	UserID     string
	QuestionID string
	Text       string
	Detected   []Detection
}

type pattern struct {
	re       *regexp.Regexp
	category Category
	token    string // replacement text; may reference capture groups
}

// Replacement tokens contain no digits or '@' so re-running the gate over
// already-redacted text matches nothing.
var structuredPatterns = []pattern{
	{regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`), CategoryEmail, "[EMAIL]"},
	{regexp.MustCompile(`(\+?\d{1,2}[\-.\s]?)?\(?\d{3}\)?[\-.\s]?\d{3}[\-.\s]?\d{4}\b`), CategoryPhone, "[PHONE]"},
	{regexp.MustCompile(`\b(?:\d{3}-?\d{2}-?\d{4}|\d{9})\b`), CategoryNationalID, "[NATIONAL_ID]"},
	{regexp.MustCompile(`\b(?:\d{4}[\-\s]?){3}\d{4}\b`), CategoryCreditCard, "[CREDIT_CARD]"},
	{regexp.MustCompile(`\b(?:[0-9]{1,3}\.){3}[0-9]{1,3}\b`), CategoryIPAddress, "[IP_ADDRESS]"},
	{regexp.MustCompile(`(?i)(?:api[_\-]?key|token|secret|bearer)[\s"':=]+[a-zA-Z0-9_\-.]{20,}`), CategoryAPIKey, "[API_KEY]"},
}

var entityPatterns = []pattern{
	{regexp.MustCompile(`(?i)\d+\s+[A-Za-z\s]+(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Court|Ct)\b`), CategoryAddress, "[ADDRESS]"},
	{regexp.MustCompile(`\b\d{5}(?:-\d{4})?\b`), CategoryPostalCode, "[POSTAL_CODE]"},
	{regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Dr|Prof)\.?\s+[A-Z][a-zA-Z'\-]+(?:\s+[A-Z][a-zA-Z'\-]+)?`), CategoryName, "[NAME]"},
	{regexp.MustCompile(`\b((?i)my name is|(?i)i am|(?i)i'm)(\s+)([A-Z][a-zA-Z'\-]+(?:\s+[A-Z][a-zA-Z'\-]+)?)`), CategoryName, "$1$2[NAME]"},
}

// Gate redacts PII and derives stable anonymous identifiers.
type Gate struct {
	salt  string
	cache PseudonymCache
}

// NewGate builds a Gate. The salt feeds every one-way hash; the cache keeps
// source user → pseudonym mappings stable (pass NewMemoryCache() when no
// persistence is wanted).
func NewGate(salt string, cache PseudonymCache) *Gate {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Gate{salt: salt, cache: cache}
}

// AnonymizeText redacts PII spans with category tokens. Applying it to
// already-redacted text is a no-op.
func (g *Gate) AnonymizeText(text string, level Level) Redaction {
	if text == "" {
		return Redaction{}
	}

	result := text
	var detected []Detection

	apply := func(ps []pattern) {
		for _, p := range ps {
			n := len(p.re.FindAllStringIndex(result, -1))
			if n == 0 {
				continue
			}
			result = p.re.ReplaceAllString(result, p.token)
			detected = appendDetection(detected, p.category, n)
		}
	}

	apply(structuredPatterns)
	if level == LevelFull {
		apply(entityPatterns)
	}

	return Redaction{RedactedText: result, Detected: detected}
}

// AnonymizeResponse produces the SanitizedResponse for one raw response:
// one-way-hashed id, stable pseudonym, redacted text.
func (g *Gate) AnonymizeResponse(in Input, level Level) SanitizedResponse {
	red := g.AnonymizeText(in.Text, level)
	return SanitizedResponse{
		ID:         g.HashID(in.ID),
		UserID:     g.AnonymousUserID(in.UserID),
		QuestionID: in.QuestionID,
		Text:       red.RedactedText,
		Detected:   red.Detected,
	}
}

// HashID returns the salted one-way hash of a source identifier.
func (g *Gate) HashID(sourceID string) string {
	sum := sha256.Sum256([]byte(g.salt + ":" + sourceID))
	return hex.EncodeToString(sum[:])
}

// AnonymousUserID maps a source user id to a stable pseudonym. The mapping
// is hash-derived, so it needs no coordination, and cached so bbolt-backed
// deployments keep pseudonyms across restarts.
func (g *Gate) AnonymousUserID(userID string) string {
	if p, ok := g.cache.Get(userID); ok {
		return p
	}
	p := "anon-" + g.HashID(userID)[:12]
	g.cache.Set(userID, p)
	return p
}

// Close releases the pseudonym cache.
func (g *Gate) Close() error {
	return g.cache.Close()
}

func appendDetection(list []Detection, category Category, n int) []Detection {
	for i := range list {
		if list[i].Category == category {
			list[i].Count += n
			return list
		}
	}
	return append(list, Detection{Category: category, Count: n})
}
