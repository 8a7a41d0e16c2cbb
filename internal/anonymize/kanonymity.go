package anonymize

import "strings"

// VerifyKAnonymity reports whether every equivalence class of canonicalized
// texts contains at least k members. Pure and deterministic; an empty set
// passes vacuously, k <= 1 always passes.
func VerifyKAnonymity(texts []string, k int) bool {
	if k <= 1 {
		return true
	}
	classes := make(map[string]int, len(texts))
	for _, t := range texts {
		classes[Canonicalize(t)]++
	}
	for _, size := range classes {
		if size < k {
			return false
		}
	}
	return true
}

// Canonicalize folds case and collapses whitespace so trivially different
// spellings land in one equivalence class.
func Canonicalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
