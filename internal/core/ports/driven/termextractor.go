package driven

// TermExtractor ranks the terms that distinguish a group of texts from the
// rest of a corpus, used to build human-readable topic labels.
type TermExtractor interface {
	// TopTerms returns up to n terms, best first, that characterise group
	// relative to corpus. The group's texts are part of the corpus.
	TopTerms(group []string, corpus []string, n int) []string
}
