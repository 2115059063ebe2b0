package editpath

var runeComparator = NewDefaultComparator[rune]()

// StringPath returns the minimum edit path between the runes of two strings.
func StringPath(from, to string) []Step[rune] {
	return Path([]rune(from), []rune(to), runeComparator)
}

// Levenshtein returns the edit distance between two strings, counted in
// runes.
func Levenshtein(from, to string) int {
	if from == to {
		return 0
	}
	return Distance([]rune(from), []rune(to), runeComparator)
}
