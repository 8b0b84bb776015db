package sniffer

import "strings"

// DefaultDelimiter is returned when the header line gives no signal.
const DefaultDelimiter = ','

// delimiterCandidates is ordered; later entries win ties.
var delimiterCandidates = []rune{',', '.', ';', '|'}

// DetectDelimiter picks the field separator of a CSV text by counting the
// candidates on its first line. A candidate replaces the current best when
// its count is greater than or equal to the best count, so on a tie the
// candidate listed last wins.
func DetectDelimiter(text string) rune {
	line, _, _ := strings.Cut(text, "\n")
	delimiter, _ := lineDelimiter(line)
	return delimiter
}

// lineDelimiter returns the delimiter for a single line and its count.
func lineDelimiter(line string) (rune, int) {
	best := rune(DefaultDelimiter)
	bestCount := 0
	for _, d := range delimiterCandidates {
		count := strings.Count(line, string(d))
		if count > 0 && count >= bestCount {
			best = d
			bestCount = count
		}
	}
	return best, bestCount
}
