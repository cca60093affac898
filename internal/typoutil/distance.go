// Package typoutil finds dictionary terms within a small edit distance of a
// query term.
package typoutil

// Distance computes the optimal-string-alignment Damerau-Levenshtein
// distance: insertions, deletions, substitutions and adjacent
// transpositions each cost 1. It works on runes.
func Distance(a, b string) int {
	runesA := []rune(a)
	runesB := []rune(b)
	return distance(runesA, runesB, len(runesA)+len(runesB))
}

// DistanceWithLimit is Distance with early termination. It returns
// maxDistance+1 as soon as the result is known to exceed maxDistance.
func DistanceWithLimit(a, b string, maxDistance int) int {
	return distance([]rune(a), []rune(b), maxDistance)
}

func distance(runesA, runesB []rune, maxDistance int) int {
	lenA := len(runesA)
	lenB := len(runesB)

	// Early termination: if length difference > maxDistance, return early
	lengthDiff := lenA - lenB
	if lengthDiff < 0 {
		lengthDiff = -lengthDiff
	}
	if lengthDiff > maxDistance {
		return maxDistance + 1
	}

	if lenA == 0 {
		return lenB
	}
	if lenB == 0 {
		return lenA
	}

	// Three rows: i-2 is needed for transpositions.
	prevPrevRow := make([]int, lenB+1)
	prevRow := make([]int, lenB+1)
	currRow := make([]int, lenB+1)

	for j := 0; j <= lenB; j++ {
		prevRow[j] = j
	}

	for i := 1; i <= lenA; i++ {
		currRow[0] = i
		minInRow := i

		for j := 1; j <= lenB; j++ {
			cost := 0
			if runesA[i-1] != runesB[j-1] {
				cost = 1
			}

			currRow[j] = min(
				prevRow[j]+1,      // deletion
				currRow[j-1]+1,    // insertion
				prevRow[j-1]+cost, // substitution
			)

			if i > 1 && j > 1 &&
				runesA[i-1] == runesB[j-2] &&
				runesA[i-2] == runesB[j-1] {
				if transposition := prevPrevRow[j-2] + 1; transposition < currRow[j] {
					currRow[j] = transposition
				}
			}

			if currRow[j] < minInRow {
				minInRow = currRow[j]
			}
		}

		// every later row is at least this row's minimum
		if minInRow > maxDistance {
			return maxDistance + 1
		}

		prevPrevRow, prevRow, currRow = prevRow, currRow, prevPrevRow
	}

	return prevRow[lenB]
}

// AllowedTypos returns how many edits a query term of termLen runes may
// carry: 0 below minFor1, 1 below minFor2, otherwise 2.
func AllowedTypos(termLen, minFor1, minFor2 int) int {
	switch {
	case minFor1 <= 0 || termLen < minFor1:
		return 0
	case minFor2 <= 0 || termLen < minFor2:
		return 1
	default:
		return 2
	}
}
