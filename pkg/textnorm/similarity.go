package textnorm

// SimilarityRatio returns the character overlap of a and b in [0, 1]:
// twice the number of shared runes divided by the combined length. Shared
// runes are counted by taking the longest common substring and recursing on
// the pieces to its left and right.
func SimilarityRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 0
	}
	return float64(2*commonRunes(ra, rb)) / float64(total)
}

// CoverageRatio returns the share of a's runes that also occur in b, counted
// the same way as SimilarityRatio. It is 0 when a is empty.
func CoverageRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return 0
	}
	return float64(commonRunes(ra, rb)) / float64(len(ra))
}

func commonRunes(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	posA, posB, longest := 0, 0, 0
	for i := range a {
		for j := range b {
			k := 0
			for i+k < len(a) && j+k < len(b) && a[i+k] == b[j+k] {
				k++
			}
			if k > longest {
				posA, posB, longest = i, j, k
			}
		}
	}
	if longest == 0 {
		return 0
	}
	return longest +
		commonRunes(a[:posA], b[:posB]) +
		commonRunes(a[posA+longest:], b[posB+longest:])
}
