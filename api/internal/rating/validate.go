package rating

import "strconv"

const (
	MinQuality = 1
	MaxQuality = 5
)

// ValidQuality reports whether v is a string of ASCII digits whose value is in [MinQuality, MaxQuality].
func ValidQuality(v string) bool {
	if v == "" {
		return false
	}
	for i := 0; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return false
		}
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return false
	}
	return n >= MinQuality && n <= MaxQuality
}

// ReadyToSubmit reports whether the rater is named and every row carries a valid quality score.
func ReadyToSubmit(name string, rows []TaskRow) bool {
	if name == "" {
		return false
	}
	for _, r := range rows {
		if !ValidQuality(r.Quality) {
			return false
		}
	}
	return true
}
