package domain

// Page is a clamped pagination request (spec.md §4.1: "clamped
// limit ∈ [1, 1000], default 50; offset ≥ 0").
type Page struct {
	Limit  int
	Offset int
}

// ClampPage applies spec.md's boundary rules: limit outside [1, 1000]
// is clamped (0 or negative resets to the default of 50, above 1000
// clamps down to 1000); offset < 0 becomes 0.
func ClampPage(limit, offset int) Page {
	const defaultLimit = 50
	const maxLimit = 1000
	if limit <= 0 {
		limit = defaultLimit
	} else if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return Page{Limit: limit, Offset: offset}
}
