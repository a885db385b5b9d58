package model

// Segment is one role-tagged piece of an assembled prompt
type Segment struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// EstimateTokens returns a fixed-heuristic token count for the text:
// characters divided by four, rounded up. Deliberately model-agnostic.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// EstimateSegmentTokens sums the token estimate over segments
func EstimateSegmentTokens(segments []Segment) int {
	total := 0
	for _, seg := range segments {
		total += EstimateTokens(seg.Content)
	}
	return total
}
