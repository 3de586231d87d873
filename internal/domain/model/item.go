package model

// CandidateItem is a club eligible for recommendation. Its metadata is used
// only to select the candidate set.
type CandidateItem struct {
	ID         string            `json:"id"`
	Brand      string            `json:"brand"`
	Model      string            `json:"model"`
	Category   string            `json:"category"`
	Year       int               `json:"year"`
	Price      Optional[float64] `json:"price"`
	SkillLevel string            `json:"skill_level,omitempty"`
}
