package dto

// ReviewRequest is a student's rating and comment for a course.
type ReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment" validate:"max=4000"`
}

// ReviewResult reports the recomputed aggregate after an upsert.
type ReviewResult struct {
	Rating       float64 `json:"rating"`
	ReviewsCount int     `json:"reviewsCount"`
}
