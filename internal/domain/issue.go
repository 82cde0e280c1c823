package domain

// Issue is one unit of work to be estimated. Order is the insertion
// index at creation time and is not renumbered on delete; estimated
// issues stay in the list but leave the voting rotation.
type Issue struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Estimate    string `json:"estimate,omitempty"`
	CreatedAt   int64  `json:"createdAt"` // unix milliseconds
	IsEstimated bool   `json:"isEstimated"`
	Order       int    `json:"order"`
}
