package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PublishIssueRequest struct {
	Title          string `json:"title" validate:"required"`
	TextContent    string `json:"text_content" validate:"required"`
	HTMLContent    string `json:"html_content" validate:"required"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// PublishIssueResponse documents the body of a first-time publish. Replays
// return the stored bytes unchanged.
type PublishIssueResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	IssueID string `json:"issue_id"`
}

type IssueDTO struct {
	IssueID     string `json:"issue_id"`
	Title       string `json:"title"`
	TextContent string `json:"text_content"`
	HTMLContent string `json:"html_content"`
	PublishedBy string `json:"published_by"`
	PublishedAt string `json:"published_at"`
}

type GetIssueResponse struct {
	Issue             IssueDTO `json:"issue"`
	PendingDeliveries int      `json:"pending_deliveries"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
