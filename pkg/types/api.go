package types

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: Not found
	Error string `json:"error" example:"Not found"`
	// HTTP status code.
	// example: 404
	Code int `json:"code" example:"404"`
}

// ValidationErrorResponse is returned when an entity fails validation.
type ValidationErrorResponse struct {
	// Always false.
	Success bool `json:"success" example:"false"`
	// Summary message with the number of failed rules.
	// example: 2 validation errors occurred
	Error string `json:"error" example:"2 validation errors occurred"`
	// HTTP status code.
	// example: 422
	Code int `json:"code" example:"422"`
	// Number of failed rules.
	// example: 2
	ErrorCount int `json:"errorCount" example:"2"`
	// Failed rules per field: field -> rule -> message.
	Errors map[string]map[string]string `json:"errors"`
}

// Pagination is the `pagination` member of paginated API responses.
type Pagination struct {
	// Number of pages for the current limit.
	// example: 3
	PageCount int `json:"page_count" example:"3"`
	// Requested page, 1-based.
	// example: 1
	CurrentPage int `json:"current_page" example:"1"`
	// Whether a following page exists.
	// example: true
	HasNextPage bool `json:"has_next_page" example:"true"`
	// Whether a preceding page exists.
	// example: false
	HasPrevPage bool `json:"has_prev_page" example:"false"`
	// Number of records on this page.
	// example: 20
	Count int `json:"count" example:"20"`
	// Number of records across all pages.
	// example: 55
	TotalCount int `json:"total_count" example:"55"`
	// Page size.
	// example: 20
	Limit int `json:"limit" example:"20"`
}

// Route describes one mounted resource action, as printed by `crudd routes`.
type Route struct {
	// HTTP methods accepted by the route.
	// example: ["GET"]
	Methods []string `json:"methods" example:"GET"`
	// Route pattern.
	// example: /blogs/view/{id}
	Pattern string `json:"pattern" example:"/blogs/view/{id}"`
	// Resource (controller) name.
	// example: Blogs
	Resource string `json:"resource" example:"Blogs"`
	// Mapped action name.
	// example: view
	Action string `json:"action" example:"view"`
}

// ResourcesResponse lists the mounted resources for GET /resources.
type ResourcesResponse struct {
	Resources []Resource `json:"resources"`
}

// Resource summarizes a loaded resource definition.
type Resource struct {
	// Resource name.
	// example: Blogs
	Name string `json:"name" example:"Blogs"`
	// Backing table.
	// example: blogs
	Table string `json:"table" example:"blogs"`
	// Mapped actions.
	// example: ["index","view","add","edit","delete"]
	Actions []string `json:"actions"`
	// Attached listeners.
	// example: ["api","redirect"]
	Listeners []string `json:"listeners"`
}
