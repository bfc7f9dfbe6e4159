package handlers

// ErrorResponse documents the error body produced by echo's default error
// handler for every non-2xx response in this API.
type ErrorResponse struct {
	Message string `json:"message"`
}
