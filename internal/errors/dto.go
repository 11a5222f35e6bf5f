package errors

// ErrorResponse represents the standard error response structure
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Display       string         `json:"message"`
	InternalError string         `json:"internal_error,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
}

// NewErrorResponse builds the wire representation of an error
func NewErrorResponse(err error) ErrorResponse {
	if err == nil {
		return ErrorResponse{Success: true}
	}

	detail := ErrorDetail{
		Display:       err.Error(),
		InternalError: err.Error(),
	}

	var internal *InternalError
	if As(err, &internal) {
		detail.Display = internal.DisplayError()
	}

	return ErrorResponse{
		Success: false,
		Error:   detail,
	}
}
