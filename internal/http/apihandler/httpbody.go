package apihandler

type ErrorResponse struct {
	Error   string        `json:"error"`
	Details *ErrorDetails `json:"details,omitempty"`
}

type ErrorDetails struct {
	Resource  string `json:"resource,omitempty"`
	Field     string `json:"field,omitempty"`
	Retriable bool   `json:"retriable,omitempty"`
}

type ListResponse[T any] struct {
	Items []T `json:"items"`
}

type TokenResponse struct {
	Token string `json:"token"`
}
