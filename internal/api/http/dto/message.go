package dto

// MessageResponse is the body of every API response.
type MessageResponse struct {
	Message string `json:"message"`
	Status  bool   `json:"status"`
}

func Message(message string, status int) MessageResponse {
	return MessageResponse{
		Message: message,
		Status:  status >= 200 && status < 300,
	}
}
