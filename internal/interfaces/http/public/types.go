package public

const (
	welcomeMessage = "🚀 Welcome to the Contact Form API!"

	msgFieldsRequired = "All fields are required."
	msgSaveFailed     = "Failed to save your message. Please try again."
	msgSubmitted      = "Form submitted successfully!"
	msgNotifyFailed   = "Failed to send notification email."
)

type contactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type submitResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
