package common

const (
	// MaxContactRequestBody limits JSON request bodies for the contact endpoints.
	MaxContactRequestBody = 64 << 10
)
