package generate

import "strings"

// FriendlyMessage converts an internal error into a message suitable for end
// users, bucketing by keywords in the underlying error text.
func FriendlyMessage(err error) string {
	if err == nil {
		return ""
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return "Request timed out. Please try again."
	case strings.Contains(msg, "connection"):
		return "Connection error. Please check your internet connection."
	case strings.Contains(msg, "authentication"), strings.Contains(msg, "api key"):
		return "Authentication failed. Please check your API key."
	case strings.Contains(msg, "rate limit"):
		return "Rate limit exceeded. Please wait a moment before trying again."
	case strings.Contains(msg, "quota"):
		return "API quota exceeded. Please check your account limits."
	default:
		return "An error occurred: " + err.Error()
	}
}
