package transport

// LoginRequest authenticates against the hosted auth provider.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest drives a session store refresh; Reason defaults to manual.
type RefreshRequest struct {
	Reason string `json:"reason"`
}

// CaptureIntentRequest records a post-authentication destination.
type CaptureIntentRequest struct {
	Destination string            `json:"destination"`
	Reason      string            `json:"reason"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Priority    int               `json:"priority"`
}

// NavigateRequest reports a frontend navigation to the route guard.
type NavigateRequest struct {
	Route string `json:"route"`
}

// RedirectRequest asks the guard whether a redirect may proceed.
type RedirectRequest struct {
	Destination string `json:"destination"`
}

// ChatSendRequest carries one user message to the chat backend.
type ChatSendRequest struct {
	Message string `json:"message"`
}

// OrgRecoverRequest is the explicit manual retry for organization context.
type OrgRecoverRequest struct{}
