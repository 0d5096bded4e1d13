package http_common

type ErrorResponse struct {
	Message string `json:"message"`
}

// HeaderUserToken carries the caller's identity: the user ID handed out at
// join time (or the moderator token handed out at room creation).
const HeaderUserToken = "X-user-token"
