/*
Package errs provides custom error types and application-level error code constants.

The codes classify every failure the client can surface to the UI: transport failures with
no server response, authentication failures, validation failures reported by the backend,
server failures, and chat protocol errors.
*/
package errs

// 1xxx: Request and Transport Errors
const (
	// ErrNetwork indicates the request never produced a server response.
	ErrNetwork = 1001

	// ErrInvalidRequest indicates the client could not build the outbound request.
	ErrInvalidRequest = 1002

	// ErrInvalidResponse indicates the server response body could not be decoded.
	ErrInvalidResponse = 1003

	// ErrRequestEntityTooLarge indicates an upload body exceeded the client-side limit.
	ErrRequestEntityTooLarge = 1004

	// ErrValidation indicates a 4xx response carrying a validation message.
	ErrValidation = 1005

	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = 1006

	// ErrRateLimitExceeded indicates the server throttled the client.
	ErrRateLimitExceeded = 1007
)

// 2xxx: Authentication and Session Errors
const (
	// ErrUnauthorized indicates a 401 response.
	ErrUnauthorized = 2001

	// ErrForbidden indicates a 403 response.
	ErrForbidden = 2002

	// ErrSessionExpired indicates the token refresh failed and the session was cleared.
	ErrSessionExpired = 2003

	// ErrLoginRequired indicates an operation needs a logged-in session.
	ErrLoginRequired = 2004

	// ErrInvalidCredentials indicates the backend rejected a login.
	ErrInvalidCredentials = 2005

	// ErrGoogleDisabled indicates Google login is not configured.
	ErrGoogleDisabled = 2101

	// ErrOAuthStateMismatch indicates the OAuth callback state did not match the issued one.
	ErrOAuthStateMismatch = 2102

	// ErrOAuthExchangeFailed indicates the authorization code could not be exchanged.
	ErrOAuthExchangeFailed = 2103
)

// 3xxx: Chat and Socket Errors
const (
	// ErrSocketUnavailable indicates no chat socket is connected.
	ErrSocketUnavailable = 3001

	// ErrInvalidFrame indicates a socket frame could not be decoded.
	ErrInvalidFrame = 3002

	// ErrUnknownEvent indicates a socket frame named an event outside the protocol.
	ErrUnknownEvent = 3003

	// ErrMessageEmpty indicates an attempt to send a blank chat message.
	ErrMessageEmpty = 3004

	// ErrMessageContentTooLong indicates the chat message exceeded the maximum length.
	ErrMessageContentTooLong = 3005

	// ErrSendQueueFull indicates the socket send queue rejected a frame.
	ErrSendQueueFull = 3006
)

// 5xxx: Server and Internal Errors
const (
	// ErrServer indicates a 5xx response.
	ErrServer = 5001

	// ErrUnknown represents an unclassified failure.
	ErrUnknown = 5000
)
