package errs

// Error codes returned to clients over the websocket `error` event and the
// REST boundary. Grouped: 10xx argument, 11xx auth, 12xx not-found, 13xx storage.
const (
	ArgsError                 = 1001
	TokenInvalidError         = 1101
	NotParticipantError       = 1102
	NotSenderError            = 1103
	ConversationNotFoundError = 1201
	MessageNotFoundError      = 1202
	StorageError              = 1301
	ServerInternalError       = 1500
)

var (
	ErrArgs                 = NewCodeError(ArgsError, "bad argument")
	ErrTokenInvalid         = NewCodeError(TokenInvalidError, "token invalid or expired")
	ErrNotParticipant       = NewCodeError(NotParticipantError, "not a participant of the conversation")
	ErrNotSender            = NewCodeError(NotSenderError, "only the sender may modify a message")
	ErrConversationNotFound = NewCodeError(ConversationNotFoundError, "conversation not found")
	ErrMessageNotFound      = NewCodeError(MessageNotFoundError, "message not found")
	ErrStorage              = NewCodeError(StorageError, "storage operation failed")
	ErrInternal             = NewCodeError(ServerInternalError, "internal server error")
)
