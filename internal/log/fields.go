package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldErrorType  = "error_type"
	FieldOperation  = "operation"
	FieldGateway    = "gateway"
	FieldMessageID  = "message_id"
	FieldSenderID   = "sender_id"
	FieldChatID     = "chat_id"
	FieldCommand    = "command"
	FieldAmount     = "amount"
	FieldNote       = "note"
	FieldBalance    = "balance"
	FieldEndpoint   = "endpoint"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentBot       = "bot"
	ComponentLedger    = "ledger"
	ComponentGateway   = "gateway"
	ComponentHTTP      = "http"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentRateLimit = "rate_limit"
)

// Operations defines standard operation names
const (
	OpFetch    = "fetch"
	OpPost     = "post"
	OpParse    = "parse"
	OpDispatch = "dispatch"
	OpReply    = "reply"
	OpRecord   = "record"
	OpPublish  = "publish"
	OpListen   = "listen"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeDecode        = "decode_error"
	ErrorTypeRejected      = "rejected_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithErrorType adds the error category
func (f LogFields) WithErrorType(kind string) LogFields {
	if kind != "" {
		f[FieldErrorType] = kind
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithMessage adds the identity of an inbound chat message
func (f LogFields) WithMessage(gateway, messageID, senderID, chatID string) LogFields {
	f[FieldGateway] = gateway
	f[FieldMessageID] = messageID
	f[FieldSenderID] = senderID
	f[FieldChatID] = chatID
	return f
}

// WithMutation adds ledger write fields
func (f LogFields) WithMutation(command string, amount int64, note string) LogFields {
	f[FieldCommand] = command
	f[FieldAmount] = amount
	f[FieldNote] = note
	return f
}

// WithHTTP adds HTTP request/response fields
func (f LogFields) WithHTTP(method, path string, statusCode int, durationMs int64) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
