package i18n

var ALLOW_LANG = map[string]bool{
	"en":    true,
	"zh-CN": true,
}

const DEFAULT_LANG = "en"

const (
	ERROR_INTERNAL          = "error.internal"
	ERROR_NOT_FOUND         = "error.notfound"
	ERROR_INVALIDARGUMENT   = "error.invalidargument"
	ERROR_PERMISSION_DENIED = "error.permission.denied"
	ERROR_UNAUTHORIZED      = "error.unauthorized"
	ERROR_EXIST             = "error.exist"
	ERROR_FORBIDDEN         = "error.forbidden"
	ERROR_TOO_MANY_REQUESTS = "error.tooManyRequests"
	ERROR_CONFLICT          = "error.conflict"

	ERROR_EDIT_NOT_ALLOWED    = "error.message.edit.notallowed"
	ERROR_EDIT_WINDOW_EXPIRED = "error.message.edit.window.expired"
	ERROR_INVALID_STATUS      = "error.message.status.invalid"
	ERROR_CONFIRM_REQUIRED    = "error.chat.delete.confirm.required"
	ERROR_GENERATION_BUSY     = "error.generation.busy"
	ERROR_GENERATION_FAILED   = "error.generation.failed"

	ERROR_INVALID_TOKEN = "error.invalid.token"
)
