package handlers

// HTTP header constants
const (
	HeaderContentType = "Content-Type"
	HeaderIfMatch     = "If-Match"
	HeaderETag        = "ETag"
	HeaderLocation    = "Location"
)

// Error message constants
const (
	ErrMsgMethodNotAllowed   = "Method not allowed"
	ErrMsgInvalidRequestBody = "Invalid request body"
	ErrMsgInvalidKey         = "Invalid key"
	ErrMsgInvalidQuery       = "Invalid query options"
	ErrMsgInternalError      = "Internal error"
)

// Wire type names embedded in __metadata blocks.
const (
	TypeNameProperty    = "ODataSvcSchema.Property"
	TypeNameEntityType  = "ODataSvcSchema.EntityType"
	TypeNameComplexType = "ODataSvcSchema.ComplexType"
)

// Entity set names used in span and metric labels.
const (
	entitySetProperty    = "Property"
	entitySetEntityType  = "EntityType"
	entitySetComplexType = "ComplexType"
	entitySetRecord      = "UserData"
)
