package errors

// Error codes returned in the "error" field of every error response.
// Format: CATEGORY_SPECIFIC_DETAIL. Clients map messages from these codes.

const (
	// auth
	AuthUnauthorized       = "AUTH_UNAUTHORIZED"
	AuthInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	AuthTokenExpired       = "AUTH_TOKEN_EXPIRED"
	AuthTokenInvalid       = "AUTH_TOKEN_INVALID"
	AuthTokenRevoked       = "AUTH_TOKEN_REVOKED"
	AuthEmailAlreadyExists = "AUTH_EMAIL_EXISTS"
	AuthWeakPassword       = "AUTH_WEAK_PASSWORD"

	// authorization
	AuthzForbidden    = "AUTHZ_FORBIDDEN"
	AuthzAccessDenied = "AUTHZ_ACCESS_DENIED"
	AuthzAdminOnly    = "AUTHZ_ADMIN_ONLY"
	AuthzSellerOnly   = "AUTHZ_SELLER_ONLY"

	// validation
	ValidationInvalidInput  = "VALIDATION_INVALID_INPUT"
	ValidationInvalidID     = "VALIDATION_INVALID_ID"
	ValidationInvalidFormat = "VALIDATION_INVALID_FORMAT"
	ValidationInvalidRange  = "VALIDATION_INVALID_RANGE"
	ValidationRequired      = "VALIDATION_REQUIRED"

	// generic resources
	ResourceNotFound      = "RESOURCE_NOT_FOUND"
	ResourceAlreadyExists = "RESOURCE_ALREADY_EXISTS"
	ResourceConflict      = "RESOURCE_CONFLICT"

	// catalog
	ProductNotFound          = "PRODUCT_NOT_FOUND"
	ProductUnavailable       = "PRODUCT_UNAVAILABLE"
	ProductInsufficientStock = "PRODUCT_INSUFFICIENT_STOCK"
	ProductBelowMinimumOrder = "PRODUCT_BELOW_MINIMUM_ORDER"
	ProductInvalidPrice      = "PRODUCT_INVALID_PRICE"
	CategoryNotFound         = "CATEGORY_NOT_FOUND"
	CategoryInvalidName      = "CATEGORY_INVALID_NAME"
	CategorySlugConflict     = "CATEGORY_SLUG_CONFLICT"
	SubCategoryNotFound      = "SUBCATEGORY_NOT_FOUND"
	SubCategoryMismatch      = "SUBCATEGORY_MISMATCH"
	DealNotFound             = "DEAL_NOT_FOUND"

	// reviews
	ReviewNotFound      = "REVIEW_NOT_FOUND"
	ReviewAlreadyExists = "REVIEW_ALREADY_EXISTS"
	ReviewInvalidRating = "REVIEW_INVALID_RATING"
	ReviewTooLong       = "REVIEW_TOO_LONG"
	ReviewOwnProduct    = "REVIEW_OWN_PRODUCT"

	// cart
	CartEmpty           = "CART_EMPTY"
	CartInvalidQuantity = "CART_INVALID_QUANTITY"
	CartSessionRequired = "CART_SESSION_REQUIRED"

	// orders
	OrderNotFound          = "ORDER_NOT_FOUND"
	OrderInvalidTransition = "ORDER_INVALID_TRANSITION"
	OrderNotPayable        = "ORDER_NOT_PAYABLE"

	// payments
	PaymentNotFound           = "PAYMENT_NOT_FOUND"
	PaymentDuplicate          = "PAYMENT_DUPLICATE"
	PaymentGatewayUnavailable = "PAYMENT_GATEWAY_UNAVAILABLE"
	PaymentUnknownReference   = "PAYMENT_UNKNOWN_REFERENCE"
	PaymentInvalidAmount      = "PAYMENT_INVALID_AMOUNT"

	// sellers
	SellerNotFound        = "SELLER_NOT_FOUND"
	SellerNotApproved     = "SELLER_NOT_APPROVED"
	SellerAlreadyExists   = "SELLER_ALREADY_EXISTS"
	SellerAlreadyApproved = "SELLER_ALREADY_APPROVED"

	NotificationNotFound = "NOTIFICATION_NOT_FOUND"

	// uploads
	UploadInvalidFileType = "UPLOAD_INVALID_FILE_TYPE"
	UploadFileTooLarge    = "UPLOAD_FILE_TOO_LARGE"
	UploadFailed          = "UPLOAD_FAILED"

	// internal
	InternalServerError   = "INTERNAL_SERVER_ERROR"
	InternalDatabaseError = "INTERNAL_DATABASE_ERROR"
	InternalExternalAPI   = "INTERNAL_EXTERNAL_API"
)
