package domain

import "errors"

var (
	ErrInvalidQuantity           = errors.New("invalid quantity")
	ErrInvalidKind               = errors.New("invalid charge kind")
	ErrInvalidID                 = errors.New("invalid id")
	ErrInvalidEmail              = errors.New("invalid email")
	ErrInvalidReference          = errors.New("invalid reference")
	ErrPayerRequired             = errors.New("payer name, email and phone are required")
	ErrSoldOut                   = errors.New("sold out")
	ErrReferenceTaken            = errors.New("reference already exists")
	ErrReferenceGenerationFailed = errors.New("reference generation failed")
	ErrTicketCodeTaken           = errors.New("ticket code already exists")
	ErrInvalidSignature          = errors.New("invalid signature")
	ErrChargeNotFound            = errors.New("charge not found")
	ErrChargeAlreadyTerminal     = errors.New("charge already terminal")
	ErrCapacityExceeded          = errors.New("capacity exceeded")
	ErrGatewayUnavailable        = errors.New("payment gateway unavailable")
	ErrNomineeNotFound           = errors.New("nominee not found")
	ErrTicketTypeNotFound        = errors.New("ticket type not found")
	ErrCategoryNotFound          = errors.New("category not found")
	ErrCategoryNameRequired      = errors.New("category name required")
	ErrCategoryAlreadyExists     = errors.New("category already exists")
	ErrNomineeNameRequired       = errors.New("nominee name required")
	ErrTicketTypeNameRequired    = errors.New("ticket type name required")
	ErrTicketTypeAlreadyExists   = errors.New("ticket type already exists")
	ErrInvalidCapacity           = errors.New("invalid capacity")
	ErrInvalidPrice              = errors.New("invalid price")
)
