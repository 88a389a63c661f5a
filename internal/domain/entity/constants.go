package entity

// BillStatus represents where a bill is in its payment lifecycle
type BillStatus string

// Status constants for Bill
const (
	StatusPending   BillStatus = "pending"
	StatusPartial   BillStatus = "partial"
	StatusPaid      BillStatus = "paid"
	StatusCancelled BillStatus = "cancelled"
)

var validStatuses = map[BillStatus]bool{
	StatusPending:   true,
	StatusPartial:   true,
	StatusPaid:      true,
	StatusCancelled: true,
}

// statuses a client may set directly; partial and paid are only reached through payments
var assignableStatuses = map[BillStatus]bool{
	StatusPending:   true,
	StatusCancelled: true,
}

// String returns the string representation of the status
func (s BillStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is a known bill status
func (s BillStatus) IsValid() bool {
	return validStatuses[s]
}

// IsAssignable returns true if the status can be set through a bill update
func (s BillStatus) IsAssignable() bool {
	return assignableStatuses[s]
}

// Payment method constants. The set is open: any non-empty method is accepted.
const (
	MethodCash      = "cash"
	MethodCard      = "card"
	MethodUPI       = "upi"
	MethodInsurance = "insurance"
	MethodOther     = "other"
)

// Bill defaults
const (
	DefaultCurrency        = "INR"
	DefaultItemDescription = "Item"
	DefaultItemQuantity    = 1
)

// Layouts used when rendering timestamps to clients and exports
const (
	DateTimeLayout = "2006-01-02 15:04:05"
	DateLayout     = "2006-01-02"
)
