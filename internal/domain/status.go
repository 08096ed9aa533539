package domain

// Lifecycle values as stored in the database. Validate with the
// `oneof` tags on the input structs.

type AuctionStatus string

const (
	AuctionOpen      AuctionStatus = "open"
	AuctionClosed    AuctionStatus = "closed"
	AuctionCancelled AuctionStatus = "cancelled"
)

type LotStatus string

const (
	LotOpen      LotStatus = "open"
	LotClosed    LotStatus = "closed"
	LotCancelled LotStatus = "cancelled"
)

type ContractStatus string

const (
	ContractPending   ContractStatus = "pending"
	ContractActive    ContractStatus = "active"
	ContractCompleted ContractStatus = "completed"
	ContractCancelled ContractStatus = "cancelled"
)

type InvoiceStatus string

const (
	InvoiceUnpaid  InvoiceStatus = "unpaid"
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceOverdue InvoiceStatus = "overdue"
)

type CompanyStatus string

const (
	CompanyActive   CompanyStatus = "active"
	CompanyInactive CompanyStatus = "inactive"
)
