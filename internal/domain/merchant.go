package domain

// Merchant, Franchise and Terminal are master data owned by external CRUD
// services; the settlement engine only reads them.

type Merchant struct {
	ID          int32  `json:"id"`
	FranchiseID *int32 `json:"franchiseId,omitempty"`
	Name        string `json:"name"`
	Status      string `json:"status"`
}

type Franchise struct {
	ID     int32  `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Terminal attributes raw vendor transactions to a merchant via MID/TID.
type Terminal struct {
	ID         int32  `json:"id"`
	MerchantID int32  `json:"merchantId"`
	ProductID  int32  `json:"productId"`
	MID        string `json:"mid"`
	TID        string `json:"tid"`
}

type MerchantRepository interface {
	GetByID(id int32) (*Merchant, error)
	ListByFranchise(franchiseID int32) ([]*Merchant, error)
	ListTerminals(merchantID int32) ([]*Terminal, error)
	// ListTerminalsByProduct narrows the terminal set to one product, used by
	// franchise bulk settlement.
	ListTerminalsByProduct(merchantID, productID int32) ([]*Terminal, error)
}

type FranchiseRepository interface {
	GetByID(id int32) (*Franchise, error)
}
