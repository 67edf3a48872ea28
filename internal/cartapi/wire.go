package cartapi

import "github.com/shopspring/decimal"

// Wire types follow the storefront API's snake_case field names.

type mutationRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity,omitempty"`
}

type wireItem struct {
	ProductID int64           `json:"product_id"`
	Title     string          `json:"product_title"`
	Price     decimal.Decimal `json:"product_price"`
	Image     string          `json:"product_image"`
	Quantity  int             `json:"quantity"`
}

type wireCart struct {
	CartItems []wireItem       `json:"cart_items"`
	Items     []wireItem       `json:"items"`
	Total     *decimal.Decimal `json:"total"`
	Count     *int             `json:"count"`
}

type wireAddResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	CartCount *int   `json:"cart_count"`
}

type wireMutationResult struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Total   *decimal.Decimal `json:"total"`
	Count   *int             `json:"count"`
}

type wireMessage struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}
