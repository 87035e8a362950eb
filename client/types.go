package client

import "fmt"

// User is the account returned by the launch-data exchange.
type User struct {
	ID         string   `json:"id"`
	TelegramID int64    `json:"telegram_id"`
	FirstName  string   `json:"first_name,omitempty"`
	LastName   string   `json:"last_name,omitempty"`
	Username   string   `json:"username,omitempty"`
	PhotoURL   string   `json:"photo_url,omitempty"`
	Roles      []string `json:"roles"`
}

// Flower is the catalog product attached to cart and order lines.
type Flower struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       int64  `json:"price"`
	Currency    string `json:"currency"`
	ImageURL    string `json:"image_url,omitempty"`
	CategoryID  string `json:"category_id,omitempty"`
	Available   bool   `json:"available"`
}

// CartItem is a single cart line. Flower is nil for lines added while the
// client was offline; the next confirmed server read fills it in.
type CartItem struct {
	FlowerID string  `json:"flower_id"`
	Quantity int     `json:"quantity"`
	Flower   *Flower `json:"flower,omitempty"`
}

// Cart mirrors the server cart payload.
type Cart struct {
	UserID     string     `json:"user_id,omitempty"`
	ItemsCount int        `json:"items_count"`
	Items      []CartItem `json:"items"`
}

// OrderContact carries the delivery details captured at checkout.
type OrderContact struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address,omitempty"`
	Comment string `json:"comment,omitempty"`
}

// OrderLine is a priced order position snapshotted at creation time.
type OrderLine struct {
	FlowerID   string `json:"flower_id"`
	FlowerName string `json:"flower_name"`
	UnitPrice  int64  `json:"unit_price"`
	Quantity   int    `json:"quantity"`
	Subtotal   int64  `json:"subtotal"`
}

// Order mirrors the server order payload.
type Order struct {
	ID             string       `json:"id"`
	Number         string       `json:"number"`
	Status         string       `json:"status"`
	DeliveryMethod string       `json:"delivery_method"`
	Contact        OrderContact `json:"contact"`
	Lines          []OrderLine  `json:"lines"`
	Currency       string       `json:"currency"`
	ItemsTotal     int64        `json:"items_total"`
	DeliveryFee    int64        `json:"delivery_fee"`
	Total          int64        `json:"total"`
	CreatedAt      string       `json:"created_at,omitempty"`
}

// CreateOrderRequest is the checkout payload.
type CreateOrderRequest struct {
	DeliveryMethod string       `json:"delivery_method"`
	Contact        OrderContact `json:"contact"`
}

// APIError is a structured error decoded from the server's error envelope.
type APIError struct {
	Code    string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %s (%d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("api error %s (%d)", e.Code, e.Status)
}
