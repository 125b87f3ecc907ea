package cart

import (
	"time"

	"github.com/google/uuid"
)

// LineItem is one SKU in a cart together with the price, discount and stock
// observed when it was last added. Checkout prices from these snapshots.
type LineItem struct {
	SKUID            uuid.UUID `json:"skuId"`
	ProductID        uuid.UUID `json:"productId"`
	SKUName          string    `json:"skuName"`
	Image            string    `json:"image,omitempty"`
	Quantity         int       `json:"quantity"`
	Selected         bool      `json:"selected"`
	AddedAt          time.Time `json:"addedAt"`
	PriceSnapshot    int64     `json:"priceSnapshot"`
	DiscountSnapshot int       `json:"discountSnapshot"`
	StockSnapshot    int       `json:"stockSnapshot"`
}

func (i LineItem) matches(skuID, productID uuid.UUID) bool {
	return i.SKUID == skuID && i.ProductID == productID
}

// Cart is the document stored per user.
type Cart struct {
	UserID    uuid.UUID  `json:"userId"`
	Items     []LineItem `json:"items"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// SelectedItems returns the lines marked for checkout.
func (c Cart) SelectedItems() []LineItem {
	out := make([]LineItem, 0, len(c.Items))
	for _, item := range c.Items {
		if item.Selected && item.Quantity > 0 {
			out = append(out, item)
		}
	}
	return out
}

func (c *Cart) find(skuID, productID uuid.UUID) int {
	for idx, item := range c.Items {
		if item.matches(skuID, productID) {
			return idx
		}
	}
	return -1
}
