package domain

import (
	"fmt"
	"time"
)

// Kind distinguishes the two record partitions in the cache.
type Kind string

const (
	KindSold   Kind = "sold"
	KindBought Kind = "bought"
)

// Source identifies which sub-market a record came from. It decides how
// transaction and description URLs are built and which transaction-fetch
// path applies.
type Source string

const (
	SourceMarket Source = "mercari.com"
	SourceShop   Source = "mercari-shops.com"
)

// Record holds the fields shared by both record kinds. ID is assigned by
// AssignID from the order URL; a record without an ID is never stored.
type Record struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	DetailURL      string    `json:"detail_url"`
	OrderURL       string    `json:"order_url"`
	Source         Source    `json:"source"`
	ItemCount      int       `json:"item_count"`
	Category       []string  `json:"category,omitempty"` // outermost first
	Condition      string    `json:"condition"`
	PostageCharge  string    `json:"postage_charge"`
	SellerRegion   string    `json:"seller_region"`
	ShippingMethod string    `json:"shipping_method"`
	OccurredAt     time.Time `json:"occurred_at"`
	Error          string    `json:"error,omitempty"` // detail-fetch failure, empty on success
}

// SoldRecord is a completed sale. Money fields are integer yen;
// CommissionRate is integer percentage points.
type SoldRecord struct {
	Record
	Price          int       `json:"price"`
	Commission     int       `json:"commission"`
	Postage        int       `json:"postage"`
	CommissionRate int       `json:"commission_rate"`
	Profit         int       `json:"profit"`
	CompletedAt    time.Time `json:"completed_at"`
}

// BoughtRecord is a purchase. Price is nil when the transaction shows no
// price.
type BoughtRecord struct {
	Record
	Price *int `json:"price,omitempty"`
}

// Item is implemented by both record kinds so that generic population
// code (the detail fetcher) can work on either.
type Item interface {
	Base() *Record
	// SetField writes a field by its serialized name, validating both the
	// name and the value type. It exists only for code that receives
	// scraped fields keyed by string; everything else uses the struct
	// fields directly.
	SetField(name string, value any) error
}

func (r *Record) Base() *Record { return r }

func (r *Record) SetField(name string, value any) error {
	switch name {
	case "id":
		return setString(name, value, &r.ID)
	case "name":
		return setString(name, value, &r.Name)
	case "detail_url":
		return setString(name, value, &r.DetailURL)
	case "order_url":
		return setString(name, value, &r.OrderURL)
	case "source":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("field source: want string, got %T", value)
		}
		r.Source = Source(s)
		return nil
	case "item_count":
		return setInt(name, value, &r.ItemCount)
	case "category":
		c, ok := value.([]string)
		if !ok {
			return fmt.Errorf("field category: want []string, got %T", value)
		}
		r.Category = c
		return nil
	case "condition":
		return setString(name, value, &r.Condition)
	case "postage_charge":
		return setString(name, value, &r.PostageCharge)
	case "seller_region":
		return setString(name, value, &r.SellerRegion)
	case "shipping_method":
		return setString(name, value, &r.ShippingMethod)
	case "occurred_at":
		return setTime(name, value, &r.OccurredAt)
	case "error":
		return setString(name, value, &r.Error)
	}
	return fmt.Errorf("unknown field: %s", name)
}

func (r *SoldRecord) SetField(name string, value any) error {
	switch name {
	case "price":
		return setInt(name, value, &r.Price)
	case "commission":
		return setInt(name, value, &r.Commission)
	case "postage":
		return setInt(name, value, &r.Postage)
	case "commission_rate":
		return setInt(name, value, &r.CommissionRate)
	case "profit":
		return setInt(name, value, &r.Profit)
	case "completed_at":
		return setTime(name, value, &r.CompletedAt)
	}
	return r.Record.SetField(name, value)
}

func (r *BoughtRecord) SetField(name string, value any) error {
	if name == "price" {
		n, ok := value.(int)
		if !ok {
			return fmt.Errorf("field price: want int, got %T", value)
		}
		r.Price = &n
		return nil
	}
	return r.Record.SetField(name, value)
}

func setString(name string, value any, dst *string) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("field %s: want string, got %T", name, value)
	}
	*dst = s
	return nil
}

func setInt(name string, value any, dst *int) error {
	n, ok := value.(int)
	if !ok {
		return fmt.Errorf("field %s: want int, got %T", name, value)
	}
	*dst = n
	return nil
}

func setTime(name string, value any, dst *time.Time) error {
	t, ok := value.(time.Time)
	if !ok {
		return fmt.Errorf("field %s: want time.Time, got %T", name, value)
	}
	*dst = t
	return nil
}
