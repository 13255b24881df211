package domain

import (
	"fmt"
	"regexp"
)

const (
	boughtListURL = "https://jp.mercari.com/mypage/purchases"
	soldListURL   = "https://jp.mercari.com/mypage/listings/sold?page=%d"

	marketTransactionURL = "https://jp.mercari.com/transaction/%s"
	shopTransactionURL   = "https://mercari-shops.com/orders/%s"

	marketDescriptionURL = "https://jp.mercari.com/item/%s"
	shopDescriptionURL   = "https://jp.mercari.com/shops/product/%s"
)

var (
	marketOrderRe   = regexp.MustCompile(`\bmercari\.com`)
	marketOrderIDRe = regexp.MustCompile(`.*/(m\d+)/?`)
	shopOrderRe     = regexp.MustCompile(`\.mercari-shops\.com`)
	shopOrderIDRe   = regexp.MustCompile(`.*/orders/(\w+)/?`)
)

// SoldListURL returns the offset-paged sold-history listing URL.
func SoldListURL(page int) string { return fmt.Sprintf(soldListURL, page) }

// BoughtListURL returns the cumulative purchase-history listing URL.
func BoughtListURL() string { return boughtListURL }

// TransactionURL returns the order/transaction page for the record, which
// differs between the two sub-markets.
func (r *Record) TransactionURL() string {
	if r.Source == SourceShop {
		return fmt.Sprintf(shopTransactionURL, r.ID)
	}
	return fmt.Sprintf(marketTransactionURL, r.ID)
}

// DescriptionURL returns the item description page for the record.
func (r *Record) DescriptionURL() string {
	if r.Source == SourceShop {
		return fmt.Sprintf(shopDescriptionURL, r.ID)
	}
	return fmt.Sprintf(marketDescriptionURL, r.ID)
}

// AssignID derives the record identity (ID and Source) from its order
// URL. Records only ever get an ID through here.
func AssignID(it Item) error {
	base := it.Base()
	switch {
	case shopOrderRe.MatchString(base.OrderURL):
		m := shopOrderIDRe.FindStringSubmatch(base.OrderURL)
		if m == nil {
			return fmt.Errorf("%w: %s", ErrURLFormat, base.OrderURL)
		}
		base.ID = m[1]
		base.Source = SourceShop
	case marketOrderRe.MatchString(base.OrderURL):
		m := marketOrderIDRe.FindStringSubmatch(base.OrderURL)
		if m == nil {
			return fmt.Errorf("%w: %s", ErrURLFormat, base.OrderURL)
		}
		base.ID = m[1]
		base.Source = SourceMarket
	default:
		return fmt.Errorf("%w: %s", ErrURLFormat, base.OrderURL)
	}
	return nil
}
