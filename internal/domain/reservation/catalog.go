package reservation

import (
	"fmt"
	"sort"
)

// Court is the display name of a bookable court, e.g. "Fútbol 1".
type Court string

// Amount represents a monetary amount in the smallest currency unit (e.g. cents).
type Amount struct {
	ValueCents int64
	Currency   string
}

// String returns a human-readable representation of the amount.
func (a Amount) String() string {
	return fmt.Sprintf("%s %s", a.Decimal(), a.Currency)
}

// Decimal formats the amount with two fraction digits, as payment providers expect.
func (a Amount) Decimal() string {
	cents := a.ValueCents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// Float returns the amount in major units.
func (a Amount) Float() float64 {
	return float64(a.ValueCents) / 100
}

// Catalog is the price table of the venue: the set of bookable courts and the
// price of one slot on each of them.
type Catalog struct {
	prices map[Court]int64
}

// CourtPrice is one catalog row.
type CourtPrice struct {
	Court      Court
	PriceCents int64
}

// DefaultCatalog returns the venue's standard price table.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		CourtPrice{Court: "Fútbol 1", PriceCents: 5000},
		CourtPrice{Court: "Fútbol 2", PriceCents: 7000},
		CourtPrice{Court: "Tenis 1", PriceCents: 10000},
	)
}

// NewCatalog builds a catalog from the given rows. Later rows override earlier
// rows with the same court.
func NewCatalog(rows ...CourtPrice) *Catalog {
	c := &Catalog{prices: make(map[Court]int64, len(rows))}
	for _, r := range rows {
		c.prices[r.Court] = r.PriceCents
	}
	return c
}

// Has reports whether the court exists.
func (c *Catalog) Has(court Court) bool {
	_, ok := c.prices[court]
	return ok
}

// Price returns the price of one slot on court in the given currency.
func (c *Catalog) Price(court Court, currency string) (Amount, bool) {
	cents, ok := c.prices[court]
	if !ok {
		return Amount{}, false
	}
	return Amount{ValueCents: cents, Currency: currency}, true
}

// Courts returns the catalog rows sorted by court name.
func (c *Catalog) Courts() []CourtPrice {
	rows := make([]CourtPrice, 0, len(c.prices))
	for court, cents := range c.prices {
		rows = append(rows, CourtPrice{Court: court, PriceCents: cents})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Court < rows[j].Court })
	return rows
}
