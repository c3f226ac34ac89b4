package models

// PriceRecord is one daily observation. Date is the uniqueness key in the store.
type PriceRecord struct {
	Date     string  `json:"date"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
	Unit     string  `json:"unit"`
}
