package models

// InvoiceCounter issues sequential invoice numbers per calendar year via an
// atomic increment.
type InvoiceCounter struct {
	Year    int   `gorm:"column:year;primaryKey"`
	LastSeq int64 `gorm:"column:last_seq;not null;default:0"`
}
