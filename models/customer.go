package models

// Customer is the read-only directory entry the settlement screens select from.
// Record maintenance lives in the surrounding dashboard, not in this service.
type Customer struct {
	Id          uint   `json:"id" gorm:"primaryKey"`
	Name        string `json:"name" gorm:"not null;index"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Active      bool   `json:"-"`
}
