package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Car categories accepted by the catalog.
const (
	CategorySedan       = "Sedan"
	CategorySUV         = "SUV"
	CategoryTruck       = "Truck"
	CategoryCoupe       = "Coupe"
	CategoryConvertible = "Convertible"
)

// Car is a vehicle in the showroom inventory.
type Car struct {
	ID           string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Brand        string          `json:"brand" gorm:"type:varchar(100);index:idx_cars_brand_model;not null" validate:"required,min=1,max=100"`
	Model        string          `json:"model" gorm:"type:varchar(100);index:idx_cars_brand_model;not null" validate:"required,min=1,max=100"`
	Year         int             `json:"year" gorm:"not null" validate:"required,gte=1900"`
	Price        decimal.Decimal `json:"price" gorm:"type:decimal(14,2);index;not null"`
	Category     string          `json:"category" gorm:"type:varchar(20);index;not null" validate:"required,oneof=Sedan SUV Truck Coupe Convertible"`
	Description  string          `json:"description" validate:"required,max=2000"`
	Image        string          `json:"image" validate:"omitempty,url"`
	Currency     string          `json:"currency" gorm:"type:varchar(8)"`
	Color        string          `json:"color"`
	Engine       string          `json:"engine"`
	Transmission string          `json:"transmission"`
	FuelType     string          `json:"fuelType"`
	Mileage      int             `json:"mileage" validate:"gte=0"`
	Horsepower   int             `json:"horsepower" validate:"gte=0"`
	DriveType    string          `json:"driveType"`
	Quantity     int             `json:"quantity" gorm:"not null;default:0" validate:"gte=0"`
	InStock      bool            `json:"inStock" gorm:"not null;default:false"`
	IsDeleted    bool            `json:"-" gorm:"not null;default:false;index"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// RecomputeStock derives InStock from Quantity. Every write path calls it; the
// flag is never assigned anywhere else.
func (c *Car) RecomputeStock() {
	c.InStock = c.Quantity > 0
}

// HasStock reports whether qty units can be taken from this car.
func (c *Car) HasStock(qty int) bool {
	return !c.IsDeleted && c.Quantity >= qty
}

// CarSnapshot freezes the car attributes an order was placed against.
type CarSnapshot struct {
	Brand        string          `json:"brand"`
	Model        string          `json:"model"`
	Year         int             `json:"year"`
	Price        decimal.Decimal `json:"price" gorm:"type:decimal(14,2)"`
	Category     string          `json:"category"`
	Description  string          `json:"description"`
	Image        string          `json:"image"`
	Currency     string          `json:"currency"`
	Color        string          `json:"color"`
	Engine       string          `json:"engine"`
	Transmission string          `json:"transmission"`
	FuelType     string          `json:"fuelType"`
	Mileage      int             `json:"mileage"`
	Horsepower   int             `json:"horsepower"`
	DriveType    string          `json:"driveType"`
}

// Snapshot copies the descriptive fields and price of c.
func (c Car) Snapshot() CarSnapshot {
	return CarSnapshot{
		Brand:        c.Brand,
		Model:        c.Model,
		Year:         c.Year,
		Price:        c.Price,
		Category:     c.Category,
		Description:  c.Description,
		Image:        c.Image,
		Currency:     c.Currency,
		Color:        c.Color,
		Engine:       c.Engine,
		Transmission: c.Transmission,
		FuelType:     c.FuelType,
		Mileage:      c.Mileage,
		Horsepower:   c.Horsepower,
		DriveType:    c.DriveType,
	}
}
