package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusShipped,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

func (s OrderStatus) Valid() bool {
	for _, v := range OrderStatuses {
		if s == v {
			return true
		}
	}
	return false
}

type PaymentMethod string

const (
	PaymentCOD      PaymentMethod = "cod"
	PaymentTransfer PaymentMethod = "transfer"
)

func (p PaymentMethod) Valid() bool {
	return p == PaymentCOD || p == PaymentTransfer
}

type Session struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"  json:"id"`
	CreatedAt  time.Time `gorm:"not null"              json:"created_at"`
	LastActive time.Time `gorm:"not null"              json:"last_active"`
}

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (Session) TableName() string {
	return "sessions"
}

type Product struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"   json:"id"`
	Name        string    `gorm:"not null"                   json:"name"`
	Description string    `gorm:"not null;default:''"        json:"description"`
	Price       int64     `gorm:"not null;check:price>=0"    json:"price"`
	Flavor      string    `gorm:"not null;default:''"        json:"flavor"`
	ImageURL    string    `gorm:"not null;default:''"        json:"image_url"`
	Stock       int64     `gorm:"not null;check:stock>=0"    json:"stock"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Product) TableName() string {
	return "products"
}

type CartItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"                       json:"id"`
	SessionID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_session_product;not null" json:"session_id"`
	ProductID uint      `gorm:"uniqueIndex:idx_session_product;not null"   json:"product_id"`
	Quantity  int64     `gorm:"not null;default:1;check:quantity>0"        json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	Product   *Product  `gorm:"foreignKey:ProductID"                       json:"product,omitempty"`
}

func (c *CartItem) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (CartItem) TableName() string {
	return "cart_items"
}

type Order struct {
	ID              uint          `gorm:"primaryKey;autoIncrement"     json:"id"`
	SessionID       uuid.UUID     `gorm:"type:uuid;index;not null"     json:"session_id"`
	TotalAmount     int64         `gorm:"not null"                     json:"total_amount"`
	Status          OrderStatus   `gorm:"not null;default:'pending'"   json:"status"`
	ShippingAddress string        `gorm:"not null"                     json:"shipping_address"`
	PaymentMethod   PaymentMethod `gorm:"not null;default:'cod'"       json:"payment_method"`
	CreatedAt       time.Time     `gorm:"index"                        json:"created_at"`
	Items           []OrderItem   `gorm:"foreignKey:OrderID"           json:"items,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

type OrderItem struct {
	ID              uint     `gorm:"primaryKey;autoIncrement"         json:"id"`
	OrderID         uint     `gorm:"index;not null"                   json:"order_id"`
	ProductID       uint     `gorm:"not null"                         json:"product_id"`
	Quantity        int64    `gorm:"not null;check:quantity>0"        json:"quantity"`
	PriceAtPurchase int64    `gorm:"not null"                         json:"price_at_purchase"`
	Product         *Product `gorm:"foreignKey:ProductID"             json:"-"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

// All lists every table in migration order.
func All() []any {
	return []any{&Session{}, &Product{}, &CartItem{}, &Order{}, &OrderItem{}}
}
