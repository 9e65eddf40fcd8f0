package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// assignID fills a missing primary key so inserts behave the same on
// Postgres and on the sqlite driver used in tests.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (p *Product) BeforeCreate(*gorm.DB) error       { assignID(&p.ID); return nil }
func (s *ProductSize) BeforeCreate(*gorm.DB) error   { assignID(&s.ID); return nil }
func (m *StockMovement) BeforeCreate(*gorm.DB) error { assignID(&m.ID); return nil }
func (r *StockReservation) BeforeCreate(*gorm.DB) error {
	assignID(&r.ID)
	return nil
}
func (a *StockAlert) BeforeCreate(*gorm.DB) error  { assignID(&a.ID); return nil }
func (o *Order) BeforeCreate(*gorm.DB) error       { assignID(&o.ID); return nil }
func (i *OrderItem) BeforeCreate(*gorm.DB) error   { assignID(&i.ID); return nil }
func (e *OutboxEvent) BeforeCreate(*gorm.DB) error { assignID(&e.ID); return nil }
