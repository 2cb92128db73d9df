package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BeforeCreate hooks assign IDs client-side when the caller left them unset,
// so inserts behave the same on Postgres and the SQLite test driver.

func (c *Card) BeforeCreate(*gorm.DB) error              { fillID(&c.ID); return nil }
func (o *FulfillmentOrder) BeforeCreate(*gorm.DB) error  { fillID(&o.ID); return nil }
func (i *OrderLineItem) BeforeCreate(*gorm.DB) error     { fillID(&i.ID); return nil }
func (w *Wallet) BeforeCreate(*gorm.DB) error            { fillID(&w.ID); return nil }
func (t *WalletTransaction) BeforeCreate(*gorm.DB) error { fillID(&t.ID); return nil }
func (p *Product) BeforeCreate(*gorm.DB) error           { fillID(&p.ID); return nil }
func (s *Supplier) BeforeCreate(*gorm.DB) error          { fillID(&s.ID); return nil }
func (l *ProductSupplierLink) BeforeCreate(*gorm.DB) error {
	fillID(&l.ID)
	return nil
}
func (c *SupplierProductCode) BeforeCreate(*gorm.DB) error {
	fillID(&c.ID)
	return nil
}
func (t *Tenant) BeforeCreate(*gorm.DB) error          { fillID(&t.ID); return nil }
func (u *User) BeforeCreate(*gorm.DB) error            { fillID(&u.ID); return nil }
func (d *DeliveryRecord) BeforeCreate(*gorm.DB) error  { fillID(&d.ID); return nil }
func (l *LegacyCardOrder) BeforeCreate(*gorm.DB) error { fillID(&l.ID); return nil }
func (e *OutboxEvent) BeforeCreate(*gorm.DB) error     { fillID(&e.ID); return nil }

func fillID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
