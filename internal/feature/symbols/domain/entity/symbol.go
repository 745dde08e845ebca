// Package entity defines the domain models for the symbols feature.
package entity

import "time"

// Symbol represents one tradable ticker in the symbol directory.
// The directory backs subscribe-time validation and the REST listing.
type Symbol struct {
	ID        uint      `gorm:"primaryKey"`
	Ticker    string    `gorm:"size:20;not null;uniqueIndex"`
	Name      string    `gorm:"size:255;not null"`
	Exchange  string    `gorm:"size:100;not null"`
	IsActive  bool      `gorm:"not null;default:true"`
	SortKey   int       `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
