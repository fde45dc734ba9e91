// Package models defines the typed shapes of the application's well-known
// collections. Records are still stored schemaless; these types are used
// with docstore.Typed and to reject ill-typed input for known collections.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Collection names used by the application.
const (
	CollectionFarmers      = "farmers"
	CollectionChatHistory  = "chat_history"
	CollectionSoilReadings = "soil_readings"
	CollectionMarketPrices = "market_prices"
)

var ErrInvalidRecord = errors.New("record does not fit collection schema")

// Meta holds the system fields maintained by the store.
type Meta struct {
	ID        string `json:"id,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// Farmer is a registered user profile.
type Farmer struct {
	Meta
	Name           string   `json:"name,omitempty"`
	Email          string   `json:"email,omitempty"`
	Phone          string   `json:"phone,omitempty"`
	Language       string   `json:"language,omitempty"`
	Location       string   `json:"location,omitempty"`
	FarmSize       float64  `json:"farmSize,omitempty"` // acres
	PreferredCrops []string `json:"preferredCrops,omitempty"`
}

// Sender values of ChatMessage.
const (
	SenderUser = "user"
	SenderBot  = "bot"
)

type ChatMessage struct {
	Meta
	Sender  string `json:"sender,omitempty"`
	Message string `json:"message,omitempty"`
}

// SoilReading is one soil test result. Nutrients are in kg/ha.
type SoilReading struct {
	Meta
	Location      string  `json:"location,omitempty"`
	Latitude      float64 `json:"latitude,omitempty"`
	Longitude     float64 `json:"longitude,omitempty"`
	PH            float64 `json:"ph,omitempty"`
	Nitrogen      float64 `json:"nitrogen,omitempty"`
	Phosphorus    float64 `json:"phosphorus,omitempty"`
	Potassium     float64 `json:"potassium,omitempty"`
	OrganicMatter float64 `json:"organicMatter,omitempty"`
	Texture       string  `json:"texture,omitempty"`
}

type MarketPrice struct {
	Meta
	Crop      string  `json:"crop,omitempty"`
	State     string  `json:"state,omitempty"`
	District  string  `json:"district,omitempty"`
	Market    string  `json:"market,omitempty"`
	Price     float64 `json:"price,omitempty"`
	PriceUnit string  `json:"priceUnit,omitempty"` // e.g. "Quintal"
}

// Validate checks the record against the Go type of a known collection.
// Field types must match; unknown fields are allowed. Records of other
// collections always pass.
func Validate(collection string, record map[string]any) error {
	var target any
	switch collection {
	case CollectionFarmers:
		target = &Farmer{}
	case CollectionChatHistory:
		target = &ChatMessage{}
	case CollectionSoilReadings:
		target = &SoilReading{}
	case CollectionMarketPrices:
		target = &MarketPrice{}
	default:
		return nil
	}

	b, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if err := json.Unmarshal(b, target); err != nil {
		return fmt.Errorf("%s: %w: %v", collection, ErrInvalidRecord, err)
	}
	if m, ok := target.(*ChatMessage); ok && m.Sender != "" && m.Sender != SenderUser && m.Sender != SenderBot {
		return fmt.Errorf("%s: %w: sender must be %q or %q", collection, ErrInvalidRecord, SenderUser, SenderBot)
	}
	return nil
}
