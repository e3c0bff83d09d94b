package models

import (
	"time"
)

// Application is one tenant's gateway credential bundle. AppID and AppSecret
// are minted once at creation and never change afterwards.
type Application struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	CallbackURL       string    `json:"callback_url"`
	ConsumerKey       string    `json:"consumer_key"`
	ConsumerSecret    string    `json:"consumer_secret"`
	BusinessShortCode string    `json:"business_short_code"`
	Passkey           string    `json:"passkey"`
	BearerToken       string    `json:"bearer_token"`
	PartyA            string    `json:"party_a"`
	PartyB            string    `json:"party_b"`
	AppID             string    `json:"app_id"`
	AppSecret         string    `json:"app_secret"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ApplicationInput is the client-editable field set. The minted pair is
// deliberately absent.
type ApplicationInput struct {
	Name              string `json:"name" validate:"required,max=100"`
	CallbackURL       string `json:"callback_url" validate:"required,url"`
	ConsumerKey       string `json:"consumer_key" validate:"required"`
	ConsumerSecret    string `json:"consumer_secret" validate:"required"`
	BusinessShortCode string `json:"business_short_code" validate:"required,numeric"`
	Passkey           string `json:"passkey" validate:"required"`
	BearerToken       string `json:"bearer_token"`
	PartyA            string `json:"party_a" validate:"omitempty,numeric"`
	PartyB            string `json:"party_b" validate:"omitempty,numeric"`
	IsActive          *bool  `json:"is_active,omitempty"`
}

// Active returns the requested active flag, defaulting to true.
func (in ApplicationInput) Active() bool {
	return in.IsActive == nil || *in.IsActive
}

// NewApplication builds the record persisted after minting.
func NewApplication(id string, in ApplicationInput, appID, appSecret string) Application {
	return Application{
		ID:                id,
		Name:              in.Name,
		CallbackURL:       in.CallbackURL,
		ConsumerKey:       in.ConsumerKey,
		ConsumerSecret:    in.ConsumerSecret,
		BusinessShortCode: in.BusinessShortCode,
		Passkey:           in.Passkey,
		BearerToken:       in.BearerToken,
		PartyA:            in.PartyA,
		PartyB:            in.PartyB,
		AppID:             appID,
		AppSecret:         appSecret,
		IsActive:          in.Active(),
	}
}

// ApplicationLabel resolves the display name for an owning application id,
// falling back to "App ID: <id>" while the lookup table is missing or stale.
func ApplicationLabel(names map[string]string, id string) string {
	if name, ok := names[id]; ok && name != "" {
		return name
	}
	if id == "" {
		return "Unknown"
	}
	return "App ID: " + id
}
