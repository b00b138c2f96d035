package cms

import (
	"context"
	"fmt"
	"time"

	"github.com/jpl-au/cmsdb/internal/store"
)

// RoutingType selects how requests map to sites.
type RoutingType string

// Routing types.
const (
	RoutingPath   RoutingType = "path"
	RoutingDomain RoutingType = "domain"
)

// Settings is the single global settings record.
type Settings struct {
	ID          string      `json:"_id"`
	MultiSite   bool        `json:"multiSiteEnabled"`
	RoutingType RoutingType `json:"routingType"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// SettingsUpdate lists the settings to change; nil fields are left alone.
type SettingsUpdate struct {
	MultiSite   *bool
	RoutingType *RoutingType
}

// DefaultSettings is applied on first read and by ResetGlobalSettings.
func DefaultSettings() SettingsUpdate {
	multi, routing := false, RoutingPath
	return SettingsUpdate{MultiSite: &multi, RoutingType: &routing}
}

func (u SettingsUpdate) patch() (store.Patch, error) {
	p := store.Patch{}
	if u.MultiSite != nil {
		p["multiSiteEnabled"] = *u.MultiSite
	}
	if u.RoutingType != nil {
		switch *u.RoutingType {
		case RoutingPath, RoutingDomain:
		default:
			return nil, fmt.Errorf("%w: routing type must be path or domain, got %q", ErrInvalidInput, *u.RoutingType)
		}
		p["routingType"] = string(*u.RoutingType)
	}
	return p, nil
}

// GetGlobalSettings returns the settings, creating the defaults on first
// read.
func (s *Service) GetGlobalSettings(ctx context.Context) (*Settings, error) {
	doc, err := s.db.FindOne(ctx, CollectionSettings, nil, store.FindOneOptions{})
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	if doc != nil {
		return settingsFrom(doc), nil
	}
	return s.createSettings(ctx, SettingsUpdate{})
}

// SaveGlobalSettings applies u to the existing record, or creates one from
// the defaults plus u.
func (s *Service) SaveGlobalSettings(ctx context.Context, u SettingsUpdate) (*Settings, error) {
	p, err := u.patch()
	if err != nil {
		return nil, err
	}
	existing, err := s.db.FindOne(ctx, CollectionSettings, nil, store.FindOneOptions{})
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	if existing == nil {
		return s.createSettings(ctx, u)
	}
	doc, err := s.db.UpdateByID(ctx, CollectionSettings, existing.ID(), p, store.UpdateOptions{})
	if err != nil {
		return nil, fmt.Errorf("save settings: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("save settings: record %s vanished", existing.ID())
	}
	return settingsFrom(doc), nil
}

// ResetGlobalSettings restores the defaults.
func (s *Service) ResetGlobalSettings(ctx context.Context) (*Settings, error) {
	return s.SaveGlobalSettings(ctx, DefaultSettings())
}

func (s *Service) createSettings(ctx context.Context, u SettingsUpdate) (*Settings, error) {
	defaults, _ := DefaultSettings().patch()
	p, err := u.patch()
	if err != nil {
		return nil, err
	}
	doc := store.Document{}
	for k, v := range defaults {
		doc[k] = v
	}
	for k, v := range p {
		doc[k] = v
	}
	created, err := s.db.Create(ctx, CollectionSettings, doc)
	if err != nil {
		return nil, fmt.Errorf("create settings: %w", err)
	}
	return settingsFrom(created), nil
}
