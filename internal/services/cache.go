package services

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/hatchly/internal/models"
	"github.com/patrickmn/go-cache"
)

const locationsCacheKey = "locations"

func prawnsCacheKey(userID int64) string {
	return fmt.Sprintf("prawns:%d", userID)
}

// CachingBackend caches prawn and location lists so filtering does not refetch.
//
// Every mutation through it flushes the cache.
type CachingBackend struct {
	Backend
	cache *cache.Cache
}

// NewCachingBackend wraps b with a list cache whose entries live for ttl.
func NewCachingBackend(b Backend, ttl time.Duration) *CachingBackend {
	return &CachingBackend{Backend: b, cache: cache.New(ttl, ttl*2)}
}

// Flush drops every cached list.
func (c *CachingBackend) Flush() {
	c.cache.Flush()
}

func (c *CachingBackend) ListPrawns(ctx context.Context, userID int64) ([]models.Prawn, error) {
	key := prawnsCacheKey(userID)
	if v, ok := c.cache.Get(key); ok {
		return append([]models.Prawn(nil), v.([]models.Prawn)...), nil
	}

	prawns, err := c.Backend.ListPrawns(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, append([]models.Prawn(nil), prawns...))
	return prawns, nil
}

func (c *CachingBackend) ListLocations(ctx context.Context) ([]models.Location, error) {
	if v, ok := c.cache.Get(locationsCacheKey); ok {
		return append([]models.Location(nil), v.([]models.Location)...), nil
	}

	locations, err := c.Backend.ListLocations(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(locationsCacheKey, append([]models.Location(nil), locations...))
	return locations, nil
}

// flushAfter flushes the cache whatever the outcome of the mutation.
func (c *CachingBackend) flushAfter(err error) error {
	c.cache.Flush()
	return err
}

func (c *CachingBackend) Logout(ctx context.Context) error {
	return c.flushAfter(c.Backend.Logout(ctx))
}

func (c *CachingBackend) SavePrawn(ctx context.Context, userID int64, name string, locationID int64) (*models.Prawn, error) {
	p, err := c.Backend.SavePrawn(ctx, userID, name, locationID)
	return p, c.flushAfter(err)
}

func (c *CachingBackend) DeletePrawn(ctx context.Context, userID, prawnID int64, password string) error {
	return c.flushAfter(c.Backend.DeletePrawn(ctx, userID, prawnID, password))
}

func (c *CachingBackend) RenamePrawn(ctx context.Context, prawnID int64, name string) error {
	return c.flushAfter(c.Backend.RenamePrawn(ctx, prawnID, name))
}

func (c *CachingBackend) TransferPrawn(ctx context.Context, prawnID, locationID int64) error {
	return c.flushAfter(c.Backend.TransferPrawn(ctx, prawnID, locationID))
}

func (c *CachingBackend) SaveLocation(ctx context.Context, name string) (*models.Location, error) {
	l, err := c.Backend.SaveLocation(ctx, name)
	return l, c.flushAfter(err)
}

func (c *CachingBackend) RenameLocation(ctx context.Context, locationID int64, name string) error {
	return c.flushAfter(c.Backend.RenameLocation(ctx, locationID, name))
}

func (c *CachingBackend) DeleteLocation(ctx context.Context, locationID int64) error {
	return c.flushAfter(c.Backend.DeleteLocation(ctx, locationID))
}

var _ Backend = (*CachingBackend)(nil)
