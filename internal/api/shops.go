package api

import (
	"context"

	"github.com/shopcrm/crm-console/internal/model"
)

// Shops lists the active shops the current user may switch between.
func (c *Client) Shops(ctx context.Context) ([]model.Shop, error) {
	var shops []model.Shop
	if err := c.Get(ctx, "/api/shops/", &shops); err != nil {
		return nil, err
	}
	return shops, nil
}
