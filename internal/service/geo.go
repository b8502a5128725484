package service

import (
	"context"
	"fmt"

	"boutique-api/internal/models"
	"boutique-api/internal/util"
	"boutique-api/internal/wilaya"

	"go.uber.org/zap"
)

// GeoStore is the city/desk persistence surface the resolver needs.
type GeoStore interface {
	GetCityByID(ctx context.Context, id int64) (*models.City, error)
	GetCityByExactName(ctx context.Context, name string) (*models.City, error)
	SearchCity(ctx context.Context, term string) (*models.City, error)
	GetFirstActiveDesk(ctx context.Context, cityID int64) (*models.DeliveryDesk, error)
	CreateDesk(ctx context.Context, desk *models.DeliveryDesk) error
}

// GeoResolver maps a customer-submitted wilaya onto a persisted city row and
// resolves (or lazily creates) the delivery desk for pickup orders.
type GeoResolver struct {
	store  GeoStore
	logger *zap.Logger
}

// NewGeoResolver creates a new geo resolver
func NewGeoResolver(store GeoStore) *GeoResolver {
	return &GeoResolver{
		store:  store,
		logger: util.GetLogger(),
	}
}

// ResolveCity pins a wilaya id to a City row. The exact-name path is tried
// first; renamed or re-accented city rows are caught by the alias fallback.
// A miss is a configuration error, not a transient fault.
func (g *GeoResolver) ResolveCity(ctx context.Context, wilayaID int) (*models.City, error) {
	entry, ok := wilaya.GetByID(wilayaID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", models.ErrUnsupportedWilaya, wilayaID)
	}

	city, err := g.store.GetCityByExactName(ctx, entry.Name)
	if err != nil {
		return nil, err
	}
	if city != nil {
		return city, nil
	}

	// Broadened search: the canonical name first, then every alias, each
	// tried case-insensitively and as a substring against both name columns.
	for _, candidate := range append([]string{entry.Name}, entry.Aliases...) {
		city, err = g.store.SearchCity(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if city != nil {
			return city, nil
		}
	}

	g.logger.Error("No city row matches wilaya",
		zap.Int("wilaya_id", wilayaID),
		zap.String("canonical", entry.Name),
		zap.Strings("aliases", entry.Aliases))
	return nil, fmt.Errorf("%w: wilaya %d (%s)", models.ErrCityNotFound, wilayaID, entry.Name)
}

// ResolveOrCreateDesk returns the id of the city's first active desk, lazily
// creating one from the supplied name when none exists. Desk assignment is
// non-critical: any failure degrades to nil with a warning and the order
// proceeds without a desk reference.
func (g *GeoResolver) ResolveOrCreateDesk(ctx context.Context, cityID int64, externalDeskID *int64, externalDeskName string) *int64 {
	desk, err := g.store.GetFirstActiveDesk(ctx, cityID)
	if err != nil {
		g.logger.Warn("Desk lookup failed, proceeding without desk",
			zap.Int64("city_id", cityID), zap.Error(err))
		util.DeskFallbacksTotal.Inc()
		return nil
	}
	if desk != nil {
		return &desk.ID
	}

	if externalDeskName == "" {
		if externalDeskID != nil {
			g.logger.Warn("Desk id supplied but no matching active desk",
				zap.Int64("city_id", cityID), zap.Int64("desk_id", *externalDeskID))
		}
		util.DeskFallbacksTotal.Inc()
		return nil
	}

	city, err := g.store.GetCityByID(ctx, cityID)
	if err != nil {
		g.logger.Warn("City fetch failed during desk creation, proceeding without desk",
			zap.Int64("city_id", cityID), zap.Error(err))
		util.DeskFallbacksTotal.Inc()
		return nil
	}

	created := &models.DeliveryDesk{
		Name:     externalDeskName,
		NameAr:   city.NameAr,
		Address:  fmt.Sprintf("Yalidine Center - %s", city.Name),
		Phone:    nil,
		CityID:   cityID,
		IsActive: true,
	}
	if err := g.store.CreateDesk(ctx, created); err != nil {
		g.logger.Warn("Desk creation failed, proceeding without desk",
			zap.Int64("city_id", cityID), zap.Error(err))
		util.DeskFallbacksTotal.Inc()
		return nil
	}

	g.logger.Info("Delivery desk created",
		zap.Int64("city_id", cityID),
		zap.Int64("desk_id", created.ID),
		zap.String("name", externalDeskName))
	return &created.ID
}
