package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"boutique-api/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetCityByID retrieves a city by ID
func (s *Store) GetCityByID(ctx context.Context, id int64) (*models.City, error) {
	var city models.City
	err := s.db.GetContext(ctx, &city, "SELECT * FROM cities WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("city not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &city, nil
}

// GetCityByExactName retrieves a city whose name matches exactly.
// Returns nil without error when no row matches.
func (s *Store) GetCityByExactName(ctx context.Context, name string) (*models.City, error) {
	var city models.City
	err := s.db.GetContext(ctx, &city, "SELECT * FROM cities WHERE name = $1 LIMIT 1", name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &city, nil
}

// SearchCity looks for a city by case-insensitive equality or substring
// match against the name and Arabic name columns. Returns nil without
// error when nothing matches.
func (s *Store) SearchCity(ctx context.Context, term string) (*models.City, error) {
	var city models.City
	err := s.db.GetContext(ctx, &city, `
		SELECT * FROM cities
		WHERE name ILIKE $1 OR name ILIKE $2
		   OR name_ar ILIKE $1 OR name_ar ILIKE $2
		ORDER BY id
		LIMIT 1`,
		term, "%"+term+"%")
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &city, nil
}

// ListCities retrieves all cities ordered by code
func (s *Store) ListCities(ctx context.Context) ([]models.City, error) {
	var cities []models.City
	err := s.db.SelectContext(ctx, &cities, "SELECT * FROM cities ORDER BY code")
	return cities, err
}

// GetFirstActiveDesk returns the active desk with the lowest id for a city,
// or nil without error when the city has none.
func (s *Store) GetFirstActiveDesk(ctx context.Context, cityID int64) (*models.DeliveryDesk, error) {
	var desk models.DeliveryDesk
	err := s.db.GetContext(ctx, &desk, `
		SELECT * FROM delivery_desks
		WHERE city_id = $1 AND is_active = true
		ORDER BY id
		LIMIT 1`, cityID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &desk, nil
}

// GetDeskByID retrieves a delivery desk by ID
func (s *Store) GetDeskByID(ctx context.Context, id int64) (*models.DeliveryDesk, error) {
	var desk models.DeliveryDesk
	err := s.db.GetContext(ctx, &desk, "SELECT * FROM delivery_desks WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("delivery desk not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &desk, nil
}

// CreateDesk inserts a new delivery desk
func (s *Store) CreateDesk(ctx context.Context, desk *models.DeliveryDesk) error {
	query := `
		INSERT INTO delivery_desks (name, name_ar, address, phone, city_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	return s.db.GetContext(ctx, &desk.ID, query,
		desk.Name, desk.NameAr, desk.Address, desk.Phone, desk.CityID, desk.IsActive)
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
