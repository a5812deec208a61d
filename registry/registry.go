package registry

import (
	"context"
	"fmt"
	"strings"

	"dcorpbot/clock"
	"dcorpbot/database"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var Module = fx.Provide(New)

// Profile carries the display attributes the transport knows about a user.
// Empty strings are stored as absent.
type Profile struct {
	ExternalID snowflake.ID
	Handle     string
	GivenName  string
	FamilyName string
}

type Registry struct {
	db    *gorm.DB
	clock clock.Clock
	log   *zap.Logger
}

func New(db *gorm.DB, clk clock.Clock, log *zap.Logger) *Registry {
	return &Registry{db: db, clock: clk, log: log.Named("registry")}
}

// Upsert creates the user on first contact and refreshes display
// attributes afterwards. first_seen is never rewritten.
func (r *Registry) Upsert(ctx context.Context, p Profile) error {
	if p.ExternalID == 0 {
		return fmt.Errorf("upsert user: external id is required")
	}

	user := database.User{
		ExternalID: p.ExternalID,
		Handle:     optional(p.Handle),
		GivenName:  strings.TrimSpace(p.GivenName),
		FamilyName: optional(p.FamilyName),
		FirstSeen:  r.clock.Now(),
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"handle", "given_name", "family_name"}),
	}).Create(&user).Error
	if err != nil {
		return fmt.Errorf("upsert user %d: %w", p.ExternalID, err)
	}
	return nil
}

// Touch is Upsert for callers that must not be blocked by storage
// failures: the error is logged and dropped.
func (r *Registry) Touch(ctx context.Context, p Profile) {
	if err := r.Upsert(ctx, p); err != nil {
		r.log.Error("user upsert failed", zap.Int64("external_id", p.ExternalID.Int64()), zap.Error(err))
	}
}

func (r *Registry) Get(ctx context.Context, id snowflake.ID) (*database.User, error) {
	var users []database.User
	if err := r.db.WithContext(ctx).Where("external_id = ?", id).Limit(1).Find(&users).Error; err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
