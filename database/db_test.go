package database_test

import (
	"context"
	"testing"
	"time"

	"dcorpbot/config"
	"dcorpbot/database"
	"dcorpbot/database/dbtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMigrateIsIdempotent(t *testing.T) {
	db := dbtest.Open(t)

	require.NoError(t, database.Migrate(db))
	assert.True(t, db.Migrator().HasTable("users"))
	assert.True(t, db.Migrator().HasTable("subscriptions"))
	assert.True(t, db.Migrator().HasColumn(&database.Subscription{}, "payment_ref"))
}

func TestSubscriptionRequiresUser(t *testing.T) {
	db := dbtest.Open(t)

	now := time.Now().UTC()
	err := db.Create(&database.Subscription{
		ExternalID: 7,
		StartTime:  now,
		EndTime:    now.Add(time.Hour),
		Active:     true,
		PlanLabel:  "trial",
	}).Error
	assert.Error(t, err)
}

func TestSubscriptionsReferenceUsers(t *testing.T) {
	db := dbtest.Open(t)

	var usersDDL, subsDDL string
	require.NoError(t, db.Raw(`SELECT sql FROM sqlite_master WHERE type = 'table' AND name = 'users'`).Scan(&usersDDL).Error)
	require.NoError(t, db.Raw(`SELECT sql FROM sqlite_master WHERE type = 'table' AND name = 'subscriptions'`).Scan(&subsDDL).Error)
	assert.NotContains(t, usersDDL, "REFERENCES")
	assert.Contains(t, subsDDL, "REFERENCES `users`")

	now := time.Now().UTC()
	require.NoError(t, db.Create(&database.User{ExternalID: 42, GivenName: "a", FirstSeen: now}).Error)
	require.NoError(t, db.Create(&database.Subscription{
		ExternalID: 42,
		StartTime:  now,
		EndTime:    now.Add(time.Hour),
		Active:     true,
		PlanLabel:  "trial",
	}).Error)
	require.NoError(t, db.Create(&database.Subscription{
		ExternalID: 42,
		StartTime:  now,
		EndTime:    now.Add(2 * time.Hour),
		Active:     true,
		PlanLabel:  "trial",
	}).Error)

	err := db.Create(&database.Subscription{ExternalID: 43, StartTime: now, EndTime: now.Add(time.Hour)}).Error
	assert.Error(t, err)
}

func TestFirstSeenDefaultsToNow(t *testing.T) {
	db := dbtest.Open(t)

	require.NoError(t, db.Exec(`INSERT INTO users (external_id, given_name) VALUES (?, ?)`, 9, "raw").Error)

	var n int64
	require.NoError(t, db.Raw(`SELECT COUNT(*) FROM users WHERE external_id = ? AND first_seen IS NOT NULL`, 9).Scan(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestActiveDefaultsToFalse(t *testing.T) {
	db := dbtest.Open(t)

	now := time.Now().UTC()
	require.NoError(t, db.Create(&database.User{ExternalID: 7, GivenName: "a", FirstSeen: now}).Error)
	require.NoError(t, db.Exec(
		`INSERT INTO subscriptions (external_id, start_time, end_time, plan_label) VALUES (?, ?, ?, ?)`,
		7, now, now.Add(time.Hour), "manual",
	).Error)

	var sub database.Subscription
	require.NoError(t, db.First(&sub).Error)
	assert.False(t, sub.Active)
	assert.Nil(t, sub.PaymentRef)
}

func TestPing(t *testing.T) {
	db := dbtest.Open(t)
	assert.NoError(t, database.Ping(context.Background(), db))
}

func TestUnsupportedType(t *testing.T) {
	_, err := database.Open(config.Database{Type: "oracle"}, zap.NewNop(), false)
	assert.Error(t, err)
}
