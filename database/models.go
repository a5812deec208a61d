package database

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// User is a chat participant keyed by the transport's numeric identity.
// FirstSeen is written once on creation.
type User struct {
	ExternalID snowflake.ID `gorm:"column:external_id;primaryKey;autoIncrement:false"`
	Handle     *string      `gorm:"column:handle"`
	GivenName  string       `gorm:"column:given_name"`
	FamilyName *string      `gorm:"column:family_name"`
	FirstSeen  time.Time    `gorm:"column:first_seen;not null;default:CURRENT_TIMESTAMP"`

	Subscriptions []Subscription `gorm:"foreignKey:ExternalID;references:ExternalID"`
}

func (User) TableName() string { return "users" }

// Subscription is a time-bounded access grant.
type Subscription struct {
	ID         int64        `gorm:"column:id;primaryKey;autoIncrement"`
	ExternalID snowflake.ID `gorm:"column:external_id;not null;index"`
	StartTime  time.Time    `gorm:"column:start_time"`
	EndTime    time.Time    `gorm:"column:end_time;index"`
	Active     bool         `gorm:"column:active;not null;default:false"`
	PlanLabel  string       `gorm:"column:plan_label"`
	PaymentRef *string      `gorm:"column:payment_ref"`
}

func (Subscription) TableName() string { return "subscriptions" }
