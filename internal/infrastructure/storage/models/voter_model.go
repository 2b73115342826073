package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// VoterModel is one registered voter, always attached to a family and a
// booth. Coordinates may be null; such voters still count toward totals but
// cannot contribute to atomic-unit centroids.
type VoterModel struct {
	bun.BaseModel `bun:"table:voters,alias:vt"`

	ID         uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	ElectionID uuid.UUID `bun:"election_id,notnull,type:uuid"`
	BoothID    uuid.UUID `bun:"booth_id,notnull,type:uuid"`
	FamilyID   uuid.UUID `bun:"family_id,notnull,type:uuid"`
	FullName   string    `bun:"full_name,notnull"`
	EpicNumber string    `bun:"epic_number,notnull"`
	Age        int       `bun:"age,notnull"`
	Gender     string    `bun:"gender,notnull"`
	Latitude   *float64  `bun:"latitude"`
	Longitude  *float64  `bun:"longitude"`
	Address    string    `bun:"address"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

func (VoterModel) TableName() string { return "voters" }

func (v *VoterModel) BeforeInsert(ctx interface{}) error {
	v.CreatedAt = time.Now()
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// FamilyModel is the atomic unit of voter movement: a household, keyed by
// (election, booth), never split across segments. Its coordinates are the
// centroid used for every spatial grouping decision downstream.
type FamilyModel struct {
	bun.BaseModel `bun:"table:families,alias:fm"`

	ID          uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	ElectionID  uuid.UUID `bun:"election_id,notnull,type:uuid"`
	BoothID     uuid.UUID `bun:"booth_id,notnull,type:uuid"`
	MemberCount int       `bun:"member_count,notnull"`
	Latitude    *float64  `bun:"latitude"`
	Longitude   *float64  `bun:"longitude"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

func (FamilyModel) TableName() string { return "families" }

func (f *FamilyModel) BeforeInsert(ctx interface{}) error {
	f.CreatedAt = time.Now()
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// HasCoordinates reports whether the family centroid is usable for geometry.
func (f *FamilyModel) HasCoordinates() bool {
	return f.Latitude != nil && f.Longitude != nil
}
