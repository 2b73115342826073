package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ElectionModel is the root container a segmentation run is scoped under.
type ElectionModel struct {
	bun.BaseModel `bun:"table:elections,alias:el"`

	ID        uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Name      string    `bun:"name,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func (ElectionModel) TableName() string { return "elections" }

func (e *ElectionModel) BeforeInsert(ctx interface{}) error {
	now := time.Now()
	e.CreatedAt = now
	e.UpdatedAt = now
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

func (e *ElectionModel) BeforeUpdate(ctx interface{}) error {
	e.UpdatedAt = time.Now()
	return nil
}

// HierarchyLevelModel names one depth of the election's administrative tree.
// The level-kind (constituency vs booth) is derived from Name, not stored
// separately: a case-insensitive substring match on "assembly"/"ac" means
// constituency, "booth"/"polling" means booth.
type HierarchyLevelModel struct {
	bun.BaseModel `bun:"table:hierarchy_levels,alias:hl"`

	ID          uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	ElectionID  uuid.UUID `bun:"election_id,notnull,type:uuid"`
	Name        string    `bun:"name,notnull"`
	OrdinalDepth int      `bun:"ordinal_depth,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

func (HierarchyLevelModel) TableName() string { return "hierarchy_levels" }

func (l *HierarchyLevelModel) BeforeInsert(ctx interface{}) error {
	l.CreatedAt = time.Now()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// HierarchyNodeModel is one node of the election's administrative tree.
type HierarchyNodeModel struct {
	bun.BaseModel `bun:"table:hierarchy_nodes,alias:hn"`

	ID         uuid.UUID  `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	ElectionID uuid.UUID  `bun:"election_id,notnull,type:uuid"`
	LevelID    uuid.UUID  `bun:"level_id,notnull,type:uuid"`
	ParentID   *uuid.UUID `bun:"parent_id,type:uuid"`
	Name       string     `bun:"name,notnull"`
	CreatedAt  time.Time  `bun:"created_at,notnull,default:current_timestamp"`

	Level *HierarchyLevelModel `bun:"rel:belongs-to,join:level_id=id"`
}

func (HierarchyNodeModel) TableName() string { return "hierarchy_nodes" }

func (n *HierarchyNodeModel) BeforeInsert(ctx interface{}) error {
	n.CreatedAt = time.Now()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

// BoothModel is an operational leaf of the hierarchy. A voter belongs to at
// most one booth.
type BoothModel struct {
	bun.BaseModel `bun:"table:booths,alias:bt"`

	ID         uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	ElectionID uuid.UUID `bun:"election_id,notnull,type:uuid"`
	NodeID     uuid.UUID `bun:"node_id,notnull,type:uuid"`
	BoothNumber string   `bun:"booth_number,notnull"`
	Latitude   *float64  `bun:"latitude"`
	Longitude  *float64  `bun:"longitude"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

func (BoothModel) TableName() string { return "booths" }

func (b *BoothModel) BeforeInsert(ctx interface{}) error {
	b.CreatedAt = time.Now()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
