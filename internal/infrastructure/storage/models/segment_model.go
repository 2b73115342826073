package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const SegmentStatusDraft = "draft"

// SegmentPalette is the fixed 10-entry color palette segments are assigned
// from, indexed by `i mod 10` in creation order.
var SegmentPalette = [10]string{
	"#E6194B", "#3CB44B", "#FFE119", "#4363D8", "#F58231",
	"#911EB4", "#46F0F0", "#F032E6", "#BCF60C", "#FABEBE",
}

// SegmentModel is one contiguous operational region produced by a
// segmentation run.
type SegmentModel struct {
	bun.BaseModel `bun:"table:segments,alias:sg"`

	ID             uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	ElectionID     uuid.UUID `bun:"election_id,notnull,type:uuid"`
	NodeID         uuid.UUID `bun:"node_id,notnull,type:uuid"`
	DisplayName    string    `bun:"display_name,notnull"`
	Color          string    `bun:"color,notnull"`
	Status         string    `bun:"status,notnull,default:'draft'"`
	Centroid       Geometry  `bun:"centroid,type:geometry(Point,4326)"`
	Boundary       Geometry  `bun:"boundary,type:geometry(Polygon,4326)"`
	FullGeometry   Geometry  `bun:"full_geometry,type:geometry(Polygon,4326)"`
	TotalVoters    int       `bun:"total_voters,notnull,default:0"`
	TotalFamilies  int       `bun:"total_families,notnull,default:0"`
	Metadata       JSONBMap  `bun:"metadata,type:jsonb,default:'{}'"`
	CreatedAt      time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt      time.Time `bun:"updated_at,notnull,default:current_timestamp"`

	Members []*SegmentMemberModel `bun:"rel:has-many,join:id=segment_id"`
}

func (SegmentModel) TableName() string { return "segments" }

func (s *SegmentModel) BeforeInsert(ctx interface{}) error {
	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = SegmentStatusDraft
	}
	if s.Metadata == nil {
		s.Metadata = make(JSONBMap)
	}
	return nil
}

func (s *SegmentModel) BeforeUpdate(ctx interface{}) error {
	s.UpdatedAt = time.Now()
	return nil
}

// SegmentMemberModel attaches a family to the segment that owns it. Voters
// never get their own row here: they move with their family.
type SegmentMemberModel struct {
	bun.BaseModel `bun:"table:segment_members,alias:sm"`

	ID        uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	SegmentID uuid.UUID `bun:"segment_id,notnull,type:uuid"`
	FamilyID  uuid.UUID `bun:"family_id,notnull,type:uuid"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

func (SegmentMemberModel) TableName() string { return "segment_members" }

func (m *SegmentMemberModel) BeforeInsert(ctx interface{}) error {
	m.CreatedAt = time.Now()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// AuditBatchModel groups the per-segment movements of one completed job.
type AuditBatchModel struct {
	bun.BaseModel `bun:"table:audit_batches,alias:ab"`

	ID           uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	ElectionID   uuid.UUID `bun:"election_id,notnull,type:uuid"`
	BatchType    string    `bun:"batch_type,notnull,default:'segmentation'"`
	Description  string    `bun:"description,notnull"`
	TotalChanges int       `bun:"total_changes,notnull,default:0"`
	Status       string    `bun:"status,notnull,default:'applied'"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

func (AuditBatchModel) TableName() string { return "audit_batches" }

func (b *AuditBatchModel) BeforeInsert(ctx interface{}) error {
	b.CreatedAt = time.Now()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.BatchType == "" {
		b.BatchType = "segmentation"
	}
	if b.Status == "" {
		b.Status = "applied"
	}
	return nil
}

// AuditMovementModel is one recorded change belonging to an audit batch.
type AuditMovementModel struct {
	bun.BaseModel `bun:"table:audit_movements,alias:am"`

	ID         uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	BatchID    uuid.UUID `bun:"batch_id,notnull,type:uuid"`
	Action     string    `bun:"action,notnull"`
	EntityType string    `bun:"entity_type,notnull"`
	EntityID   uuid.UUID `bun:"entity_id,notnull,type:uuid"`
	NewData    JSONBMap  `bun:"new_data,type:jsonb,default:'{}'"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

func (AuditMovementModel) TableName() string { return "audit_movements" }

func (m *AuditMovementModel) BeforeInsert(ctx interface{}) error {
	m.CreatedAt = time.Now()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.NewData == nil {
		m.NewData = make(JSONBMap)
	}
	return nil
}

const (
	AuditActionCreate = "create"

	AuditEntityTypeSegment = "segment"
)
