package models

import "time"

// Member is the persisted member record
type Member struct {
	ID    uint   `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Name  string `gorm:"column:name;type:varchar(100);not null;index:idx_members_name" json:"name"`
	Phone string `gorm:"column:phone;type:varchar(15);not null;uniqueIndex:idx_members_phone" json:"phone"`
	Club  string `gorm:"column:club;type:varchar(100);not null" json:"club"`
	BaseModel
}

// TableName sets the table name for GORM
func (Member) TableName() string {
	return "members"
}

// Apply overwrites the mutable fields with an already validated value
func (m *Member) Apply(v ValidMember) {
	m.Name = v.Name
	m.Phone = v.Phone
	m.Club = v.Club
}

// ToResponse converts the stored record into its read model
func (m *Member) ToResponse() MemberResponse {
	return MemberResponse{
		ID:        m.ID,
		Name:      m.Name,
		Phone:     m.Phone,
		Club:      m.Club,
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
		UpdatedAt: m.UpdatedAt.Format(time.RFC3339),
	}
}

// MemberRequest is the body accepted by POST /members. Pointer fields let
// validation tell an absent field apart from an empty one.
type MemberRequest struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
	Club  *string `json:"club"`
}

// MemberPatch is the body accepted by PUT /members/{id}; absent fields keep
// their stored values
type MemberPatch struct {
	Name  *string `json:"name,omitempty"`
	Phone *string `json:"phone,omitempty"`
	Club  *string `json:"club,omitempty"`
}

// IsEmpty reports whether the patch changes nothing
func (p MemberPatch) IsEmpty() bool {
	return p.Name == nil && p.Phone == nil && p.Club == nil
}

// MergeOnto builds the full candidate produced by applying the patch to a
// stored record
func (p MemberPatch) MergeOnto(m *Member) MemberRequest {
	merged := MemberRequest{Name: &m.Name, Phone: &m.Phone, Club: &m.Club}
	if p.Name != nil {
		merged.Name = p.Name
	}
	if p.Phone != nil {
		merged.Phone = p.Phone
	}
	if p.Club != nil {
		merged.Club = p.Club
	}
	return merged
}

// MemberResponse is the read model returned to callers
type MemberResponse struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Club      string `json:"club"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// Pagination bounds for member listings
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// MemberFilter narrows GET /members. Name and Club match case-insensitive
// substrings, Phone matches exactly.
type MemberFilter struct {
	Name   string
	Club   string
	Phone  string
	Limit  int
	Offset int
}

// Normalize trims the filter values and clamps pagination
func (f MemberFilter) Normalize() MemberFilter {
	out := f
	out.Name = trim(f.Name)
	out.Club = trim(f.Club)
	out.Phone = trim(f.Phone)
	if out.Limit <= 0 {
		out.Limit = DefaultListLimit
	}
	if out.Limit > MaxListLimit {
		out.Limit = MaxListLimit
	}
	if out.Offset < 0 {
		out.Offset = 0
	}
	return out
}
