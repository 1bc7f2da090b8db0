package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ByUserID restricts to rows owned by one user.
type ByUserID struct {
	UserID uuid.UUID
}

func (s ByUserID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ?", s.UserID)
}

// OwnedAnalysis finds one analysis only if it belongs to the user.
func OwnedAnalysis(id, userID uuid.UUID) []Specification {
	return []Specification{ByID{ID: id}, ByUserID{UserID: userID}}
}

// RecentFirst orders analyses newest first.
func RecentFirst() Specification {
	return OrderBy{Field: "created_at", Desc: true}
}
