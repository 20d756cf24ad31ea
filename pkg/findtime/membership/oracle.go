package membership

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/findtime/findtime/pkg/findtime/apperror"
	"github.com/findtime/findtime/pkg/findtime/models"
)

// UserInfo is the identity view other packages get of a user.
type UserInfo struct {
	ID          uint
	Email       string
	DisplayName string
	Deleted     bool
}

// Oracle answers membership and ownership questions against the database.
type Oracle struct {
	db *gorm.DB
}

// NewOracle creates an oracle over db
func NewOracle(db *gorm.DB) *Oracle {
	return &Oracle{db: db}
}

// ValidateActiveMember returns the user's active membership in a live group,
// or a Forbidden error.
func (o *Oracle) ValidateActiveMember(ctx context.Context, groupID, userID uint) (*models.GroupMembership, error) {
	db := o.db.WithContext(ctx)

	var live int64
	if err := db.Model(&models.Group{}).Where("id = ?", groupID).Count(&live).Error; err != nil {
		return nil, fmt.Errorf("loading group: %w", err)
	}
	if live == 0 {
		return nil, apperror.Forbidden("you are not a member of this group")
	}

	var m models.GroupMembership
	err := db.Where("group_id = ? AND user_id = ? AND is_active = ?", groupID, userID, true).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.Forbidden("you are not a member of this group")
	}
	if err != nil {
		return nil, fmt.Errorf("checking membership: %w", err)
	}
	return &m, nil
}

// IsGroupAdmin reports whether userID administers groupID.
func (o *Oracle) IsGroupAdmin(ctx context.Context, groupID, userID uint) (bool, error) {
	var count int64
	err := o.db.WithContext(ctx).Model(&models.Group{}).
		Where("id = ? AND admin_id = ?", groupID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("checking group admin: %w", err)
	}
	return count > 0, nil
}

// ValidateCategory returns the category if it exists and belongs to the group.
func (o *Oracle) ValidateCategory(ctx context.Context, categoryID, groupID uint) (*models.Category, error) {
	var cat models.Category
	err := o.db.WithContext(ctx).Where("id = ? AND group_id = ?", categoryID, groupID).First(&cat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("category %d not found in this group", categoryID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading category: %w", err)
	}
	return &cat, nil
}

// LookupUser returns identity info for a user, including soft-deleted ones.
func (o *Oracle) LookupUser(ctx context.Context, userID uint) (*UserInfo, error) {
	var u models.User
	err := o.db.WithContext(ctx).Unscoped().First(&u, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("user %d not found", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	return &UserInfo{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName(),
		Deleted:     u.IsDeleted(),
	}, nil
}

// ActiveMemberIDs lists the users with an active membership in the group.
func (o *Oracle) ActiveMemberIDs(ctx context.Context, groupID uint) ([]uint, error) {
	var ids []uint
	err := o.db.WithContext(ctx).Model(&models.GroupMembership{}).
		Where("group_id = ? AND is_active = ?", groupID, true).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	return ids, nil
}

// Nicknames returns the names viewerID has set for other members of the group,
// keyed by target user.
func (o *Oracle) Nicknames(ctx context.Context, groupID, viewerID uint) (map[uint]string, error) {
	var rows []models.MemberNickname
	err := o.db.WithContext(ctx).Where("group_id = ? AND user_id = ?", groupID, viewerID).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("loading nicknames: %w", err)
	}
	out := make(map[uint]string, len(rows))
	for _, r := range rows {
		out[r.TargetUserID] = r.Nickname
	}
	return out, nil
}
