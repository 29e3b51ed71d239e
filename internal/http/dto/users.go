package dto

import (
	"time"

	"github.com/pribylovaa/siveal/internal/models"
	"github.com/pribylovaa/siveal/internal/service"
)

// User is the full profile. The password hash is never part of it.
type User struct {
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	FirstName string     `json:"firstName,omitempty"`
	LastName  string     `json:"lastName,omitempty"`
	FullName  string     `json:"fullName"`
	Bio       string     `json:"bio,omitempty"`
	Location  string     `json:"location,omitempty"`
	Website   string     `json:"website,omitempty"`
	Avatar    string     `json:"avatar,omitempty"`
	IsActive  bool       `json:"isActive"`
	IsLocked  bool       `json:"isLocked"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

func UserFromModel(u *models.User, now time.Time) User {
	if u == nil {
		return User{}
	}

	return User{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		FullName:  u.FullName(),
		Bio:       u.Bio,
		Location:  u.Location,
		Website:   u.Website,
		Avatar:    u.Avatar,
		IsActive:  u.IsActive,
		IsLocked:  u.IsLocked(now),
		LastLogin: u.LastLogin,
		CreatedAt: timePtr(u.CreatedAt),
		UpdatedAt: timePtr(u.UpdatedAt),
	}
}

func UsersFromModels(us []models.User, now time.Time) []User {
	out := make([]User, 0, len(us))
	for i := range us {
		out = append(out, UserFromModel(&us[i], now))
	}

	return out
}

// ProfileRequest is a partial update; absent fields are left untouched.
type ProfileRequest struct {
	Email           *string `json:"email"`
	FirstName       *string `json:"firstName"`
	LastName        *string `json:"lastName"`
	Bio             *string `json:"bio"`
	Location        *string `json:"location"`
	Website         *string `json:"website"`
	Avatar          *string `json:"avatar"`
	CurrentPassword string  `json:"currentPassword"`
	NewPassword     string  `json:"newPassword"`
}

func (m ProfileRequest) ToInput() service.ProfileInput {
	return service.ProfileInput{
		Email:           m.Email,
		FirstName:       m.FirstName,
		LastName:        m.LastName,
		Bio:             m.Bio,
		Location:        m.Location,
		Website:         m.Website,
		Avatar:          m.Avatar,
		CurrentPassword: m.CurrentPassword,
		NewPassword:     m.NewPassword,
	}
}

type ProfileResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	User    User   `json:"user"`
}

type AdminStats struct {
	TotalUsers    int64 `json:"totalUsers"`
	TotalArticles int64 `json:"totalArticles"`
	TotalComments int64 `json:"totalComments"`
	TotalViews    int64 `json:"totalViews"`
}

func AdminStatsFromModel(s *models.AdminStats) AdminStats {
	if s == nil {
		return AdminStats{}
	}

	return AdminStats{
		TotalUsers:    s.TotalUsers,
		TotalArticles: s.TotalArticles,
		TotalComments: s.TotalComments,
		TotalViews:    s.TotalViews,
	}
}
