package http

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"user-api/internal/domain"
)

const dateLayout = "2006-01-02"

// Date accepts either a calendar date or an RFC3339 timestamp.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{dateLayout, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			d.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("invalid date %q", raw)
}

func (d *Date) ptr() *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

type loginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token     string `json:"token"`
	Role      string `json:"role"`
	ExpiresAt string `json:"expires_at"`
}

type createUserRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Gender   int    `json:"gender" binding:"min=0,max=2"`
	Birthday *Date  `json:"birthday"`
	IsAdmin  bool   `json:"is_admin"`
}

func (r createUserRequest) toInput() domain.CreateUserInput {
	return domain.CreateUserInput{
		Login:    r.Login,
		Password: r.Password,
		Name:     r.Name,
		Gender:   r.Gender,
		Birthday: r.Birthday.ptr(),
		Admin:    r.IsAdmin,
	}
}

type updateUserRequest struct {
	Name     *string `json:"name"`
	Gender   *int    `json:"gender" binding:"omitempty,min=0,max=2"`
	Birthday *Date   `json:"birthday"`
}

func (r updateUserRequest) toInput() domain.UpdateProfileInput {
	return domain.UpdateProfileInput{
		Name:     r.Name,
		Gender:   r.Gender,
		Birthday: r.Birthday.ptr(),
	}
}

type changePasswordRequest struct {
	NewPassword     string `json:"new_password" binding:"required"`
	CurrentPassword string `json:"current_password"`
}

type changeLoginRequest struct {
	NewLogin string `json:"new_login" binding:"required"`
}

type UserResponse struct {
	ID         string  `json:"id"`
	Login      string  `json:"login"`
	Name       string  `json:"name"`
	Gender     int     `json:"gender"`
	Birthday   *string `json:"birthday,omitempty"`
	Admin      bool    `json:"admin"`
	CreatedAt  string  `json:"created_at"`
	CreatedBy  string  `json:"created_by"`
	ModifiedAt string  `json:"modified_at"`
	ModifiedBy string  `json:"modified_by"`
	RevokedAt  *string `json:"revoked_at,omitempty"`
	RevokedBy  string  `json:"revoked_by,omitempty"`
}

type userSummaryResponse struct {
	Name     string  `json:"name"`
	Gender   int     `json:"gender"`
	Birthday *string `json:"birthday,omitempty"`
	IsActive bool    `json:"is_active"`
}

type personalInfoResponse struct {
	Login    string  `json:"login"`
	Name     string  `json:"name"`
	Gender   int     `json:"gender"`
	Birthday *string `json:"birthday,omitempty"`
}

func userToResponse(user domain.User) UserResponse {
	resp := UserResponse{
		ID:         user.ID,
		Login:      user.Login,
		Name:       user.Name,
		Gender:     user.Gender,
		Birthday:   formatDate(user.Birthday),
		Admin:      user.Admin,
		CreatedAt:  formatTime(user.CreatedAt),
		CreatedBy:  user.CreatedBy,
		ModifiedAt: formatTime(user.ModifiedAt),
		ModifiedBy: user.ModifiedBy,
		RevokedBy:  user.RevokedBy,
	}
	if user.RevokedAt != nil {
		v := formatTime(*user.RevokedAt)
		resp.RevokedAt = &v
	}
	return resp
}

func usersToResponse(users []domain.User) []UserResponse {
	resp := make([]UserResponse, len(users))
	for i := range users {
		resp[i] = userToResponse(users[i])
	}
	return resp
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.Format(dateLayout)
	return &v
}
