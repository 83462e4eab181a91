package users

import "time"

// User is the persisted account entity, including the password hash.
type User struct {
	ID             int64
	CreatedAt      time.Time
	Username       string
	PasswordHash   string
	Email          string
	ProfilePicture *string
	Name           *string
	Surname        *string
	Gender         *string
	IsPrivate      bool
	SocialLink     *string
	Bio            *string
	Location       *string
}

// Profile is the wire projection of a User. It never carries the password
// hash; the same serialization is stored in the cache and published to the
// notification queues.
type Profile struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	ProfilePicture *string   `json:"profile_picture"`
	Name           *string   `json:"name"`
	Surname        *string   `json:"surname"`
	Gender         *string   `json:"gender"`
	IsPrivate      bool      `json:"is_private"`
	SocialLink     *string   `json:"social_link"`
	Bio            *string   `json:"bio"`
	Location       *string   `json:"location"`
	CreatedAt      time.Time `json:"created_at"`
}

// ProfileOf projects a User onto its wire representation.
func ProfileOf(u User) Profile {
	return Profile{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		ProfilePicture: u.ProfilePicture,
		Name:           u.Name,
		Surname:        u.Surname,
		Gender:         u.Gender,
		IsPrivate:      u.IsPrivate,
		SocialLink:     u.SocialLink,
		Bio:            u.Bio,
		Location:       u.Location,
		CreatedAt:      u.CreatedAt,
	}
}

// CreateParams carries the fields required to open an account.
type CreateParams struct {
	Username string
	Password string
	Email    string
}

// ProfilePatch is a partial profile update. Nil fields are left untouched.
type ProfilePatch struct {
	Username   *string `json:"username"`
	Email      *string `json:"email"`
	Bio        *string `json:"bio"`
	Name       *string `json:"name"`
	Surname    *string `json:"surname"`
	Location   *string `json:"location"`
	Gender     *string `json:"gender"`
	SocialLink *string `json:"social_link"`
}
