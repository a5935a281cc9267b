package models

import "time"

type User struct {
	ID             int64     `db:"id" json:"id"`
	TeamID         int64     `db:"team_id" json:"team_id"`
	ExternalID     string    `db:"external_id" json:"external_id"`
	Email          string    `db:"email" json:"email"`
	Name           string    `db:"name" json:"name"`
	ProfilePicture string    `db:"profile_picture" json:"profile_picture"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}
