package models

import "time"

// Post is an uploaded cover image with its title. Rows are only ever inserted.
type Post struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Title      string    `gorm:"type:text;not null;check:chk_posts_title,title <> ''" json:"title"`
	Cover      string    `gorm:"type:varchar(255);not null;check:chk_posts_cover,cover <> ''" json:"cover"`
	UploadedOn time.Time `gorm:"autoCreateTime;not null;<-:create" json:"uploaded_on"`
}
