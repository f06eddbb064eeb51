package model

import (
	"strings"
	"time"
)

// CatalogRecord 对应 catalog_records 表，一条记录即一首可播放的曲目。
// 记录只由上传提交流程创建，之后的编辑与删除走普通 CRUD 路径。
type CatalogRecord struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Title           string    `gorm:"type:varchar(255);not null" json:"title"`
	Artist          string    `gorm:"type:varchar(255);not null;index" json:"artist"`
	Album           string    `gorm:"type:varchar(255)" json:"album"`
	Lyrics          string    `gorm:"type:text" json:"lyrics,omitempty"`
	AudioURL        string    `gorm:"type:varchar(1024);not null" json:"audioUrl"`
	CoverURL        string    `gorm:"type:varchar(1024);not null" json:"coverUrl"`
	AudioKey        string    `gorm:"type:varchar(512);not null" json:"-"`
	CoverKey        string    `gorm:"type:varchar(512)" json:"-"` // 使用占位封面时为空
	DurationSeconds float64   `gorm:"not null" json:"duration"`
	Format          string    `gorm:"type:varchar(16);not null" json:"format"`
	BitrateKbps     int       `gorm:"not null;default:0" json:"bitrate"`
	SampleRateHz    int       `gorm:"not null" json:"sampleRate"`
	ChannelCount    int       `gorm:"not null" json:"channels"`
	UploaderID      int64     `gorm:"not null;index" json:"uploaderId"`
	PlayCount       int64     `gorm:"not null;default:0" json:"plays"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (CatalogRecord) TableName() string {
	return "catalog_records"
}

// UploaderStats 汇总某个上传者的曲目数与播放数
type UploaderStats struct {
	Tracks  int64 `json:"tracks"`
	Streams int64 `json:"streams"`
}

// TrackUpdate 编辑曲目时提交的字段，nil 表示不修改
type TrackUpdate struct {
	Title  *string `json:"title,omitempty"`
	Artist *string `json:"artist,omitempty"`
	Album  *string `json:"album,omitempty"`
	Lyrics *string `json:"lyrics,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u TrackUpdate) Empty() bool {
	return u.Title == nil && u.Artist == nil && u.Album == nil && u.Lyrics == nil
}

// BlankRequired lists the required fields the update would set to blank.
func (u TrackUpdate) BlankRequired() []string {
	var blank []string
	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		blank = append(blank, "title")
	}
	if u.Artist != nil && strings.TrimSpace(*u.Artist) == "" {
		blank = append(blank, "artist")
	}
	return blank
}

// Columns returns the column/value pairs to write, trimming title and artist.
func (u TrackUpdate) Columns() map[string]interface{} {
	cols := make(map[string]interface{})
	if u.Title != nil {
		cols["title"] = strings.TrimSpace(*u.Title)
	}
	if u.Artist != nil {
		cols["artist"] = strings.TrimSpace(*u.Artist)
	}
	if u.Album != nil {
		cols["album"] = *u.Album
	}
	if u.Lyrics != nil {
		cols["lyrics"] = *u.Lyrics
	}
	return cols
}
