package models

import "time"

// TranslationRecord is one completed translation. Records are never updated.
type TranslationRecord struct {
	ID                 string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID             string    `json:"user_id" gorm:"type:varchar(36);not null;index:idx_records_user_created,priority:1"`
	SourceText         string    `json:"source_text,omitempty" gorm:"type:text"`
	ImageRef           string    `json:"image_ref,omitempty" gorm:"type:varchar(512)"`
	ChineseTranslation string    `json:"chinese_translation" gorm:"type:text;not null"`
	CreatedAt          time.Time `json:"created_at" gorm:"index:idx_records_user_created,priority:2"`

	// User carries the foreign key only; it is never loaded or serialized.
	User *User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName pins the table name used by every storage backend.
func (TranslationRecord) TableName() string { return "translation_records" }
