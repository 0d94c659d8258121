package model

import "time"

// Handout is an uploaded PDF. File is the storage key of the document.
type Handout struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	File         string    `json:"file"`
	OriginalName string    `json:"originalName"`
	Size         int64     `json:"size"`
	Pages        int       `json:"pages"`
	UploaderID   string    `json:"uploaderId"`
	UploadedAt   time.Time `json:"uploadedAt"`
}
