package dto

import "time"

// DocumentResponse describes an uploaded study document.
type DocumentResponse struct {
	ID        string    `json:"id"`
	FileName  string    `json:"file_name"`
	URL       string    `json:"url"`
	MimeType  string    `json:"mime_type"`
	SizeBytes int64     `json:"size_bytes"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"created_at"`
}

// DocumentListResponse is a page of documents.
type DocumentListResponse struct {
	Items      []DocumentResponse `json:"items"`
	Pagination PaginationMeta     `json:"pagination"`
}

// PaginationMeta describes a page within a listing.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
}
