package attachments

import (
	"time"

	"github.com/google/uuid"
)

// Attachment is file metadata linked to an order or dispatch. The binary
// itself lives outside this system; the path is stored verbatim.
type Attachment struct {
	ID          uuid.UUID `json:"id"`
	EntityType  string    `json:"entity_type"`
	EntityID    uuid.UUID `json:"entity_id"`
	FileName    string    `json:"file_name"`
	FilePath    string    `json:"file_path"`
	ContentType string    `json:"content_type"`
	UploadedBy  uuid.UUID `json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"`
}
