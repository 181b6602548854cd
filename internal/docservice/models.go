package docservice

import "time"

// Upload is the record kept for every document accepted by the service.
// FilePath is the opaque handle handed back to clients and the key of the
// stored bytes.
type Upload struct {
	ID        string    `json:"id" bson:"id"`
	FilePath  string    `json:"filePath" bson:"filePath"`
	Name      string    `json:"name" bson:"name"`
	Size      int64     `json:"size" bson:"size"`
	Pages     int       `json:"pages" bson:"pages"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}
