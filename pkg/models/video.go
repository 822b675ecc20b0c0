package models

// Video is a video summary as served by the backend. The backend entity also
// carries the raw video and thumbnail bytes; those fields are not decoded.
type Video struct {
	UniqueID      string `json:"uniqueId"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	UploaderEmail string `json:"uploaderEmail,omitempty"`
}

// VideoIDs returns the ids of videos in order
func VideoIDs(videos []Video) []string {
	ids := make([]string, 0, len(videos))
	for _, v := range videos {
		ids = append(ids, v.UniqueID)
	}
	return ids
}
