package dto

import (
	"time"

	"github.com/pribylovaa/siveal/internal/models"
)

type PresignRequest struct {
	ContentType   string `json:"contentType"`
	ContentLength int64  `json:"contentLength"`
}

type UploadResponse struct {
	UploadURL       string            `json:"uploadUrl"`
	ImageID         string            `json:"imageId"`
	Key             string            `json:"key"`
	PublicURL       string            `json:"publicUrl"`
	ExpiresIn       int64             `json:"expiresIn"`
	RequiredHeaders map[string]string `json:"requiredHeaders"`
}

func UploadFromModel(u *models.UploadInfo) UploadResponse {
	if u == nil {
		return UploadResponse{}
	}

	return UploadResponse{
		UploadURL:       u.UploadURL,
		ImageID:         u.ImageID,
		Key:             u.Key,
		PublicURL:       u.PublicURL,
		ExpiresIn:       int64(u.Expires / time.Second),
		RequiredHeaders: u.RequiredHeader,
	}
}

type Image struct {
	ID          string    `json:"id"`
	Key         string    `json:"key"`
	URL         string    `json:"url"`
	ContentType string    `json:"contentType,omitempty"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"createdAt"`
}

func ImageFromModel(i *models.Image) Image {
	if i == nil {
		return Image{}
	}

	return Image{
		ID:          i.ID,
		Key:         i.Key,
		URL:         i.URL,
		ContentType: i.ContentType,
		Size:        i.Size,
		CreatedAt:   i.CreatedAt,
	}
}

func ImagesFromModels(is []models.Image) []Image {
	out := make([]Image, 0, len(is))
	for i := range is {
		out = append(out, ImageFromModel(&is[i]))
	}

	return out
}
