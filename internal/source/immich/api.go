// SPDX-License-Identifier: MIT

package immich

// Wire types of the Immich REST API. Only the fields used here are decoded.

type exifInfo struct {
	Description string `json:"description,omitempty"`
	Country     string `json:"country,omitempty"`
	State       string `json:"state,omitempty"`
	City        string `json:"city,omitempty"`
	Make        string `json:"make,omitempty"`
	Model       string `json:"model,omitempty"`
}

type asset struct {
	ID            string    `json:"id"`
	Type          string    `json:"type,omitempty"`
	OriginalPath  string    `json:"originalPath,omitempty"`
	OriginalName  string    `json:"originalFileName,omitempty"`
	LocalDateTime string    `json:"localDateTime,omitempty"`
	Description   *string   `json:"description,omitempty"`
	ExifInfo      *exifInfo `json:"exifInfo,omitempty"`
}

type album struct {
	ID     string  `json:"id"`
	Name   string  `json:"albumName,omitempty"`
	Assets []asset `json:"assets"`
}

type sharedLink struct {
	ID           string  `json:"id"`
	Key          string  `json:"key,omitempty"`
	Type         string  `json:"type"`
	Description  string  `json:"description,omitempty"`
	ShowMetadata bool    `json:"showMetadata"`
	Assets       []asset `json:"assets"`
	Album        *album  `json:"album,omitempty"`
}

type searchRequest struct {
	IsFavorite bool `json:"isFavorite"`
	Page       int  `json:"page,omitempty"`
	Size       int  `json:"size,omitempty"`
	WithExif   bool `json:"withExif"`
}

type searchResponse struct {
	Assets struct {
		Items    []asset `json:"items"`
		NextPage *string `json:"nextPage"`
	} `json:"assets"`
}

type errorResponse struct {
	Message    string `json:"message"`
	Error      string `json:"error"`
	StatusCode int    `json:"statusCode"`
}
