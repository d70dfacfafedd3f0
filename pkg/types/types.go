// Package types holds the wire shapes of the dataset editor API.
package types

// CropData is an operator-supplied crop rectangle in pixel units.
type CropData struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// UpdateRequest updates an image's caption, optionally cropping first.
type UpdateRequest struct {
	Caption   string    `json:"caption"`
	ApplyCrop bool      `json:"apply_crop"`
	CropData  *CropData `json:"crop_data,omitempty"`
}

// ResizeRequest bounds an image's longest side. Zero means the server
// default.
type ResizeRequest struct {
	MaxSide int `json:"max_side"`
}

// ExtendRequest pads an image to the next grid-aligned size. Anchor is
// one of lu, cu, ru, lm, cm, rm, ld, md, rd; empty means cm.
type ExtendRequest struct {
	Anchor string `json:"anchor"`
}

// TransformResponse reports the outcome of a transform or caption update.
// Both resolutions are [height, width].
type TransformResponse struct {
	Status          string `json:"status"`
	TrainResolution []int  `json:"train_resolution"`
	ImageResolution []int  `json:"image_resolution"`
}

// ImageRecord describes one dataset image in a listing.
type ImageRecord struct {
	Name            string `json:"name"`
	Path            string `json:"path"`
	Caption         string `json:"caption"`
	TrainResolution []int  `json:"train_resolution"`
	ImageResolution []int  `json:"image_resolution"`
	Annotated       bool   `json:"annotated"`
}

// DatasetListResponse lists dataset names.
type DatasetListResponse struct {
	Datasets []string `json:"datasets"`
}

// DatasetImagesResponse lists a dataset's images.
type DatasetImagesResponse struct {
	Dataset string        `json:"dataset"`
	Images  []ImageRecord `json:"images"`
}

// VocabularyResponse lists distinct caption tags.
type VocabularyResponse struct {
	Words []string `json:"words"`
}

// SuggestionResponse carries a model-suggested caption.
type SuggestionResponse struct {
	Caption string `json:"caption"`
}

// ErrorResponse mirrors the error payload shape of the original editor.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
