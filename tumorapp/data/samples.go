package data

import (
	"fmt"
	"path"
	"strings"

	"github.com/harrison-roh/brain-tumor-classification/tumorapp/constants"
)

// SampleImage 갤러리 샘플 이미지
type SampleImage struct {
	Category    string `json:"category"`
	Filename    string `json:"filename"`
	DisplayName string `json:"display_name"`
	Path        string `json:"path"`
}

var seedDisplayNames = map[string]string{
	constants.CategoryGlioma:     "Glioma Tumor",
	constants.CategoryMeningioma: "Meningioma Tumor",
	constants.CategoryPituitary:  "Pituitary Tumor",
	constants.CategoryNoTumor:    "No Tumor",
}

func sampleFilename(category string, idx int) string {
	return fmt.Sprintf("%s_%03d.jpg", category, idx)
}

func newSample(category string, idx int, displayName string) SampleImage {
	filename := sampleFilename(category, idx)
	return SampleImage{
		Category:    category,
		Filename:    filename,
		DisplayName: displayName,
		Path:        path.Join(constants.SamplesURLPath, filename),
	}
}

// Samples 갤러리 샘플 이미지 목록 반환
func Samples() []SampleImage {
	images := make([]SampleImage, 0, len(constants.Categories)*constants.NrSampleIndexMax)

	for _, category := range constants.Categories {
		images = append(images, newSample(category, 1, seedDisplayNames[category]))
	}

	for i := constants.NrSampleIndexMin; i <= constants.NrSampleIndexMax; i++ {
		for _, category := range constants.Categories {
			images = append(images, newSample(category, i, displayName(category)))
		}
	}

	return images
}

// glioma -> "Glioma", no_tumor -> "No Tumor"
func displayName(category string) string {
	words := strings.Fields(strings.ReplaceAll(category, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}

	return strings.Join(words, " ")
}
