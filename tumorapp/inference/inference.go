package inference

import (
	"errors"
	"fmt"
	"sort"

	"github.com/harrison-roh/brain-tumor-classification/tumorapp/constants"
	"github.com/samber/lo"
)

// ErrUnknownCategory 분류 항목에 없는 category
var ErrUnknownCategory = errors.New("unknown category")

// Config 분류기 설정정보
type Config struct {
	Categories        []string
	SampleConfidence  float64
	UploadConfidences map[string]float64
}

// Inference 이미지 분류 (고정 결과)
type Inference struct {
	categories        []string
	sampleConfidence  float64
	uploadConfidences map[string]float64
}

// Step 전처리 단계
type Step struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
}

// Result 분류 결과
type Result struct {
	Prediction         string             `json:"prediction"`
	ConfidenceScores   map[string]float64 `json:"confidence_scores"`
	UploadedImageURL   string             `json:"uploaded_image_url"`
	PreprocessingSteps []Step             `json:"preprocessing_steps"`
}

var preprocessing = []struct {
	name string
	desc string
}{
	{"Original Image", "Input brain MRI scan"},
	{"Grayscale Conversion", "Converted to grayscale"},
	{"Noise Reduction", "Applied Gaussian blur"},
	{"Normalization", "Normalized pixel values"},
}

// Steps 이미지에 대한 전처리 단계 목록
func Steps(imageURL string) []Step {
	steps := make([]Step, 0, len(preprocessing))
	for _, p := range preprocessing {
		steps = append(steps, Step{
			Name:        p.name,
			Description: p.desc,
			ImageURL:    imageURL,
		})
	}

	return steps
}

// Categories 분류 항목 목록 반환
func (i *Inference) Categories() []string {
	categories := make([]string, len(i.categories))
	copy(categories, i.categories)
	return categories
}

// PredictSample 샘플 이미지 분류
// 선택된 category에 고정 신뢰도를 주고 나머지를 균등 분배
func (i *Inference) PredictSample(category, imageURL string) (*Result, error) {
	if category == "" {
		category = constants.DefaultCategory
	}
	if !lo.Contains(i.categories, category) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}

	remaining := (100 - i.sampleConfidence) / float64(len(i.categories)-1)

	scores := make(map[string]float64, len(i.categories))
	for _, c := range i.categories {
		if c == category {
			scores[c] = i.sampleConfidence
		} else {
			scores[c] = remaining
		}
	}

	return &Result{
		Prediction:         category,
		ConfidenceScores:   scores,
		UploadedImageURL:   imageURL,
		PreprocessingSteps: Steps(imageURL),
	}, nil
}

// PredictUpload 업로드 이미지 분류
// 이미지 내용과 무관하게 고정 신뢰도의 최댓값을 반환
func (i *Inference) PredictUpload(imageURL string) (*Result, error) {
	scores := lo.Assign(i.uploadConfidences)

	infers := i.rank(scores)
	if len(infers) == 0 {
		return nil, errors.New("Empty confidence scores")
	}

	return &Result{
		Prediction:         infers[0].Label,
		ConfidenceScores:   scores,
		UploadedImageURL:   imageURL,
		PreprocessingSteps: Steps(imageURL),
	}, nil
}

// rank 신뢰도 내림차순, 동점이면 category 순서
func (i *Inference) rank(scores map[string]float64) []InferLabel {
	var infers []InferLabel
	for _, c := range i.categories {
		if prob, ok := scores[c]; ok {
			infers = append(infers, InferLabel{
				Prob:  prob,
				Label: c,
			})
		}
	}
	sort.Stable(sortByProb(infers))

	return infers
}

// InferLabel 이미지 추론 항목
type InferLabel struct {
	Prob  float64 `json:"probability"`
	Label string  `json:"label"`
}

type sortByProb []InferLabel

func (s sortByProb) Len() int {
	return len(s)
}

func (s sortByProb) Swap(i, j int) {
	s[i], s[j] = s[j], s[i]
}

func (s sortByProb) Less(i, j int) bool {
	return s[i].Prob > s[j].Prob
}

// New 이미지 분류기 생성
func New(c Config) (*Inference, error) {
	if len(c.Categories) == 0 {
		c.Categories = constants.Categories
	}
	if len(c.Categories) < 2 {
		return nil, fmt.Errorf("Need at least 2 categories, got %d", len(c.Categories))
	}
	if c.SampleConfidence == 0 {
		c.SampleConfidence = constants.SampleConfidence
	}
	if c.SampleConfidence < 0 || c.SampleConfidence > 100 {
		return nil, fmt.Errorf("Invalid sample confidence: %v", c.SampleConfidence)
	}
	if c.UploadConfidences == nil {
		c.UploadConfidences = constants.UploadConfidences
	}
	for label, prob := range c.UploadConfidences {
		if prob < 0 {
			return nil, fmt.Errorf("Negative confidence for %s: %v", label, prob)
		}
	}

	i := &Inference{
		categories:        append([]string(nil), c.Categories...),
		sampleConfidence:  c.SampleConfidence,
		uploadConfidences: lo.Assign(c.UploadConfidences),
	}

	return i, nil
}
