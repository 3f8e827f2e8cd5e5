package constants

const (
	CategoryGlioma     string = "glioma"
	CategoryMeningioma string = "meningioma"
	CategoryPituitary  string = "pituitary"
	CategoryNoTumor    string = "no_tumor"

	DefaultCategory string = CategoryNoTumor
)

// Categories 분류 항목 (순서 고정)
var Categories = []string{
	CategoryGlioma,
	CategoryMeningioma,
	CategoryPituitary,
	CategoryNoTumor,
}

const (
	SamplesURLPath string = "/static/images/samples"
	UploadsURLPath string = "/uploads"
	SamplesSubDir  string = "images/samples"

	NrSampleIndexMin int = 2
	NrSampleIndexMax int = 5

	SampleConfidence float64 = 95.7
)

// AllowedExtensions 업로드 가능한 이미지 확장자
var AllowedExtensions = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"gif":  true,
	"bmp":  true,
}

// UploadConfidences 업로드 이미지에 대한 고정 신뢰도
var UploadConfidences = map[string]float64{
	CategoryGlioma:     25.0,
	CategoryMeningioma: 30.0,
	CategoryPituitary:  20.0,
	CategoryNoTumor:    25.0,
}

const (
	DefaultAddr            string = ":5000"
	DefaultUploadsDir      string = "uploads"
	DefaultStaticDir       string = "static"
	DefaultMaxUploadBytes  int64  = 200 << 20
	DefaultMultipartMemory int64  = 8 << 20

	DefaultDBDriver string = "sqlite"
	DefaultDBConn   string = "tumorapp.db"
	DefaultDBTable  string = "upload_tab"
)

const (
	EventConnect    string = "connect"
	EventDisconnect string = "disconnect"
	EventMessage    string = "message"
	EventResponse   string = "response"

	WelcomeMessage string = "Connected to Brain Tumor Assistant"
)

// ChatReplies 채팅 응답 목록
var ChatReplies = []string{
	"I can help you understand brain tumor classifications. What would you like to know?",
	"Based on the MRI scan analysis, I can provide information about different tumor types.",
	"Would you like to know more about glioma, meningioma, or pituitary tumors?",
	"I'm here to assist with brain tumor classification questions.",
}
