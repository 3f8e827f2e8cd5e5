package data

import (
	"errors"
	"regexp"
	"strings"

	"github.com/harrison-roh/brain-tumor-classification/tumorapp/constants"
	"golang.org/x/text/unicode/norm"
)

var (
	// ErrEmptyFilename 파일 이름 없음
	ErrEmptyFilename = errors.New("No file selected")
	// ErrInvalidFileType 허용되지 않은 확장자
	ErrInvalidFileType = errors.New("Invalid file type")
	// ErrInvalidFilename 저장할 수 없는 파일 이름
	ErrInvalidFilename = errors.New("Invalid file name")
	// ErrNotFound 파일 없음
	ErrNotFound = errors.New("file not found")
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// Format 파일 확장자(소문자) 반환, 허용되지 않은 확장자는 에러
func Format(filename string) (string, error) {
	if filename == "" {
		return "", ErrEmptyFilename
	}

	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return "", ErrInvalidFileType
	}

	format := strings.ToLower(filename[idx+1:])
	if !constants.AllowedExtensions[format] {
		return "", ErrInvalidFileType
	}

	return format, nil
}

// SecureFilename NFKD 정규화 후 ASCII 영숫자와 "_.-" 외의 문자를 제거한 파일 이름
// (예: "résumé.png" -> "resume.png")
func SecureFilename(filename string) string {
	var b strings.Builder
	for _, r := range norm.NFKD.String(filename) {
		switch {
		case r == '/' || r == '\\':
			b.WriteRune(' ')
		case r < 0x80:
			b.WriteRune(r)
		}
	}

	name := strings.Join(strings.Fields(b.String()), "_")
	name = unsafeChars.ReplaceAllString(name, "")

	return strings.Trim(name, "._")
}
