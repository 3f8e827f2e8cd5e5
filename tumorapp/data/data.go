package data

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/h2non/filetype"
	"github.com/harrison-roh/brain-tumor-classification/tumorapp/constants"
	"github.com/harrison-roh/brain-tumor-classification/tumorapp/data/db"
	"go.uber.org/zap"
)

// 파일 형식 판별에 필요한 헤더 크기
const sniffLen = 261

// Config Data manager 설정정보
type Config struct {
	UploadsDir string

	// DriverName이 비어 있으면 업로드 기록을 남기지 않음
	DriverName string
	ConnInfo   string
	TableName  string

	Logger *zap.Logger
}

// Manager 업로드 이미지를 관리
type Manager struct {
	Conn *db.DBconn

	uploadsDir string
	logger     *zap.Logger
}

// Upload 저장된 업로드 파일 정보
type Upload struct {
	Filename    string
	OrgFilename string
	Format      string
	MIME        string
	Bytes       int64
	URL         string
}

type saveFunc func(*multipart.FileHeader, string) error

func saveImage(file *multipart.FileHeader, dst string) error {
	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, src)

	return err
}

func sniffMIME(file *multipart.FileHeader) string {
	src, err := file.Open()
	if err != nil {
		return ""
	}
	defer src.Close()

	head := make([]byte, sniffLen)
	n, _ := io.ReadFull(src, head)

	kind, err := filetype.Match(head[:n])
	if err != nil || kind == filetype.Unknown {
		return "application/octet-stream"
	}

	return kind.MIME.Value
}

// SaveUpload 업로드 이미지 검증 후 저장
// 같은 이름의 파일은 덮어씀
func (dm *Manager) SaveUpload(image *multipart.FileHeader, f saveFunc) (*Upload, error) {
	orgFileName := image.Filename

	format, err := Format(orgFileName)
	if err != nil {
		return nil, err
	}

	fileName := SecureFilename(orgFileName)
	if fileName == "" {
		return nil, ErrInvalidFilename
	}

	if f == nil {
		f = saveImage
	}

	if err := os.MkdirAll(dm.uploadsDir, os.ModePerm); err != nil {
		return nil, err
	}

	if err := f(image, filepath.Join(dm.uploadsDir, fileName)); err != nil {
		return nil, fmt.Errorf("save %s: %w", fileName, err)
	}

	upload := &Upload{
		Filename:    fileName,
		OrgFilename: orgFileName,
		Format:      format,
		MIME:        sniffMIME(image),
		Bytes:       image.Size,
		URL:         path.Join(constants.UploadsURLPath, fileName),
	}

	dm.logger.Debug("upload saved",
		zap.String("filename", fileName),
		zap.String("orgfilename", orgFileName),
		zap.Int64("bytes", upload.Bytes))

	return upload, nil
}

// Record 업로드 기록 저장
// 같은 이름의 기존 기록은 교체, 실패해도 업로드 결과에는 영향 없음
func (dm *Manager) Record(upload *Upload, prediction string) {
	if dm.Conn == nil {
		return
	}

	if _, err := dm.Conn.Delete(db.Item{Filename: upload.Filename}); err != nil {
		dm.logger.Warn("delete previous record", zap.String("filename", upload.Filename), zap.Error(err))
	}

	item := db.Item{
		Filename:    upload.Filename,
		OrgFilename: upload.OrgFilename,
		FileFormat:  upload.Format,
		MIME:        upload.MIME,
		Bytes:       upload.Bytes,
		Prediction:  prediction,
		CreateAt:    time.Now(),
	}

	if err := dm.Conn.Insert(item); err != nil {
		dm.logger.Warn("insert record", zap.String("filename", upload.Filename), zap.Error(err))
	}
}

// ListUploads 업로드 기록 목록 반환
func (dm *Manager) ListUploads() (interface{}, error) {
	items := make([]db.Item, 0)

	if dm.Conn != nil {
		var err error
		if items, err = dm.Conn.Get(db.Item{}); err != nil {
			return nil, err
		}
	}

	result := map[string]interface{}{
		"infos": map[string]int{
			"total": len(items),
		},
		"images": items,
	}

	return result, nil
}

// UploadPath 업로드 파일 경로 반환
func (dm *Manager) UploadPath(fileName string) (string, error) {
	if fileName == "" || fileName != filepath.Base(fileName) ||
		strings.ContainsAny(fileName, `/\`) || fileName == "." || fileName == ".." {
		return "", ErrNotFound
	}

	p := filepath.Join(dm.uploadsDir, fileName)
	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	if info.IsDir() {
		return "", ErrNotFound
	}

	return p, nil
}

// Destroy Data manager 해제
func (dm *Manager) Destroy() {
	if dm.Conn == nil {
		return
	}

	if err := dm.Conn.Destroy(); err != nil {
		dm.logger.Error("DB close failed", zap.String("table", dm.Conn.TableName), zap.Error(err))
	} else {
		dm.logger.Info("DB successfully closed", zap.String("table", dm.Conn.TableName))
	}
}

// New 새로운 Data manager 생성
func New(cfg Config) (*Manager, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	if err := os.MkdirAll(cfg.UploadsDir, os.ModePerm); err != nil {
		return nil, err
	}

	dm := &Manager{
		uploadsDir: cfg.UploadsDir,
		logger:     cfg.Logger,
	}

	if cfg.DriverName == "" {
		dm.logger.Info("Upload records disabled")
		return dm, nil
	}

	conn, err := db.New(db.Config{
		DriverName: cfg.DriverName,
		ConnInfo:   cfg.ConnInfo,
		TableName:  cfg.TableName,
	})
	if err != nil {
		return nil, err
	}
	dm.logger.Info("DB successfully initialized",
		zap.String("driver", cfg.DriverName),
		zap.String("table", cfg.TableName))

	dm.Conn = conn

	return dm, nil
}
