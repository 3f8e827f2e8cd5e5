package web

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
)

//go:embed templates assets
var files embed.FS

// Template 페이지 템플릿
func Template() *template.Template {
	return template.Must(template.ParseFS(files, "templates/*.html"))
}

// Assets 페이지 정적 파일
func Assets() http.FileSystem {
	sub, err := fs.Sub(files, "assets")
	if err != nil {
		panic(err)
	}

	return http.FS(sub)
}
