// Package web holds the embedded templates and static assets.
package web

import "embed"

var (
	//go:embed templates/*.html
	TemplatesFS embed.FS

	//go:embed static/app.css static/app.js
	StaticFS embed.FS
)
