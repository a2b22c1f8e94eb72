package render

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// DefaultImageTemplate keeps the running repository and tag and pins the
// digest only when asked to.
const DefaultImageTemplate = `{{ .Repository }}:{{ .Tag }}{{ if .Pin }}@{{ .Digest }}{{ end }}`

type Options struct {
	// ImageTemplate overrides DefaultImageTemplate when non-empty.
	ImageTemplate string
}

// ImageData is what an image template sees.
type ImageData struct {
	Current    string
	Repository string
	Tag        string
	Digest     string
	Pin        bool
}

type Engine struct {
	funcs    template.FuncMap
	imageTpl string
}

func NewEngine(opts Options) *Engine {
	tpl := opts.ImageTemplate
	if strings.TrimSpace(tpl) == "" {
		tpl = DefaultImageTemplate
	}
	return &Engine{funcs: sprig.TxtFuncMap(), imageTpl: tpl}
}

func (e *Engine) parse(name, tpl string) (*template.Template, error) {
	return template.New(name).Funcs(e.funcs).Option("missingkey=error").Parse(tpl)
}

func (e *Engine) RenderString(name, tpl string, data any) (string, error) {
	t, err := e.parse(name, tpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ImageRef renders the reference an image update should be submitted with.
func (e *Engine) ImageRef(data ImageData) (string, error) {
	s, err := e.RenderString("image", e.imageTpl, data)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

// Check parses the image template and renders it against sample data.
func (e *Engine) Check() error {
	_, err := e.ImageRef(ImageData{
		Current:    "registry.example.com/app:stable",
		Repository: "registry.example.com/app",
		Tag:        "stable",
		Digest:     "sha256:0000000000000000000000000000000000000000000000000000000000000000",
	})
	return err
}
