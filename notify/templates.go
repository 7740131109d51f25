package notify

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

const fallbackTemplateText = `[{{.template}}]{{range $k := .keys}} {{$k}}={{index $.data $k}}{{end}}`

var fallbackTemplate = template.Must(template.New("fallback").Parse(fallbackTemplateText))

type Templates struct {
	templates map[string]*template.Template
}

// NewTemplates parses every body up front so a broken template fails at startup rather than on delivery.
func NewTemplates(bodies map[string]string) (*Templates, error) {
	t := &Templates{templates: map[string]*template.Template{}}
	for name, body := range bodies {
		parsed, err := template.New(name).Option("missingkey=zero").Parse(body)
		if err != nil {
			return nil, fmt.Errorf("notification template %s: %w", name, err)
		}
		t.templates[name] = parsed
	}
	return t, nil
}

func (t *Templates) Has(name string) bool {
	if t == nil {
		return false
	}
	_, ok := t.templates[name]
	return ok
}

func (t *Templates) Render(name string, data map[string]interface{}) (string, error) {
	buf := bytes.Buffer{}
	if t != nil {
		if tpl, ok := t.templates[name]; ok {
			if err := tpl.Execute(&buf, data); err != nil {
				return "", err
			}
			return strings.TrimSpace(buf.String()), nil
		}
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if err := fallbackTemplate.Execute(&buf, map[string]interface{}{"template": name, "keys": keys, "data": data}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
