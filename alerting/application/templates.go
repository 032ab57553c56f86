package application

import (
	"fmt"
	"sort"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"

	"github.com/fm-dev-mx/celebra-me-sub001/alerting/domain"
)

const (
	defaultSubjectTemplate = `[{{.Environment}}] {{.Level}}: {{truncate .Message 80}}`
	defaultBodyTemplate    = `Level: {{.Level}}
Time: {{.Time}}
Environment: {{.Environment}}
Fingerprint: {{.Fingerprint}}

{{.Message}}
{{if .Fields}}
Context:
{{range .Fields}}  {{.Key}} = {{.Value}}
{{end}}{{end}}`
)

// Templates renderiza assunto e corpo das notificações de alerta.
type Templates struct {
	subject *template.Template
	body    *template.Template
}

type field struct {
	Key   string
	Value string
}

type alertView struct {
	Environment string
	Level       string
	Time        string
	Fingerprint string
	Message     string
	Fields      []field
}

var templateFuncs = template.FuncMap{
	"truncate": truncate,
}

// NewTemplates compila os templates; strings vazias usam os padrões.
func NewTemplates(subject, body string) (*Templates, error) {
	if subject == "" {
		subject = defaultSubjectTemplate
	}
	if body == "" {
		body = defaultBodyTemplate
	}
	st, err := template.New("subject").Funcs(templateFuncs).Parse(subject)
	if err != nil {
		return nil, fmt.Errorf("parse subject template: %w", err)
	}
	bt, err := template.New("body").Funcs(templateFuncs).Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse body template: %w", err)
	}
	return &Templates{subject: st, body: bt}, nil
}

// DefaultTemplates nunca falha: os templates padrão são fixos.
func DefaultTemplates() *Templates {
	t, err := NewTemplates("", "")
	if err != nil {
		panic(err)
	}
	return t
}

// Render devolve (assunto, corpo) do evento.
func (t *Templates) Render(env string, ev domain.Event) (string, string, error) {
	view := alertView{
		Environment: env,
		Level:       domain.LevelName(ev.Level),
		Time:        ev.Time.UTC().Format(time.RFC3339),
		Fingerprint: ev.Fingerprint(),
		Message:     ev.Message,
		Fields:      sortedFields(ev.Fields),
	}

	var subject, body strings.Builder
	if err := t.subject.Execute(&subject, view); err != nil {
		return "", "", fmt.Errorf("render subject: %w", err)
	}
	if err := t.body.Execute(&body, view); err != nil {
		return "", "", fmt.Errorf("render body: %w", err)
	}
	// assunto de e-mail não pode ter quebra de linha.
	s := strings.Join(strings.Fields(subject.String()), " ")
	return s, body.String(), nil
}

func sortedFields(m map[string]string) []field {
	out := make([]field, 0, len(m))
	for k, v := range m {
		out = append(out, field{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}
