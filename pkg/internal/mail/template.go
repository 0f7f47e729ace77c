package mail

import (
	"bytes"
	"html/template"
)

// bodyData 邮件正文模板参数.
type bodyData struct {
	Recipient   string
	Project     string
	Date        string
	Numero      string
	AuthorName  string
	AuthorEmail string
	Company     string
}

var bodyTemplate = template.Must(template.New("relatorio").Parse(`<!DOCTYPE html>
<html lang="pt-BR">
<body style="font-family: Arial, Helvetica, sans-serif; color: #222; line-height: 1.5;">
  <p>Olá{{if .Recipient}}, {{.Recipient}}{{end}}!</p>
  <p>Segue em anexo o relatório de visita <strong>{{.Numero}}</strong>
     referente à obra <strong>{{.Project}}</strong>, realizada em {{.Date}}.</p>
  <p>Em caso de dúvidas, entre em contato com o responsável pela visita:</p>
  <p style="margin-left: 16px;">
    {{.AuthorName}}{{if .AuthorEmail}}<br><a href="mailto:{{.AuthorEmail}}">{{.AuthorEmail}}</a>{{end}}
  </p>
  <p>Atenciosamente,<br>{{.Company}}</p>
</body>
</html>
`))

func renderBody(d bodyData) (string, error) {
	var buf bytes.Buffer
	if err := bodyTemplate.Execute(&buf, d); err != nil {
		return "", err
	}

	return buf.String(), nil
}
