package notifier

import (
	"bytes"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"strings"

	"github.com/kovalyov-valentin/news-digest/internal/digest"
	"github.com/yuin/goldmark"
)

const htmlTemplate = `<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
%s
</body>
</html>
`

// BuildMessage собирает письмо multipart/alternative: markdown текстом и его же в html
func BuildMessage(d digest.Digest, from, to string) ([]byte, error) {
	md := d.Markdown()

	var html bytes.Buffer
	if err := goldmark.Convert([]byte(md), &html); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := writePart(mw, "text/plain; charset=UTF-8", md); err != nil {
		return nil, err
	}
	if err := writePart(mw, "text/html; charset=UTF-8", fmt.Sprintf(htmlTemplate, html.String())); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var msg bytes.Buffer
	headers := []string{
		"From: " + from,
		"To: " + to,
		"Subject: " + mime.QEncoding.Encode("utf-8", d.Subject),
		"MIME-Version: 1.0",
		"Content-Type: multipart/alternative; boundary=" + mw.Boundary(),
	}
	msg.WriteString(strings.Join(headers, "\r\n"))
	msg.WriteString("\r\n\r\n")
	msg.Write(body.Bytes())

	return msg.Bytes(), nil
}

func writePart(mw *multipart.Writer, contentType, content string) error {
	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {contentType},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return err
	}

	qp := quotedprintable.NewWriter(part)
	if _, err := qp.Write([]byte(content)); err != nil {
		return err
	}
	return qp.Close()
}
