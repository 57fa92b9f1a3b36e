package utils

import (
	"html"
	"strings"

	"gopkg.in/gomail.v2"
)

// Notice is the content of a lifecycle notification email.
type Notice struct {
	To      string
	Subject string
	Heading string
	Lines   []string
}

// BuildNotificationEmail renders a notice as a plain text and HTML message.
func BuildNotificationEmail(from string, n Notice) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", n.To)
	m.SetHeader("Subject", n.Subject)

	m.SetBody("text/plain", n.Heading+"\n\n"+strings.Join(n.Lines, "\n"))

	var paragraphs strings.Builder
	for _, line := range n.Lines {
		paragraphs.WriteString("\t\t\t<p>")
		paragraphs.WriteString(html.EscapeString(line))
		paragraphs.WriteString("</p>\n")
	}

	htmlBody := `
	<!DOCTYPE html>
	<html>
	<head>
		<title>` + html.EscapeString(n.Subject) + `</title>
		<style>
			body {
				font-family: Arial, sans-serif;
				background-color: #f4f4f4;
				margin: 0;
				padding: 0;
			}
			.container {
				background-color: #ffffff;
				margin: 20px auto;
				padding: 20px;
				border-radius: 8px;
				box-shadow: 0 2px 4px rgba(0, 0, 0, 0.1);
				max-width: 600px;
			}
			h1 {
				color: #333333;
			}
			p {
				color: #666666;
			}
		</style>
	</head>
	<body>
		<div class="container">
			<h1>` + html.EscapeString(n.Heading) + `</h1>
` + paragraphs.String() + `		</div>
	</body>
	</html>
	`
	m.AddAlternative("text/html", htmlBody)
	return m
}
