package mail

import (
	"fmt"
	"html"
	"mime"
	"time"
)

func encodeSubject(s string) string {
	return mime.QEncoding.Encode("utf-8", s)
}

// UrgentAlertBody renders the HTML body of an urgent-email alert.
func UrgentAlertBody(subject, sender string, received time.Time, excerpt string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; color: #333333;">
  <h2 style="color: #b00020;">Urgent email received</h2>
  <p><strong>Subject:</strong> %s</p>
  <p><strong>From:</strong> %s</p>
  <p><strong>Date:</strong> %s</p>
  <pre style="background-color: #f8f9fa; padding: 16px; white-space: pre-wrap;">%s</pre>
</body>
</html>`,
		html.EscapeString(subject),
		html.EscapeString(sender),
		received.UTC().Format(time.RFC1123),
		html.EscapeString(excerpt),
	)
}
