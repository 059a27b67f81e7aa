// Package normalize turns a raw RFC 5322 message into the subject, sender,
// date and plain-text body the classifier and store work with.
package normalize

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/znz-systems/triage/internal/models"
)

// DefaultSubject replaces a missing or blank Subject header.
const DefaultSubject = "No Subject"

// ErrMalformedMessage means the payload has no parseable header block.
var ErrMalformedMessage = errors.New("malformed message")

// Outcome records which fallbacks were taken while normalizing.
type Outcome struct {
	SubjectDefaulted bool
	SubjectLossy     bool
	BodyMissing      bool
	BodyDecodeFailed bool
	BodyTruncated    bool
	DateMissing      bool
}

type Message struct {
	Subject string
	Sender  string
	// Date is zero when the header is absent or unparseable.
	Date    time.Time
	Body    string
	Outcome Outcome
}

// Text is what gets classified.
func (m Message) Text() string {
	return m.Subject + " " + m.Body
}

var wordDecoder = &mime.WordDecoder{CharsetReader: charset.Reader}

var encodedWord = regexp.MustCompile(`=\?[^?\s]+\?[bBqQ]\?[^?\s]*\?=`)

// Normalize parses raw. Header and body decode problems fall back to the
// default subject or an empty body; only an unparseable header block is an
// error.
func Normalize(raw []byte) (Message, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Message{}, fmt.Errorf("%w: empty payload", ErrMalformedMessage)
	}

	entity, err := message.Read(bytes.NewReader(raw))
	if entity == nil || (err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err)) {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if entity.Header.Len() == 0 {
		return Message{}, fmt.Errorf("%w: no header fields", ErrMalformedMessage)
	}

	var msg Message
	header := mail.Header{Header: entity.Header}

	rawSubject := header.Get("Subject")
	subject, lossy := decodeHeader(rawSubject)
	msg.Outcome.SubjectLossy = lossy
	if strings.TrimSpace(subject) == "" {
		subject = DefaultSubject
		msg.Outcome.SubjectDefaulted = true
	}
	msg.Subject = subject

	msg.Sender, _ = decodeHeader(header.Get("From"))

	if date, err := header.Date(); err == nil && !date.IsZero() {
		msg.Date = date
	} else {
		msg.Outcome.DateMissing = true
	}

	body, found, err := extractBody(entity)
	switch {
	case err != nil:
		msg.Outcome.BodyDecodeFailed = true
		body = ""
	case !found:
		msg.Outcome.BodyMissing = true
	}
	body, _ = clean(body)
	msg.Body, msg.Outcome.BodyTruncated = Truncate(body, models.MaxBodyChars)

	return msg, nil
}

// Truncate cuts s to at most max characters.
func Truncate(s string, max int) (string, bool) {
	if utf8.RuneCountInString(s) <= max {
		return s, false
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i], true
		}
		n++
	}
	return s, false
}

// clean drops invalid UTF-8 and NUL bytes, neither of which Postgres TEXT
// accepts. It reports whether anything was removed.
func clean(s string) (string, bool) {
	changed := false
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
		changed = true
	}
	if strings.IndexByte(s, 0) >= 0 {
		s = strings.ReplaceAll(s, "\x00", "")
		changed = true
	}
	return s, changed
}

// decodeHeader decodes RFC 2047 encoded-words. When the header as a whole
// does not decode, each word is decoded on its own; a word in an unknown
// charset is read as UTF-8. Invalid UTF-8 is removed from the result.
func decodeHeader(raw string) (string, bool) {
	raw = strings.NewReplacer("\r", "", "\n", "").Replace(raw)
	if raw == "" {
		return "", false
	}

	lossy := false
	decoded, err := wordDecoder.DecodeHeader(raw)
	if err != nil {
		decoded, lossy = decodeWords(raw)
	}
	decoded, changed := clean(decoded)
	return strings.TrimSpace(decoded), lossy || changed
}

func decodeWords(raw string) (string, bool) {
	var b strings.Builder
	lossy := false
	last := 0
	prevWord := false
	for _, loc := range encodedWord.FindAllStringIndex(raw, -1) {
		gap := raw[last:loc[0]]
		// Whitespace between two adjacent encoded-words is not part of the text.
		if !(prevWord && strings.TrimSpace(gap) == "") {
			b.WriteString(gap)
		}
		word, err := wordDecoder.Decode(raw[loc[0]:loc[1]])
		if err != nil {
			lossy = true
			word, err = decodeAsUTF8(raw[loc[0]:loc[1]])
		}
		if err == nil {
			b.WriteString(word)
		}
		last = loc[1]
		prevWord = true
	}
	b.WriteString(raw[last:])
	return b.String(), lossy
}

// decodeAsUTF8 decodes the Q or B payload of an encoded-word while ignoring
// its declared charset.
func decodeAsUTF8(word string) (string, error) {
	parts := strings.SplitN(word[2:len(word)-2], "?", 3)
	if len(parts) != 3 {
		return "", fmt.Errorf("malformed encoded-word %q", word)
	}
	return wordDecoder.Decode("=?utf-8?" + parts[1] + "?" + parts[2] + "?=")
}

// extractBody returns the first non-attachment text/plain part of a
// multipart entity, or the whole payload of a single-part one.
func extractBody(e *message.Entity) (string, bool, error) {
	if mr := e.MultipartReader(); mr != nil {
		return firstPlainPart(mr)
	}
	data, err := io.ReadAll(e.Body)
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

func firstPlainPart(mr message.MultipartReader) (string, bool, error) {
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return "", false, nil
		}
		if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
			return "", false, err
		}

		if nested := part.MultipartReader(); nested != nil {
			body, found, err := firstPlainPart(nested)
			if err != nil || found {
				return body, found, err
			}
			continue
		}

		if !isPlainText(part.Header) {
			continue
		}
		data, err := io.ReadAll(part.Body)
		if err != nil {
			return "", false, err
		}
		return string(data), true, nil
	}
}

func isPlainText(h message.Header) bool {
	mediaType := "text/plain"
	if h.Get("Content-Type") != "" {
		t, _, err := h.ContentType()
		if err != nil {
			return false
		}
		mediaType = t
	}
	if mediaType != "text/plain" {
		return false
	}
	disp, _, err := h.ContentDisposition()
	if err != nil {
		return !strings.Contains(strings.ToLower(h.Get("Content-Disposition")), "attachment")
	}
	return disp != "attachment"
}
