package models

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func validRecord() *EmailRecord {
	return &EmailRecord{
		UserID:            1,
		ProviderMessageID: "42",
		Subject:           "hello",
		Body:              "body",
		Category:          CategoryGeneral,
		Confidence:        0.7,
	}
}

func TestEmailRecordValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(e *EmailRecord)
		want   error
	}{
		{"valid", func(e *EmailRecord) {}, nil},
		{"missing user", func(e *EmailRecord) { e.UserID = 0 }, ErrMissingUser},
		{"missing provider id", func(e *EmailRecord) { e.ProviderMessageID = " " }, ErrMissingProviderID},
		{"bad category", func(e *EmailRecord) { e.Category = "spam" }, ErrInvalidCategory},
		{"confidence too high", func(e *EmailRecord) { e.Confidence = 1.01 }, ErrInvalidConfidence},
		{"confidence negative", func(e *EmailRecord) { e.Confidence = -0.1 }, ErrInvalidConfidence},
		{"confidence NaN", func(e *EmailRecord) { e.Confidence = math.NaN() }, ErrInvalidConfidence},
		{"body too long", func(e *EmailRecord) { e.Body = strings.Repeat("é", MaxBodyChars+1) }, ErrBodyTooLong},
		{"body at cap", func(e *EmailRecord) { e.Body = strings.Repeat("é", MaxBodyChars) }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			tt.mutate(rec)
			err := rec.Validate()
			if tt.want == nil {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCategoryValid(t *testing.T) {
	for _, c := range Categories {
		if !c.Valid() {
			t.Fatalf("expected %q to be valid", c)
		}
	}
	if Category("spam").Valid() {
		t.Fatal("expected unknown category to be invalid")
	}
}
