package resp

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"gymbro/internal/pkg/errs"
)

type item struct {
	ID string `json:"id"`
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"data envelope", `{"data":{"id":"a"}}`, "a"},
		{"bare object", `{"id":"b"}`, "b"},
		{"null data falls back to body", `{"data":null,"id":"c"}`, "c"},
		{"empty body", ``, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got item
			if err := Decode([]byte(tt.body), &got); err != nil {
				t.Fatalf("Decode() error: %v", err)
			}
			if got.ID != tt.want {
				t.Errorf("ID = %q, want %q", got.ID, tt.want)
			}
		})
	}
}

func TestDecode_Invalid(t *testing.T) {
	var got item
	err := Decode([]byte(`<html>`), &got)
	if !errors.Is(err, errs.NewError(errs.ErrInvalidResponse)) {
		t.Errorf("err = %v", err)
	}
}

func TestErrorMessage(t *testing.T) {
	tests := map[string]string{
		`{"message":"Email already used"}`: "Email already used",
		`{"error":"Invalid token"}`:        "Invalid token",
		`Bad Gateway`:                      "",
	}
	for body, want := range tests {
		if got := ErrorMessage([]byte(body)); got != want {
			t.Errorf("ErrorMessage(%s) = %q, want %q", body, got, want)
		}
	}
}

func TestRespondError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, httptest.NewRequest(http.MethodGet, "/", nil), errs.NewError(errs.ErrNotFound))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
	var res JSONResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Code != errs.ErrNotFound || res.Message != "Not found." {
		t.Errorf("response = %+v", res)
	}
}
