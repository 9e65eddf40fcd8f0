package validators

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	pkgerrors "github.com/terra-sneakers/terra-backend/pkg/errors"
)

type lineInput struct {
	Size     string `json:"size" validate:"required"`
	Quantity int    `json:"quantity" validate:"gt=0,lte=10"`
}

type bodyInput struct {
	Items []lineInput `json:"items" validate:"required,min=1,dive"`
	Email string      `json:"customer_email" validate:"omitempty,email"`
}

func TestDecodeJSONBodyValid(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"items":[{"size":"42","quantity":2}]}`))
	var dest bodyInput
	if err := DecodeJSONBody(req, &dest); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(dest.Items) != 1 || dest.Items[0].Quantity != 2 {
		t.Fatalf("unexpected decode %+v", dest)
	}
}

func TestDecodeJSONBodyReportsFieldPaths(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"items":[{"size":"42","quantity":0}],"customer_email":"nope"}`))
	var dest bodyInput
	err := DecodeJSONBody(req, &dest)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := pkgerrors.As(err).Details().(map[string]string)
	if !ok {
		t.Fatalf("unexpected details %T", pkgerrors.As(err).Details())
	}
	if details["items[0].quantity"] != "must be greater than 0" {
		t.Fatalf("missing quantity detail: %v", details)
	}
	if details["customer_email"] != "must be a valid email" {
		t.Fatalf("missing email detail: %v", details)
	}
}

func TestDecodeJSONBodyReportsUpperBound(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"items":[{"size":"42","quantity":11}]}`))
	var dest bodyInput
	err := DecodeJSONBody(req, &dest)
	details, _ := pkgerrors.As(err).Details().(map[string]string)
	if details["items[0].quantity"] != "must be at most 10" {
		t.Fatalf("unexpected details %v (%v)", details, err)
	}
}

func TestDecodeJSONBodyRejectsUnknownAndMalformed(t *testing.T) {
	for name, body := range map[string]string{
		"unknown field": `{"items":[{"size":"42","quantity":1}],"coupon":"X"}`,
		"malformed":     `{"items":`,
		"empty items":   `{"items":[]}`,
	} {
		req := httptest.NewRequest("POST", "/", strings.NewReader(body))
		var dest bodyInput
		if err := DecodeJSONBody(req, &dest); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestParseQueryHelpers(t *testing.T) {
	id := uuid.New()
	req := httptest.NewRequest("GET", "/?limit=10&product_id="+id.String()+"&resolved=true&size=%2042%20", nil)

	limit, err := ParseQueryInt(req, "limit", 25, 1, 100)
	if err != nil || limit != 10 {
		t.Fatalf("limit: %d %v", limit, err)
	}
	if def, err := ParseQueryInt(req, "missing", 25, 1, 100); err != nil || def != 25 {
		t.Fatalf("default: %d %v", def, err)
	}
	parsed, err := ParseQueryUUID(req, "product_id")
	if err != nil || parsed == nil || *parsed != id {
		t.Fatalf("uuid: %v %v", parsed, err)
	}
	resolved, err := ParseQueryBool(req, "resolved")
	if err != nil || resolved == nil || !*resolved {
		t.Fatalf("bool: %v %v", resolved, err)
	}
	if size := ParseQueryString(req, "size"); size == nil || *size != "42" {
		t.Fatalf("string: %v", size)
	}
	if ParseQueryString(req, "missing") != nil {
		t.Fatalf("absent string should be nil")
	}
}

func TestParseQueryRejectsBadValues(t *testing.T) {
	req := httptest.NewRequest("GET", "/?limit=abc&big=500&product_id=x&resolved=maybe", nil)
	if _, err := ParseQueryInt(req, "limit", 25, 1, 100); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected numeric error, got %v", err)
	}
	if _, err := ParseQueryInt(req, "big", 25, 1, 100); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected range error, got %v", err)
	}
	if _, err := ParseQueryUUID(req, "product_id"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected uuid error, got %v", err)
	}
	if _, err := ParseQueryBool(req, "resolved"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected bool error, got %v", err)
	}
	if _, err := ParseUUIDParam("nope", "alertId"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected param error, got %v", err)
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  counted twice  ", 0); got != "counted twice" {
		t.Fatalf("unexpected trim %q", got)
	}
	if got := SanitizeString("abcdef", 3); got != "abc" {
		t.Fatalf("unexpected truncation %q", got)
	}
}
