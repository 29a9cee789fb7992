package token

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestGenerate(t *testing.T) {
	now := time.UnixMilli(1000)

	tok, err := Generate("u1", now)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if tok.UID != "u1" {
		t.Errorf("UID = %q, want u1", tok.UID)
	}
	if tok.Timestamp != 1000 {
		t.Errorf("Timestamp = %d, want 1000", tok.Timestamp)
	}
	if tok.Code == "" {
		t.Error("Code is empty")
	}

	other, _ := Generate("u1", now)
	if other.Code == tok.Code {
		t.Error("two generations produced the same nonce")
	}

	if _, err := Generate("", now); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Generate(\"\") error = %v, want ErrInvalidInput", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		lastNonce string
		nowMS     int64
		wantUser  string
		wantNonce string
		wantErr   error
	}{
		{
			name:    "not json",
			raw:     "hello",
			nowMS:   1000,
			wantErr: ErrMalformedCode,
		},
		{
			name:    "missing code field",
			raw:     `{"uid":"u1","timestamp":1000}`,
			nowMS:   1000,
			wantErr: ErrMalformedCode,
		},
		{
			name:    "missing uid field",
			raw:     `{"timestamp":1000,"code":"abc"}`,
			nowMS:   1000,
			wantErr: ErrMalformedCode,
		},
		{
			name:      "fresh code accepted",
			raw:       `{"uid":"u1","timestamp":1000,"code":"abc"}`,
			lastNonce: "",
			nowMS:     3000,
			wantUser:  "u1",
			wantNonce: "abc",
		},
		{
			name:      "same code scanned again",
			raw:       `{"uid":"u1","timestamp":1000,"code":"abc"}`,
			lastNonce: "abc",
			nowMS:     3100,
			wantErr:   ErrDuplicateScan,
		},
		{
			name:    "older than ttl",
			raw:     `{"uid":"u1","timestamp":1000,"code":"xyz"}`,
			nowMS:   6500,
			wantErr: ErrExpired,
		},
		{
			name:    "exactly ttl old is rejected",
			raw:     `{"uid":"u1","timestamp":1000,"code":"xyz"}`,
			nowMS:   6000,
			wantErr: ErrExpired,
		},
		{
			name:      "one ms inside the window",
			raw:       `{"uid":"u1","timestamp":1000,"code":"xyz"}`,
			nowMS:     5999,
			wantUser:  "u1",
			wantNonce: "xyz",
		},
		{
			// A stale code that is also a duplicate reports the
			// duplicate first; either way no state changes.
			name:      "duplicate beats expired",
			raw:       `{"uid":"u1","timestamp":1000,"code":"abc"}`,
			lastNonce: "abc",
			nowMS:     9000,
			wantErr:   ErrDuplicateScan,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scan, err := Validate(tt.raw, tt.lastNonce, time.UnixMilli(tt.nowMS), DefaultTTL)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if scan.UserID != tt.wantUser {
				t.Errorf("UserID = %q, want %q", scan.UserID, tt.wantUser)
			}
			if scan.Nonce != tt.wantNonce {
				t.Errorf("Nonce = %q, want %q", scan.Nonce, tt.wantNonce)
			}
		})
	}
}

func TestValidateEncodedToken(t *testing.T) {
	now := time.UnixMilli(50_000)
	tok, err := Generate("intern-7", now)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	raw, err := Encode(tok)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	scan, err := Validate(raw, "", now.Add(2*time.Second), DefaultTTL)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if scan.UserID != "intern-7" || scan.Nonce != tok.Code {
		t.Errorf("Validate() = %+v, want user intern-7 nonce %s", scan, tok.Code)
	}
}

func TestImage(t *testing.T) {
	tok, _ := Generate("u1", time.Now())
	img, err := Image(tok, 128)
	if err != nil {
		t.Fatalf("Image() error = %v", err)
	}
	pngMagic := []byte{0x89, 'P', 'N', 'G'}
	if !bytes.HasPrefix(img, pngMagic) {
		t.Error("Image() did not produce a PNG")
	}
}
