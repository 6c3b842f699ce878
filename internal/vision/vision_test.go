package vision

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chai2010/webp"
	"github.com/desertthunder/discx/internal/models"
	"github.com/desertthunder/discx/internal/repositories"
	"github.com/desertthunder/discx/internal/services"
	"github.com/desertthunder/discx/internal/shared"
	tu "github.com/desertthunder/discx/internal/testing"
)

// gradient draws a horizontal ramp, brightening to the right unless reversed.
func gradient(reversed bool) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 90, 40))
	for y := range 40 {
		for x := range 90 {
			v := uint8(x * 2)
			if reversed {
				v = uint8((89 - x) * 2)
			}
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDHasher(t *testing.T) {
	ctx := context.Background()
	var h DHasher

	t.Run("identical images hash identically", func(t *testing.T) {
		data := encodePNG(t, gradient(false))
		a, err := h.Fingerprint(ctx, data)
		if err != nil {
			t.Fatalf("Fingerprint failed: %v", err)
		}
		b, _ := h.Fingerprint(ctx, data)
		if len(a) != 8 {
			t.Errorf("expected 8-byte hash, got %d", len(a))
		}
		if d := Distance(a, b); d != 0 {
			t.Errorf("expected distance 0, got %v", d)
		}
	})

	t.Run("opposite gradients are far apart", func(t *testing.T) {
		a, _ := h.Fingerprint(ctx, encodePNG(t, gradient(false)))
		b, _ := h.Fingerprint(ctx, encodePNG(t, gradient(true)))
		if d := Distance(a, b); d < 48 {
			t.Errorf("expected a large distance, got %v", d)
		}
	})

	t.Run("decodes every supported format", func(t *testing.T) {
		img := gradient(false)
		ref, _ := h.Fingerprint(ctx, encodePNG(t, img))

		var jpg, wp bytes.Buffer
		if err := jpeg.Encode(&jpg, img, &jpeg.Options{Quality: 95}); err != nil {
			t.Fatal(err)
		}
		if err := webp.Encode(&wp, img, &webp.Options{Lossless: true}); err != nil {
			t.Fatal(err)
		}

		for name, data := range map[string][]byte{"jpeg": jpg.Bytes(), "webp": wp.Bytes()} {
			t.Run(name, func(t *testing.T) {
				got, err := h.Fingerprint(ctx, data)
				if err != nil {
					t.Fatalf("Fingerprint failed: %v", err)
				}
				if d := Distance(ref, got); d > 4 {
					t.Errorf("expected near-identical hash, got distance %v", d)
				}
			})
		}
	})

	t.Run("rejects garbage", func(t *testing.T) {
		for _, data := range [][]byte{nil, []byte("not an image")} {
			if _, err := h.Fingerprint(ctx, data); !errors.Is(err, shared.ErrParsing) {
				t.Errorf("expected ErrParsing, got %v", err)
			}
		}
	})
}

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []byte
		want float64
	}{
		{name: "equal", a: []byte{0xff, 0x00}, b: []byte{0xff, 0x00}, want: 0},
		{name: "one bit", a: []byte{0x01}, b: []byte{0x00}, want: 1},
		{name: "all bits", a: []byte{0xff, 0xff}, b: []byte{0x00, 0x00}, want: 16},
		{name: "length mismatch", a: []byte{0x01}, b: []byte{0x01, 0x02}, want: math.Inf(1)},
		{name: "empty", want: math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Distance(tt.a, tt.b); got != tt.want {
				t.Errorf("Distance() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFingerprintStore(t *testing.T) {
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if err := shared.RunMigrations(db); err != nil {
		t.Fatal(err)
	}

	repo := repositories.NewFingerprintRepository(db)
	store := NewFingerprintStore(repo)

	t.Run("empty store", func(t *testing.T) {
		_, _, ok, err := store.NearestNeighbor([]byte{0, 0})
		if err != nil || ok {
			t.Errorf("expected no neighbor, got ok=%v err=%v", ok, err)
		}
	})

	for _, fp := range []models.Fingerprint{
		{ReleaseID: "first", Hash: []byte{0x0f, 0x00}},
		{ReleaseID: "second", Hash: []byte{0xf0, 0x00}},
		{ReleaseID: "third", Hash: []byte{0xff, 0xff}},
	} {
		if err := store.Store(fp.ReleaseID, fp.Hash); err != nil {
			t.Fatalf("Store failed: %v", err)
		}
	}

	t.Run("nearest wins", func(t *testing.T) {
		id, d, ok, err := store.NearestNeighbor([]byte{0xff, 0xfe})
		if err != nil || !ok {
			t.Fatalf("unexpected result ok=%v err=%v", ok, err)
		}
		if id != "third" || d != 1 {
			t.Errorf("expected third at 1, got %s at %v", id, d)
		}
	})

	t.Run("ties keep the first stored", func(t *testing.T) {
		id, d, _, _ := store.NearestNeighbor([]byte{0x00, 0x00})
		if id != "first" || d != 4 {
			t.Errorf("expected first at 4, got %s at %v", id, d)
		}
	})

	t.Run("reloads from the database", func(t *testing.T) {
		fresh := NewFingerprintStore(repo)
		id, _, ok, err := fresh.NearestNeighbor([]byte{0xf0, 0x00})
		if err != nil || !ok || id != "second" {
			t.Errorf("expected second, got %s ok=%v err=%v", id, ok, err)
		}
	})
}

func TestProxyOCR(t *testing.T) {
	t.Run("returns lines", func(t *testing.T) {
		var gotType string
		var gotBody []byte
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/ocr" {
				http.NotFound(w, r)
				return
			}
			gotType = r.Header.Get("Content-Type")
			gotBody, _ = io.ReadAll(r.Body)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"lines":["Michael Jackson","Thriller"]}`))
		}))
		defer srv.Close()

		var buf bytes.Buffer
		ocr := NewProxyOCR(srv.URL, srv.Client(), tu.NewTestLogger(&buf))
		img := encodePNG(t, gradient(false))

		lines, err := ocr.ExtractText(context.Background(), img)
		if err != nil {
			t.Fatalf("ExtractText failed: %v", err)
		}
		if len(lines) != 2 || lines[0] != "Michael Jackson" || lines[1] != "Thriller" {
			t.Errorf("unexpected lines %v", lines)
		}
		if gotType != "image/png" {
			t.Errorf("expected image/png content type, got %q", gotType)
		}
		if !bytes.Equal(gotBody, img) {
			t.Error("image bytes were not forwarded")
		}
	})

	t.Run("service errors", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		ocr := NewProxyOCR(srv.URL, srv.Client(), nil)
		_, err := ocr.ExtractText(context.Background(), []byte("x"))
		if services.StatusCode(err) != http.StatusInternalServerError {
			t.Errorf("expected status 500 error, got %v", err)
		}
	})

	t.Run("malformed response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("{"))
		}))
		defer srv.Close()

		ocr := NewProxyOCR(srv.URL, srv.Client(), nil)
		_, err := ocr.ExtractText(context.Background(), []byte("x"))
		if !errors.Is(err, shared.ErrParsing) {
			t.Errorf("expected ErrParsing, got %v", err)
		}
	})

	t.Run("empty image", func(t *testing.T) {
		ocr := NewProxyOCR("http://127.0.0.1:1", nil, nil)
		if _, err := ocr.ExtractText(context.Background(), nil); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}
