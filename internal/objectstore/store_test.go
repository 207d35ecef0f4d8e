package objectstore

import (
	"bytes"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"thewire/internal/model"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func fileHeader(t *testing.T, data []byte, contentType string) (multipart.File, *multipart.FileHeader) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="upload.png"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	writer.Close()

	req := httptest.NewRequest("POST", "/", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if err := req.ParseMultipartForm(10 << 20); err != nil {
		t.Fatalf("ParseMultipartForm: %v", err)
	}
	file, fh, err := req.FormFile("file")
	if err != nil {
		t.Fatalf("FormFile: %v", err)
	}
	return file, fh
}

func TestResizeToJPEGProducesExactDimensions(t *testing.T) {
	src := pngBytes(t, 400, 300)
	out, err := resizeToJPEG(src, model.AvatarWidth, model.AvatarHeight, 85)
	if err != nil {
		t.Fatalf("resizeToJPEG: %v", err)
	}
	cfg, err := decodeJPEGConfig(out)
	if err != nil {
		t.Fatalf("decode resized jpeg: %v", err)
	}
	if cfg.Width != model.AvatarWidth || cfg.Height != model.AvatarHeight {
		t.Fatalf("dimensions = %dx%d, want %dx%d", cfg.Width, cfg.Height, model.AvatarWidth, model.AvatarHeight)
	}
}

func TestReadAndValidateImageRejectsOversized(t *testing.T) {
	src := pngBytes(t, 50, 50)
	file, header := fileHeader(t, src, "image/png")
	header.Size = model.MaxImageSizeBytes + 1
	if _, err := readAndValidateImage(file, header, model.MaxImageSizeBytes); err != model.ErrFileTooLarge {
		t.Fatalf("err = %v, want ErrFileTooLarge", err)
	}
}

func TestReadAndValidateImageRejectsDisallowedType(t *testing.T) {
	file, header := fileHeader(t, []byte("not-an-image"), "application/pdf")
	header.Size = int64(len("not-an-image"))
	if _, err := readAndValidateImage(file, header, model.MaxImageSizeBytes); err != model.ErrInvalidMediaType {
		t.Fatalf("err = %v, want ErrInvalidMediaType", err)
	}
}

func TestExtensionFor(t *testing.T) {
	cases := map[string]string{
		"image/jpeg": ".jpg",
		"image/png":  ".png",
		"video/mp4":  ".mp4",
	}
	for ct, want := range cases {
		ext, ok := extensionFor(ct)
		if !ok || ext != want {
			t.Errorf("extensionFor(%q) = (%q, %v), want (%q, true)", ct, ext, ok, want)
		}
	}
	if _, ok := extensionFor("application/zip"); ok {
		t.Error("extensionFor(application/zip) should report unsupported")
	}
}

func decodeJPEGConfig(data []byte) (image.Config, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	return cfg, err
}
