package attachment

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"mime/multipart"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadlog/internal/apperr"
)

const fifteenMB = 15 << 20

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	return img
}

func pngFile(t *testing.T, name string) File {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage()))
	return File{Name: name, ContentType: "image/png", Size: int64(buf.Len()), Data: buf.Bytes()}
}

func jpegFile(t *testing.T, name string) File {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testImage(), nil))
	return File{Name: name, ContentType: "image/jpeg", Size: int64(buf.Len()), Data: buf.Bytes()}
}

func gifFile(t *testing.T, name string) File {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, testImage(), nil))
	return File{Name: name, ContentType: "image/gif", Size: int64(buf.Len()), Data: buf.Bytes()}
}

func TestValidateAcceptsJPEG(t *testing.T) {
	f := jpegFile(t, "photo.jpg")
	f.Size = 2 << 20
	assert.NoError(t, Validate(f, fifteenMB, ImageTypes))
}

func TestValidateRejectsOversizedPNG(t *testing.T) {
	f := pngFile(t, "huge.png")
	f.Size = 20 << 20

	err := Validate(f, fifteenMB, ImageTypes)
	assert.ErrorIs(t, err, ErrFileTooLarge)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
}

func TestValidateRejectsGIF(t *testing.T) {
	f := gifFile(t, "anim.gif")
	f.Size = 2 << 20
	assert.ErrorIs(t, Validate(f, fifteenMB, ImageTypes), ErrUnsupportedType)
}

func TestValidateRejectsMismatchedContent(t *testing.T) {
	f := pngFile(t, "fake.jpg")
	f.ContentType = "image/jpeg"
	assert.ErrorIs(t, Validate(f, fifteenMB, ImageTypes), ErrUnsupportedType)

	text := File{Name: "notes.png", ContentType: "image/png", Size: 5, Data: []byte("hello")}
	assert.ErrorIs(t, Validate(text, fifteenMB, ImageTypes), ErrUnsupportedType)
}

func TestValidateNormalizesContentType(t *testing.T) {
	f := pngFile(t, "a.png")
	f.ContentType = " IMAGE/PNG; charset=binary"
	assert.NoError(t, Validate(f, fifteenMB, ImageTypes))
}

func TestValidateAllRejectsWholeBatch(t *testing.T) {
	files := []File{pngFile(t, "a.png"), gifFile(t, "b.gif"), jpegFile(t, "c.jpg")}
	err := ValidateAll(files, fifteenMB, ImageTypes)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedType))
	assert.Contains(t, err.Error(), "b.gif")
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "jpg", Extension("image/jpeg"))
	assert.Equal(t, "png", Extension("image/png"))
	assert.Equal(t, "webp", Extension("image/webp"))
	assert.Equal(t, "bin", Extension("application/pdf"))
}

func fileHeader(t *testing.T, f File) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="image"; filename="`+f.Name+`"`)
	h.Set("Content-Type", f.ContentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(f.Data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { form.RemoveAll() })
	require.Len(t, form.File["image"], 1)
	return form.File["image"][0]
}

func TestFromMultipartReadsWithinLimit(t *testing.T) {
	want := pngFile(t, "small.png")

	got, err := FromMultipart(fileHeader(t, want), fifteenMB)
	require.NoError(t, err)
	assert.Equal(t, want.Data, got.Data)
	assert.Equal(t, int64(len(want.Data)), got.Size)
	assert.Equal(t, "image/png", got.ContentType)
}

func TestFromMultipartRejectsOversizedBeforeReading(t *testing.T) {
	f := pngFile(t, "big.png")
	fh := fileHeader(t, f)

	got, err := FromMultipart(fh, int64(len(f.Data))-1)
	assert.ErrorIs(t, err, ErrFileTooLarge)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
	assert.Nil(t, got.Data)
}

func TestFromMultipartCapsReadWhenSizeUnderstated(t *testing.T) {
	f := pngFile(t, "liar.png")
	fh := fileHeader(t, f)
	fh.Size = 1

	got, err := FromMultipart(fh, 8)
	assert.ErrorIs(t, err, ErrFileTooLarge)
	assert.Nil(t, got.Data)
}
