package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/inkwell/blog/internal/apperr"
	"github.com/inkwell/blog/internal/files"
	"github.com/inkwell/blog/internal/service"
)

// maxBodyBytes bounds a request body: one image plus room for the other fields.
// Multipart forms under this size are parsed in memory.
const maxBodyBytes = files.MaxImageBytes + 1<<20

const msgBodyTooLarge = "The request body is too large."

// fields holds the request body by field name. Values are trimmed and empty
// strings are stored as nil, the same as an explicit JSON null.
type fields map[string]*string

// untrimmed lists fields whose value is kept byte for byte
var untrimmed = map[string]bool{
	"password":              true,
	"password_confirmation": true,
}

// readFields decodes a JSON, urlencoded or multipart body
func readFields(c *gin.Context) (fields, error) {
	out := fields{}
	if c.Request.Body == nil {
		return out, nil
	}
	if c.Request.ContentLength > maxBodyBytes {
		return nil, apperr.TooLarge(msgBodyTooLarge)
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)

	switch c.ContentType() {
	case gin.MIMEMultipartPOSTForm:
		if err := c.Request.ParseMultipartForm(maxBodyBytes); err != nil {
			if tooLarge(err) {
				return nil, apperr.TooLarge(msgBodyTooLarge)
			}
			return nil, apperr.BadRequest("Malformed multipart body.")
		}
		for k, v := range c.Request.MultipartForm.Value {
			if len(v) > 0 {
				out.set(k, v[0])
			}
		}
	case gin.MIMEPOSTForm:
		if err := c.Request.ParseForm(); err != nil {
			if tooLarge(err) {
				return nil, apperr.TooLarge(msgBodyTooLarge)
			}
			return nil, apperr.BadRequest("Malformed form body.")
		}
		for k, v := range c.Request.PostForm {
			if len(v) > 0 {
				out.set(k, v[0])
			}
		}
	default:
		var raw map[string]interface{}
		dec := json.NewDecoder(c.Request.Body)
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			if tooLarge(err) {
				return nil, apperr.TooLarge(msgBodyTooLarge)
			}
			return nil, apperr.BadRequest("Malformed JSON body.")
		}
		for k, v := range raw {
			switch val := v.(type) {
			case nil:
				out[k] = nil
			case string:
				out.set(k, val)
			case json.Number:
				out.set(k, val.String())
			case bool:
				out.set(k, strconv.FormatBool(val))
			default:
				b, _ := json.Marshal(val)
				out.set(k, string(b))
			}
		}
	}
	return out, nil
}

func tooLarge(err error) bool {
	var limit *http.MaxBytesError
	return errors.As(err, &limit)
}

func (f fields) set(key, value string) {
	if !untrimmed[key] {
		value = strings.TrimSpace(value)
	}
	if value == "" {
		f[key] = nil
		return
	}
	f[key] = &value
}

// has reports whether key was sent, null included
func (f fields) has(key string) bool {
	_, ok := f[key]
	return ok
}

func (f fields) str(key string) string {
	if v := f[key]; v != nil {
		return *v
	}
	return ""
}

func (f fields) opt(key string) service.Optional[string] {
	if !f.has(key) {
		return service.Optional[string]{}
	}
	return service.Some(f.str(key))
}

// id parses an integer field. Missing and null values yield 0.
func (f fields) id(key string) (int64, error) {
	v := f[key]
	if v == nil {
		return 0, nil
	}
	n, err := strconv.ParseInt(*v, 10, 64)
	if err != nil || n < 0 {
		return 0, apperr.FieldError(key, fmt.Sprintf("The %s field must be an integer.", strings.ReplaceAll(key, "_", " ")))
	}
	return n, nil
}

// readImage loads an uploaded file, or returns nil when field is absent
func readImage(c *gin.Context, field string) (*files.Image, error) {
	if c.ContentType() != gin.MIMEMultipartPOSTForm {
		return nil, nil
	}
	header, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, apperr.FieldError(field, "The featured image failed to upload.")
	}
	return loadImage(header)
}

func loadImage(header *multipart.FileHeader) (*files.Image, error) {
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	// one byte past the limit is enough for the store to reject it
	data, err := io.ReadAll(io.LimitReader(f, files.MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return &files.Image{Filename: header.Filename, Data: data}, nil
}

// queryInt parses an optional integer query parameter
func queryInt(c *gin.Context, key string) (*int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, apperr.FieldError(key, fmt.Sprintf("The %s field must be an integer.", strings.ReplaceAll(key, "_", " ")))
	}
	return &n, nil
}

func pageRequest(c *gin.Context) service.PageRequest {
	req := service.PageRequest{Page: 1}
	if n, err := queryInt(c, "page"); err == nil && n != nil {
		req.Page = *n
	}
	if n, err := queryInt(c, "per_page"); err == nil {
		req.PerPage = n
	}
	return req
}
