package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/openclaw/audioqr/notify"
	"github.com/openclaw/audioqr/qrgen"
	"github.com/openclaw/audioqr/store"
)

// handleEncode turns an uploaded payload into a QR PNG. The payload is the
// multipart "file" field or, for any other content type, the raw body.
func (s *Server) handleEncode(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.MaxUpload)

	source := "upload"
	var body io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(s.MaxUpload); err != nil {
			writeError(w, http.StatusBadRequest, "failed to parse multipart form: "+err.Error())
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "file is required")
			return
		}
		defer file.Close()
		source = header.Filename
		body = file
	}

	payload, err := io.ReadAll(body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read upload: "+err.Error())
		return
	}

	res, png, err := s.Encoder.EncodeBytes(r.Context(), payload)
	switch {
	case errors.Is(err, qrgen.ErrCapacityExceeded):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	case err != nil:
		s.Log.Error("encode upload", "error", err, "source", source)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.record(r.Context(), source, res)

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("X-Payload-Truncated", strconv.FormatBool(res.Truncated))
	w.Header().Set("X-Payload-Bytes", strconv.Itoa(res.PayloadBytes))
	w.Header().Set("X-QR-Version", strconv.Itoa(res.Version))
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// record stores res and announces it. Failures are logged only.
func (s *Server) record(ctx context.Context, source string, res *qrgen.Result) {
	rec := store.FromResult(source, res)
	if s.Store != nil {
		if err := s.Store.Save(rec); err != nil {
			s.Log.Error("save history", "error", err)
		}
	}
	if s.Webhook != nil {
		if err := s.Webhook.Send(ctx, notify.FromRecord(rec)); err != nil {
			s.Log.Warn("notify encode", "error", err, "id", rec.ID)
		}
	}
}
