package controller

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pipprompter/server/internal/domain"
	"github.com/pipprompter/server/internal/service/presentation"
	"github.com/skip2/go-qrcode"
)

const (
	maxUpdateBodyBytes = 1 << 20
	qrCodeSize         = 256
)

func (c controller) getPage(w http.ResponseWriter, r *http.Request) {
	content, ok := c.page.Content()
	if !ok {
		c.logger.WarnContext(r.Context(), "control page unavailable")
		c.writeError(w, http.StatusNotFound, "control page unavailable")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(content)
}

func (c controller) getState(w http.ResponseWriter, r *http.Request) {
	c.writeJSON(w, http.StatusOK, c.presentationService.GetState(r.Context()))
}

func (c controller) update(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpdateBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			c.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}

		c.logger.InfoContext(r.Context(), "failed to read request body", "error", err)
		c.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	updateResp, err := c.presentationService.Update(r.Context(), &presentation.UpdateParams{
		Body: body,
	})
	if err != nil {
		if errors.Is(err, presentation.ErrMalformedRequest) {
			c.logger.InfoContext(r.Context(), "malformed update", "error", err)
			c.writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		c.logger.ErrorContext(r.Context(), "failed to update state", "error", err)
		c.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if len(updateResp.Rejected) > 0 {
		w.Header().Set(rejectedFieldsHeader, rejectedFieldNames(updateResp.Rejected))
	}

	if r.URL.Query().Get("verbose") == "1" {
		c.writeJSON(w, http.StatusOK, updateResp)
		return
	}

	c.writeJSON(w, http.StatusOK, updateResp.State)
}

// getQRCode renders a QR code pointing at the control page as the
// requesting client reached it.
func (c controller) getQRCode(w http.ResponseWriter, r *http.Request) {
	target := url.URL{Scheme: "http", Host: r.Host, Path: "/"}
	if c.accessService.Enabled() {
		target.RawQuery = url.Values{tokenQueryParam: {tokenFromRequest(r)}}.Encode()
	}

	png, err := qrcode.Encode(target.String(), qrcode.Medium, qrCodeSize)
	if err != nil {
		c.logger.ErrorContext(r.Context(), "failed to encode qr code", "error", err)
		c.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func rejectedFieldNames(rejected []domain.FieldError) string {
	names := make([]string, 0, len(rejected))
	for _, fe := range rejected {
		names = append(names, string(fe.Field))
	}

	return strings.Join(names, ",")
}
