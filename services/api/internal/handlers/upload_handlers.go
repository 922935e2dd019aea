package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/diagnosis/portfolio/pkg/response"
	"github.com/diagnosis/portfolio/services/api/internal/domain"
	"github.com/go-chi/chi/v5"
)

const multipartMemory = 32 << 20

func (h *Handlers) UploadImage(w http.ResponseWriter, r *http.Request) {
	if !h.parseMultipart(w, r, 1) {
		return
	}

	fhs := r.MultipartForm.File["image"]
	if len(fhs) == 0 {
		response.Validation(w, "No file uploaded", map[string]string{"image": "An image file is required"})
		return
	}
	f, err := readPart(fhs[0])
	if err != nil {
		response.BadRequest(w, "Failed to read uploaded file")
		return
	}

	asset, err := h.uploadService.Upload(r.Context(), currentUserID(r), f, uploadOptions(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, map[string]interface{}{"image": asset})
}

func (h *Handlers) UploadMultiple(w http.ResponseWriter, r *http.Request) {
	if !h.parseMultipart(w, r, h.config.Media.MaxBatchFiles) {
		return
	}

	fhs := r.MultipartForm.File["images"]
	if len(fhs) == 0 {
		response.Validation(w, "No files uploaded", map[string]string{"images": "At least one image is required"})
		return
	}
	if len(fhs) > h.config.Media.MaxBatchFiles {
		writeServiceError(w, r, domain.ErrTooManyFiles)
		return
	}

	files := make([]domain.UploadFile, 0, len(fhs))
	for _, fh := range fhs {
		f, err := readPart(fh)
		if err != nil {
			response.BadRequest(w, "Failed to read uploaded file")
			return
		}
		files = append(files, f)
	}

	assets, err := h.uploadService.UploadBatch(r.Context(), currentUserID(r), files, uploadOptions(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, map[string]interface{}{"images": assets})
}

// DeleteUpload removes an asset. Public IDs contain slashes, so the ID is
// the rest of the path and may also arrive percent-encoded.
func (h *Handlers) DeleteUpload(w http.ResponseWriter, r *http.Request) {
	publicID, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil || publicID == "" {
		response.BadRequest(w, "Invalid public ID")
		return
	}

	if err := h.uploadService.Delete(r.Context(), currentUserID(r), publicID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, map[string]interface{}{"message": "Image deleted successfully"})
}

func (h *Handlers) parseMultipart(w http.ResponseWriter, r *http.Request, maxFiles int) bool {
	perFile := int64(h.config.Media.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, perFile*int64(maxFiles)+1<<20)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			response.Error(w, http.StatusRequestEntityTooLarge, "File too large", response.CodeTooLarge)
			return false
		}
		response.BadRequest(w, "Expected multipart form data")
		return false
	}
	return true
}

func readPart(fh *multipart.FileHeader) (domain.UploadFile, error) {
	file, err := fh.Open()
	if err != nil {
		return domain.UploadFile{}, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return domain.UploadFile{}, err
	}
	return domain.UploadFile{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func uploadOptions(r *http.Request) domain.UploadOptions {
	quality, _ := strconv.Atoi(r.FormValue("quality"))
	return domain.UploadOptions{
		Folder:  r.FormValue("folder"),
		Quality: quality,
		Format:  r.FormValue("format"),
	}
}
