package rest

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dropshare-api/internal/application/ports"
	"dropshare-api/internal/domain/container"
	dto "dropshare-api/internal/interface/api/rest/dto/container"
	"dropshare-api/internal/interface/api/rest/validator"
)

// parsed multipart parts above this size spill to temp files
const multipartMemory = 32 << 20

type ContainerController struct {
	containerService ports.ContainerService
	retrievalService ports.RetrievalService
	shareLink        func(publicID string) string
	maxUploadBytes   int64
	logger           *zap.Logger
}

func NewContainerController(
	r *gin.Engine,
	containerService ports.ContainerService,
	retrievalService ports.RetrievalService,
	shareLink func(publicID string) string,
	maxUploadBytes int64,
	logger *zap.Logger,
	uploadMiddleware ...gin.HandlerFunc,
) *ContainerController {
	cc := &ContainerController{
		containerService: containerService,
		retrievalService: retrievalService,
		shareLink:        shareLink,
		maxUploadBytes:   maxUploadBytes,
		logger:           logger,
	}

	r.POST(RouteUpload, append(uploadMiddleware, cc.UploadHandler)...)
	r.GET(RouteShare, cc.ShareHandler)
	r.GET(RouteDownload, cc.DownloadHandler)
	r.GET(RouteContainer, cc.GetContainerHandler)

	return cc
}

func (cc *ContainerController) UploadHandler(c *gin.Context) {
	if cc.maxUploadBytes > 0 {
		if c.Request.ContentLength > cc.maxUploadBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload is too large"})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, cc.maxUploadBytes)
	}

	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload is too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}
	form := c.Request.MultipartForm
	defer func() { _ = form.RemoveAll() }()

	headers := form.File["files[]"]
	if len(headers) == 0 {
		headers = form.File["files"]
	}

	name := c.Request.PostFormValue("containerName")
	minutes, errs := validator.ValidateUpload(name, c.Request.PostFormValue("expiryDuration"), len(headers))
	if errs != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid request body",
			"details": errs,
		})
		return
	}

	req := ports.CreateContainerRequest{
		DisplayName:     name,
		DurationMinutes: minutes,
		Files:           make([]ports.UploadFile, 0, len(headers)),
	}
	for _, fh := range headers {
		req.Files = append(req.Files, uploadFile(fh))
	}

	ct, err := cc.containerService.CreateContainer(c.Request.Context(), req)
	if err != nil {
		var (
			vErr *container.ValidationError
			uErr *container.UploadError
		)
		switch {
		case errors.As(err, &vErr):
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Message})
		case errors.As(err, &uErr):
			cc.logger.Warn("CreateContainer() upload error", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to store " + uErr.File + ", nothing was shared"})
		default:
			cc.logger.Error("CreateContainer() error", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create container"})
		}
		return
	}

	c.JSON(http.StatusOK, dto.ToUploadResponse(ct, cc.shareLink(ct.PublicID.String())))
}

func uploadFile(fh *multipart.FileHeader) ports.UploadFile {
	return ports.UploadFile{
		Name: fh.Filename,
		Size: fh.Size,
		Open: func() (io.ReadCloser, error) { return fh.Open() },
	}
}

func (cc *ContainerController) ShareHandler(c *gin.Context) {
	ok, id := validator.IsUUID(c.Param("public_id"))
	if !ok {
		c.HTML(http.StatusNotFound, viewError, errorView{
			Title:   "Not found",
			Message: "This share link does not exist.",
		})
		return
	}

	view, err := cc.retrievalService.Resolve(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, container.ErrNotFound):
			c.HTML(http.StatusNotFound, viewError, errorView{
				Title:   "Not found",
				Message: "This share link does not exist.",
			})
		case errors.Is(err, container.ErrExpired):
			c.HTML(http.StatusGone, viewError, errorView{
				Title:   "Link expired",
				Message: "This share link has expired and its files are no longer available.",
			})
		default:
			cc.logger.Error("Resolve() error", zap.Error(err), zap.String("public_id", id.String()))
			c.HTML(http.StatusInternalServerError, viewError, errorView{
				Title:   "Something went wrong",
				Message: "The share could not be loaded. Please try again later.",
			})
		}
		return
	}

	c.HTML(http.StatusOK, viewShare, dto.ToResponse(view))
}

func (cc *ContainerController) GetContainerHandler(c *gin.Context) {
	ok, id := validator.IsUUID(c.Param("public_id"))
	if !ok {
		c.JSON(
			http.StatusBadRequest,
			gin.H{"error": "public_id must be a valid UUID"},
		)
		return
	}

	view, err := cc.retrievalService.Resolve(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, container.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, container.ErrExpired):
			c.JSON(http.StatusGone, gin.H{"error": err.Error()})
		default:
			cc.logger.Error("Resolve() error", zap.Error(err), zap.String("public_id", id.String()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get container"})
		}
		return
	}

	c.JSON(http.StatusOK, dto.ToResponse(view))
}

func (cc *ContainerController) DownloadHandler(c *gin.Context) {
	ok, id := validator.IsUUID(c.Param("file_id"))
	if !ok {
		c.JSON(
			http.StatusNotFound,
			gin.H{"error": "file not found"},
		)
		return
	}

	target, err := cc.retrievalService.ResolveSingleFile(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, container.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		case errors.Is(err, container.ErrExpired):
			c.JSON(http.StatusGone, gin.H{"error": err.Error()})
		case errors.Is(err, container.ErrCorruptRecord):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		default:
			cc.logger.Error("ResolveSingleFile() error", zap.Error(err), zap.String("file_id", id.String()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve download"})
		}
		return
	}

	c.Redirect(http.StatusFound, target)
}
