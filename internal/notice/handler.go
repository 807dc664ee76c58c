package notice

import (
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"NoticeBoard/internal/apperror"
	"NoticeBoard/internal/config"
	"NoticeBoard/internal/user"
)

type Handler struct {
	service *Service
	uploads *config.UploadConfig
	log     *zap.Logger
}

func NewHandler(service *Service, uploads *config.UploadConfig, log *zap.Logger) *Handler {
	return &Handler{service: service, uploads: uploads, log: log}
}

// ViewerFromContext builds the audience-matching viewer from the JWT
// claims set by the auth middleware.
func ViewerFromContext(c echo.Context) (Viewer, error) {
	claims, ok := c.Get("user").(*user.JWTClaims)
	if !ok || claims == nil {
		return Viewer{}, apperror.Forbidden("Missing user claims")
	}
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return Viewer{}, apperror.Forbidden("Invalid user id in token")
	}
	return Viewer{
		ID:         id,
		Role:       claims.Role,
		Department: claims.Department,
		Year:       claims.Year,
		Course:     claims.Course,
	}, nil
}

func (h *Handler) Create(c echo.Context) error {
	v, err := ViewerFromContext(c)
	if err != nil {
		return err
	}
	attachments, err := h.saveAttachments(c)
	if err != nil {
		return err
	}
	n, err := h.service.Create(c.Request().Context(), v, CreateInput{
		Title:         c.FormValue("title"),
		Content:       c.FormValue("content"),
		Category:      c.FormValue("category"),
		Priority:      c.FormValue("priority"),
		RawAudience:   c.FormValue("targetAudience"),
		ScheduledDate: c.FormValue("scheduledDate"),
		ExpiresAt:     c.FormValue("expiresAt"),
		Attachments:   attachments,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{"success": true, "notice": n})
}

func (h *Handler) List(c echo.Context) error {
	v, err := ViewerFromContext(c)
	if err != nil {
		return err
	}
	filters := ListFilters{
		Category:   c.QueryParam("category"),
		StartDate:  c.QueryParam("startDate"),
		EndDate:    c.QueryParam("endDate"),
		Department: c.QueryParam("department"),
		Year:       c.QueryParam("year"),
		Course:     c.QueryParam("course"),
		IsArchived: c.QueryParam("isArchived"),
		Search:     c.QueryParam("search"),
		Page:       parseInt(c.QueryParam("page"), 1),
		Limit:      parseInt(c.QueryParam("limit"), 10),
	}
	notices, pagination, err := h.service.List(c.Request().Context(), v, filters)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":    true,
		"notices":    notices,
		"pagination": pagination,
	})
}

func (h *Handler) GetByID(c echo.Context) error {
	v, err := ViewerFromContext(c)
	if err != nil {
		return err
	}
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return apperror.Validation("Invalid notice id")
	}
	n, err := h.service.GetByID(c.Request().Context(), v, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "notice": n})
}

func (h *Handler) Update(c echo.Context) error {
	v, err := ViewerFromContext(c)
	if err != nil {
		return err
	}
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return apperror.Validation("Invalid notice id")
	}
	attachments, err := h.saveAttachments(c)
	if err != nil {
		return err
	}
	in := UpdateInput{
		Title:         c.FormValue("title"),
		Content:       c.FormValue("content"),
		Category:      c.FormValue("category"),
		Priority:      c.FormValue("priority"),
		RawAudience:   c.FormValue("targetAudience"),
		ScheduledDate: c.FormValue("scheduledDate"),
		ExpiresAt:     c.FormValue("expiresAt"),
		Attachments:   attachments,
	}
	if raw := c.FormValue("isPublished"); raw != "" {
		published, err := strconv.ParseBool(raw)
		if err != nil {
			return apperror.Validation("Invalid isPublished")
		}
		in.IsPublished = &published
	}
	n, err := h.service.Update(c.Request().Context(), v, id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "notice": n})
}

func (h *Handler) Delete(c echo.Context) error {
	v, err := ViewerFromContext(c)
	if err != nil {
		return err
	}
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return apperror.Validation("Invalid notice id")
	}
	if err := h.service.Delete(c.Request().Context(), v, id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "message": "Notice deleted successfully"})
}

func (h *Handler) Archive(c echo.Context) error {
	v, err := ViewerFromContext(c)
	if err != nil {
		return err
	}
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return apperror.Validation("Invalid notice id")
	}
	n, err := h.service.Archive(c.Request().Context(), v, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "notice": n})
}

type commentRequest struct {
	Comment string `json:"comment"`
}

func (h *Handler) AddComment(c echo.Context) error {
	v, err := ViewerFromContext(c)
	if err != nil {
		return err
	}
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return apperror.Validation("Invalid notice id")
	}
	var req commentRequest
	if err := c.Bind(&req); err != nil {
		return apperror.Validation("Invalid request")
	}
	n, err := h.service.AddComment(c.Request().Context(), v, id, req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "notice": n})
}

func (h *Handler) Acknowledge(c echo.Context) error {
	v, err := ViewerFromContext(c)
	if err != nil {
		return err
	}
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return apperror.Validation("Invalid notice id")
	}
	if err := h.service.Acknowledge(c.Request().Context(), v, id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "message": "Notice acknowledged"})
}

// saveAttachments stores the uploaded files on local disk under a random
// name and returns their metadata. Requests without a multipart form are
// treated as having no attachments.
func (h *Handler) saveAttachments(c echo.Context) ([]Attachment, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, nil
	}
	files := form.File["attachments"]
	if len(files) == 0 {
		return nil, nil
	}
	if len(files) > h.uploads.MaxFiles {
		return nil, apperror.Validation("Too many attachments")
	}
	attachments := make([]Attachment, 0, len(files))
	for _, fh := range files {
		att, err := h.saveFile(fh)
		if err != nil {
			h.log.Error("Failed to store attachment", zap.String("name", fh.Filename), zap.Error(err))
			return nil, apperror.Internal(err)
		}
		attachments = append(attachments, att)
	}
	return attachments, nil
}

func (h *Handler) saveFile(fh *multipart.FileHeader) (Attachment, error) {
	src, err := fh.Open()
	if err != nil {
		return Attachment{}, err
	}
	defer src.Close()

	name := uuid.NewString() + filepath.Ext(fh.Filename)
	path := filepath.Join(h.uploads.Dir, name)
	dst, err := os.Create(path)
	if err != nil {
		return Attachment{}, err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return Attachment{}, err
	}
	return Attachment{
		Filename:     name,
		OriginalName: fh.Filename,
		Path:         path,
		FileType:     fh.Header.Get("Content-Type"),
		Size:         fh.Size,
	}, nil
}

func parseInt(value string, fallback int64) int64 {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil || parsed < 1 {
		return fallback
	}
	return parsed
}
