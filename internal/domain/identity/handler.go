package identity

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/medbook/medbook/internal/platform/apperr"
	"github.com/medbook/medbook/internal/platform/auth"
	"github.com/medbook/medbook/internal/platform/blobstore"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts sign-up and sign-in on api and the rest behind
// authed, which must already carry the JWT middleware.
func (h *Handler) RegisterRoutes(api *echo.Group, authed *echo.Group) {
	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	authed.GET("/auth/me", h.Me)

	admin := authed.Group("/admin", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/doctors", h.CreateDoctor)
	admin.DELETE("/doctors/:id", h.DeleteDoctor)
	admin.GET("/patients", h.ListPatients)
	admin.DELETE("/patients/:id", h.DeletePatient)
}

type authResponse struct {
	Message string        `json:"message"`
	Token   string        `json:"token"`
	User    auth.Identity `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validationf("invalid request body")
	}
	res, err := h.svc.Register(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, authResponse{Message: "registration successful", Token: res.Token, User: res.Identity})
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validationf("invalid request body")
	}
	res, err := h.svc.Login(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, authResponse{Message: "login successful", Token: res.Token, User: res.Identity})
}

func (h *Handler) Me(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.svc.Me(c.Request().Context(), id))
}

// -- Admin Handlers --

func parseID(raw, name string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validationf("invalid %s", name)
	}
	return id, nil
}

// doctorForm reads the text fields of the multipart create-doctor form.
func doctorForm(c echo.Context) (CreateDoctorRequest, error) {
	req := CreateDoctorRequest{
		FirstName: c.FormValue("firstName"),
		LastName:  c.FormValue("lastName"),
		Email:     c.FormValue("email"),
		Password:  c.FormValue("password"),
	}
	if raw := strings.TrimSpace(c.FormValue("specializationId")); raw != "" {
		id, err := parseID(raw, "specializationId")
		if err != nil {
			return req, err
		}
		req.SpecializationID = id
	}
	if raw := strings.TrimSpace(c.FormValue("experienceYears")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return req, apperr.Validationf("experienceYears must be a whole number")
		}
		req.ExperienceYears = &n
	}
	if raw := strings.TrimSpace(c.FormValue("officeNumber")); raw != "" {
		req.OfficeNumber = &raw
	}
	return req, nil
}

type createDoctorResponse struct {
	Message string  `json:"message"`
	Doctor  *Doctor `json:"doctor"`
}

func (h *Handler) CreateDoctor(c echo.Context) error {
	req, err := doctorForm(c)
	if err != nil {
		return err
	}

	var photo *blobstore.Upload
	fh, err := c.FormFile("photo")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	case err != nil:
		return apperr.Validationf("invalid photo upload")
	default:
		upload, closer, err := blobstore.FromFileHeader(fh)
		if err != nil {
			return apperr.Wrap(err, "read photo")
		}
		defer closer.Close()
		photo = &upload
	}

	d, err := h.svc.CreateDoctor(c.Request().Context(), req, photo)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, createDoctorResponse{Message: "doctor created", Doctor: d})
}

func (h *Handler) DeleteDoctor(c echo.Context) error {
	id, err := parseID(c.Param("id"), "doctor id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteDoctor(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "doctor account deleted"})
}

func (h *Handler) ListPatients(c echo.Context) error {
	items, err := h.svc.ListPatients(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	id, err := parseID(c.Param("id"), "patient id")
	if err != nil {
		return err
	}
	if err := h.svc.DeletePatient(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "patient account deleted"})
}
