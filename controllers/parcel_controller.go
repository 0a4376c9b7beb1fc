package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/the-abed/zap-shift-server/apperrors"
	"github.com/the-abed/zap-shift-server/services"
)

// ParcelController handles HTTP requests for parcel bookings.
type ParcelController struct {
	parcelService services.ParcelService
}

func NewParcelController(svc services.ParcelService) *ParcelController {
	return &ParcelController{parcelService: svc}
}

// ListParcels handles GET /parcels?email=
func (pc *ParcelController) ListParcels(c *gin.Context) {
	parcels, err := pc.parcelService.List(c.Request.Context(), c.Query("email"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, parcels)
}

// GetParcel handles GET /parcels/:id. An unknown id yields a JSON null.
func (pc *ParcelController) GetParcel(c *gin.Context) {
	parcel, err := pc.parcelService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if parcel == nil {
		c.JSON(http.StatusOK, nil)
		return
	}
	c.JSON(http.StatusOK, parcel)
}

// CreateParcel handles POST /parcels. The body is any JSON object.
func (pc *ParcelController) CreateParcel(c *gin.Context) {
	var fields map[string]interface{}
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	res, err := pc.parcelService.Create(c.Request.Context(), fields)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// DeleteParcel handles DELETE /parcels/:id
func (pc *ParcelController) DeleteParcel(c *gin.Context) {
	res, err := pc.parcelService.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// fail records err for the request logger and writes the error response.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	apperrors.Respond(c, err)
}
