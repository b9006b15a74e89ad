package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"

	"shortlinks/internal/models"
	"shortlinks/internal/service"
)

const qrCodeSize = 256

type QRCodeController struct {
	linkService service.LinkService
	baseURL     string
}

func NewQRCodeController(linkService service.LinkService, baseURL string) *QRCodeController {
	return &QRCodeController{
		linkService: linkService,
		baseURL:     baseURL,
	}
}

// GenerateQRCode handles GET /links/:code/qr. Only live links get a code;
// looking the link up does not count as a click.
func (qc *QRCodeController) GenerateQRCode(c *gin.Context) {
	shortCode := c.Param("code")
	if _, err := qc.linkService.Stats(c.Request.Context(), shortCode); err != nil {
		respondError(c, err)
		return
	}

	shortURL := models.ShortURL(requestBaseURL(c, qc.baseURL), shortCode)

	pngData, err := qrcode.Encode(shortURL, qrcode.Medium, qrCodeSize)
	if err != nil {
		log.Error().Err(err).Str("short_code", shortCode).Msg("Failed to generate QR code")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to generate QR code"})
		return
	}

	c.Header("Content-Disposition", "inline; filename=qrcode.png")
	c.Data(http.StatusOK, "image/png", pngData)
}
