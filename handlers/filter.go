package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode"

	"outbreak-dashboard/database"
	"outbreak-dashboard/models"

	"github.com/gin-gonic/gin"
)

// ErrInvalidFilter indicates a structurally invalid geography filter. It is
// rejected before any store scan.
var ErrInvalidFilter = errors.New("invalid geography filter")

const maxFilterLabelLen = 128

// parseGeoFilter reads the optional {country, state, district} hierarchy from
// query parameters. A missing or blank parameter is a full wildcard.
func parseGeoFilter(c *gin.Context) (*models.GeoFilter, error) {
	f := &models.GeoFilter{}

	var err error
	if f.Country, err = filterLabel(c.Query("country"), "country"); err != nil {
		return nil, err
	}
	if f.State, err = filterLabel(c.Query("state"), "state"); err != nil {
		return nil, err
	}
	if f.District, err = filterLabel(c.Query("district"), "district"); err != nil {
		return nil, err
	}
	return f, nil
}

func filterLabel(raw, name string) (*string, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil, nil
	}
	if len(v) > maxFilterLabelLen {
		return nil, fmt.Errorf("%w: %s exceeds %d characters", ErrInvalidFilter, name, maxFilterLabelLen)
	}
	for _, r := range v {
		if unicode.IsControl(r) {
			return nil, fmt.Errorf("%w: %s contains control characters", ErrInvalidFilter, name)
		}
	}
	return &v, nil
}

// statusFor maps service errors onto HTTP statuses: store unavailability is
// retryable, bad filters are the caller's fault, the rest is internal.
func statusFor(err error) int {
	switch {
	case errors.Is(err, database.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrInvalidFilter):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
