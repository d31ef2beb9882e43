package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"outbreak-dashboard/database"
)

func filterContext(query string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?"+query, nil)
	return c
}

func TestParseGeoFilter(t *testing.T) {
	testCases := []struct {
		name  string
		query string

		expectedCountry  string
		expectedState    string
		expectedDistrict string
		errorExpected    bool
	}{
		{
			name:  "no parameters is a full wildcard",
			query: "",
		},
		{
			name:            "country only",
			query:           "country=AU",
			expectedCountry: "AU",
		},
		{
			name:             "full hierarchy",
			query:            "country=AU&state=QLD&district=Brisbane",
			expectedCountry:  "AU",
			expectedState:    "QLD",
			expectedDistrict: "Brisbane",
		},
		{
			name:            "values are trimmed",
			query:           "country=%20AU%20",
			expectedCountry: "AU",
		},
		{
			name:  "blank value is a wildcard",
			query: "district=%20%20",
		},
		{
			name:          "oversized value rejected",
			query:         "district=" + strings.Repeat("x", 200),
			errorExpected: true,
		},
		{
			name:          "control characters rejected",
			query:         "district=bris%00bane",
			errorExpected: true,
		},
	}

	for _, testCase := range testCases {
		f, err := parseGeoFilter(filterContext(testCase.query))
		if testCase.errorExpected != (err != nil) {
			t.Errorf("%s: expected error: %v, got error: %v", testCase.name, testCase.errorExpected, err)
			continue
		}
		if testCase.errorExpected {
			if !errors.Is(err, ErrInvalidFilter) {
				t.Errorf("%s: expected ErrInvalidFilter, got %v", testCase.name, err)
			}
			continue
		}

		check := func(field string, got *string, expected string) {
			if expected == "" && got != nil {
				t.Errorf("%s: expected %s unset, got %q", testCase.name, field, *got)
			}
			if expected != "" && (got == nil || *got != expected) {
				t.Errorf("%s: expected %s %q, got %v", testCase.name, field, expected, got)
			}
		}
		check("country", f.Country, testCase.expectedCountry)
		check("state", f.State, testCase.expectedState)
		check("district", f.District, testCase.expectedDistrict)
	}
}

func TestStatusFor(t *testing.T) {
	testCases := []struct {
		err      error
		expected int
	}{
		{fmt.Errorf("%w: connection refused", database.ErrStoreUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("%w: district too long", ErrInvalidFilter), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, testCase := range testCases {
		if got := statusFor(testCase.err); got != testCase.expected {
			t.Errorf("statusFor(%v): expected %d, got %d", testCase.err, testCase.expected, got)
		}
	}
}
