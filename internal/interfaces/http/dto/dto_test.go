package dto

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "novel-writer/pkg/errors"
)

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	got, meta := Paginate(items, PageRequest{Page: 2, PageSize: 2})
	assert.Equal(t, []int{3, 4}, got)
	assert.Equal(t, &PageMeta{Page: 2, PageSize: 2, Total: 5, TotalPages: 3}, meta)

	got, meta = Paginate(items, PageRequest{Page: 9, PageSize: 2})
	assert.Empty(t, got)
	assert.Equal(t, 5, meta.Total)

	got, meta = Paginate([]int(nil), PageRequest{Page: 1, PageSize: 20})
	assert.Empty(t, got)
	assert.Zero(t, meta.TotalPages)
}

func TestFromError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err      error
		status   int
		code     string
		contains string
	}{
		{apperrors.Validationf("invalid up_to %q", "x"), http.StatusBadRequest, string(apperrors.CodeInvalidParam), "invalid up_to"},
		{apperrors.Newf(apperrors.CodeChapterNotFound, "chapter %d not committed", 3), http.StatusNotFound, string(apperrors.CodeChapterNotFound), "chapter 3"},
		{errors.New("disk on fire"), http.StatusInternalServerError, string(apperrors.CodeInternalError), "internal server error"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		FromError(c, tc.err)

		assert.Equal(t, tc.status, w.Code)
		var body ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, tc.code, body.Error.ErrorCode)
		assert.Contains(t, body.Message, tc.contains)
		assert.NotContains(t, w.Body.String(), "disk on fire")
	}
}

func TestBindChapterNumber(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for raw, ok := range map[string]bool{"1": true, "12": true, "0": false, "-3": false, "x": false} {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Params = gin.Params{{Key: "n", Value: raw}}
		_, err := BindChapterNumber(c)
		assert.Equal(t, ok, err == nil, raw)
	}
}
