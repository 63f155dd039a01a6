package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/permit-deadline-api/internal/models"
	appErrors "github.com/noah-isme/permit-deadline-api/pkg/errors"
)

func newContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, rec
}

func TestJSONOmitsEmptyMeta(t *testing.T) {
	c, rec := newContext()
	JSON(c, http.StatusOK, []int{1, 2}, &models.Pagination{Page: 1, PageSize: 2, TotalCount: 5}, map[string]interface{}{})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotContains(t, body, "meta")
	assert.JSONEq(t, `{"page":1,"page_size":2,"total_count":5}`, string(body["pagination"]))
}

func TestErrorUsesStatusAndDetails(t *testing.T) {
	c, rec := newContext()
	Error(c, appErrors.Clone(appErrors.ErrMissingColumn, `required column "満了年月日" not found`).WithDetails("column", "満了年月日"))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"MISSING_COLUMN"`)
	assert.Contains(t, rec.Body.String(), `"details":{"column":"満了年月日"}`)
}

func TestAttachmentEncodesFilename(t *testing.T) {
	c, rec := newContext()
	Attachment(c, "名簿_processed.xlsx", "application/octet-stream", 3, strings.NewReader("abc"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc", rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Disposition"), "attachment; filename*=utf-8''"))
}
