package stub

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stemsi/exstem-client/internal/apierr"
	"github.com/stemsi/exstem-client/internal/model"
	"github.com/stemsi/exstem-client/internal/response"
)

// postResults dispatches POST /api/v1/results/:result_id. Only the
// literal "start" segment is a valid target.
func (s *Server) postResults(c *gin.Context) {
	if c.Param("result_id") != "start" {
		response.Fail(c, http.StatusNotFound, apierr.ErrNotFound)
		return
	}
	s.startAttempt(c)
}

// startAttempt godoc
// POST /api/v1/results/start
func (s *Server) startAttempt(c *gin.Context) {
	var req model.StartAttemptRequest
	if fields := bindJSON(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, apierr.ErrInvalidPayload, fields)
		return
	}

	resp, err := s.store.StartAttempt(candidateID(c), req.ExamID)
	if err != nil {
		failStoreError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, resp)
}

// submitAnswer godoc
// PUT /api/v1/results/:result_id/answer
func (s *Server) submitAnswer(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("result_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, apierr.ErrInvalidPayload)
		return
	}

	var req model.SubmitAnswerRequest
	if fields := bindJSON(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, apierr.ErrInvalidPayload, fields)
		return
	}

	if err := s.store.SaveAnswer(candidateID(c), attemptID, req.QuestionID, req.SelectedAnswer, req.TimeSpent); err != nil {
		failStoreError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"acknowledged": true})
}

// submitExam godoc
// POST /api/v1/results/:result_id/submit
// POST /api/v1/results/:result_id/auto-submit
//
// Both finalization paths grade identically; the stub does not
// distinguish who pulled the trigger.
func (s *Server) submitExam(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("result_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, apierr.ErrInvalidPayload)
		return
	}

	result, err := s.store.Submit(candidateID(c), attemptID)
	if err != nil {
		failStoreError(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// getResult godoc
// GET /api/v1/results/:result_id
func (s *Server) getResult(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("result_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, apierr.ErrInvalidPayload)
		return
	}

	result, err := s.store.Result(candidateID(c), attemptID)
	if err != nil {
		failStoreError(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// listResults godoc
// GET /api/v1/results
func (s *Server) listResults(c *gin.Context) {
	params := model.ListResultsParams{
		Page:    queryInt(c, "page", 1),
		PerPage: queryInt(c, "per_page", 20),
	}
	if raw := c.Query("exam_id"); raw != "" {
		examID, err := uuid.Parse(raw)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, apierr.ErrInvalidPayload)
			return
		}
		params.ExamID = &examID
	}

	results, total := s.store.ListResults(candidateID(c), params)
	if results == nil {
		results = []model.ResultSummary{}
	}

	totalPages := (total + params.PerPage - 1) / params.PerPage
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": results}, &response.Pagination{
		Page:       params.Page,
		PerPage:    params.PerPage,
		TotalItems: total,
		TotalPages: totalPages,
	})
}

func failStoreError(c *gin.Context, err error) {
	code := apierr.CodeOf(err)
	switch code {
	case apierr.ErrNotFound:
		response.Fail(c, http.StatusNotFound, code)
	case apierr.ErrInvalidQuestion:
		response.Fail(c, http.StatusBadRequest, code)
	case apierr.ErrAttemptLimitExceeded, apierr.ErrExamNotOpen, apierr.ErrNoActiveSession:
		response.Fail(c, http.StatusConflict, code)
	default:
		response.Fail(c, http.StatusInternalServerError, apierr.ErrServer)
	}
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
